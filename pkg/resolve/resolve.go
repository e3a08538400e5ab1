// Package resolve disambiguates which sibling files on disk represent a
// dataset named by a basename: the container cache, a richer source media
// file, the metadata sidecar, or a multi-part tiled image sequence.
package resolve

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/marmos91/voxstream/internal/logger"
	"github.com/marmos91/voxstream/pkg/voxel"
)

// Kind classifies a resolved source file.
type Kind int

const (
	// KindContainer is the voxstream container format itself.
	KindContainer Kind = iota

	// KindTiled is a random-access tiled image file.
	KindTiled

	// KindStream is a sequentially decodable media file.
	KindStream
)

func (k Kind) String() string {
	switch k {
	case KindContainer:
		return "container"
	case KindTiled:
		return "tiled"
	case KindStream:
		return "stream"
	default:
		return "unknown"
	}
}

const (
	// ContainerExt is the extension of the container cache file.
	ContainerExt = ".dat"

	// SidecarExt is the extension of the key/value metadata sidecar.
	SidecarExt = ".meta"
)

// sourceExts lists every recognized source extension in ascending priority
// order: the container wins over a tiled image, which wins over the richer
// media types. The order within each kind is fixed so that ambiguity
// resolution is deterministic.
var sourceExts = []struct {
	ext  string
	kind Kind
}{
	{ContainerExt, KindContainer},
	{".tif", KindTiled},
	{".tiff", KindTiled},
	{".mov", KindStream},
	{".avi", KindStream},
	{".mp4", KindStream},
	{".mj2", KindStream},
}

// Resolution is the outcome of resolving a basename: which file is the
// canonical source, plus the derived container and sidecar paths.
type Resolution struct {
	// Basename is the path without extension. Container and sidecar paths
	// derive from it.
	Basename string

	// Source is the canonical source file. When no richer source exists it
	// is the container path itself.
	Source string

	// Kind classifies Source.
	Kind Kind

	// Exists reports whether Source is present on disk. False only when
	// resolution allowed a missing source (fresh container creation).
	Exists bool
}

// ContainerPath returns the sibling container cache path.
func (r *Resolution) ContainerPath() string {
	return r.Basename + ContainerExt
}

// SidecarPath returns the sibling metadata sidecar path.
func (r *Resolution) SidecarPath() string {
	return r.Basename + SidecarExt
}

// Resolve determines the dataset files for path.
//
// An exact recognized extension on path wins when that file exists.
// Otherwise every supported extension is scanned: a single match is used
// directly; several matches resolve by priority order with an ambiguity
// warning; no match fails with ErrNotFound unless allowMissing is set, in
// which case a fresh container resolution is returned.
func Resolve(path string, allowMissing bool) (*Resolution, error) {
	return ResolveSource(path, allowMissing, false)
}

// ResolveSource is Resolve with control over the container cache: with
// skipContainer set, an existing container sibling is ignored so a richer
// source can win (the ignore-cached-container construction option).
func ResolveSource(path string, allowMissing, skipContainer bool) (*Resolution, error) {
	base, explicitExt := splitKnownExt(path)
	if skipContainer && explicitExt == ContainerExt {
		explicitExt = ""
	}

	if explicitExt != "" {
		full := base + explicitExt
		if _, err := os.Stat(full); err == nil {
			return &Resolution{
				Basename: base,
				Source:   full,
				Kind:     kindOf(explicitExt),
				Exists:   true,
			}, nil
		} else if !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
		// Explicitly named file is absent: fall through to the sibling scan
		// so a cached container can still satisfy the request.
	}

	var found []Resolution
	for _, se := range sourceExts {
		if skipContainer && se.kind == KindContainer {
			continue
		}
		full := base + se.ext
		_, err := os.Stat(full)
		if err != nil && se.kind == KindTiled {
			// A tiled dataset may exist only as numbered part files.
			if parts, perr := DetectParts(base, se.ext); perr == nil && parts != nil {
				err = nil
			}
		}
		if err == nil {
			found = append(found, Resolution{
				Basename: base,
				Source:   full,
				Kind:     se.kind,
				Exists:   true,
			})
		}
	}

	switch len(found) {
	case 0:
		if allowMissing {
			return &Resolution{
				Basename: base,
				Source:   base + ContainerExt,
				Kind:     KindContainer,
				Exists:   false,
			}, nil
		}
		return nil, fmt.Errorf("%w: no source for basename %q", voxel.ErrNotFound, base)
	case 1:
		return &found[0], nil
	default:
		names := make([]string, len(found))
		for i, f := range found {
			names[i] = filepath.Base(f.Source)
		}
		logger.Warn("ambiguous dataset %q: candidates %v, using %s",
			base, names, filepath.Base(found[0].Source))
		return &found[0], nil
	}
}

// splitKnownExt splits path into basename and extension when the extension
// is one of the supported source extensions. Unrecognized extensions are
// treated as part of the basename.
func splitKnownExt(path string) (base, ext string) {
	e := strings.ToLower(filepath.Ext(path))
	for _, se := range sourceExts {
		if e == se.ext {
			return strings.TrimSuffix(path, filepath.Ext(path)), e
		}
	}
	return path, ""
}

func kindOf(ext string) Kind {
	for _, se := range sourceExts {
		if se.ext == ext {
			return se.kind
		}
	}
	return KindContainer
}
