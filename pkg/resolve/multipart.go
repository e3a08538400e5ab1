package resolve

import (
	"fmt"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/marmos91/voxstream/internal/logger"
)

// Part is one physical file of a multi-part tiled sequence.
type Part struct {
	Path string
	// Seq is the numeric suffix embedded in the filename. Parts sort by it.
	Seq int
}

// partScheme is one naming convention for split tiled datasets: a separator
// character followed by a fixed-width decimal suffix before the extension.
type partScheme struct {
	sep   byte
	width int
}

// The two supported conventions, tried in parallel. The first scheme wins
// ties.
var partSchemes = [2]partScheme{
	{sep: '@', width: 4},
	{sep: '-', width: 2},
}

func (s partScheme) glob(base, ext string) string {
	return base + string(s.sep) + strings.Repeat("?", s.width) + ext
}

func (s partScheme) pattern(base, ext string) *regexp.Regexp {
	return regexp.MustCompile(
		"^" + regexp.QuoteMeta(filepath.Base(base)) +
			regexp.QuoteMeta(string(s.sep)) +
			fmt.Sprintf(`(\d{%d})`, s.width) +
			regexp.QuoteMeta(ext) + "$")
}

// DetectParts checks whether the tiled dataset at base+ext is split across
// companion files under one of the fixed naming schemes. Both schemes are
// evaluated; the one matching more files wins, ties preferring the first.
// The returned parts are deduplicated and sorted ascending by suffix. A nil
// slice means the dataset is a single file.
func DetectParts(base, ext string) ([]Part, error) {
	var matches [2][]Part
	for i, scheme := range partSchemes {
		paths, err := filepath.Glob(scheme.glob(base, ext))
		if err != nil {
			return nil, err
		}
		re := scheme.pattern(base, ext)
		seen := make(map[int]bool)
		for _, p := range paths {
			m := re.FindStringSubmatch(filepath.Base(p))
			if m == nil {
				continue
			}
			seq, err := strconv.Atoi(m[1])
			if err != nil || seen[seq] {
				continue
			}
			seen[seq] = true
			matches[i] = append(matches[i], Part{Path: p, Seq: seq})
		}
	}

	winner := 0
	if len(matches[1]) > len(matches[0]) {
		winner = 1
	}
	if len(matches[0]) > 1 && len(matches[1]) > 1 {
		logger.Warn("multi-part dataset %q matches both naming schemes (%d vs %d files), using separator %q",
			base, len(matches[0]), len(matches[1]), string(partSchemes[winner].sep))
	}

	parts := matches[winner]
	if len(parts) < 2 {
		return nil, nil
	}
	sort.Slice(parts, func(i, j int) bool { return parts[i].Seq < parts[j].Seq })
	return parts, nil
}
