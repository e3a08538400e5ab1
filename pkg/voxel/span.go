package voxel

import "fmt"

// Span selects indices along one axis. The zero value selects the whole
// axis, which is what omitted trailing specifiers default to.
//
// Explicit spans use half-open [Start, Stop) bounds with 0-based indices.
type Span struct {
	start    int
	stop     int
	explicit bool
}

// All selects every index along an axis.
func All() Span {
	return Span{}
}

// At selects the single index i.
func At(i int) Span {
	return Span{start: i, stop: i + 1, explicit: true}
}

// Range selects the half-open interval [start, stop).
func Range(start, stop int) Span {
	return Span{start: start, stop: stop, explicit: true}
}

// Explicit reports whether the span names concrete bounds rather than
// defaulting to the whole axis.
func (sp Span) Explicit() bool {
	return sp.explicit
}

// Resolve clamps the span against an axis of length n and returns the
// selected [first, stop) interval. An explicit span that falls outside the
// axis is an input error.
func (sp Span) Resolve(n int) (first, stop int, err error) {
	if !sp.explicit {
		return 0, n, nil
	}
	if sp.start < 0 || sp.stop > n || sp.start >= sp.stop {
		return 0, 0, fmt.Errorf("%w: span [%d,%d) out of range for axis length %d",
			ErrInput, sp.start, sp.stop, n)
	}
	return sp.start, sp.stop, nil
}

// Len returns the number of selected indices for an axis of length n.
func (sp Span) Len(n int) int {
	if !sp.explicit {
		return n
	}
	return sp.stop - sp.start
}

// IsFull reports whether the span covers the whole axis of length n, either
// implicitly or with explicit bounds.
func (sp Span) IsFull(n int) bool {
	return !sp.explicit || (sp.start == 0 && sp.stop == n)
}

func (sp Span) String() string {
	if !sp.explicit {
		return ":"
	}
	if sp.stop == sp.start+1 {
		return fmt.Sprintf("%d", sp.start)
	}
	return fmt.Sprintf("%d:%d", sp.start, sp.stop)
}
