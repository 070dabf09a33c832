package track

import "fmt"

// Kind identifies the API family an allocation was made through.
type Kind uint8

const (
	// KindUnknown matches any release kind.
	KindUnknown Kind = iota
	KindNew
	KindNewAligned
	KindNewArray
	KindNewArrayAligned
	KindHeapAlloc
	KindZeroInitAlloc
	KindResize
	// KindUnvalidated disables kind checking for the block.
	KindUnvalidated
)

var kindNames = [...]string{
	KindUnknown:         "unknown",
	KindNew:             "new",
	KindNewAligned:      "new-aligned",
	KindNewArray:        "new-array",
	KindNewArrayAligned: "new-array-aligned",
	KindHeapAlloc:       "heap-alloc",
	KindZeroInitAlloc:   "zero-init-alloc",
	KindResize:          "resize",
	KindUnvalidated:     "unvalidated",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// ParseKind returns the Kind named s.
func ParseKind(s string) (Kind, error) {
	for k, name := range kindNames {
		if name == s {
			return Kind(k), nil //nolint:gosec // index into a small table
		}
	}
	return KindUnknown, fmt.Errorf("track: unknown kind %q", s)
}

// family groups kinds that may release each other's blocks.
func (k Kind) family() Kind {
	switch k {
	case KindZeroInitAlloc, KindResize:
		return KindHeapAlloc
	default:
		return k
	}
}

// Compatible reports whether a block allocated as alloc may be released as
// release.
func Compatible(alloc, release Kind) bool {
	if alloc == KindUnknown || alloc == KindUnvalidated || release == KindUnknown || release == KindUnvalidated {
		return true
	}
	return alloc.family() == release.family()
}

// zeroed reports whether blocks of this kind start out zero-filled.
func (k Kind) zeroed() bool {
	return k == KindZeroInitAlloc
}
