package slabmem

// Configuration tokens identify the mode a component was compiled for.
// Components built against the allocator pass ConfigToken to
// CheckConfiguration to detect a debug/release mix-up.
const (
	ConfigTokenRelease uint32 = 0x51AB0000
	ConfigTokenDebug   uint32 = 0x51AB0DB6
)

// CheckConfiguration reports whether token matches the mode of the default
// allocator. A mismatch is logged as a warning.
func CheckConfiguration(token uint32) bool {
	return Default().CheckConfiguration(token)
}
