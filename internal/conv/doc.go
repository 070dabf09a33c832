// Package conv provides checked integer conversions for allocation sizes.
//
// The public allocator API speaks int; the raw memory layers speak uintptr.
// These helpers reject negative and out-of-range values instead of silently
// wrapping them into huge requests.
//
// For conversions that are provably safe by construction (class indices,
// header words the allocator wrote itself), use direct casts.
package conv
