//go:build !slabdebug

package slabmem

// ConfigToken is the token of the mode this package was compiled in.
const ConfigToken = ConfigTokenRelease

const defaultDebug = false
