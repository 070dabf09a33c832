//go:build slabdebug

package slabmem

// ConfigToken is the token of the mode this package was compiled in.
const ConfigToken = ConfigTokenDebug

const defaultDebug = true
