package track

import (
	"fmt"
	"runtime"
)

// Site is the source location an allocation is attributed to.
type Site struct {
	File     string
	Function string
	Line     int
}

// IsZero reports whether s carries no information.
func (s Site) IsZero() bool {
	return s.File == "" && s.Function == "" && s.Line == 0
}

func (s Site) String() string {
	if s.IsZero() {
		return "unknown"
	}
	if s.Function == "" {
		return fmt.Sprintf("%s:%d", s.File, s.Line)
	}
	return fmt.Sprintf("%s:%d (%s)", s.File, s.Line, s.Function)
}

// callerSite captures the frame skip levels above its caller.
func callerSite(skip int) Site {
	var pcs [1]uintptr
	if runtime.Callers(skip+2, pcs[:]) == 0 {
		return Site{}
	}
	f, _ := runtime.CallersFrames(pcs[:]).Next()
	return Site{File: f.File, Line: f.Line, Function: f.Function}
}
