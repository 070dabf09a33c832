package report

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// ErrMalformedLine is returned by ParseTSV for lines that do not have the
// report layout.
var ErrMalformedLine = errors.New("report: malformed line")

// Leak describes one allocation that was still live at teardown.
type Leak struct {
	Address  uintptr
	Size     int
	File     string
	Function string
	Line     int
	Kind     string
	Tag      string
	Seq      uint64
}

// String returns the report line for l without the trailing newline.
func (l Leak) String() string {
	return fmt.Sprintf("%#x\t%#x\t%d\t%s\t%s\t%d\t%s",
		l.Address, l.Size, l.Size, field(l.File), field(l.Function), l.Line, field(l.Kind))
}

// field keeps a value from breaking the line layout.
func field(s string) string {
	if s == "" {
		return "-"
	}
	return strings.Map(func(r rune) rune {
		if r == '\t' || r == '\n' || r == '\r' {
			return ' '
		}
		return r
	}, s)
}

// WriteTSV writes one line per leak.
func WriteTSV(w io.Writer, leaks []Leak) error {
	bw := bufio.NewWriter(w)
	for _, l := range leaks {
		if _, err := bw.WriteString(l.String()); err != nil {
			return err
		}
		if err := bw.WriteByte('\n'); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// ParseTSV reads a report written by WriteTSV. Tag and Seq are not part of the
// line format and stay zero.
func ParseTSV(r io.Reader) ([]Leak, error) {
	var leaks []Leak
	sc := bufio.NewScanner(r)
	for n := 1; sc.Scan(); n++ {
		line := sc.Text()
		if line == "" {
			continue
		}
		l, err := parseLine(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", n, err)
		}
		leaks = append(leaks, l)
	}
	return leaks, sc.Err()
}

func parseLine(line string) (Leak, error) {
	cols := strings.Split(line, "\t")
	if len(cols) != 7 {
		return Leak{}, fmt.Errorf("%w: %d columns", ErrMalformedLine, len(cols))
	}

	addr, err := strconv.ParseUint(cols[0], 0, 64)
	if err != nil {
		return Leak{}, fmt.Errorf("%w: address: %w", ErrMalformedLine, err)
	}
	size, err := strconv.Atoi(cols[2])
	if err != nil {
		return Leak{}, fmt.Errorf("%w: size: %w", ErrMalformedLine, err)
	}
	line64, err := strconv.Atoi(cols[5])
	if err != nil {
		return Leak{}, fmt.Errorf("%w: line: %w", ErrMalformedLine, err)
	}

	return Leak{
		Address:  uintptr(addr),
		Size:     size,
		File:     unfield(cols[3]),
		Function: unfield(cols[4]),
		Line:     line64,
		Kind:     unfield(cols[6]),
	}, nil
}

func unfield(s string) string {
	if s == "-" {
		return ""
	}
	return s
}

// Summary aggregates leaks for display.
type Summary struct {
	Count int
	Bytes int64
	// BySite maps "file:line" to the number of leaks allocated there.
	BySite map[string]int
}

// Summarize aggregates leaks by allocation site.
func Summarize(leaks []Leak) Summary {
	s := Summary{BySite: make(map[string]int)}
	for _, l := range leaks {
		s.Count++
		s.Bytes += int64(l.Size)
		s.BySite[fmt.Sprintf("%s:%d", field(l.File), l.Line)]++
	}
	return s
}
