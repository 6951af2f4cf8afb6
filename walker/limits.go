package walker

import "bytes"

// SkipError records why a file was excluded from processing. It never
// crosses the per-file isolation boundary as a returned error — it exists
// only so callers can log a reason at debug level.
type SkipError struct {
	Path   string
	Reason string
}

func (e *SkipError) Error() string {
	return e.Path + ": " + e.Reason
}

// CountLines counts newline-delimited lines in data without allocating a
// []string, so the MaxFileLines cap can be checked before a full decode.
func CountLines(data []byte) int {
	if len(data) == 0 {
		return 0
	}
	n := bytes.Count(data, []byte{'\n'})
	if data[len(data)-1] != '\n' {
		n++
	}
	return n
}

// CheckLineCap returns a *SkipError if data exceeds MaxFileLines.
func CheckLineCap(path string, data []byte) *SkipError {
	if lines := CountLines(data); lines > MaxFileLines {
		return &SkipError{Path: path, Reason: "line count exceeds cap"}
	}
	return nil
}
