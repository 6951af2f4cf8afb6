package engine

import (
	"os"

	"github.com/wardenscan/javasentry/walker"
)

// readTemplateFile reads path raw, enforcing the same size and line caps
// JavaParser applies; decoding is left to the template scanner (which
// needs the raw bytes to special-case .class files).
func readTemplateFile(path string) ([]byte, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.Size() > walker.MaxFileSize {
		return nil, &walker.SkipError{Path: path, Reason: "file size exceeds cap"}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if skipErr := walker.CheckLineCap(path, data); skipErr != nil {
		return nil, skipErr
	}
	return data, nil
}
