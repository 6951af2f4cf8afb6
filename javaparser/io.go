package javaparser

import (
	"fmt"
	"os"

	"github.com/wardenscan/javasentry/walker"
)

func readFile(path string) ([]byte, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.Size() > walker.MaxFileSize {
		return nil, fmt.Errorf("file size %d exceeds cap", info.Size())
	}
	return os.ReadFile(path)
}
