// Package walker discovers candidate files under a project root, applying
// the skip-directory list, extension filters, and the size/line/
// path-traversal guards described for the engine's resource limits.
package walker

import (
	"os"
	"path/filepath"
	"strings"
)

// MaxFileSize is the hard cap on a candidate file's size in bytes.
const MaxFileSize = 50 * 1024 * 1024

// MaxFileLines is the hard cap on a candidate file's line count.
const MaxFileLines = 200000

// SkipDirPatterns are path substrings that exclude a directory from the
// walk unless IgnoreSkipDirs is set.
var SkipDirPatterns = []string{
	string(filepath.Separator) + "target" + string(filepath.Separator),
	string(filepath.Separator) + "build" + string(filepath.Separator),
	string(filepath.Separator) + "dist" + string(filepath.Separator),
	string(filepath.Separator) + "out" + string(filepath.Separator),
	string(filepath.Separator) + "node_modules" + string(filepath.Separator),
}

// alwaysTemplateExts are always eligible for the template scan regardless
// of the rule bundle's extension map.
var alwaysTemplateExts = map[string]bool{
	"java":  true,
	"jsp":   true,
	"jspx":  true,
	"class": true,
}

// Options configures a walk.
type Options struct {
	Root           string
	IgnoreSkipDirs bool
	TemplateExts   map[string]bool // lowercase, no dot; merged with alwaysTemplateExts
}

// File describes one candidate file discovered by the walk.
type File struct {
	AbsPath string
	RelPath string // forward-slash normalized, relative to Root
	Ext     string // lowercase, no dot
	Size    int64
}

// Walker walks a project tree and classifies files for AST parsing and
// template scanning.
type Walker struct {
	opts Options
	root string
}

// New builds a Walker rooted at opts.Root. The root is resolved to an
// absolute path once so every RelPath/containment check is stable.
func New(opts Options) (*Walker, error) {
	abs, err := filepath.Abs(opts.Root)
	if err != nil {
		return nil, err
	}
	return &Walker{opts: opts, root: abs}, nil
}

// Walk invokes visit for every regular file under the root that passes
// the skip-dir filter and the path-traversal guard, in depth-first order.
// Of the per-file caps, Walk enforces only the size cap; the line cap
// needs a read, so callers check it once they know whether the file is
// headed for AST parsing or template scanning.
func (w *Walker) Walk(visit func(File) error) error {
	return filepath.Walk(w.root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // unreadable entries are skipped, not fatal
		}
		if info.IsDir() {
			if !w.opts.IgnoreSkipDirs && isSkippedDir(path) {
				return filepath.SkipDir
			}
			return nil
		}
		if !w.withinRoot(path) {
			return nil
		}
		rel, err := filepath.Rel(w.root, path)
		if err != nil {
			return nil
		}
		if info.Size() > MaxFileSize {
			return nil
		}
		ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
		return visit(File{
			AbsPath: path,
			RelPath: filepath.ToSlash(rel),
			Ext:     ext,
			Size:    info.Size(),
		})
	})
}

// withinRoot is the path-traversal guard: the resolved path must share a
// common prefix with the (absolute) root. filepath.Walk never escapes its
// start directory on its own, but symlinks can; this guard is the same
// check applied again defensively, matching the spec's explicit
// requirement rather than trusting filepath.Walk's traversal order.
func (w *Walker) withinRoot(path string) bool {
	abs, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	rel, err := filepath.Rel(w.root, abs)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func isSkippedDir(path string) bool {
	normalized := path
	if !strings.HasSuffix(normalized, string(filepath.Separator)) {
		normalized += string(filepath.Separator)
	}
	for _, pattern := range SkipDirPatterns {
		if strings.Contains(normalized, pattern) {
			return true
		}
	}
	return false
}

// IsJavaSource reports whether ext (lowercase, no dot) is a .java file —
// the only extension eligible for AST construction.
func IsJavaSource(ext string) bool {
	return ext == "java"
}

// IsTemplateEligible reports whether ext is eligible for the template
// scan: always-included Java-related extensions, plus any extension in
// the rule bundle's extension map.
func IsTemplateEligible(ext string, ruleExts map[string]bool) bool {
	if alwaysTemplateExts[ext] {
		return true
	}
	return ruleExts[ext]
}
