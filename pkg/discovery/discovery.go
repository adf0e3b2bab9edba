// Package discovery enumerates the files a run should parse.
package discovery

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	ignore "github.com/sabhiram/go-gitignore"
	"github.com/sirupsen/logrus"
)

// DefaultIgnore lists names that are never walked into.
var DefaultIgnore = []string{"Context_Logs", ".git"}

// sniffSize is how much of a file is checked for NUL bytes.
const sniffSize = 8 * 1024

// Finder walks directories for candidate files.
type Finder struct {
	logger *logrus.Logger
	ignore map[string]bool
}

// New creates a finder that skips DefaultIgnore plus extra names.
func New(logger *logrus.Logger, extra []string) *Finder {
	names := make(map[string]bool, len(DefaultIgnore)+len(extra))
	for _, n := range DefaultIgnore {
		names[n] = true
	}
	for _, n := range extra {
		if n = strings.TrimSpace(n); n != "" {
			names[n] = true
		}
	}
	return &Finder{logger: logger, ignore: names}
}

// Filter applies the finder's rules to paths below one root.
type Filter struct {
	finder    *Finder
	root      string
	gitignore *ignore.GitIgnore
}

// Filter loads the .gitignore of root and returns the rules for paths below it.
func (f *Finder) Filter(root string) (*Filter, error) {
	gitignore, err := loadGitignore(root)
	if err != nil {
		return nil, err
	}
	return &Filter{finder: f, root: root, gitignore: gitignore}, nil
}

func (r *Filter) skipDir(name, rel string) bool {
	if r.finder.ignore[name] || strings.HasPrefix(name, ".") {
		return true
	}
	if r.gitignore != nil && r.gitignore.MatchesPath(rel+"/") {
		r.finder.logger.Debugf("Skipping ignored directory %s", rel)
		return true
	}
	return false
}

func (r *Filter) allowFile(path, rel string) bool {
	if r.finder.ignore[filepath.Base(path)] {
		return false
	}
	if r.gitignore != nil && r.gitignore.MatchesPath(rel) {
		r.finder.logger.Debugf("Skipping ignored file %s", rel)
		return false
	}
	binary, err := isBinary(path)
	if err != nil {
		r.finder.logger.WithError(err).Debugf("Skipping unreadable file %s", rel)
		return false
	}
	if binary {
		r.finder.logger.Debugf("Skipping binary file %s", rel)
		return false
	}
	return true
}

// Allowed reports whether path would be returned by Find on the filter's
// root: a regular text file below root, outside skipped and hidden
// directories and not matched by .gitignore.
func (r *Filter) Allowed(path string) bool {
	rel, err := filepath.Rel(r.root, path)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return false
	}
	rel = filepath.ToSlash(rel)

	parts := strings.Split(rel, "/")
	for i := range parts[:len(parts)-1] {
		if r.skipDir(parts[i], strings.Join(parts[:i+1], "/")) {
			return false
		}
	}
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return false
	}
	return r.allowFile(path, rel)
}

// Find returns the files to process under root, sorted. A root that is a
// file is returned as is.
func (f *Finder) Find(root string) ([]string, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", root, err)
	}
	if !info.IsDir() {
		return []string{root}, nil
	}

	rules, err := f.Filter(root)
	if err != nil {
		return nil, err
	}

	var files []string
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			f.logger.WithError(err).Debugf("Skipping unreadable path %s", path)
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if path == root {
			return nil
		}

		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if rules.skipDir(d.Name(), rel) {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() || !rules.allowFile(path, rel) {
			return nil
		}
		files = append(files, path)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk %s: %w", root, err)
	}

	sort.Strings(files)
	f.logger.Debugf("Discovered %d file(s) under %s", len(files), root)
	return files, nil
}

func loadGitignore(root string) (*ignore.GitIgnore, error) {
	path := filepath.Join(root, ".gitignore")
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	gi, err := ignore.CompileIgnoreFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", path, err)
	}
	return gi, nil
}

// isBinary reports whether the start of the file contains a NUL byte.
func isBinary(path string) (bool, error) {
	file, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer file.Close()

	buf := make([]byte, sniffSize)
	n, err := io.ReadFull(file, buf)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return false, err
	}
	return bytes.IndexByte(buf[:n], 0) >= 0, nil
}
