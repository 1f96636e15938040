// Package discovery finds the COBOL sources of a project.
package discovery

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gobwas/glob"
	"github.com/spf13/afero"
)

// compiledPattern holds both the pattern string and compiled glob
type compiledPattern struct {
	pattern string
	glob    glob.Glob
}

// SourceDiscovery walks a project root for COBOL sources matching the
// configured patterns.
type SourceDiscovery struct {
	fs             afero.Fs
	rootDir        string
	sourcePatterns []compiledPattern
	ignorePatterns []compiledPattern
}

// New creates a discovery instance. A nil fs reads the OS filesystem.
func New(fs afero.Fs, rootDir string, sourcePatterns, ignorePatterns []string) (*SourceDiscovery, error) {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	sd := &SourceDiscovery{
		fs:      fs,
		rootDir: rootDir,
	}

	var err error
	if sd.sourcePatterns, err = compile(sourcePatterns); err != nil {
		return nil, err
	}
	if sd.ignorePatterns, err = compile(ignorePatterns); err != nil {
		return nil, err
	}

	return sd, nil
}

func compile(patterns []string) ([]compiledPattern, error) {
	out := make([]compiledPattern, 0, len(patterns))
	for _, pattern := range patterns {
		g, err := glob.Compile(pattern, '/')
		if err != nil {
			return nil, fmt.Errorf("failed to compile pattern %q: %w", pattern, err)
		}
		out = append(out, compiledPattern{pattern: pattern, glob: g})
	}
	return out, nil
}

// Discover returns the matching source files as sorted absolute paths.
func (sd *SourceDiscovery) Discover() ([]string, error) {
	files := []string{}

	err := afero.Walk(sd.fs, sd.rootDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		relPath, err := filepath.Rel(sd.rootDir, path)
		if err != nil {
			return err
		}
		relPath = filepath.ToSlash(relPath)

		if info.IsDir() {
			if relPath != "." && sd.shouldIgnore(relPath) {
				return filepath.SkipDir
			}
			return nil
		}

		if sd.shouldIgnore(relPath) {
			return nil
		}

		if sd.Matches(relPath) {
			abs, err := filepath.Abs(path)
			if err != nil {
				return err
			}
			files = append(files, abs)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk %s: %w", sd.rootDir, err)
	}

	sort.Strings(files)
	return files, nil
}

// Matches reports whether a slash-separated path relative to the root is a
// source file.
func (sd *SourceDiscovery) Matches(relPath string) bool {
	return matchesAnyPattern(relPath, sd.sourcePatterns)
}

// shouldIgnore checks if a path matches any ignore pattern.
func (sd *SourceDiscovery) shouldIgnore(relPath string) bool {
	// Always ignore .cobmap directory
	if strings.HasPrefix(relPath, ".cobmap/") || relPath == ".cobmap" {
		return true
	}

	if matchesAnyPattern(relPath, sd.ignorePatterns) {
		return true
	}

	// "build" should match pattern "build/**"
	return matchesAnyPattern(relPath+"/**", sd.ignorePatterns)
}

// matchesAnyPattern checks if a path matches any of the given patterns.
func matchesAnyPattern(path string, patterns []compiledPattern) bool {
	for _, cp := range patterns {
		if cp.glob.Match(path) {
			return true
		}
	}

	// A root-level file also matches "**/" patterns with the prefix removed,
	// so "**/*.cbl" matches both "PAYROLL.cbl" and "src/PAYROLL.cbl".
	if !strings.Contains(path, "/") {
		for _, cp := range patterns {
			simplified, ok := strings.CutPrefix(cp.pattern, "**/")
			if !ok {
				continue
			}
			if g, err := glob.Compile(simplified, '/'); err == nil && g.Match(path) {
				return true
			}
		}
	}

	return false
}
