package gosource

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"
)

// ignoreRule is a single .gitignore pattern.
type ignoreRule struct {
	pattern  string
	negation bool
}

// Ignore is the parsed .gitignore of a module root. Packages whose
// directory it matches are not scanned for providers.
type Ignore struct {
	rules []ignoreRule
}

// LoadIgnore parses .gitignore from root. A missing file yields an empty
// Ignore.
func LoadIgnore(root string) Ignore {
	f, err := os.Open(filepath.Join(root, ".gitignore"))
	if err != nil {
		return Ignore{}
	}
	defer f.Close()

	var ig Ignore
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		ig.Add(sc.Text())
	}
	return ig
}

// Add appends one .gitignore line. Blank lines and comments are skipped.
func (ig *Ignore) Add(line string) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return
	}
	r := ignoreRule{}
	if strings.HasPrefix(line, "!") {
		r.negation = true
		line = line[1:]
	}
	// Only package directories are matched, so dir-only rules need no flag.
	r.pattern = strings.TrimSuffix(line, "/")
	ig.rules = append(ig.rules, r)
}

// Match reports whether relPath, relative to the module root, is ignored.
// Later rules override earlier ones.
func (ig Ignore) Match(relPath string) bool {
	relPath = filepath.ToSlash(relPath)

	ignored := false
	for _, r := range ig.rules {
		if matchRule(relPath, r.pattern) {
			ignored = !r.negation
		}
	}
	return ignored
}

// matchRule performs simplified gitignore matching.
func matchRule(path, pattern string) bool {
	// Leading / anchors to root.
	if strings.HasPrefix(pattern, "/") {
		pattern = pattern[1:]
		if matched, _ := filepath.Match(pattern, path); matched {
			return true
		}
		return strings.HasPrefix(path, pattern+"/")
	}

	if strings.Contains(pattern, "/") {
		if matched, _ := filepath.Match(pattern, path); matched {
			return true
		}
		return strings.HasPrefix(path, pattern+"/")
	}

	for _, part := range strings.Split(path, "/") {
		if matched, _ := filepath.Match(pattern, part); matched {
			return true
		}
	}
	return false
}
