package extract

import (
	"os"
	"path/filepath"
	"strings"
)

// excludedDirs are directory names never descended into during a scan or
// copy: dependency caches, version-control metadata, and build scratch.
var excludedDirs = map[string]bool{
	"node_modules": true,
	".git":         true,
	".hg":          true,
	".svn":         true,
	"dist":         true,
	"build":        true,
	"out":          true,
	"target":       true,
	"vendor":       true,
	"__pycache__":  true,
	".venv":        true,
	"venv":         true,
	".next":        true,
	".nuxt":        true,
	"coverage":     true,
	".cache":       true,
	"tmp":          true,
}

// allowedExtensions is the file inclusion filter: source, config, markup,
// and docs.
var allowedExtensions = map[string]bool{
	".go": true, ".js": true, ".jsx": true, ".ts": true, ".tsx": true,
	".py": true, ".rb": true, ".rs": true, ".java": true, ".kt": true,
	".c": true, ".h": true, ".cpp": true, ".hpp": true, ".cs": true,
	".php": true, ".swift": true, ".vue": true, ".svelte": true,
	".html": true, ".css": true, ".scss": true, ".sass": true,
	".json": true, ".yaml": true, ".yml": true, ".toml": true, ".xml": true,
	".md": true, ".txt": true, ".sql": true, ".sh": true, ".env": true,
	".ini": true, ".cfg": true, ".mod": true, ".sum": true,
}

// nameExceptions are copied regardless of extension.
var nameExceptions = map[string]bool{
	"Dockerfile": true,
	"Makefile":   true,
	"LICENSE":    true,
	"Procfile":   true,
	"README":     true,
}

// allowedHidden is the only hidden file name that survives the hidden-file
// skip rule.
const allowedHidden = ".gitignore"

// markerFiles identify a directory as a plausible project root.
var markerFiles = []string{
	"package.json",
	"go.mod",
	"pyproject.toml",
	"requirements.txt",
	"Cargo.toml",
	"pom.xml",
	"composer.json",
	"Gemfile",
	"README.md",
	"readme.md",
	"Makefile",
}

// shouldDescend reports whether a directory may be entered during a walk.
func shouldDescend(name string) bool {
	if excludedDirs[name] {
		return false
	}
	if strings.HasPrefix(name, ".") {
		return false
	}
	return true
}

// shouldCopy reports whether a file passes the inclusion filter.
func shouldCopy(name string) bool {
	if strings.HasPrefix(name, ".") {
		return name == allowedHidden
	}
	if nameExceptions[name] {
		return true
	}
	return allowedExtensions[strings.ToLower(filepath.Ext(name))]
}

// looksLikeProjectRoot reports whether dir contains a marker file or, failing
// that, any file with a recognizable source extension at the top level.
func looksLikeProjectRoot(dir string) bool {
	for _, marker := range markerFiles {
		if _, err := os.Stat(filepath.Join(dir, marker)); err == nil {
			return true
		}
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return false
	}
	for _, e := range entries {
		if !e.IsDir() && shouldCopy(e.Name()) {
			return true
		}
	}
	return false
}

// containsRelevantFiles reports whether dir holds at least one copyable file
// anywhere under it, honoring the exclusion rules.
func containsRelevantFiles(dir string) bool {
	found := false
	_ = filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil || found {
			return filepath.SkipAll
		}
		if d.IsDir() {
			if path != dir && !shouldDescend(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		if shouldCopy(d.Name()) {
			found = true
			return filepath.SkipAll
		}
		return nil
	})
	return found
}
