// Package fetch - source.go provides reference-source detection and
// source-specific selectors.
package fetch

import (
	"net/url"
	"strings"
)

// Source represents a known kind of reference page.
type Source string

const (
	// SourceGitHub is a GitHub repository or readme page
	SourceGitHub Source = "github"
	// SourceNPM is an npm package page
	SourceNPM Source = "npm"
	// SourcePyPI is a PyPI package page
	SourcePyPI Source = "pypi"
	// SourceUnknown is an unrecognized source
	SourceUnknown Source = "unknown"
)

// DetectSource identifies the kind of reference page from a URL.
func DetectSource(urlStr string) Source {
	parsed, err := url.Parse(urlStr)
	if err != nil {
		return SourceUnknown
	}

	host := strings.ToLower(parsed.Host)

	if host == "github.com" || strings.HasSuffix(host, ".github.io") {
		return SourceGitHub
	}

	if strings.Contains(host, "npmjs.com") || strings.Contains(host, "npmjs.org") {
		return SourceNPM
	}

	if strings.Contains(host, "pypi.org") {
		return SourcePyPI
	}

	return SourceUnknown
}

// SourceContentSelectors returns content selectors optimized for a specific
// reference source.
func SourceContentSelectors(source Source) []string {
	switch source {
	case SourceGitHub:
		return []string{
			"article.markdown-body", // rendered readme
			".markdown-body",
			"#readme",
			"main",
		}
	case SourceNPM:
		return []string{
			"#readme",
			".package-readme",
			"main",
			"article",
		}
	case SourcePyPI:
		return []string{
			".project-description",
			"#description",
			"main",
			"article",
		}
	default:
		return DefaultTextSelectors()
	}
}
