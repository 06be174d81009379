package docsystem

import (
	"regexp"
	"strings"
)

var nonSlugChars = regexp.MustCompile(`[^a-z0-9]+`)

// untitledSlug stands in for titles with no slug-safe characters
const untitledSlug = "untitled"

// Slugify lowercases a title and collapses every run of non-alphanumerics into "-".
//
// Examples:
//   - Slugify("My Notes") → "my-notes"
//   - Slugify("  C++ / Go ") → "c-go"
//   - Slugify("!!!") → "untitled"
func Slugify(title string) string {
	slug := strings.Trim(nonSlugChars.ReplaceAllString(strings.ToLower(title), "-"), "-")
	if slug == "" {
		return untitledSlug
	}
	return slug
}

// BuildPath joins a parent path and a title's slug.
// Returns just the slug when parentPath is empty (root-level node).
//
// Examples:
//   - BuildPath("projects", "Road Map") → "projects/road-map"
//   - BuildPath("", "Inbox") → "inbox"
func BuildPath(parentPath, title string) string {
	slug := Slugify(title)
	if parentPath == "" {
		return slug
	}
	return parentPath + "/" + slug
}
