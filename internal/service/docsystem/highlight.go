package docsystem

import (
	"html"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"kbase/internal/config"
	models "kbase/internal/domain/models/docsystem"
)

const ellipsis = "..."

// unsafeQueryChars matches everything outside word, space, hyphen and underscore
var unsafeQueryChars = regexp.MustCompile(`[^\w\s\-_]`)

// SanitizeQuery strips characters that could be read as query-language operators
// and collapses whitespace. An empty result means the query has nothing searchable.
func SanitizeQuery(query string) string {
	return strings.Join(strings.Fields(unsafeQueryChars.ReplaceAllString(query, " ")), " ")
}

// Highlighter wraps query terms in the application highlight marker and cuts snippets
type Highlighter struct {
	open     string
	close    string
	snippet  config.SnippetSettings
	fallback config.FallbackSettings
}

// NewHighlighter creates a highlighter from search settings
func NewHighlighter(settings *config.SearchSettings) *Highlighter {
	return &Highlighter{
		open:     settings.Highlight.Open,
		close:    settings.Highlight.Close,
		snippet:  settings.Snippet,
		fallback: settings.Fallback,
	}
}

// termPattern builds a case-insensitive alternation of the query's terms.
// Returns nil when the query has no terms.
func termPattern(query string) *regexp.Regexp {
	terms := strings.Fields(strings.ToLower(query))
	if len(terms) == 0 {
		return nil
	}
	// Longer terms first so "searching" wins over "search"
	sort.SliceStable(terms, func(i, j int) bool { return len(terms[i]) > len(terms[j]) })

	quoted := make([]string, len(terms))
	for i, term := range terms {
		quoted[i] = regexp.QuoteMeta(term)
	}
	return regexp.MustCompile(`(?i)(` + strings.Join(quoted, "|") + `)`)
}

// HighlightText wraps every case-insensitive occurrence of any query term.
// The result is HTML: text is escaped and the markers are the only tags.
func (h *Highlighter) HighlightText(text, query string) string {
	pattern := termPattern(query)
	if pattern == nil || text == "" {
		return html.EscapeString(text)
	}

	var b strings.Builder
	last := 0
	for _, loc := range pattern.FindAllStringIndex(text, -1) {
		b.WriteString(html.EscapeString(text[last:loc[0]]))
		b.WriteString(h.open + html.EscapeString(text[loc[0]:loc[1]]) + h.close)
		last = loc[1]
	}
	b.WriteString(html.EscapeString(text[last:]))
	return b.String()
}

// HasMarkup reports whether snippet already carries the engine's highlight tags
func HasMarkup(snippet string, markup models.HighlightMarkup) bool {
	return markup.Open != "" && strings.Contains(snippet, markup.Open)
}

// TranslateMarkup swaps engine highlight tags for the application marker.
// Text from engines that return it raw is escaped on the way, so the output
// matches HighlightText whichever engine produced the snippet.
func (h *Highlighter) TranslateMarkup(snippet string, markup models.HighlightMarkup) string {
	if markup.Escaped {
		if markup.Open == "" {
			return snippet
		}
		return strings.NewReplacer(markup.Open, h.open, markup.Close, h.close).Replace(snippet)
	}
	if markup.Open == "" {
		return html.EscapeString(snippet)
	}

	var b strings.Builder
	rest := snippet
	for {
		i := strings.Index(rest, markup.Open)
		if i < 0 {
			break
		}
		b.WriteString(html.EscapeString(rest[:i]))
		rest = rest[i+len(markup.Open):]

		// An unterminated tag highlights to the end
		j := strings.Index(rest, markup.Close)
		if j < 0 {
			j = len(rest)
		}
		b.WriteString(h.open + html.EscapeString(rest[:j]) + h.close)
		rest = rest[min(j+len(markup.Close), len(rest)):]
	}
	b.WriteString(html.EscapeString(rest))
	return b.String()
}

// Snippet cuts a window around the earliest term occurrence and highlights it.
// Content no longer than the max snippet length is highlighted whole.
func (h *Highlighter) Snippet(content, query string) string {
	if utf8.RuneCountInString(content) <= h.snippet.MaxLength {
		return h.HighlightText(content, query)
	}

	occurrence := 0
	if pattern := termPattern(query); pattern != nil {
		if loc := pattern.FindStringIndex(content); loc != nil {
			occurrence = utf8.RuneCountInString(content[:loc[0]])
		}
	}

	runes := []rune(content)
	start := max(0, occurrence-h.snippet.WindowBefore)
	end := min(len(runes), occurrence+h.snippet.WindowAfter)

	var b strings.Builder
	if start > 0 {
		b.WriteString(ellipsis)
	}
	b.WriteString(h.HighlightText(string(runes[start:end]), query))
	if end < len(runes) {
		b.WriteString(ellipsis)
	}
	return b.String()
}

// FallbackSnippet returns a plain window around the first case-insensitive occurrence
// of the whole query, or the leading characters of content when there is none.
// The result is neither highlighted nor escaped; pass it through HighlightText.
func (h *Highlighter) FallbackSnippet(content, query string) string {
	runes := []rune(content)
	needle := []rune(query)
	occurrence := indexFold(runes, needle)

	if occurrence < 0 {
		if len(runes) <= h.fallback.PrefixLength {
			return content
		}
		return string(runes[:h.fallback.PrefixLength]) + ellipsis
	}

	start := max(0, occurrence-h.fallback.Window)
	end := min(len(runes), occurrence+len(needle)+h.fallback.Window)

	var b strings.Builder
	if start > 0 {
		b.WriteString(ellipsis)
	}
	b.WriteString(string(runes[start:end]))
	if end < len(runes) {
		b.WriteString(ellipsis)
	}
	return b.String()
}

// OptimalSnippet picks the best excerpt for a ranked hit: engine markup is translated,
// otherwise the content is windowed around the earliest match.
func (h *Highlighter) OptimalSnippet(engineSnippet string, markup models.HighlightMarkup, content, query string) string {
	if HasMarkup(engineSnippet, markup) {
		return h.TranslateMarkup(engineSnippet, markup)
	}
	if content != "" {
		return h.Snippet(content, query)
	}
	if markup.Escaped {
		engineSnippet = html.UnescapeString(engineSnippet)
	}
	return h.HighlightText(engineSnippet, query)
}

// indexFold returns the rune offset of the first case-insensitive occurrence of needle
func indexFold(haystack, needle []rune) int {
	if len(needle) == 0 {
		return -1
	}
	target := string(needle)
	for i := 0; i+len(needle) <= len(haystack); i++ {
		if strings.EqualFold(string(haystack[i:i+len(needle)]), target) {
			return i
		}
	}
	return -1
}
