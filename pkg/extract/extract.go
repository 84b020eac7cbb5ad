// Package extract pulls structure out of document text without calling a
// model: heading sections, bullet lists, keywords and draft slide outlines.
// The planning stage feeds these to the LLM as hints, and the MCP server
// exposes them directly.
package extract

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// RelevantLimit caps the document excerpt attached to a slide prompt.
const RelevantLimit = 500

// Content bundles everything Extract finds.
type Content struct {
	Sections []*Section   `json:"sections"`
	Bullets  []BulletGroup `json:"bullet_points"`
	Keywords []Keyword     `json:"keywords"`
}

// Extract runs all extractors over text.
func Extract(text string) Content {
	return Content{
		Sections: Sections(text),
		Bullets:  BulletGroups(text),
		Keywords: Keywords(text, 10),
	}
}

// Section is a heading with the text beneath it.
type Section struct {
	Level       int        `json:"level"`
	Heading     string     `json:"heading"`
	Content     string     `json:"content"`
	Subsections []*Section `json:"subsections,omitempty"`
}

var headingRe = regexp.MustCompile(`^(#{1,6})\s+(.+?)\s*#*\s*$`)

// Sections splits markdown text at ATX headings and nests each section
// under the closest preceding heading of a lower level. Text before the
// first heading becomes an "Introduction" section.
func Sections(text string) []*Section {
	var flat []*Section
	var current *Section
	var lines []string

	flush := func() {
		if current == nil {
			return
		}
		current.Content = strings.TrimSpace(strings.Join(lines, "\n"))
		flat = append(flat, current)
		lines = lines[:0]
	}

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimRight(line, "\r")
		if m := headingRe.FindStringSubmatch(line); m != nil {
			flush()
			current = &Section{Level: len(m[1]), Heading: m[2]}
			continue
		}
		if current == nil {
			if strings.TrimSpace(line) == "" {
				continue
			}
			current = &Section{Level: 1, Heading: "Introduction"}
		}
		lines = append(lines, line)
	}
	flush()

	return nest(flat)
}

func nest(flat []*Section) []*Section {
	var roots, stack []*Section
	for _, s := range flat {
		for len(stack) > 0 && stack[len(stack)-1].Level >= s.Level {
			stack = stack[:len(stack)-1]
		}
		if len(stack) > 0 {
			parent := stack[len(stack)-1]
			parent.Subsections = append(parent.Subsections, s)
		} else {
			roots = append(roots, s)
		}
		stack = append(stack, s)
	}
	return roots
}

// walk visits s and its subsections depth first.
func walk(sections []*Section, fn func(*Section)) {
	for _, s := range sections {
		fn(s)
		walk(s.Subsections, fn)
	}
}

// FindRelevant returns the section that best matches title, formatted as
// heading plus content. Without a match it falls back to the start of the
// document. The result never exceeds RelevantLimit characters.
func FindRelevant(text, title string) string {
	want := wordSet(title)
	var best *Section
	bestScore := 0

	if len(want) > 0 {
		walk(Sections(text), func(s *Section) {
			score := 2*overlap(want, wordSet(s.Heading)) + overlap(want, wordSet(s.Content))
			if score > bestScore {
				best, bestScore = s, score
			}
		})
	}

	if best == nil {
		return Truncate(strings.TrimSpace(text), RelevantLimit)
	}
	excerpt := best.Heading
	if best.Content != "" {
		excerpt += "\n" + best.Content
	}
	return Truncate(excerpt, RelevantLimit)
}

// Truncate shortens s to at most n characters without splitting a rune.
func Truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}

func wordSet(s string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, w := range words(s) {
		if utf8.RuneCountInString(w) > 2 && !isStopword(w) {
			set[w] = struct{}{}
		}
	}
	return set
}

func overlap(a, b map[string]struct{}) int {
	n := 0
	for w := range a {
		if _, ok := b[w]; ok {
			n++
		}
	}
	return n
}
