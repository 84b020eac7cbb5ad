package extract

import (
	"strings"
)

const (
	maxDraftBullets = 5
	maxBulletLength = 160
)

// DraftSlide is a model-free outline entry.
type DraftSlide struct {
	Title   string   `json:"title"`
	Bullets []string `json:"bullets"`
}

// DraftSlides builds an outline with one slide per top-level section and
// a closing "Conclusion" slide listing the top keywords. It returns nil
// for text without content.
func DraftSlides(text string) []DraftSlide {
	sections := Sections(text)
	if len(sections) == 0 {
		return nil
	}

	// A single h1 wrapping the whole document is a title, not a section.
	if len(sections) == 1 && len(sections[0].Subsections) > 0 {
		title := sections[0]
		sections = append([]*Section{{Level: title.Level, Heading: title.Heading, Content: title.Content}}, title.Subsections...)
	}

	slides := make([]DraftSlide, 0, len(sections)+1)
	for _, s := range sections {
		slides = append(slides, DraftSlide{Title: s.Heading, Bullets: sectionBullets(s)})
	}

	if kw := Keywords(text, maxDraftBullets); len(kw) > 0 {
		bullets := make([]string, len(kw))
		for i, k := range kw {
			bullets[i] = k.Word
		}
		slides = append(slides, DraftSlide{Title: "Conclusion", Bullets: bullets})
	}
	return slides
}

// sectionBullets prefers list items, then subsection headings, then the
// first sentence of each paragraph.
func sectionBullets(s *Section) []string {
	var out []string
	add := func(b string) bool {
		b = strings.TrimSpace(b)
		if b != "" {
			out = append(out, Truncate(b, maxBulletLength))
		}
		return len(out) >= maxDraftBullets
	}

	for _, g := range BulletGroups(s.Content) {
		for _, item := range g.Items {
			if add(item.Text) {
				return out
			}
		}
	}
	for _, sub := range s.Subsections {
		if add(sub.Heading) {
			return out
		}
	}
	if len(out) > 0 {
		return out
	}
	for _, para := range strings.Split(s.Content, "\n\n") {
		if add(firstSentence(para)) {
			return out
		}
	}
	return out
}

func firstSentence(p string) string {
	p = strings.Join(strings.Fields(p), " ")
	if i := strings.IndexAny(p, ".!?"); i >= 0 {
		return p[:i+1]
	}
	return p
}
