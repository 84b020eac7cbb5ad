package extract

import (
	"regexp"
	"strings"
)

// BulletKind distinguishes numbered from plain lists.
type BulletKind string

const (
	Unordered BulletKind = "unordered"
	Ordered   BulletKind = "ordered"
)

// BulletItem is one list entry. Number is set for ordered lists.
type BulletItem struct {
	Number string `json:"number,omitempty"`
	Text   string `json:"text"`
}

// BulletGroup is a run of list items of the same kind. Context is the
// last non-list line before the run, often a heading or lead-in sentence.
type BulletGroup struct {
	Kind    BulletKind   `json:"type"`
	Context string       `json:"context"`
	Items   []BulletItem `json:"items"`
}

var (
	unorderedRe = regexp.MustCompile(`^\s*[*+\-•]\s+(.+?)\s*$`)
	orderedRe   = regexp.MustCompile(`^\s*(\d+)[.)]\s+(.+?)\s*$`)
)

// BulletGroups finds markdown lists. A blank line or a change of list kind
// ends the current group.
func BulletGroups(text string) []BulletGroup {
	var groups []BulletGroup
	var current *BulletGroup
	lastLine := ""

	closeGroup := func() {
		if current != nil && len(current.Items) > 0 {
			groups = append(groups, *current)
		}
		current = nil
	}

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimRight(line, "\r")

		kind, item, ok := parseBullet(line)
		switch {
		case ok:
			if current == nil || current.Kind != kind {
				closeGroup()
				current = &BulletGroup{Kind: kind, Context: lastLine}
			}
			current.Items = append(current.Items, item)
		case strings.TrimSpace(line) == "":
			closeGroup()
		default:
			closeGroup()
			lastLine = strings.TrimSpace(strings.TrimLeft(line, "#"))
		}
	}
	closeGroup()
	return groups
}

func parseBullet(line string) (BulletKind, BulletItem, bool) {
	if m := unorderedRe.FindStringSubmatch(line); m != nil {
		return Unordered, BulletItem{Text: m[1]}, true
	}
	if m := orderedRe.FindStringSubmatch(line); m != nil {
		return Ordered, BulletItem{Number: m[1], Text: m[2]}, true
	}
	return "", BulletItem{}, false
}
