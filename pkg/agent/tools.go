package agent

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/rhuss/slidewright/pkg/document"
)

// ToolExtractKeyPoints is the name under which key point extraction is
// recorded in generation statistics.
const ToolExtractKeyPoints = "extract_key_points"

// MaxKeyPoints bounds the number of points ExtractKeyPoints returns.
const MaxKeyPoints = 5

var (
	paragraphSplit = regexp.MustCompile(`\n\s*\n`)
	bulletMarker   = regexp.MustCompile(`^\s*(?:[-*•]|\d+\.)\s*`)
)

// ExtractKeyPoints picks up to five short paragraphs from text and returns
// them as "- point" lines. Headings and paragraphs outside 11..199
// characters are skipped.
func ExtractKeyPoints(text string) string {
	var points []string
	for _, para := range paragraphSplit.Split(text, -1) {
		n := utf8.RuneCountInString(para)
		if n <= 10 || n >= 200 || strings.HasPrefix(para, "#") {
			continue
		}
		points = append(points, "- "+strings.TrimSpace(bulletMarker.ReplaceAllString(para, "")))
		if len(points) == MaxKeyPoints {
			break
		}
	}
	return strings.Join(points, "\n")
}

// ExtractKeyPointsWithContext runs ExtractKeyPoints on text, or on the
// document held by st when text is empty, and records the tool use.
func ExtractKeyPointsWithContext(st State, text string) string {
	if text == "" && st != nil {
		text = st.DocumentText()
	}
	points := ExtractKeyPoints(text)
	if st != nil {
		st.Increment("tool_usage." + ToolExtractKeyPoints)
		st.RecordTool(ToolExtractKeyPoints, utf8.RuneCountInString(text))
	}
	return points
}

// AnalyzeDocument returns the statistics of the document held by st.
func AnalyzeDocument(st State) document.Stats {
	if st == nil {
		return document.Stats{}
	}
	return st.DocumentStatistics()
}
