package document

import (
	"strings"
	"unicode/utf8"
)

// Stats describes the size and shape of a document.
type Stats struct {
	CharacterCount           int     `json:"character_count"`
	WordCount                int     `json:"word_count"`
	LineCount                int     `json:"line_count"`
	ParagraphCount           int     `json:"paragraph_count"`
	SentenceCount            int     `json:"sentence_count"`
	AvgWordsPerParagraph     float64 `json:"avg_words_per_paragraph"`
	AvgSentencesPerParagraph float64 `json:"avg_sentences_per_paragraph"`
	DocumentType             string  `json:"document_type"`

	PageCount  int `json:"page_count,omitempty"`
	TableCount int `json:"table_count,omitempty"`
}

// Analyze computes text statistics. Paragraphs are non-blank blocks
// separated by empty lines; sentences are counted by terminal punctuation.
func Analyze(text string) Stats {
	paragraphs := 0
	for _, block := range strings.Split(text, "\n\n") {
		if strings.TrimSpace(block) != "" {
			paragraphs++
		}
	}

	s := Stats{
		CharacterCount: utf8.RuneCountInString(text),
		WordCount:      len(strings.Fields(text)),
		LineCount:      countLines(text),
		ParagraphCount: paragraphs,
		SentenceCount:  strings.Count(text, ".") + strings.Count(text, "!") + strings.Count(text, "?"),
		DocumentType:   "text",
	}
	div := float64(max(1, paragraphs))
	s.AvgWordsPerParagraph = float64(s.WordCount) / div
	s.AvgSentencesPerParagraph = float64(s.SentenceCount) / div
	return s
}

// countLines counts lines the way an editor does: a trailing newline does
// not start a new line.
func countLines(text string) int {
	if text == "" {
		return 0
	}
	text = strings.ReplaceAll(text, "\r\n", "\n")
	n := strings.Count(text, "\n")
	if !strings.HasSuffix(text, "\n") {
		n++
	}
	return n
}
