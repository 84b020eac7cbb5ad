package document

import (
	"archive/zip"
	"bytes"
	"errors"
	"strings"
	"testing"
)

const sampleDocumentXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
  <w:body>
    <w:p><w:r><w:t>Quarterly Review</w:t></w:r></w:p>
    <w:p><w:r><w:t xml:space="preserve">Revenue grew </w:t></w:r><w:r><w:t>12 percent.</w:t></w:r></w:p>
    <w:p></w:p>
    <w:tbl>
      <w:tr>
        <w:tc><w:p><w:r><w:t>Region</w:t></w:r></w:p></w:tc>
        <w:tc><w:p><w:r><w:t>EMEA</w:t></w:r></w:p><w:p><w:r><w:t>APAC</w:t></w:r></w:p></w:tc>
      </w:tr>
    </w:tbl>
    <w:p><w:r><w:t>Outlook</w:t><w:tab/><w:t>positive</w:t></w:r></w:p>
  </w:body>
</w:document>`

func buildDOCX(t *testing.T, documentXML string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("word/document.xml")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := w.Write([]byte(documentXML)); err != nil {
		t.Fatal(err)
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestProcessDOCX(t *testing.T) {
	data := buildDOCX(t, sampleDocumentXML)

	doc, err := Process("Review.DOCX", bytes.NewReader(data), 0)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}

	want := "Quarterly Review\n\nRevenue grew 12 percent.\n\nOutlook\tpositive\n\nRegion\n\nEMEA\nAPAC"
	if doc.Text != want {
		t.Errorf("Text = %q\nwant %q", doc.Text, want)
	}
	if doc.Stats.DocumentType != "docx" {
		t.Errorf("DocumentType = %q, want docx", doc.Stats.DocumentType)
	}
	// Body paragraphs include the empty one.
	if doc.Stats.ParagraphCount != 4 {
		t.Errorf("ParagraphCount = %d, want 4", doc.Stats.ParagraphCount)
	}
	if doc.Stats.TableCount != 1 {
		t.Errorf("TableCount = %d, want 1", doc.Stats.TableCount)
	}
}

func TestProcessDOCXWithoutBody(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	zw.Create("word/styles.xml")
	zw.Close()

	if _, err := Process("empty.docx", bytes.NewReader(buf.Bytes()), 0); err == nil {
		t.Error("expected error for archive without document.xml")
	}
}

func TestProcessText(t *testing.T) {
	input := "\ufeff# Title\n\nFirst point. Second point!\n\nQuestion?\n"
	doc, err := Process("notes.md", strings.NewReader(input), 0)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if strings.HasPrefix(doc.Text, "\ufeff") {
		t.Error("byte order mark not stripped")
	}
	if doc.Stats.DocumentType != "text" {
		t.Errorf("DocumentType = %q, want text", doc.Stats.DocumentType)
	}
}

func TestProcessReplacesInvalidUTF8(t *testing.T) {
	doc, err := Process("a.txt", bytes.NewReader([]byte("ok \xff done")), 0)
	if err != nil {
		t.Fatal(err)
	}
	if doc.Text != "ok \uFFFD done" {
		t.Errorf("Text = %q", doc.Text)
	}
}

func TestProcessErrors(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		content  string
		limit    int64
		want     error
	}{
		{"legacy doc", "old.doc", "data", 0, ErrUnsupportedFormat},
		{"no extension", "README", "data", 0, ErrUnsupportedFormat},
		{"whitespace only", "blank.txt", "  \n\n ", 0, ErrEmptyDocument},
		{"over limit", "big.txt", "0123456789", 5, ErrTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Process(tt.filename, strings.NewReader(tt.content), tt.limit)
			if !errors.Is(err, tt.want) {
				t.Errorf("Process() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestProcessMalformedPDF(t *testing.T) {
	_, err := Process("broken.pdf", strings.NewReader("%PDF-1.4\nthis is not a pdf"), 0)
	if err == nil {
		t.Fatal("expected error for malformed pdf")
	}
}

func TestAnalyze(t *testing.T) {
	text := "Intro line one.\nIntro line two!\n\nSecond paragraph has words?\n\n\n"
	s := Analyze(text)

	if s.WordCount != 10 {
		t.Errorf("WordCount = %d, want 10", s.WordCount)
	}
	if s.ParagraphCount != 2 {
		t.Errorf("ParagraphCount = %d, want 2", s.ParagraphCount)
	}
	if s.SentenceCount != 3 {
		t.Errorf("SentenceCount = %d, want 3", s.SentenceCount)
	}
	if s.LineCount != 6 {
		t.Errorf("LineCount = %d, want 6", s.LineCount)
	}
	if s.AvgWordsPerParagraph != 5 {
		t.Errorf("AvgWordsPerParagraph = %v, want 5", s.AvgWordsPerParagraph)
	}
	if s.AvgSentencesPerParagraph != 1.5 {
		t.Errorf("AvgSentencesPerParagraph = %v, want 1.5", s.AvgSentencesPerParagraph)
	}
	if s.CharacterCount != len(text) {
		t.Errorf("CharacterCount = %d, want %d", s.CharacterCount, len(text))
	}
}

func TestAnalyzeEmpty(t *testing.T) {
	s := Analyze("")
	if s.ParagraphCount != 0 || s.LineCount != 0 || s.AvgWordsPerParagraph != 0 {
		t.Errorf("Analyze(\"\") = %+v", s)
	}
}

func TestAnalyzeCountsRunes(t *testing.T) {
	if s := Analyze("naïve café"); s.CharacterCount != 10 {
		t.Errorf("CharacterCount = %d, want 10", s.CharacterCount)
	}
}
