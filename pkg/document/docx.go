package document

import (
	"archive/zip"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
)

const wordNS = "http://schemas.openxmlformats.org/wordprocessingml/2006/main"

// maxDocumentXML bounds the decompressed size of word/document.xml.
const maxDocumentXML = 64 * 1024 * 1024

// docxBody holds body-level paragraphs and table cells in document order.
type docxBody struct {
	paragraphs []string
	cells      []string
	tables     int
}

func readDOCX(r io.ReaderAt, size int64) (*docxBody, error) {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return nil, fmt.Errorf("open docx archive: %w", err)
	}
	for _, f := range zr.File {
		if f.Name != "word/document.xml" {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("open document.xml: %w", err)
		}
		defer rc.Close()
		return parseDocumentXML(io.LimitReader(rc, maxDocumentXML))
	}
	return nil, errors.New("docx archive has no word/document.xml")
}

// parseDocumentXML walks the WordprocessingML body. Paragraphs outside
// tables are body paragraphs; paragraphs inside a top-level table cell are
// joined with newlines to form that cell's text.
func parseDocumentXML(r io.Reader) (*docxBody, error) {
	body := &docxBody{}
	dec := xml.NewDecoder(r)

	var (
		tblDepth int
		inText   bool
		para     strings.Builder
		cell     []string
	)

	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse document.xml: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Space != wordNS {
				continue
			}
			switch t.Name.Local {
			case "tbl":
				tblDepth++
				if tblDepth == 1 {
					body.tables++
				}
			case "tc":
				if tblDepth == 1 {
					cell = cell[:0]
				}
			case "p":
				para.Reset()
			case "t":
				inText = true
			case "tab":
				para.WriteByte('\t')
			case "br", "cr":
				para.WriteByte('\n')
			}

		case xml.EndElement:
			if t.Name.Space != wordNS {
				continue
			}
			switch t.Name.Local {
			case "tbl":
				tblDepth--
			case "tc":
				if tblDepth == 1 {
					body.cells = append(body.cells, strings.Join(cell, "\n"))
				}
			case "p":
				switch tblDepth {
				case 0:
					body.paragraphs = append(body.paragraphs, para.String())
				case 1:
					cell = append(cell, para.String())
				}
			case "t":
				inText = false
			}

		case xml.CharData:
			if inText {
				para.Write(t)
			}
		}
	}
	return body, nil
}
