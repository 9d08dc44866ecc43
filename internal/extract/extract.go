// Package extract converts uploaded chat transcript files into plain text.
package extract

import (
	"archive/zip"
	"bytes"
	"encoding/csv"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

var (
	// ErrUnsupportedType is returned for file types that are rejected up
	// front (.pdf and legacy .doc).
	ErrUnsupportedType = errors.New("unsupported file type")
	// ErrUndecodable is returned when file bytes cannot be decoded as text.
	ErrUndecodable = errors.New("could not decode file as text")
)

// Text extracts plain text from an uploaded file based on its extension.
// .txt and unknown extensions are decoded as UTF-8 with a latin-1 fallback,
// .csv is re-joined row-wise, and .docx is unpacked from its XML body.
// PDFs and legacy .doc files are rejected before reaching the pipeline.
func Text(filename string, data []byte) (string, error) {
	switch ext(filename) {
	case "pdf":
		return "", fmt.Errorf("%w: PDF files are not supported, upload a text document (.txt, .docx, .csv)", ErrUnsupportedType)
	case "doc":
		return "", fmt.Errorf("%w: old .doc files are not supported, convert to .docx or upload .txt/.csv", ErrUnsupportedType)
	case "docx":
		return docxText(data)
	case "csv":
		return csvText(data)
	default:
		return plainText(data)
	}
}

func ext(filename string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
}

func plainText(data []byte) (string, error) {
	if bytes.IndexByte(data, 0) >= 0 {
		return "", fmt.Errorf("%w: file contains binary data", ErrUndecodable)
	}
	if utf8.Valid(data) {
		return string(data), nil
	}
	// latin-1 fallback: every byte maps to the same code point.
	runes := make([]rune, len(data))
	for i, b := range data {
		runes[i] = rune(b)
	}
	return string(runes), nil
}

func csvText(data []byte) (string, error) {
	text, err := plainText(data)
	if err != nil {
		return "", err
	}
	r := csv.NewReader(strings.NewReader(text))
	r.FieldsPerRecord = -1
	var rows []string
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("parse CSV: %w", err)
		}
		rows = append(rows, strings.Join(record, ","))
	}
	return strings.Join(rows, "\n"), nil
}

// docx is a zip archive; the document body lives in word/document.xml.
// Paragraphs become lines; table cell text is appended the same way the
// paragraph walk emits it.
func docxText(data []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open docx archive: %w", err)
	}

	var body io.ReadCloser
	for _, f := range zr.File {
		if f.Name == "word/document.xml" {
			body, err = f.Open()
			if err != nil {
				return "", fmt.Errorf("open document body: %w", err)
			}
			break
		}
	}
	if body == nil {
		return "", fmt.Errorf("parse docx: missing word/document.xml")
	}
	defer body.Close()

	return parseDocumentXML(body)
}

func parseDocumentXML(r io.Reader) (string, error) {
	dec := xml.NewDecoder(r)
	var paragraphs []string
	var current strings.Builder
	inParagraph := false

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("parse docx XML: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "p":
				inParagraph = true
				current.Reset()
			case "t":
				var text string
				if err := dec.DecodeElement(&text, &t); err != nil {
					return "", fmt.Errorf("parse docx text run: %w", err)
				}
				if inParagraph {
					current.WriteString(text)
				} else {
					paragraphs = append(paragraphs, text)
				}
			}
		case xml.EndElement:
			if t.Name.Local == "p" && inParagraph {
				paragraphs = append(paragraphs, current.String())
				inParagraph = false
			}
		}
	}

	return strings.Join(paragraphs, "\n"), nil
}
