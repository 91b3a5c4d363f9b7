// Package textextract turns uploaded files into plain text for
// chunking. Text-based types pass through; PDF and DOCX get their
// text pulled out.
package textextract

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
)

const (
	TypePlainText = "text/plain"
	TypeMarkdown  = "text/markdown"
	TypeCSV       = "text/csv"
	TypeJSON      = "application/json"
	TypePDF       = "application/pdf"
	TypeDOCX      = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
)

type Result struct {
	Content  string
	FileType string // canonical MIME type
	Pages    int
}

// Detect maps a filename and declared content type onto a canonical
// MIME type, preferring the extension when the two disagree.
func Detect(filename, contentType string) (string, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		return TypePDF, nil
	case ".docx":
		return TypeDOCX, nil
	case ".md", ".markdown":
		return TypeMarkdown, nil
	case ".csv":
		return TypeCSV, nil
	case ".json":
		return TypeJSON, nil
	case ".txt":
		return TypePlainText, nil
	}

	// No usable extension: trust the declared type if we know it.
	ct := strings.ToLower(strings.TrimSpace(strings.Split(contentType, ";")[0]))
	switch ct {
	case TypePDF, TypeDOCX, TypeMarkdown, TypeCSV, TypeJSON, TypePlainText:
		return ct, nil
	}
	return "", fmt.Errorf("unsupported file type: %q (%s)", filename, contentType)
}

func SupportedTypes() []string {
	return []string{TypePlainText, TypeMarkdown, TypeCSV, TypeJSON, TypePDF, TypeDOCX}
}

func Extract(data io.ReaderAt, size int64, fileType string) (*Result, error) {
	switch fileType {
	case TypePDF:
		return extractPDF(data, size)
	case TypeDOCX:
		return extractDOCX(data, size)
	case TypePlainText, TypeMarkdown, TypeCSV, TypeJSON:
		return extractPlain(data, size, fileType)
	default:
		return nil, fmt.Errorf("unsupported file type: %s", fileType)
	}
}

func extractPDF(data io.ReaderAt, size int64) (*Result, error) {
	reader, err := pdf.NewReader(data, size)
	if err != nil {
		return nil, fmt.Errorf("open PDF: %w", err)
	}

	var buf strings.Builder
	numPages := reader.NumPage()

	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		buf.WriteString(text)
		buf.WriteString("\n")
	}

	return &Result{
		Content:  buf.String(),
		FileType: TypePDF,
		Pages:    numPages,
	}, nil
}

// extractDOCX pulls the text runs out of word/document.xml. A DOCX
// file is a zip archive; the tag stripping is crude but the content
// only feeds the chunker.
func extractDOCX(data io.ReaderAt, size int64) (*Result, error) {
	reader, err := zip.NewReader(data, size)
	if err != nil {
		return nil, fmt.Errorf("open DOCX: %w", err)
	}

	var buf strings.Builder
	for _, f := range reader.File {
		if filepath.Base(f.Name) == "document.xml" {
			rc, err := f.Open()
			if err != nil {
				return nil, fmt.Errorf("open document.xml: %w", err)
			}
			defer rc.Close()

			content, err := io.ReadAll(rc)
			if err != nil {
				return nil, fmt.Errorf("read document.xml: %w", err)
			}

			buf.WriteString(stripXMLTags(string(content)))
			break
		}
	}

	return &Result{
		Content:  buf.String(),
		FileType: TypeDOCX,
		Pages:    1,
	}, nil
}

func extractPlain(data io.ReaderAt, size int64, fileType string) (*Result, error) {
	buf := make([]byte, size)
	if _, err := data.ReadAt(buf, 0); err != nil && err != io.EOF {
		return nil, fmt.Errorf("read file: %w", err)
	}

	return &Result{
		Content:  string(bytes.TrimSpace(buf)),
		FileType: fileType,
		Pages:    1,
	}, nil
}

func stripXMLTags(s string) string {
	var result strings.Builder
	inTag := false
	for _, r := range s {
		switch {
		case r == '<':
			inTag = true
		case r == '>':
			inTag = false
			result.WriteRune(' ')
		case !inTag:
			result.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(result.String()), " ")
}
