// Package pdftext extracts plain text from uploaded PDF resumes.
package pdftext

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

var (
	ErrEmptyDocument = errors.New("pdftext: empty document")
	ErrInvalidPDF    = errors.New("pdftext: invalid pdf")
)

// Extract returns the text of every page of the PDF in data, pages
// separated by a newline. Malformed documents yield ErrInvalidPDF.
func Extract(data []byte) (text string, err error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return "", ErrEmptyDocument
	}
	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("%w: %v", ErrInvalidPDF, r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidPDF, err)
	}

	pages := make([]string, 0, r.NumPage())
	for i := 1; i <= r.NumPage(); i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		s, err := p.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("pdftext: page %d: %w", i, err)
		}
		pages = append(pages, strings.TrimSpace(s))
	}
	return strings.TrimSpace(strings.Join(pages, "\n")), nil
}
