// Package extract pulls plain text out of uploaded documents.
package extract

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/ledongthuc/pdf"
)

var (
	// ErrNotPDF is returned when the input does not start with a PDF header.
	ErrNotPDF = errors.New("file is not a PDF")

	// ErrNoText is returned when a PDF contains no extractable text, such
	// as a scanned document.
	ErrNoText = errors.New("no text found in PDF")
)

var pdfMagic = []byte("%PDF-")

// IsPDF reports whether data starts with a PDF header.
func IsPDF(data []byte) bool {
	return bytes.HasPrefix(data, pdfMagic)
}

// PDFText returns the plain text of every page of the PDF in data.
func PDFText(data []byte) (text string, err error) {
	if !IsPDF(data) {
		return "", ErrNotPDF
	}

	// The parser panics on some malformed documents.
	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("failed to parse PDF: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("failed to open PDF: %w", err)
	}

	plain, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("failed to extract PDF text: %w", err)
	}

	raw, err := io.ReadAll(plain)
	if err != nil {
		return "", fmt.Errorf("failed to read PDF text: %w", err)
	}

	text = strings.TrimSpace(string(raw))
	if text == "" {
		return "", ErrNoText
	}
	return text, nil
}
