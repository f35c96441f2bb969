// Package resumetext 将上传的简历文件转为纯文本，供评分提示词使用。
package resumetext

import (
	"bytes"
	"errors"
	"fmt"
	"html"
	"io"
	"path/filepath"
	"regexp"
	"strings"
	"sync/atomic"
	"unicode/utf8"

	pdftext "github.com/ledongthuc/pdf"
	"github.com/nguyenthenguyen/docx"
	"github.com/unidoc/unipdf/v3/common/license"
	"github.com/unidoc/unipdf/v3/extractor"
	"github.com/unidoc/unipdf/v3/model"
)

var (
	ErrTooLarge    = errors.New("resumetext: file too large")
	ErrUnsupported = errors.New("resumetext: unsupported file type")
	ErrParse       = errors.New("resumetext: failed to parse file")
	ErrEmpty       = errors.New("resumetext: no text content")
)

// DefaultMaxBytes caps uploads when the caller passes a non-positive limit.
const DefaultMaxBytes = 10 << 20

// unidocLicensed 为 true 时 PDF 走 unipdf，否则走无需授权的 ledongthuc/pdf。
var unidocLicensed atomic.Bool

// SetLicenseKey registers a metered unidoc key. An empty key keeps the
// license-free PDF reader.
func SetLicenseKey(key string) error {
	if strings.TrimSpace(key) == "" {
		return nil
	}
	if err := license.SetMeteredKey(key); err != nil {
		return fmt.Errorf("set unidoc license: %w", err)
	}
	unidocLicensed.Store(true)
	return nil
}

// IsPDF reports whether the upload looks like a PDF by name or content type.
func IsPDF(filename, contentType string) bool {
	return strings.EqualFold(filepath.Ext(filename), ".pdf") ||
		strings.HasPrefix(strings.ToLower(contentType), "application/pdf")
}

const docxContentType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"

// IsDocx reports whether the upload looks like a Word document.
func IsDocx(filename, contentType string) bool {
	return strings.EqualFold(filepath.Ext(filename), ".docx") ||
		strings.HasPrefix(strings.ToLower(contentType), docxContentType)
}

func isText(filename, contentType string) bool {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".txt", ".md", ".text":
		return true
	}
	return strings.HasPrefix(strings.ToLower(contentType), "text/")
}

// Supported reports whether Extract can handle the upload.
func Supported(filename, contentType string) bool {
	return IsPDF(filename, contentType) || IsDocx(filename, contentType) || isText(filename, contentType)
}

// Extract reads at most maxBytes from r and returns its text.
func Extract(r io.Reader, filename, contentType string, maxBytes int64) (string, error) {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	data, err := io.ReadAll(io.LimitReader(r, maxBytes+1))
	if err != nil {
		return "", fmt.Errorf("read upload: %w", err)
	}
	if int64(len(data)) > maxBytes {
		return "", ErrTooLarge
	}

	var text string
	switch {
	case IsPDF(filename, contentType):
		text, err = extractPDF(data)
		if err != nil {
			return "", err
		}
	case IsDocx(filename, contentType):
		text, err = extractDocx(data)
		if err != nil {
			return "", err
		}
	case isText(filename, contentType):
		if !utf8.Valid(data) {
			return "", fmt.Errorf("%w: invalid utf-8", ErrParse)
		}
		text = string(data)
	default:
		return "", ErrUnsupported
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrEmpty
	}
	return text, nil
}

func extractPDF(data []byte) (string, error) {
	if unidocLicensed.Load() {
		return extractPDFUnidoc(data)
	}
	return extractPDFPlain(data)
}

func extractPDFPlain(data []byte) (text string, err error) {
	// ledongthuc/pdf 在畸形输入上会 panic。
	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("%w: %v", ErrParse, r)
		}
	}()

	reader, err := pdftext.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrParse, err)
	}

	var sb strings.Builder
	fonts := make(map[string]*pdftext.Font)
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		for _, name := range page.Fonts() {
			if _, ok := fonts[name]; !ok {
				f := page.Font(name)
				fonts[name] = &f
			}
		}
		pageText, err := page.GetPlainText(fonts)
		if err != nil {
			return "", fmt.Errorf("%w: page %d: %v", ErrParse, i, err)
		}
		if pageText = strings.TrimSpace(pageText); pageText != "" {
			if sb.Len() > 0 {
				sb.WriteString("\n\n")
			}
			sb.WriteString(pageText)
		}
	}
	return sb.String(), nil
}

func extractPDFUnidoc(data []byte) (string, error) {
	reader, err := model.NewPdfReader(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrParse, err)
	}
	numPages, err := reader.GetNumPages()
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrParse, err)
	}

	var sb strings.Builder
	for i := 1; i <= numPages; i++ {
		page, err := reader.GetPage(i)
		if err != nil {
			return "", fmt.Errorf("%w: page %d: %v", ErrParse, i, err)
		}
		ex, err := extractor.New(page)
		if err != nil {
			return "", fmt.Errorf("%w: page %d: %v", ErrParse, i, err)
		}
		pageText, err := ex.ExtractText()
		if err != nil {
			return "", fmt.Errorf("%w: page %d: %v", ErrParse, i, err)
		}
		if pageText = strings.TrimSpace(pageText); pageText != "" {
			if sb.Len() > 0 {
				sb.WriteString("\n\n")
			}
			sb.WriteString(pageText)
		}
	}
	return sb.String(), nil
}

var (
	docxParagraphEnd = regexp.MustCompile(`</w:p>|<w:br/>|<w:tab/>`)
	xmlTag           = regexp.MustCompile(`<[^>]+>`)
)

func extractDocx(data []byte) (string, error) {
	doc, err := docx.ReadDocxFromMemory(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrParse, err)
	}
	defer doc.Close()

	content := doc.Editable().GetContent()
	content = docxParagraphEnd.ReplaceAllString(content, "\n")
	content = xmlTag.ReplaceAllString(content, "")
	return html.UnescapeString(content), nil
}
