package resumetext

import (
	"archive/zip"
	"bytes"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractPlainText(t *testing.T) {
	text, err := Extract(strings.NewReader("  Kim Minjun\nGo developer  \n"), "cv.txt", "", 0)
	require.NoError(t, err)
	assert.Equal(t, "Kim Minjun\nGo developer", text)

	text, err = Extract(strings.NewReader("hello"), "upload", "text/plain; charset=utf-8", 0)
	require.NoError(t, err)
	assert.Equal(t, "hello", text)
}

func TestExtractErrors(t *testing.T) {
	_, err := Extract(strings.NewReader("0123456789"), "cv.txt", "", 5)
	assert.ErrorIs(t, err, ErrTooLarge)

	_, err = Extract(strings.NewReader("   "), "cv.txt", "", 0)
	assert.ErrorIs(t, err, ErrEmpty)

	_, err = Extract(strings.NewReader("PK\x03\x04"), "cv.docx", docxContentType, 0)
	assert.ErrorIs(t, err, ErrParse)

	_, err = Extract(strings.NewReader("{\\rtf1}"), "cv.rtf", "application/rtf", 0)
	assert.ErrorIs(t, err, ErrUnsupported)

	_, err = Extract(strings.NewReader("\xff\xfe"), "cv.txt", "", 0)
	assert.ErrorIs(t, err, ErrParse)

	_, err = Extract(strings.NewReader("definitely not a pdf"), "cv.pdf", "application/pdf", 0)
	assert.ErrorIs(t, err, ErrParse)
}

func TestIsPDF(t *testing.T) {
	assert.True(t, IsPDF("CV.PDF", ""))
	assert.True(t, IsPDF("blob", "application/pdf"))
	assert.False(t, IsPDF("cv.txt", "text/plain"))
}

func TestSupported(t *testing.T) {
	assert.True(t, Supported("cv.pdf", ""))
	assert.True(t, Supported("cv.docx", ""))
	assert.True(t, Supported("notes.md", ""))
	assert.False(t, Supported("photo.png", "image/png"))
}

func TestExtractDocx(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("word/document.xml")
	require.NoError(t, err)
	_, err = w.Write([]byte(`<?xml version="1.0"?><w:document><w:body>` +
		`<w:p><w:r><w:t>Kim Minjun</w:t></w:r></w:p>` +
		`<w:p><w:r><w:t>Go &amp; Kubernetes</w:t></w:r></w:p>` +
		`</w:body></w:document>`))
	require.NoError(t, err)
	rels, err := zw.Create("word/_rels/document.xml.rels")
	require.NoError(t, err)
	_, err = rels.Write([]byte(`<?xml version="1.0"?><Relationships></Relationships>`))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	text, err := Extract(&buf, "cv.docx", "", 0)
	require.NoError(t, err)
	assert.Contains(t, text, "Kim Minjun\nGo & Kubernetes")
}

// onePagePDF assembles a minimal single-page PDF showing line with Helvetica.
func onePagePDF(line string) []byte {
	content := fmt.Sprintf("BT /F1 12 Tf 72 720 Td (%s) Tj ET", line)
	objects := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Contents 4 0 R /Resources << /Font << /F1 5 0 R >> >> >>",
		fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(content), content),
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>",
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}
	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", len(objects)+1)
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)
	return buf.Bytes()
}

func TestExtractPDFWithoutLicense(t *testing.T) {
	require.NoError(t, SetLicenseKey(""))

	text, err := Extract(bytes.NewReader(onePagePDF("Kim Minjun Go developer")), "cv.pdf", "application/pdf", 0)
	require.NoError(t, err)
	assert.Contains(t, text, "Kim Minjun Go developer")
}

func TestExtractPDFBlankPageIsEmpty(t *testing.T) {
	_, err := Extract(bytes.NewReader(onePagePDF("")), "cv.pdf", "", 0)
	assert.ErrorIs(t, err, ErrEmpty)
}
