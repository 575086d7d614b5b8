package extract

import (
	"archive/zip"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sparktutor-go/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectFileType(t *testing.T) {
	tests := []struct {
		filename string
		want     string
	}{
		{"homework.PNG", "image"},
		{"notes.jpeg", "image"},
		{"paper.pdf", "document"},
		{"essay.docx", "document"},
		{"lecture.mp3", "audio"},
		{"script.exe", ""},
		{"noextension", ""},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectFileType(tt.filename))
		})
	}
}

func newTestService(baseURL string) *Service {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return NewService(
		&config.OpenRouterConfig{APIKey: "sk-test", BaseURL: baseURL},
		&config.UploadConfig{OCRModel: "gpt-4o-mini"},
		logger,
	)
}

func writeTestDOCX(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "essay.docx")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	zw := zip.NewWriter(f)
	doc, err := zw.Create("word/document.xml")
	require.NoError(t, err)
	_, err = doc.Write([]byte(`<?xml version="1.0"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
  <w:body>
    <w:p><w:r><w:t>The mitochondria is</w:t></w:r><w:r><w:t xml:space="preserve"> the powerhouse.</w:t></w:r></w:p>
    <w:p><w:r><w:t>Cells divide by mitosis.</w:t></w:r></w:p>
  </w:body>
</w:document>`))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return path
}

func TestFromDocument_DOCX(t *testing.T) {
	path := writeTestDOCX(t, t.TempDir())
	svc := newTestService("http://unused")

	text, ok := svc.FromDocument(context.Background(), path)
	require.True(t, ok)
	assert.Contains(t, text, "The mitochondria is the powerhouse.")
	assert.Contains(t, text, "Cells divide by mitosis.")
}

func TestFromDocument_UnsupportedExtension(t *testing.T) {
	svc := newTestService("http://unused")
	_, ok := svc.FromDocument(context.Background(), "notes.txt")
	assert.False(t, ok)
}

func TestFromDocument_MissingFile(t *testing.T) {
	svc := newTestService("http://unused")
	_, ok := svc.FromDocument(context.Background(), filepath.Join(t.TempDir(), "gone.pdf"))
	assert.False(t, ok)
}

// Minimal valid 1x1 PNG.
var tinyPNG = []byte{
	0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a, 0x00, 0x00, 0x00, 0x0d,
	0x49, 0x48, 0x44, 0x52, 0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01,
	0x08, 0x06, 0x00, 0x00, 0x00, 0x1f, 0x15, 0xc4, 0x89, 0x00, 0x00, 0x00,
	0x0a, 0x49, 0x44, 0x41, 0x54, 0x78, 0x9c, 0x63, 0x00, 0x01, 0x00, 0x00,
	0x05, 0x00, 0x01, 0x0d, 0x0a, 0x2d, 0xb4, 0x00, 0x00, 0x00, 0x00, 0x49,
	0x45, 0x4e, 0x44, 0xae, 0x42, 0x60, 0x82,
}

func TestFromImage_OCRViaVisionModel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		w.Write([]byte(`{"choices":[{"message":{"content":"  E = mc^2  "}}]}`))
	}))
	defer srv.Close()

	dir := t.TempDir()
	imgPath := filepath.Join(dir, "board.png")
	require.NoError(t, os.WriteFile(imgPath, tinyPNG, 0644))

	svc := newTestService(srv.URL)
	text, err := svc.FromImage(context.Background(), imgPath)
	require.NoError(t, err)
	assert.Equal(t, "E = mc^2", text)
}

func TestFromImage_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"overloaded"}`, http.StatusInternalServerError)
	}))
	defer srv.Close()

	dir := t.TempDir()
	imgPath := filepath.Join(dir, "board.png")
	require.NoError(t, os.WriteFile(imgPath, tinyPNG, 0644))

	svc := newTestService(srv.URL)
	_, err := svc.FromImage(context.Background(), imgPath)
	assert.Error(t, err)
}

func TestFromFile_AudioNotSupported(t *testing.T) {
	svc := newTestService("http://unused")
	_, ok := svc.FromFile(context.Background(), "lecture.mp3", "audio")
	assert.False(t, ok)
}
