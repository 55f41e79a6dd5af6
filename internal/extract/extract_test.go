package extract

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
)

func buildZip(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, body := range files {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("create zip entry: %v", err)
		}
		if _, err := w.Write([]byte(body)); err != nil {
			t.Fatalf("write zip entry: %v", err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}
	return buf.Bytes()
}

const documentXML = `<?xml version="1.0" encoding="UTF-8"?>` +
	`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>` +
	`<w:p><w:r><w:t>Jane Doe</w:t></w:r></w:p>` +
	`<w:p><w:r><w:t>Senior Go engineer</w:t></w:r></w:p>` +
	`</w:body></w:document>`

func TestExtractTextFromBytes_ZipDocxNormalizes(t *testing.T) {
	data := buildZip(t, map[string]string{"word/document.xml": documentXML})

	text, err := ExtractTextFromBytes(context.Background(), data, "application/zip", "cv.docx")
	if err != nil {
		t.Fatalf("expected docx to extract from zip mime, got error: %v", err)
	}
	if text != "Jane Doe\nSenior Go engineer" {
		t.Fatalf("unexpected docx text %q", text)
	}
}

func TestExtractTextFromBytes_RealZipRejected(t *testing.T) {
	data := buildZip(t, map[string]string{"notes.txt": "hello"})

	_, err := ExtractTextFromBytes(context.Background(), data, "application/zip", "notes.zip")
	if !errors.Is(err, ErrUnsupported) {
		t.Fatalf("expected unsupported error, got %v", err)
	}
	if !strings.Contains(err.Error(), "application/zip") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestExtractTextFromBytes_PlainAndMarkdown(t *testing.T) {
	tests := []struct {
		name     string
		mime     string
		fileName string
		data     string
		want     string
	}{
		{name: "plain", mime: "text/plain; charset=utf-8", fileName: "cv.txt", data: "\ufeffJane\r\nGo\r\n", want: "Jane\nGo"},
		{name: "markdown sniffed as text", mime: "text/plain; charset=utf-8", fileName: "cv.md", data: "# Jane\n\n- Go", want: "# Jane\n\n- Go"},
		{name: "octet stream txt", mime: "application/octet-stream", fileName: "cv.txt", data: "Jane", want: "Jane"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractTextFromBytes(context.Background(), []byte(tt.data), tt.mime, tt.fileName)
			if err != nil {
				t.Fatalf("extract: %v", err)
			}
			if got != tt.want {
				t.Fatalf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestExtractTextFromBytes_InvalidUTF8(t *testing.T) {
	_, err := ExtractTextFromBytes(context.Background(), []byte{0xff, 0xfe, 0xfd}, "text/plain", "cv.txt")
	if err == nil {
		t.Fatal("expected error for invalid utf-8")
	}
}

func TestExtractTextFromBytes_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := ExtractTextFromBytes(ctx, []byte("x"), "text/plain", "x.txt"); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected canceled, got %v", err)
	}
}

type memStore struct {
	objects map[string]string
}

func (m *memStore) Save(context.Context, string, string, io.Reader) (string, int64, string, error) {
	return "", 0, "", errors.New("not used")
}

func (m *memStore) SaveWithKey(_ context.Context, key, _ string, r io.Reader) (int64, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return 0, err
	}
	m.objects[key] = string(data)
	return int64(len(data)), nil
}

func (m *memStore) Open(_ context.Context, key string) (io.ReadCloser, error) {
	body, ok := m.objects[key]
	if !ok {
		return nil, errors.New("missing")
	}
	return io.NopCloser(strings.NewReader(body)), nil
}

func (m *memStore) Delete(_ context.Context, key string) error {
	delete(m.objects, key)
	return nil
}

func TestExtractTextStoresDerivedCopy(t *testing.T) {
	store := &memStore{objects: map[string]string{"docs/cv.txt": "Jane Doe"}}

	text, err := ExtractText(context.Background(), store, "docs/cv.txt", "text/plain", "cv.txt")
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if text != "Jane Doe" {
		t.Fatalf("unexpected text %q", text)
	}
	if store.objects[ExtractedKey("docs/cv.txt")] != "Jane Doe" {
		t.Fatalf("derived copy not stored")
	}
}

func TestExtractTextFromBytes_HTML(t *testing.T) {
	page := `<html><head><title>CV</title><style>p{}</style></head><body><h1>Jane Doe</h1><p>Go   engineer</p></body></html>`

	text, err := ExtractTextFromBytes(context.Background(), []byte(page), "text/html; charset=utf-8", "cv.html")
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if text != "Jane Doe\nGo engineer" {
		t.Fatalf("unexpected html text %q", text)
	}
}

func TestSupported(t *testing.T) {
	tests := []struct {
		mime string
		name string
		want bool
	}{
		{mime: "application/pdf", name: "cv.pdf", want: true},
		{mime: "application/zip", name: "cv.docx", want: true},
		{mime: "text/plain; charset=utf-8", name: "notes.md", want: true},
		{mime: "application/octet-stream", name: "cv.txt", want: true},
		{mime: "image/png", name: "photo.png", want: false},
		{mime: "application/zip", name: "archive.zip", want: false},
	}
	for _, tt := range tests {
		if got := Supported(tt.mime, tt.name); got != tt.want {
			t.Fatalf("Supported(%q, %q) = %v, want %v", tt.mime, tt.name, got, tt.want)
		}
	}
}
