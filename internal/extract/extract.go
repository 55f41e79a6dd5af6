package extract

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"

	"resume-workflow/internal/fetch"
	"resume-workflow/internal/shared/storage/object"
)

const (
	MimePDF      = "application/pdf"
	MimeDOCX     = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	MimeText     = "text/plain"
	MimeMarkdown = "text/markdown"
	MimeHTML     = "text/html"

	mimeZip   = "application/zip"
	mimeOctet = "application/octet-stream"

	maxSourceBytes = 20 << 20
)

// ErrUnsupported is returned for payloads no extractor understands.
var ErrUnsupported = errors.New("unsupported mime type")

type extractor func(data []byte) (string, error)

var extractors = map[string]extractor{
	MimePDF:      fromPDF,
	MimeDOCX:     fromDOCX,
	MimeText:     fromText,
	MimeMarkdown: fromText,
	MimeHTML:     fromHTML,
}

// extension hints win over generic or sniffed types.
var extensionTypes = map[string]string{
	".pdf":      MimePDF,
	".docx":     MimeDOCX,
	".txt":      MimeText,
	".md":       MimeMarkdown,
	".markdown": MimeMarkdown,
	".html":     MimeHTML,
	".htm":      MimeHTML,
}

// Supported reports whether a file with this type and name can be indexed.
func Supported(mimeType, fileName string) bool {
	_, ok := extractors[resolveType(mimeType, fileName, nil)]
	return ok
}

// ExtractedKey is where ExtractText stores the plain-text copy of key.
func ExtractedKey(key string) string {
	return key + ".extracted.txt"
}

// ExtractText reads a stored knowledge file, converts it to plain text and
// saves the text next to the original under ExtractedKey.
func ExtractText(ctx context.Context, store object.ObjectStore, fileKey, mimeType, fileName string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	body, err := store.Open(ctx, fileKey)
	if err != nil {
		return "", fmt.Errorf("extract %s: %w", fileKey, err)
	}
	raw, err := io.ReadAll(io.LimitReader(body, maxSourceBytes))
	body.Close()
	if err != nil {
		return "", fmt.Errorf("extract %s: read: %w", fileKey, err)
	}

	text, err := ExtractTextFromBytes(ctx, raw, mimeType, fileName)
	if err != nil {
		return "", fmt.Errorf("extract %s: %w", fileKey, err)
	}
	if _, err := store.SaveWithKey(ctx, ExtractedKey(fileKey), "text/plain; charset=utf-8", strings.NewReader(text)); err != nil {
		return "", fmt.Errorf("extract %s: save text: %w", fileKey, err)
	}
	return text, nil
}

// ExtractTextFromBytes converts an in-memory payload to plain text.
func ExtractTextFromBytes(ctx context.Context, data []byte, mimeType, fileName string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	kind := resolveType(mimeType, fileName, data)
	fn, ok := extractors[kind]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnsupported, kind)
	}
	return fn(data)
}

func resolveType(mimeType, fileName string, data []byte) string {
	kind := strings.ToLower(strings.TrimSpace(strings.Split(mimeType, ";")[0]))
	hinted, hasHint := extensionTypes[strings.ToLower(filepath.Ext(fileName))]

	switch {
	case kind == "" || kind == mimeOctet:
		if hasHint {
			return hinted
		}
	case kind == MimeText && hinted == MimeMarkdown:
		return MimeMarkdown
	case kind == mimeZip:
		if zipHasEntry(data, "word/document.xml") || (data == nil && hinted == MimeDOCX) {
			return MimeDOCX
		}
	}
	return kind
}

func fromText(data []byte) (string, error) {
	if !utf8.Valid(data) {
		return "", errors.New("text is not valid utf-8")
	}
	text := strings.TrimPrefix(string(data), "\ufeff")
	return strings.TrimSpace(strings.ReplaceAll(text, "\r\n", "\n")), nil
}

func fromHTML(data []byte) (string, error) {
	_, text, err := fetch.PageText(bytes.NewReader(data))
	return text, err
}

func fromPDF(data []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	plain, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("read pdf text: %w", err)
	}
	var buf strings.Builder
	if _, err := io.Copy(&buf, plain); err != nil {
		return "", err
	}
	return strings.TrimSpace(buf.String()), nil
}

func fromDOCX(data []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open docx: %w", err)
	}
	entry := findEntry(zr, "word/document.xml")
	if entry == nil {
		return "", errors.New("docx has no word/document.xml")
	}
	rc, err := entry.Open()
	if err != nil {
		return "", err
	}
	defer rc.Close()
	return docxParagraphs(rc)
}

// docxParagraphs joins the text runs of a WordprocessingML body, one line
// per paragraph or explicit break.
func docxParagraphs(r io.Reader) (string, error) {
	dec := xml.NewDecoder(r)
	var b strings.Builder
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("parse docx xml: %w", err)
		}
		switch t := tok.(type) {
		case xml.CharData:
			b.Write(t)
		case xml.EndElement:
			if (t.Name.Local == "p" || t.Name.Local == "br") && b.Len() > 0 {
				b.WriteByte('\n')
			}
		}
	}
	return strings.TrimSpace(b.String()), nil
}

func zipHasEntry(data []byte, name string) bool {
	if len(data) == 0 {
		return false
	}
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return false
	}
	return findEntry(zr, name) != nil
}

func findEntry(zr *zip.Reader, name string) *zip.File {
	for _, f := range zr.File {
		if strings.ReplaceAll(f.Name, "\\", "/") == name {
			return f
		}
	}
	return nil
}
