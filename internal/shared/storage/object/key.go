package object

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"net/http"
	"path"
	"strings"
	"unicode"

	"github.com/google/uuid"
)

const maxFileNameLen = 200

var (
	ErrInvalidName = errors.New("invalid file name")
	ErrInvalidKey  = errors.New("invalid storage key")
)

// NewKey returns a fresh key "<namespace hash>/<uuid>_<name>" for an upload.
func NewKey(namespace, fileName string) (string, error) {
	name, err := CleanFileName(fileName)
	if err != nil {
		return "", err
	}
	return path.Join(NamespaceDir(namespace), uuid.NewString()+"_"+name), nil
}

// NamespaceDir maps an arbitrary namespace onto a fixed-width directory name.
func NamespaceDir(namespace string) string {
	sum := sha256.Sum256([]byte(namespace))
	return hex.EncodeToString(sum[:16])
}

// CleanFileName keeps the base name of an uploaded file with separators and
// control characters replaced. Traversal attempts are rejected.
func CleanFileName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" || name == "." || strings.Contains(name, "..") {
		return "", ErrInvalidName
	}
	cleaned := strings.Map(func(r rune) rune {
		switch {
		case r == '/' || r == '\\':
			return '_'
		case unicode.IsControl(r):
			return -1
		default:
			return r
		}
	}, name)
	if cleaned == "" {
		return "", ErrInvalidName
	}
	if len(cleaned) > maxFileNameLen {
		ext := path.Ext(cleaned)
		if len(ext) > 16 {
			ext = ""
		}
		cleaned = strings.ToValidUTF8(cleaned[:maxFileNameLen-len(ext)], "") + ext
	}
	return cleaned, nil
}

// CleanKey normalizes a storage key and rejects absolute or escaping paths.
func CleanKey(key string) (string, error) {
	if strings.TrimSpace(key) == "" || strings.HasPrefix(key, "/") || strings.HasPrefix(key, "\\") {
		return "", ErrInvalidKey
	}
	clean := path.Clean(strings.ReplaceAll(key, "\\", "/"))
	if clean == "." || clean == ".." || strings.HasPrefix(clean, "../") {
		return "", ErrInvalidKey
	}
	return clean, nil
}

// Sniff detects the content type from the head of r and returns a reader
// that still yields the full stream.
func Sniff(r io.Reader) (string, io.Reader, error) {
	head := make([]byte, 512)
	n, err := io.ReadFull(r, head)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return "", nil, err
	}
	head = head[:n]
	return http.DetectContentType(head), io.MultiReader(bytes.NewReader(head), r), nil
}
