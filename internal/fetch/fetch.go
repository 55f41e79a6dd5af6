// Package fetch retrieves job posting pages as title plus plain text.
package fetch

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// DefaultUserAgent is sent by both fetchers; some job boards block obvious bots.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

var (
	// ErrFetch wraps every content retrieval failure.
	ErrFetch = errors.New("fetch failed")
	// ErrInvalidURL is returned for non-http(s) or malformed URLs.
	ErrInvalidURL = errors.New("invalid url")
)

// Page is the fetched content of a job posting.
type Page struct {
	URL      string
	FinalURL string
	Status   int
	Title    string
	Text     string
}

// StatusError reports a non-success HTTP status for the main document.
type StatusError struct {
	URL    string
	Status int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("fetch %s: http status %d", e.URL, e.Status)
}

func (e *StatusError) Unwrap() error {
	return ErrFetch
}

// ValidateURL accepts absolute http and https URLs only.
func ValidateURL(raw string) (*url.URL, error) {
	parsed, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %w: %v", ErrFetch, ErrInvalidURL, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("%w: %w: scheme %q", ErrFetch, ErrInvalidURL, parsed.Scheme)
	}
	if parsed.Host == "" {
		return nil, fmt.Errorf("%w: %w: missing host", ErrFetch, ErrInvalidURL)
	}
	return parsed, nil
}

func normalizeText(raw string) string {
	lines := strings.Split(raw, "\n")
	out := make([]string, 0, len(lines))
	blank := false
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line == "" {
			if !blank && len(out) > 0 {
				out = append(out, "")
			}
			blank = true
			continue
		}
		blank = false
		out = append(out, line)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}
