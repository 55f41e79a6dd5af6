package render

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// ErrCompile is returned when the LaTeX compiler fails or writes no PDF.
var ErrCompile = errors.New("latex compile failed")

const (
	DefaultPDFLatex = "pdflatex"

	jobName      = "resume"
	logTailLines = 20
	waitDelay    = 2 * time.Second
)

// PDFCompiler typesets LaTeX source with an external pdflatex binary.
type PDFCompiler struct {
	// Path is the compiler binary. Empty means pdflatex on PATH.
	Path string
}

// NewPDFCompiler returns a compiler using path, or pdflatex when empty.
func NewPDFCompiler(path string) *PDFCompiler {
	return &PDFCompiler{Path: strings.TrimSpace(path)}
}

// Compile writes source into a scratch directory, runs the compiler there
// and returns the PDF bytes. The process is killed when ctx ends.
func (c *PDFCompiler) Compile(ctx context.Context, source string) ([]byte, error) {
	bin := c.Path
	if bin == "" {
		bin = DefaultPDFLatex
	}

	dir, err := os.MkdirTemp("", "resume-pdf-*")
	if err != nil {
		return nil, fmt.Errorf("pdf scratch dir: %w", err)
	}
	defer os.RemoveAll(dir)

	texPath := filepath.Join(dir, jobName+".tex")
	if err := os.WriteFile(texPath, []byte(source), 0o600); err != nil {
		return nil, fmt.Errorf("write latex source: %w", err)
	}

	cmd := exec.CommandContext(ctx, bin,
		"-interaction=nonstopmode",
		"-halt-on-error",
		"-output-directory", dir,
		jobName+".tex",
	)
	cmd.Dir = dir
	cmd.WaitDelay = waitDelay
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("%w: %v: %s", ErrCompile, err, tail(out.String(), logTailLines))
	}

	pdf, err := os.ReadFile(filepath.Join(dir, jobName+".pdf"))
	if err != nil {
		return nil, fmt.Errorf("%w: no output: %v", ErrCompile, err)
	}
	if len(pdf) == 0 {
		return nil, fmt.Errorf("%w: empty output", ErrCompile)
	}
	return pdf, nil
}

func tail(s string, n int) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}
