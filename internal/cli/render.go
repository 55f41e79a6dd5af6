package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"resume-workflow/internal/workflow"
	"resume-workflow/resume/contract"
	"resume-workflow/resume/model"
	"resume-workflow/resume/render"
)

var (
	renderLanguage string
	renderOut      string
	renderPDF      string
	renderPDFLatex string
)

var renderCmd = &cobra.Command{
	Use:   "render <draft.json>",
	Short: "Render a structured draft to LaTeX without calling a model",
	Long: `Render a draft résumé stored as JSON. Missing contact fields and
sections are filled with TO-FILL placeholders.

Examples:
  cvctl render draft.json --language pt --out cv.tex
  cvctl render draft.json --pdf cv.pdf
  cat draft.json | cvctl render -`,
	Args: cobra.ExactArgs(1),
	RunE: runRender,
}

func init() {
	renderCmd.Flags().StringVarP(&renderLanguage, "language", "l", workflow.DefaultLanguage, "section label language")
	renderCmd.Flags().StringVarP(&renderOut, "out", "o", "", "write LaTeX to this file instead of stdout")
	renderCmd.Flags().StringVar(&renderPDF, "pdf", "", "also compile the document and write the PDF to this file")
	renderCmd.Flags().StringVar(&renderPDFLatex, "pdflatex", render.DefaultPDFLatex, "LaTeX compiler used with --pdf")
}

func runRender(cmd *cobra.Command, args []string) error {
	raw, err := readInput(cmd.InOrStdin(), args[0])
	if err != nil {
		return fmt.Errorf("read draft: %w", err)
	}

	var draft model.DraftResume
	if err := json.Unmarshal([]byte(raw), &draft); err != nil {
		return fmt.Errorf("decode draft: %w", err)
	}
	contract.Clean(&draft)
	if err := contract.Enforce(&draft, false); err != nil {
		return err
	}
	if err := draft.Validate(); err != nil {
		return fmt.Errorf("invalid draft: %w", err)
	}

	renderer, err := render.NewLatexRenderer()
	if err != nil {
		return err
	}
	doc, err := renderer.Render(draft, renderLanguage)
	if err != nil {
		return fmt.Errorf("render: %w", err)
	}

	if renderPDF != "" {
		pdf, err := render.NewPDFCompiler(renderPDFLatex).Compile(cmd.Context(), doc.Source)
		if err != nil {
			return err
		}
		if err := os.WriteFile(renderPDF, pdf, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", renderPDF, err)
		}
	}

	if renderOut != "" {
		if err := os.WriteFile(renderOut, []byte(doc.Source), 0o644); err != nil {
			return fmt.Errorf("write %s: %w", renderOut, err)
		}
		return nil
	}
	_, err = fmt.Fprint(cmd.OutOrStdout(), doc.Source)
	return err
}
