package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"resume-workflow/internal/workflow"
)

var (
	runURL             string
	runDescription     string
	runDescriptionFile string
	runLanguage        string
	runOut             string

	continueApprove  bool
	continueFeedback string
	continueOut      string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start a résumé run from a job URL or description",
	Long: `Start a résumé run. Exactly one job source is required.

Examples:
  cvctl run --url https://jobs.example.com/123
  cvctl run --description-file posting.txt --language pt
  cvctl run --description "Senior Go engineer..." --out draft.tex`,
	Args: cobra.NoArgs,
	RunE: runRun,
}

var continueCmd = &cobra.Command{
	Use:   "continue <session-id>",
	Short: "Approve a suspended run or request a revision",
	Long: `Resume a suspended run.

Examples:
  cvctl continue 4f1c... --approve
  cvctl continue 4f1c... --feedback "Lead with the Kubernetes work"`,
	Args: cobra.ExactArgs(1),
	RunE: runContinue,
}

func init() {
	runCmd.Flags().StringVarP(&runURL, "url", "u", "", "job posting URL")
	runCmd.Flags().StringVarP(&runDescription, "description", "d", "", "job description text")
	runCmd.Flags().StringVarP(&runDescriptionFile, "description-file", "f", "", "read the job description from a file (- for stdin)")
	runCmd.Flags().StringVarP(&runLanguage, "language", "l", workflow.DefaultLanguage, "résumé language")
	runCmd.Flags().StringVarP(&runOut, "out", "o", "", "write the rendered document to this file")
	runCmd.MarkFlagsMutuallyExclusive("url", "description", "description-file")

	continueCmd.Flags().BoolVar(&continueApprove, "approve", false, "approve the current draft")
	continueCmd.Flags().StringVar(&continueFeedback, "feedback", "", "revision feedback")
	continueCmd.Flags().StringVarP(&continueOut, "out", "o", "", "write the rendered document to this file")
	continueCmd.MarkFlagsMutuallyExclusive("approve", "feedback")
}

func runRun(cmd *cobra.Command, args []string) error {
	description := runDescription
	if runDescriptionFile != "" {
		text, err := readInput(cmd.InOrStdin(), runDescriptionFile)
		if err != nil {
			return fmt.Errorf("read description: %w", err)
		}
		description = text
	}

	ctx := context.Background()
	a, err := getApp(ctx)
	if err != nil {
		return err
	}

	res, err := a.Workflow.Start(ctx, workflow.StartInput{
		JobURL:         runURL,
		JobDescription: description,
		Language:       runLanguage,
	})
	if err != nil {
		return fmt.Errorf("start run: %w", err)
	}
	return printResult(cmd.OutOrStdout(), res, runOut)
}

func runContinue(cmd *cobra.Command, args []string) error {
	if !continueApprove && strings.TrimSpace(continueFeedback) == "" {
		return fmt.Errorf("either --approve or --feedback is required")
	}

	ctx := context.Background()
	a, err := getApp(ctx)
	if err != nil {
		return err
	}

	res, err := a.Workflow.Continue(ctx, workflow.ContinueInput{
		SessionID: args[0],
		Approve:   continueApprove,
		Feedback:  continueFeedback,
	})
	if err != nil {
		return fmt.Errorf("continue run: %w", err)
	}
	return printResult(cmd.OutOrStdout(), res, continueOut)
}

func printResult(w io.Writer, res workflow.Result, outPath string) error {
	fmt.Fprintf(w, "status:   %s\n", res.Status)
	if res.SessionID != "" {
		fmt.Fprintf(w, "session:  %s\n", res.SessionID)
		fmt.Fprintf(w, "revision: %d\n", res.Revision)
	}
	if res.Considerations != "" {
		fmt.Fprintf(w, "\nconsiderations:\n%s\n", res.Considerations)
	}
	if res.RenderedContent == "" {
		return nil
	}
	if outPath != "" {
		if err := os.WriteFile(outPath, []byte(res.RenderedContent), 0o644); err != nil {
			return fmt.Errorf("write %s: %w", outPath, err)
		}
		fmt.Fprintf(w, "\nwrote %s\n", outPath)
		return nil
	}
	fmt.Fprintf(w, "\n%s\n", res.RenderedContent)
	return nil
}

func readInput(stdin io.Reader, path string) (string, error) {
	if path == "-" {
		data, err := io.ReadAll(stdin)
		return string(data), err
	}
	data, err := os.ReadFile(path)
	return string(data), err
}
