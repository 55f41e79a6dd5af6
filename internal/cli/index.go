package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"resume-workflow/internal/knowledge"
)

var indexClearYes bool

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Manage the candidate knowledge base",
}

var indexAddCmd = &cobra.Command{
	Use:   "add <file>...",
	Short: "Index PDF, DOCX, Markdown or text files",
	Long: `Extract, chunk, embed and store documents about the candidate.
Files whose name is already indexed are skipped.

Examples:
  cvctl index add cv.pdf projects.md`,
	Args: cobra.MinimumNArgs(1),
	RunE: runIndexAdd,
}

var indexListCmd = &cobra.Command{
	Use:   "list",
	Short: "List indexed documents",
	Args:  cobra.NoArgs,
	RunE:  runIndexList,
}

var indexClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete every indexed document",
	Args:  cobra.NoArgs,
	RunE:  runIndexClear,
}

func init() {
	indexClearCmd.Flags().BoolVarP(&indexClearYes, "yes", "y", false, "confirm deletion")

	indexCmd.AddCommand(indexAddCmd)
	indexCmd.AddCommand(indexListCmd)
	indexCmd.AddCommand(indexClearCmd)
}

func runIndexAdd(cmd *cobra.Command, args []string) error {
	files := make([]knowledge.File, 0, len(args))
	for _, path := range args {
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("open %s: %w", path, err)
		}
		defer f.Close()
		files = append(files, knowledge.File{Name: filepath.Base(path), Body: f})
	}

	ctx := context.Background()
	a, err := getApp(ctx)
	if err != nil {
		return err
	}

	res, err := a.Knowledge.AddFiles(ctx, files)
	if err != nil {
		return fmt.Errorf("index files: %w", err)
	}
	out := cmd.OutOrStdout()
	for _, doc := range res.Added {
		fmt.Fprintf(out, "added   %s (%d chunks)\n", doc.FileName, doc.ChunkCount)
	}
	for _, name := range res.Skipped {
		fmt.Fprintf(out, "skipped %s (already indexed)\n", name)
	}
	return nil
}

func runIndexList(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	a, err := getApp(ctx)
	if err != nil {
		return err
	}

	docs, err := a.Knowledge.ListFiles(ctx)
	if err != nil {
		return fmt.Errorf("list files: %w", err)
	}
	if len(docs) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No documents indexed.")
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tFILE\tSTATUS\tCHUNKS\tSIZE")
	for _, doc := range docs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\n", doc.ID, doc.FileName, doc.Status, doc.ChunkCount, doc.SizeBytes)
	}
	return w.Flush()
}

func runIndexClear(cmd *cobra.Command, args []string) error {
	if !indexClearYes {
		return fmt.Errorf("refusing to delete the knowledge base without --yes")
	}

	ctx := context.Background()
	a, err := getApp(ctx)
	if err != nil {
		return err
	}
	if err := a.Knowledge.DeleteCollection(ctx); err != nil {
		return fmt.Errorf("clear collection: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Knowledge base cleared.")
	return nil
}
