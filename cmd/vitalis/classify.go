package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/vitalis-health/vitalis/backend/internal/extraction"
)

var classifyCmd = &cobra.Command{
	Use:   "classify <file>",
	Short: "Print the format classification of a report",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		decoder := extraction.NewDecoder(nil, cfg.MaxUploadBytes, logger)
		return runClassify(cmd.Context(), decoder, args[0], cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(classifyCmd)
}

func runClassify(ctx context.Context, decoder *extraction.Decoder, path string, out io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	doc, err := decoder.Decode(ctx, data, filepath.Base(path), "")
	if err != nil {
		return err
	}
	c := extraction.ClassifyDocument(doc)

	bold := color.New(color.Bold).SprintFunc()
	fmt.Fprintf(out, "%s %s\n", bold("Format:       "), c.Format)
	fmt.Fprintf(out, "%s %s\n", bold("Document type:"), c.DocumentType)
	fmt.Fprintf(out, "%s %.2f\n", bold("Confidence:   "), c.Confidence)
	if doc.IsScanned || doc.IsImage {
		fmt.Fprintf(out, "%s %d page(s), no text layer\n", bold("Scan:         "), doc.PageCount)
	}
	for _, w := range doc.Warnings {
		fmt.Fprintf(out, "%s %s\n", color.YellowString("warning:"), w)
	}
	return nil
}
