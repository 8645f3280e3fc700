package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/vitalis-health/vitalis/backend/internal/analysis"
	"github.com/vitalis-health/vitalis/backend/internal/extraction"
	"github.com/vitalis-health/vitalis/backend/internal/scoring"
	"github.com/vitalis-health/vitalis/backend/internal/service"
	"go.uber.org/zap"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <file>",
	Short: "Extract, score, and analyze a report",
	Long: `Run the full pipeline on a local file and print the result.

Examples:
  # Colored summary
  vitalis analyze labs.pdf

  # Extraction and scores only, as JSON
  vitalis analyze labs.txt --mode extract --json`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		asJSON, _ := cmd.Flags().GetBool("json")
		mode, _ := cmd.Flags().GetString("mode")

		svc := newReportService()
		return runAnalyze(cmd.Context(), svc, args[0], mode, asJSON, cmd.OutOrStdout())
	},
}

func init() {
	analyzeCmd.Flags().Bool("json", false, "Print the full response as JSON")
	analyzeCmd.Flags().String("mode", string(service.ModeFull), "Pipeline mode: full or extract")
	rootCmd.AddCommand(analyzeCmd)
}

// newReportService builds an offline service: no store, archive, or index.
func newReportService() *service.ReportService {
	var recognizer extraction.TextRecognizer
	if cfg.OCRServiceURL != "" {
		recognizer = extraction.NewHTTPRecognizer(cfg.OCRServiceURL, logger)
	}
	decoder := extraction.NewDecoder(recognizer, cfg.MaxUploadBytes, logger)

	completer, err := analysis.NewCompleter(cfg.AnalysisConfig(), logger)
	if err != nil {
		logger.Info("AI analysis disabled", zap.Error(err))
	}
	analyzer := analysis.NewAnalyzer(completer,
		analysis.WithLogger(logger),
		analysis.WithRetryConfig(cfg.RetryConfig()))

	return service.NewReportService(decoder, analyzer, service.WithLogger(logger))
}

func runAnalyze(ctx context.Context, svc *service.ReportService, path, mode string, asJSON bool, out io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	resp, err := svc.AnalyzeDocument(ctx, service.UploadRequest{
		Filename: filepath.Base(path),
		Data:     data,
		Mode:     service.Mode(mode),
	})
	if err != nil {
		return err
	}

	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	}
	printSummary(out, resp)
	return nil
}

func printSummary(out io.Writer, resp *service.UploadResponse) {
	bold := color.New(color.Bold).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	gray := color.New(color.FgHiBlack).SprintFunc()
	cyan := color.New(color.FgCyan).SprintFunc()

	ext := resp.Extraction
	fmt.Fprintf(out, "%s %s (%s, confidence %.2f, %s)\n",
		bold("Format:"), ext.Format, ext.DocumentType, ext.Confidence, ext.ParsingMethod)

	data := resp.ExtractedData
	if len(data.LabValues) > 0 {
		fmt.Fprintf(out, "\n%s\n", bold("Lab values"))
		for _, lab := range data.LabValues {
			line := fmt.Sprintf("  %-28s %10g %-8s %s", lab.Parameter, lab.Value, lab.Unit, gray(lab.NormalRange))
			if lab.Flagged {
				line = red(line + "  !")
			}
			fmt.Fprintln(out, line)
		}
	}
	if len(data.Medications) > 0 {
		fmt.Fprintf(out, "\n%s\n", bold("Medications"))
		for _, med := range data.Medications {
			fmt.Fprintf(out, "  %s %s\n", med.Name, strings.Join(strings.Fields(med.Dosage+" "+med.Unit+" "+med.Frequency), " "))
		}
	}
	if len(data.Diagnoses) > 0 {
		fmt.Fprintf(out, "\n%s\n", bold("Diagnoses"))
		for _, d := range data.Diagnoses {
			fmt.Fprintf(out, "  %s\n", d)
		}
	}

	score := resp.HealthScore
	fmt.Fprintf(out, "\n%s %s\n", bold("Health score:"), statusColor(score.Status)(fmt.Sprintf("%d/100 (%s)", score.OverallScore, score.Status)))
	for _, c := range score.Components {
		if !c.DataAvailable {
			continue
		}
		fmt.Fprintf(out, "  %-16s %s\n", c.Category, statusColor(c.Status)(fmt.Sprintf("%3d", c.Score)))
	}

	if a := resp.Analysis; a != nil {
		source := "rule-based"
		if a.IsAIGenerated() {
			source = a.Model
		}
		fmt.Fprintf(out, "\n%s %s\n", bold("Analysis"), gray("("+source+")"))
		fmt.Fprintf(out, "  Risk: %s\n", riskColor(a.RiskLevel)(string(a.RiskLevel)))
		fmt.Fprintf(out, "  %s\n", a.Summary)
		for _, c := range a.Concerns {
			fmt.Fprintf(out, "  %s %s\n", red("•"), c)
		}
		for _, r := range a.Recommendations {
			fmt.Fprintf(out, "  %s %s\n", cyan("→"), r.Text)
		}
		fmt.Fprintf(out, "\n%s\n", gray(a.Disclaimer))
	}

	for _, w := range resp.Warnings {
		fmt.Fprintf(out, "%s %s\n", color.YellowString("warning:"), w)
	}
}

func statusColor(s scoring.Status) func(a ...interface{}) string {
	switch s {
	case scoring.StatusExcellent, scoring.StatusGood:
		return color.New(color.FgGreen).SprintFunc()
	case scoring.StatusFair:
		return color.New(color.FgYellow).SprintFunc()
	default:
		return color.New(color.FgRed).SprintFunc()
	}
}

func riskColor(r analysis.RiskLevel) func(a ...interface{}) string {
	switch r {
	case analysis.RiskLow:
		return color.New(color.FgGreen).SprintFunc()
	case analysis.RiskModerate:
		return color.New(color.FgYellow).SprintFunc()
	default:
		return color.New(color.FgRed).SprintFunc()
	}
}
