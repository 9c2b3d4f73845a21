package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/medscribe/internal/worker"
)

var (
	concurrency  int
	outputDir    string
	batchTimeout time.Duration
)

// batchCmd represents the batch command
var batchCmd = &cobra.Command{
	Use:   "batch <file-list>",
	Short: "Extract records from many transcripts or recordings in parallel",
	Long: `Batch reads one transcript or audio path per line (blank lines and
# comments are skipped, relative paths resolve against the list's directory)
and runs each through the pipeline on a worker pool. Extraction calls are
rate-limited per provider.

For every input a JSON result and a Markdown form are written to the output
directory, named after the committed record id or, on failure, the input file.

Example:
  medscribe batch visits.txt
  medscribe batch visits.txt --type screening --concurrency 8 --output-dir ./forms`,
	Args: cobra.ExactArgs(1),
	RunE: runBatch,
}

func init() {
	rootCmd.AddCommand(batchCmd)
	addRecordFlags(batchCmd)

	batchCmd.Flags().IntVar(&concurrency, "concurrency", runtime.NumCPU(), "number of concurrent workers")
	batchCmd.Flags().StringVar(&outputDir, "output-dir", "./medscribe-forms", "output directory for forms")
	batchCmd.Flags().DurationVar(&batchTimeout, "batch-timeout", 30*time.Minute, "total timeout for batch processing")
}

func runBatch(cmd *cobra.Command, args []string) error {
	listFile := args[0]

	cfg, err := commandConfig(cmd)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("concurrency") {
		cfg.Concurrency.Workers = concurrency
	}

	paths, err := worker.ReadPathsFromFile(listFile)
	if err != nil {
		return fmt.Errorf("read file list: %w", err)
	}

	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "  Medscribe Batch Processing\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  Input list:   %s (%d files)\n", listFile, len(paths))
	fmt.Fprintf(os.Stderr, "  Record type:  %s\n", recordType)
	fmt.Fprintf(os.Stderr, "  Workers:      %d\n", cfg.Concurrency.Workers)
	fmt.Fprintf(os.Stderr, "  LLM:          %s/%s\n", cfg.LLM.Provider, cfg.LLM.Model)
	fmt.Fprintf(os.Stderr, "  Output dir:   %s\n", outputDir)
	fmt.Fprintf(os.Stderr, "\n")

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	p, closer, err := buildPipeline(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = closer() }()

	ctx, cancel := context.WithTimeout(cmd.Context(), batchTimeout)
	defer cancel()

	results := worker.NewBatchProcessor(p, cfg.Concurrency.Workers).ProcessFiles(ctx, recordType, paths)

	for _, r := range results {
		if r.Result == nil {
			fmt.Fprintf(os.Stderr, "✗ %s: %v\n", r.Path, r.Error)
			continue
		}

		name := outputName(r)
		o := outputs{
			JSON:     filepath.Join(outputDir, name+".json"),
			Markdown: filepath.Join(outputDir, name+".md"),
		}
		if err := o.write(r.Result); err != nil {
			fmt.Fprintf(os.Stderr, "✗ %s: %v\n", r.Path, err)
			continue
		}

		if r.Error != nil {
			fmt.Fprintf(os.Stderr, "✗ %s: %v\n", r.Path, r.Error)
		} else {
			fmt.Fprintf(os.Stderr, "✓ %s -> %s\n", r.Path, r.Result.Envelope.RecordID)
		}
	}

	committed, failed := worker.Summarize(results)

	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "  Batch Complete\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  Total:      %d files\n", len(results))
	fmt.Fprintf(os.Stderr, "  Committed:  %d\n", committed)
	fmt.Fprintf(os.Stderr, "  Failed:     %d\n", failed)
	fmt.Fprintf(os.Stderr, "  Output:     %s\n", outputDir)
	fmt.Fprintf(os.Stderr, "\n")

	if failed > 0 {
		return fmt.Errorf("%d of %d files failed", failed, len(results))
	}
	return nil
}

// outputName names a result after its record id, or its input file when
// nothing was committed
func outputName(r *worker.FileResult) string {
	if r.Result != nil && r.Result.Envelope != nil {
		return r.Result.Envelope.RecordID
	}
	base := filepath.Base(r.Path)
	return "failed_" + sanitizeFilename(strings.TrimSuffix(base, filepath.Ext(base)))
}

// sanitizeFilename replaces characters that are unsafe in file names
func sanitizeFilename(s string) string {
	replacer := strings.NewReplacer(
		"/", "_",
		"\\", "_",
		":", "_",
		"*", "_",
		"?", "_",
		"\"", "_",
		"<", "_",
		">", "_",
		"|", "_",
		" ", "-",
	)
	s = replacer.Replace(s)

	if len(s) > 100 {
		s = s[:100]
	}
	return s
}
