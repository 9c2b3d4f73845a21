package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/medscribe/internal/model"
	"github.com/ppiankov/medscribe/internal/pipeline"
	"github.com/ppiankov/medscribe/internal/schema"
	"github.com/ppiankov/medscribe/internal/worker"
)

var (
	recordType  string
	out         outputs
	timeout     time.Duration
	noCache     bool
	llmProvider string
	llmModel    string
	httpProxy   string
	httpsProxy  string
)

// extractCmd represents the extract command
var extractCmd = &cobra.Command{
	Use:   "extract <transcript-file|->",
	Short: "Extract a structured record from a transcript",
	Long: `Extract sends a transcript to the configured language model, validates
and normalizes the response against the record schema, commits it as a JSON
envelope and prints the projected form.

Use "-" to read the transcript from stdin.

Example:
  medscribe extract visit.txt
  medscribe extract visit.txt --type screening --md visit.md
  cat visit.txt | medscribe extract - --llm-provider ollama --llm-model llama3.1`,
	Args: cobra.ExactArgs(1),
	RunE: runExtract,
}

func init() {
	rootCmd.AddCommand(extractCmd)
	addRecordFlags(extractCmd)
}

// addRecordFlags registers the flags shared by commands that run the pipeline
func addRecordFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&recordType, "type", "t", schema.TypeMedicalReview, "record type (see 'medscribe schema list')")
	cmd.Flags().StringVar(&out.JSON, "json", "", "write the result as JSON")
	cmd.Flags().StringVar(&out.Markdown, "md", "", "write the form as Markdown")
	cmd.Flags().StringVar(&out.HTML, "html", "", "write the form as HTML")
	cmd.Flags().DurationVar(&timeout, "timeout", 2*time.Minute, "overall timeout")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "disable the extraction cache")
	cmd.Flags().StringVar(&llmProvider, "llm-provider", "", "LLM provider (openai, anthropic, ollama)")
	cmd.Flags().StringVar(&llmModel, "llm-model", "", "LLM model name")
	cmd.Flags().StringVar(&httpProxy, "http-proxy", "", "HTTP proxy URL (overrides HTTP_PROXY env var)")
	cmd.Flags().StringVar(&httpsProxy, "https-proxy", "", "HTTPS proxy URL (overrides HTTPS_PROXY env var)")
}

// commandConfig loads configuration and applies the shared flags
func commandConfig(cmd *cobra.Command) (*model.Config, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	flags := cmd.Flags()
	if flags.Changed("llm-provider") {
		cfg.LLM.Provider = llmProvider
		cfg.LLM.APIKey = ""
		cfg.LLM.BaseURL = ""
		applyProviderEnv(cfg, os.Getenv)
	}
	if flags.Changed("llm-model") {
		cfg.LLM.Model = llmModel
	}
	if flags.Changed("no-cache") {
		cfg.Cache.Enabled = !noCache
	}
	if httpProxy != "" {
		cfg.HTTP.HTTPProxy = httpProxy
	}
	if httpsProxy != "" {
		cfg.HTTP.HTTPSProxy = httpsProxy
	}
	return cfg, nil
}

// buildPipeline wires the pipeline with a per-provider rate limiter
func buildPipeline(cfg *model.Config) (*pipeline.Pipeline, func() error, error) {
	limiter := worker.NewLimiter(cfg.RateLimiting.RequestsPerSecond, cfg.RateLimiting.BurstSize)
	return pipeline.NewFromConfig(cfg, newLogger(cfg), pipeline.WithLimiter(limiter))
}

func readTranscript(arg string) (string, error) {
	if arg == "-" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return string(data), nil
	}
	data, err := os.ReadFile(arg)
	if err != nil {
		return "", fmt.Errorf("read transcript: %w", err)
	}
	return string(data), nil
}

func runExtract(cmd *cobra.Command, args []string) error {
	transcript, err := readTranscript(args[0])
	if err != nil {
		return err
	}

	cfg, err := commandConfig(cmd)
	if err != nil {
		return err
	}
	p, closer, err := buildPipeline(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = closer() }()

	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	res, err := p.Process(ctx, recordType, transcript)
	printResult(res)
	if werr := out.write(res); werr != nil {
		return werr
	}
	return err
}
