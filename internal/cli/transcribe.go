package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

var transcriptOnly bool

// transcribeCmd represents the transcribe command
var transcribeCmd = &cobra.Command{
	Use:   "transcribe <audio-file>",
	Short: "Transcribe a recording and extract a record from it",
	Long: `Transcribe sends an interview recording to the speech-to-text service and
runs the transcript through extraction. A failed transcription is treated as
an empty transcript.

Example:
  medscribe transcribe visit.m4a
  medscribe transcribe visit.wav --type screening --json visit.json
  medscribe transcribe visit.wav --transcript-only > visit.txt`,
	Args: cobra.ExactArgs(1),
	RunE: runTranscribe,
}

func init() {
	rootCmd.AddCommand(transcribeCmd)
	addRecordFlags(transcribeCmd)
	transcribeCmd.Flags().BoolVar(&transcriptOnly, "transcript-only", false, "print the transcript and stop")
}

func runTranscribe(cmd *cobra.Command, args []string) error {
	audio, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read audio: %w", err)
	}
	filename := filepath.Base(args[0])

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

	if transcriptOnly {
		text := p.Transcribe(ctx, audio, filename)
		if text == "" {
			return fmt.Errorf("no transcript produced for %s", filename)
		}
		fmt.Println(text)
		return nil
	}

	res, err := p.ProcessAudio(ctx, recordType, audio, filename)
	printResult(res)
	if werr := out.write(res); werr != nil {
		return werr
	}
	return err
}
