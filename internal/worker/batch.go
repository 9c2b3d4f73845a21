package worker

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ppiankov/medscribe/internal/pipeline"
)

// Processor runs one interview through the extraction pipeline
type Processor interface {
	Process(ctx context.Context, recordType, transcript string) (*pipeline.Result, error)
	ProcessAudio(ctx context.Context, recordType string, audio []byte, filename string) (*pipeline.Result, error)
}

// audioExts are sent to transcription instead of being read as text
var audioExts = map[string]bool{
	".flac": true, ".m4a": true, ".mp3": true, ".mp4": true,
	".mpeg": true, ".mpga": true, ".ogg": true, ".wav": true, ".webm": true,
}

// IsAudio reports whether path names an audio recording
func IsAudio(path string) bool {
	return audioExts[strings.ToLower(filepath.Ext(path))]
}

// FileJob processes one transcript or recording
type FileJob struct {
	Index      int
	Path       string
	RecordType string
	Processor  Processor
}

// Execute reads the file and runs it through the processor
func (j *FileJob) Execute(ctx context.Context) Result {
	out := &FileResult{Index: j.Index, Path: j.Path}

	data, err := os.ReadFile(j.Path)
	if err != nil {
		out.Error = fmt.Errorf("read %s: %w", j.Path, err)
		return out
	}

	if IsAudio(j.Path) {
		out.Result, out.Error = j.Processor.ProcessAudio(ctx, j.RecordType, data, filepath.Base(j.Path))
	} else {
		out.Result, out.Error = j.Processor.Process(ctx, j.RecordType, string(data))
	}
	return out
}

// FileResult is the outcome for one input file
type FileResult struct {
	Index  int
	Path   string
	Result *pipeline.Result
	Error  error
}

// GetError returns the processing error, if any
func (r *FileResult) GetError() error {
	return r.Error
}

// BatchProcessor processes many interview files concurrently
type BatchProcessor struct {
	processor   Processor
	concurrency int
}

// NewBatchProcessor creates a batch processor
func NewBatchProcessor(processor Processor, concurrency int) *BatchProcessor {
	return &BatchProcessor{
		processor:   processor,
		concurrency: concurrency,
	}
}

// ProcessFiles runs every file and returns results in input order
func (b *BatchProcessor) ProcessFiles(ctx context.Context, recordType string, paths []string) []*FileResult {
	if len(paths) == 0 {
		return []*FileResult{}
	}

	pool := NewPool(ctx, b.concurrency)
	pool.Start()

	go func() {
		for i, path := range paths {
			pool.Submit(&FileJob{
				Index:      i,
				Path:       path,
				RecordType: recordType,
				Processor:  b.processor,
			})
		}
		pool.Close()
	}()

	var out []*FileResult
	for res := range pool.Results() {
		out = append(out, res.(*FileResult))
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out
}

// ProcessList reads a list of files and processes them
func (b *BatchProcessor) ProcessList(ctx context.Context, recordType, listPath string) ([]*FileResult, error) {
	paths, err := ReadPathsFromFile(listPath)
	if err != nil {
		return nil, fmt.Errorf("read file list: %w", err)
	}

	return b.ProcessFiles(ctx, recordType, paths), nil
}

// ReadPathsFromFile reads one path per line, skipping blanks and # comments.
// Relative paths are resolved against the list's directory.
func ReadPathsFromFile(listPath string) ([]string, error) {
	file, err := os.Open(listPath)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer func() { _ = file.Close() }()

	base := filepath.Dir(listPath)
	var paths []string
	seen := make(map[string]bool)

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if !filepath.IsAbs(line) {
			line = filepath.Join(base, line)
		}
		if !seen[line] {
			seen[line] = true
			paths = append(paths, line)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan file: %w", err)
	}

	return paths, nil
}

// Summarize counts committed and failed results
func Summarize(results []*FileResult) (committed, failed int) {
	for _, r := range results {
		if r.Error == nil {
			committed++
		} else {
			failed++
		}
	}
	return committed, failed
}
