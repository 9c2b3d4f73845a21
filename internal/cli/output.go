package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ppiankov/medscribe/internal/errors"
	"github.com/ppiankov/medscribe/internal/form"
	"github.com/ppiankov/medscribe/internal/model"
	"github.com/ppiankov/medscribe/internal/pipeline"
	"github.com/ppiankov/medscribe/internal/render"
	"github.com/ppiankov/medscribe/internal/schema"
)

// report is the JSON document written by --json
type report struct {
	RecordType string           `json:"record_type"`
	RecordID   string           `json:"record_id,omitempty"`
	Path       string           `json:"path,omitempty"`
	Fields     form.FieldTuple  `json:"fields"`
	Error      string           `json:"error,omitempty"`
	Code       errors.ErrorCode `json:"code,omitempty"`
}

func newReport(res *pipeline.Result) report {
	r := report{RecordType: res.RecordType, Fields: res.Fields}
	if res.Envelope != nil {
		r.RecordID = res.Envelope.RecordID
		r.Path = res.Envelope.Path
	}
	if res.Err != nil {
		r.Error = res.Err.Error()
		r.Code = errors.CodeOf(res.Err)
	}
	return r
}

// outputs names the optional files a command writes
type outputs struct {
	JSON     string
	Markdown string
	HTML     string
}

func (o outputs) write(res *pipeline.Result) error {
	if o.JSON != "" {
		data, err := json.MarshalIndent(newReport(res), "", "  ")
		if err != nil {
			return fmt.Errorf("marshal report: %w", err)
		}
		if err := writeFile(o.JSON, append(data, '\n')); err != nil {
			return err
		}
	}

	if o.Markdown == "" && o.HTML == "" {
		return nil
	}
	md := render.Markdown(titleOf(res.RecordType), res.Fields, res.Envelope)
	if o.Markdown != "" {
		if err := writeFile(o.Markdown, md); err != nil {
			return err
		}
	}
	if o.HTML != "" {
		html, err := render.HTML(md)
		if err != nil {
			return err
		}
		if err := writeFile(o.HTML, html); err != nil {
			return err
		}
	}
	return nil
}

func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create directory for %s: %w", path, err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func titleOf(recordType string) string {
	if s, err := schema.Default().Get(recordType); err == nil {
		return s.Title()
	}
	return recordType
}

// printResult writes the rendered form to stdout and a status line to stderr
func printResult(res *pipeline.Result) {
	if len(res.Fields) > 0 {
		fmt.Print(string(render.Markdown(titleOf(res.RecordType), res.Fields, res.Envelope)))
		fmt.Println()
	}
	printStatus(res.Envelope, res.Err)
}

func printStatus(env *model.Envelope, err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "✗ %v\n", err)
		return
	}
	fmt.Fprintf(os.Stderr, "✓ Committed %s: %s\n", env.RecordID, env.Path)
}
