package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ppiankov/medscribe/internal/form"
	"github.com/ppiankov/medscribe/internal/model"
	"github.com/ppiankov/medscribe/internal/render"
	"github.com/ppiankov/medscribe/internal/store"
)

var (
	renderHTML       string
	renderTranscript string
)

// renderCmd represents the render command
var renderCmd = &cobra.Command{
	Use:   "render <envelope.json>",
	Short: "Render a committed envelope as a form",
	Long: `Render loads a committed envelope and prints its form as Markdown.
With --html the form is also converted to HTML.

Example:
  medscribe render medscribe-data/medical_review/medical_review_20240115_093000.json
  medscribe render visit.json --html visit.html --transcript visit.txt`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, closer, err := openStore()
		if err != nil {
			return err
		}
		defer func() { _ = closer() }()
		return showEnvelope(st, args[0])
	},
}

func init() {
	rootCmd.AddCommand(renderCmd)
	renderCmd.Flags().StringVar(&renderHTML, "html", "", "also write the form as HTML")
	renderCmd.Flags().StringVar(&renderTranscript, "transcript", "", "transcript file to show alongside the record")
}

// showEnvelope prints the form for the envelope at path
func showEnvelope(st *store.Manager, path string) error {
	rec, err := st.Load(path)
	if err != nil {
		return err
	}

	transcript := ""
	if renderTranscript != "" {
		if transcript, err = readTranscript(renderTranscript); err != nil {
			return err
		}
	}

	fields, err := form.Project(rec, transcript, rec.Type)
	if err != nil {
		return err
	}
	env := &model.Envelope{
		RecordID:      rec.RecordID,
		RecordType:    rec.Type,
		SchemaVersion: rec.SchemaVersion,
		CreatedAt:     rec.CreatedAt,
		Path:          path,
		Record:        rec,
	}

	md := render.Markdown(titleOf(rec.Type), fields, env)
	fmt.Print(string(md))

	if renderHTML != "" {
		html, err := render.HTML(md)
		if err != nil {
			return err
		}
		return writeFile(renderHTML, html)
	}
	return nil
}
