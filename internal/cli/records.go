package cli

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/medscribe/internal/model"
	"github.com/ppiankov/medscribe/internal/pipeline"
	"github.com/ppiankov/medscribe/internal/schema"
	"github.com/ppiankov/medscribe/internal/store"
)

var (
	listType  string
	listLimit int
	listSince string
	showAudit bool
)

var recordsCmd = &cobra.Command{
	Use:   "records",
	Short: "List and inspect committed records",
}

var recordsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List committed records, newest first",
	RunE:  runRecordsList,
}

var recordsShowCmd = &cobra.Command{
	Use:   "show <record-id|envelope-path>",
	Short: "Print a committed record as a form",
	Args:  cobra.ExactArgs(1),
	RunE:  runRecordsShow,
}

var recordsReindexCmd = &cobra.Command{
	Use:   "reindex",
	Short: "Rebuild the record index from the envelopes on disk",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, closer, err := openStore()
		if err != nil {
			return err
		}
		defer func() { _ = closer() }()

		n, err := st.Reindex(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "✓ Indexed %d records\n", n)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(recordsCmd)
	recordsCmd.AddCommand(recordsListCmd)
	recordsCmd.AddCommand(recordsShowCmd)
	recordsCmd.AddCommand(recordsReindexCmd)

	recordsListCmd.Flags().StringVarP(&listType, "type", "t", "", "only this record type")
	recordsListCmd.Flags().IntVar(&listLimit, "limit", 50, "maximum rows (0 for all)")
	recordsListCmd.Flags().StringVar(&listSince, "since", "", "only records created at or after this RFC3339 time")
	recordsListCmd.Flags().BoolVar(&showAudit, "audit", false, "list failed extractions instead of records")
}

func openStore() (*store.Manager, func() error, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	return pipeline.OpenStore(cfg, schema.Default(), newLogger(cfg))
}

func runRecordsList(cmd *cobra.Command, args []string) error {
	f := store.ListFilter{RecordType: listType, Limit: listLimit}
	if listSince != "" {
		t, err := time.Parse(time.RFC3339, listSince)
		if err != nil {
			return fmt.Errorf("--since: %w", err)
		}
		f.Since = t
	}

	st, closer, err := openStore()
	if err != nil {
		return err
	}
	defer func() { _ = closer() }()

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	if showAudit {
		if st.Index() == nil {
			return fmt.Errorf("the audit listing needs the record index (storage.index_path)")
		}
		entries, err := st.Index().ListAudit(cmd.Context(), f)
		if err != nil {
			return err
		}
		fmt.Fprintln(w, "ID\tTYPE\tCODE\tCREATED\tMESSAGE")
		for _, e := range entries {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", e.ID, e.RecordType, e.Code, e.CreatedAt.Format(time.RFC3339), e.Message)
		}
		return w.Flush()
	}

	envs, err := listEnvelopes(cmd.Context(), st, f)
	if err != nil {
		return err
	}
	fmt.Fprintln(w, "RECORD ID\tTYPE\tVERSION\tCREATED\tPATH")
	for _, e := range envs {
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n", e.RecordID, e.RecordType, e.SchemaVersion, e.CreatedAt.Format(time.RFC3339), e.Path)
	}
	return w.Flush()
}

// listEnvelopes reads the index when configured and scans disk otherwise
func listEnvelopes(ctx context.Context, st *store.Manager, f store.ListFilter) ([]model.Envelope, error) {
	if idx := st.Index(); idx != nil {
		return idx.List(ctx, f)
	}

	all, err := st.Scan(f.RecordType)
	if err != nil {
		return nil, err
	}
	var out []model.Envelope
	for i := len(all) - 1; i >= 0; i-- {
		if !f.Since.IsZero() && all[i].CreatedAt.Before(f.Since) {
			continue
		}
		out = append(out, all[i])
		if f.Limit > 0 && len(out) == f.Limit {
			break
		}
	}
	return out, nil
}

func runRecordsShow(cmd *cobra.Command, args []string) error {
	st, closer, err := openStore()
	if err != nil {
		return err
	}
	defer func() { _ = closer() }()

	path := args[0]
	if !strings.HasSuffix(path, ".json") {
		env, err := findRecord(cmd.Context(), st, path)
		if err != nil {
			return err
		}
		path = env.Path
	}
	return showEnvelope(st, path)
}

func findRecord(ctx context.Context, st *store.Manager, id string) (*model.Envelope, error) {
	if idx := st.Index(); idx != nil {
		if env, err := idx.Get(ctx, id); err == nil {
			return env, nil
		}
	}
	all, err := st.Scan("")
	if err != nil {
		return nil, err
	}
	for i := range all {
		if all[i].RecordID == id {
			return &all[i], nil
		}
	}
	return nil, fmt.Errorf("record not found: %s", id)
}
