package cli

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/ppiankov/medscribe/internal/schema"
)

var schemaVersion int

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Inspect record schemas",
}

var schemaListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered record types",
	RunE: func(cmd *cobra.Command, args []string) error {
		registry := schema.Default()
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "TYPE\tVERSION\tPREFIX\tLEAVES\tTITLE")
		for _, t := range registry.Types() {
			s, err := registry.Get(t)
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "%s\t%d\t%s\t%d\t%s\n", s.Type(), s.Version(), s.Prefix(), len(s.Leaves()), s.Title())
		}
		return w.Flush()
	},
}

var schemaShowCmd = &cobra.Command{
	Use:   "show <type>",
	Short: "Print a record schema as YAML",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		registry := schema.Default()
		var s *schema.Schema
		var err error
		if schemaVersion > 0 {
			s, err = registry.GetVersion(args[0], schemaVersion)
		} else {
			s, err = registry.Get(args[0])
		}
		if err != nil {
			return err
		}

		data, err := yaml.Marshal(s.Definition())
		if err != nil {
			return fmt.Errorf("marshal schema: %w", err)
		}
		fmt.Print(string(data))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(schemaCmd)
	schemaCmd.AddCommand(schemaListCmd)
	schemaCmd.AddCommand(schemaShowCmd)
	schemaShowCmd.Flags().IntVar(&schemaVersion, "version", 0, "schema version (default: latest)")
}
