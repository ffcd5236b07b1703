package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/asp-search/internal/model"
	"github.com/sells-group/asp-search/internal/store"
)

var recordsCmd = &cobra.Command{
	Use:   "records",
	Short: "Print records stored by earlier runs",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		dbPath, _ := cmd.Flags().GetString("db")
		limit, _ := cmd.Flags().GetInt("limit")
		format, _ := cmd.Flags().GetString("format")

		sc := storeConfig(cfg, dbPath)
		if err := requireStorePath(sc); err != nil {
			return err
		}
		if err := requireStoreFile(sc); err != nil {
			return err
		}

		st, _, err := store.Open(ctx, sc)
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		defer st.Close() //nolint:errcheck

		recs, err := st.List(ctx, limit)
		if err != nil {
			return fmt.Errorf("list records: %w", err)
		}
		return writeRecords(cmd.OutOrStdout(), recs, format)
	},
}

func init() {
	recordsCmd.Flags().String("db", "", "SQLite store file (default: store.path)")
	recordsCmd.Flags().Int("limit", 100, "max records to print")
	recordsCmd.Flags().String("format", "table", "output format: table, json or yaml")
	rootCmd.AddCommand(recordsCmd)
}

// requireStorePath rejects a SQLite config with no file to open.
func requireStorePath(sc store.Config) error {
	if (sc.Driver == "" || sc.Driver == "sqlite") && sc.Path == "" {
		return errors.New("no store file: pass --db or set store.path")
	}
	return nil
}

// requireStoreFile rejects a SQLite path that does not exist yet, so a
// listing never leaves an empty database behind.
func requireStoreFile(sc store.Config) error {
	if sc.Driver != "" && sc.Driver != "sqlite" {
		return nil
	}
	fi, err := os.Stat(sc.Path)
	if err != nil {
		return fmt.Errorf("store file %s: %w", sc.Path, err)
	}
	if fi.IsDir() {
		return fmt.Errorf("store file %s is a directory", sc.Path)
	}
	return nil
}

func writeRecords(w io.Writer, recs []model.Record, format string) error {
	switch format {
	case "table":
		return writeRecordTable(w, recs)
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if recs == nil {
			recs = []model.Record{}
		}
		return enc.Encode(recs)
	case "yaml":
		return writeRecordYAML(w, recs)
	default:
		return fmt.Errorf("unknown format %q (want table, json or yaml)", format)
	}
}

func writeRecordTable(w io.Writer, recs []model.Record) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ADAM ID\tBUNDLE ID\tNAME\tSELLER\tGENRE\tERROR")
	fmt.Fprintln(tw, "-------\t---------\t----\t------\t-----\t-----")
	for _, r := range recs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			r.Value(model.FieldAdamID),
			r.Value(model.FieldBundleID),
			truncate(r.Value(model.FieldTrackName), 40),
			truncate(r.Value(model.FieldSellerName), 30),
			r.Value(model.FieldPrimaryGenreName),
			truncate(r.Value(model.FieldErrorMessage), 40),
		)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "\n%d record(s)\n", len(recs))
	return err
}

// writeRecordYAML emits one mapping per record with keys in schema order.
// Every value is tagged as a string so numeric ids keep their quotes.
func writeRecordYAML(w io.Writer, recs []model.Record) error {
	doc := &yaml.Node{Kind: yaml.SequenceNode}
	for _, r := range recs {
		m := &yaml.Node{Kind: yaml.MappingNode}
		for _, f := range model.Fields() {
			v, ok := r.Get(f)
			if !ok {
				continue
			}
			m.Content = append(m.Content,
				&yaml.Node{Kind: yaml.ScalarNode, Value: f.String()},
				&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: v},
			)
		}
		doc.Content = append(doc.Content, m)
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encode yaml: %w", err)
	}
	return enc.Close()
}

func truncate(s string, n int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if len([]rune(s)) <= n {
		return s
	}
	return string([]rune(s)[:n-3]) + "..."
}
