package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/asp-search/internal/lookup"
	"github.com/sells-group/asp-search/internal/model"
	"github.com/sells-group/asp-search/internal/pipeline"
	"github.com/sells-group/asp-search/internal/progress"
)

const banner = "ASP Search (App Store Package Search) " + model.Version

var lookupCmd = &cobra.Command{
	Use:   "lookup",
	Short: "Look up App Store ids or bundle ids",
	Long:  "Resolves --input as a list file when one exists at that path, otherwise as a single key, then looks every key up and routes the records to the selected sinks.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		input, _ := cmd.Flags().GetString("input")
		kindName, _ := cmd.Flags().GetString("kind")
		sinkNames, _ := cmd.Flags().GetStringSlice("sinks")
		outputDir, _ := cmd.Flags().GetString("output-dir")
		dbPath, _ := cmd.Flags().GetString("db")

		kind, err := model.ParseLookupKind(kindName)
		if err != nil {
			return fmt.Errorf("parse kind: %w", err)
		}
		if !cmd.Flags().Changed("sinks") {
			sinkNames = cfg.Output.Sinks
		}
		sinks, err := model.ParseSinks(sinkNames)
		if err != nil {
			return fmt.Errorf("parse sinks: %w", err)
		}
		if outputDir == "" {
			outputDir = cfg.Output.Dir
		}
		if dbPath == "" {
			dbPath = cfg.Store.Path
		}

		clientOpts := []lookup.Option{
			lookup.WithBaseURL(cfg.Lookup.BaseURL),
			lookup.WithUserAgent(cfg.Lookup.UserAgent),
		}
		if cfg.Lookup.TimeoutSecs > 0 {
			clientOpts = append(clientOpts, lookup.WithTimeout(time.Duration(cfg.Lookup.TimeoutSecs)*time.Second))
		}
		client := lookup.NewClient(clientOpts...)

		out := cmd.OutOrStdout()
		fmt.Fprintln(out, banner)

		sum, err := runLookup(ctx, out, client, pipeline.Options{
			Input:     input,
			Kind:      kind,
			Sinks:     sinks,
			OutputDir: outputDir,
			StorePath: dbPath,
		},
			pipeline.WithStoreConfig(storeConfig(cfg, dbPath)),
			pipeline.WithFolderPrefix(cfg.Output.FolderPrefix),
			pipeline.WithMetricsTextfile(cfg.Metrics.TextfilePath),
		)
		if err != nil {
			return err
		}
		if sum.State == model.RunStateAborted {
			return fmt.Errorf("lookup aborted: %w", sum.Err)
		}
		return nil
	},
}

func init() {
	lookupCmd.Flags().StringP("input", "i", "", "key, or path to a newline-separated key list")
	lookupCmd.Flags().String("kind", string(model.LookupByID), "lookup kind: adamId or bundleId")
	lookupCmd.Flags().StringSlice("sinks", []string{string(model.SinkConsole)}, "outputs: console, text, store, xlsx (or both = text,store)")
	lookupCmd.Flags().String("output-dir", "", "base directory for the timestamped output folder")
	lookupCmd.Flags().String("db", "", "SQLite store file to reuse across runs (default: inside the output folder)")
	_ = lookupCmd.MarkFlagRequired("input")
	rootCmd.AddCommand(lookupCmd)
}

// runLookup executes one batch on a worker goroutine while the caller's
// goroutine renders the progress feed to out.
func runLookup(ctx context.Context, out io.Writer, client lookup.Client, opts pipeline.Options, popts ...pipeline.Option) (*model.RunSummary, error) {
	feed := progress.NewFeed()
	p := pipeline.New(client, feed, popts...)

	var sum *model.RunSummary
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer feed.Close()
		sum = p.Run(gctx, opts)
		return nil
	})
	g.Go(func() error {
		return present(out, feed.Events())
	})

	if err := g.Wait(); err != nil {
		zap.L().Warn("lookup: progress output", zap.Error(err))
		return sum, fmt.Errorf("write progress: %w", err)
	}
	return sum, nil
}

// present renders events until the feed closes. After a write error it keeps
// draining so the producer side can finish.
func present(w io.Writer, events <-chan progress.Event) error {
	var werr error
	write := func(s string) {
		if werr == nil {
			_, werr = io.WriteString(w, s)
		}
	}

	for e := range events {
		switch e.Kind {
		case progress.KindRecord:
			write(e.Message)
		case progress.KindWarning:
			write("WARNING: " + e.Message + "\n")
		case progress.KindComplete:
			write(e.Message + "\n")
			if s := e.Summary; s != nil {
				write(fmt.Sprintf("Keys processed: %d (succeeded %d, failed %d)\n", s.Total, s.Succeeded, s.Failed))
			}
		default:
			write(strings.TrimRight(e.Message, "\n") + "\n")
		}
	}
	return werr
}
