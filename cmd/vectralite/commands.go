package main

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vectralite/vectralite/hybrid"
	"github.com/vectralite/vectralite/server"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			var sink server.DocumentSink
			if a.sink != nil {
				sink = a.sink
			}
			srv := server.New(a.engine, sink, a.logger)
			return srv.ListenAndServe(ctx, a.cfg.Server.Addr)
		},
	}
}

func newAddCmd() *cobra.Command {
	var title string
	cmd := &cobra.Command{
		Use:   "add <id> <text>",
		Short: "Add or update a document",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			id, text := args[0], strings.Join(args[1:], " ")
			if err := a.engine.AddOrUpdateDocument(cmd.Context(), id, title, text); err != nil {
				return err
			}
			if a.sink != nil {
				a.sink.Put(hybrid.Document{ID: id, Title: title, Text: text})
			}
			fmt.Printf("stored %s\n", id)
			return nil
		},
	}
	cmd.Flags().StringVarP(&title, "title", "t", "", "document title")
	return cmd
}

func newRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rm <id>",
		Short: "Remove a document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.engine.RemoveDocument(cmd.Context(), args[0]); err != nil {
				return err
			}
			if a.sink != nil {
				a.sink.Remove(args[0])
			}
			fmt.Printf("removed %s\n", args[0])
			return nil
		},
	}
}

func newSearchCmd() *cobra.Command {
	var k int
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the index",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			results, err := a.engine.Search(cmd.Context(), strings.Join(args, " "), k)
			if err != nil {
				return err
			}
			printResults(results)
			return nil
		},
	}
	cmd.Flags().IntVarP(&k, "top", "k", 10, "number of results")
	return cmd
}

func newSimilarCmd() *cobra.Command {
	var k int
	cmd := &cobra.Command{
		Use:   "similar <id>",
		Short: "Find documents similar to a stored document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			results, err := a.engine.SimilarToDocument(cmd.Context(), args[0], k)
			if err != nil {
				return err
			}
			printResults(results)
			return nil
		},
	}
	cmd.Flags().IntVarP(&k, "top", "k", 10, "number of results")
	return cmd
}

func newRebuildCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rebuild",
		Short: "Rebuild the centroid index from the document source",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			centroids, err := a.engine.RebuildIndex(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Printf("index rebuilt with %d centroids\n", centroids)
			return nil
		},
	}
}

func newStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show engine statistics",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			stats, err := a.engine.GetStats(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Printf("state:       %s\n", stats.State)
			fmt.Printf("index built: %v\n", stats.IndexBuilt)
			fmt.Printf("embeddings:  %d (%d unclustered)\n", stats.Embeddings, stats.Unclustered)
			fmt.Printf("centroids:   %d\n", stats.Centroids)
			fmt.Printf("snapshots:   %d\n", stats.Snapshots)
			fmt.Printf("skipped:     %d (last rebuild)\n", stats.LastRebuildSkipped)
			fmt.Printf("model:       %s\n", stats.Model)
			return nil
		},
	}
}

func printResults(results []hybrid.Result) {
	if len(results) == 0 {
		fmt.Println("no results")
		return
	}
	for i, res := range results {
		title := res.Title
		if title == "" {
			title = res.DocumentID
		}
		fmt.Printf("%2d. %-40s %.4f  (%s)\n", i+1, title, res.Score, res.DocumentID)
	}
}
