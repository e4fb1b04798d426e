package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"deckhand/internal/bootstrap"
	exportdto "deckhand/internal/modules/export/dto"
	gendto "deckhand/internal/modules/generation/dto"
	historydto "deckhand/internal/modules/history/dto"
	"deckhand/internal/platform/config"
)

const waitPoll = 500 * time.Millisecond

func main() {
	if err := newRootCmd().Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var dataDir string

	root := &cobra.Command{
		Use:           "deckhand",
		Short:         "Terminal client for server-driven flashcard generation",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&dataDir, "data", defaultDataDir(), "deckhand data directory")

	root.AddCommand(newTUICmd(&dataDir))
	root.AddCommand(newGenerateCmd(&dataDir))
	root.AddCommand(newResumeCmd(&dataDir))
	root.AddCommand(newStatusCmd(&dataDir))
	root.AddCommand(newCancelCmd(&dataDir))
	root.AddCommand(newEstimateCmd(&dataDir))
	root.AddCommand(newInspectCmd(&dataDir))
	root.AddCommand(newReviewCmd(&dataDir))
	root.AddCommand(newExportCmd(&dataDir))
	root.AddCommand(newHistoryCmd(&dataDir))
	return root
}

func defaultDataDir() string {
	if dir := os.Getenv("DECKHAND_DATA"); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".deckhand"
	}
	return filepath.Join(home, ".deckhand")
}

func loadApp(dataDir string) (*bootstrap.App, error) {
	cfg, err := config.New(dataDir)
	if err != nil {
		return nil, err
	}
	return bootstrap.New(cfg)
}

func newTUICmd(dataDir *string) *cobra.Command {
	return &cobra.Command{
		Use:   "tui",
		Short: "Run the deckhand terminal UI",
		RunE: func(_ *cobra.Command, _ []string) error {
			app, err := loadApp(*dataDir)
			if err != nil {
				return err
			}
			defer app.Close()
			return bootstrap.RunTUI(app)
		},
	}
}

func newGenerateCmd(dataDir *string) *cobra.Command {
	var deck, focus, sourceType string
	var size int

	cmd := &cobra.Command{
		Use:   "generate <file>",
		Short: "Submit a document and wait for the generated deck",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := loadApp(*dataDir)
			if err != nil {
				return err
			}
			defer app.Close()

			ctx := cmd.Context()
			if err := app.GenerationCLI.Generate(ctx, args[0], deck, focus, sourceType, size); err != nil {
				return err
			}
			snap, err := app.GenerationCLI.WaitForCompletion(ctx, waitPoll)
			if err != nil {
				return err
			}
			printRunOutcome(cmd, snap)
			if snap.Failed {
				return fmt.Errorf("generation failed, see the log for details")
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&deck, "deck", "", "deck name (required)")
	cmd.Flags().StringVar(&focus, "focus", "", "free-text guidance for the generator")
	cmd.Flags().StringVar(&sourceType, "type", "", "source type: auto|slides|textbook|notes")
	cmd.Flags().IntVar(&size, "size", 0, "target deck size (0 = auto)")
	_ = cmd.MarkFlagRequired("deck")
	return cmd
}

func newResumeCmd(dataDir *string) *cobra.Command {
	return &cobra.Command{
		Use:   "resume",
		Short: "Re-attach to a previously started generation job",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := loadApp(*dataDir)
			if err != nil {
				return err
			}
			defer app.Close()

			ctx := cmd.Context()
			if err := app.GenerationCLI.Recover(ctx); err != nil {
				return err
			}
			snap := app.GenerationCLI.Snapshot()
			switch snap.Step {
			case gendto.StepGenerating:
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "session %s still running, waiting…\n", snap.SessionID)
				snap, err = app.GenerationCLI.WaitForCompletion(ctx, waitPoll)
				if err != nil {
					return err
				}
				printRunOutcome(cmd, snap)
			case gendto.StepDone:
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "session finished earlier: %d cards in %q\n", len(snap.Cards), snap.DeckName)
			default:
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "no resumable session")
			}
			return nil
		},
	}
}

func newStatusCmd(dataDir *string) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the state of the active or recovered session",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := loadApp(*dataDir)
			if err != nil {
				return err
			}
			defer app.Close()

			if err := app.GenerationCLI.Recover(cmd.Context()); err != nil {
				return err
			}
			snap := app.GenerationCLI.Snapshot()
			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "step        %s\n", snap.Step)
			_, _ = fmt.Fprintf(out, "phase       %s\n", snap.Phase)
			if snap.SessionID != "" {
				_, _ = fmt.Fprintf(out, "session     %s\n", snap.SessionID)
			}
			if snap.DeckName != "" {
				_, _ = fmt.Fprintf(out, "deck        %s\n", snap.DeckName)
			}
			if snap.BatchTotal > 0 {
				_, _ = fmt.Fprintf(out, "batch       %d/%d\n", snap.BatchCurrent, snap.BatchTotal)
			}
			_, _ = fmt.Fprintf(out, "cards       %d\n", len(snap.Cards))
			_, _ = fmt.Fprintf(out, "progress    %.0f%%\n", snap.RawPercent)
			if snap.Historical {
				_, _ = fmt.Fprintln(out, "loaded from a finished session")
			}
			if snap.Failed {
				_, _ = fmt.Fprintln(out, "state       errored")
			}
			return nil
		},
	}
}

func newCancelCmd(dataDir *string) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel",
		Short: "Ask the backend to stop the active generation job",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := loadApp(*dataDir)
			if err != nil {
				return err
			}
			defer app.Close()

			ctx := cmd.Context()
			if err := app.GenerationCLI.Recover(ctx); err != nil {
				return err
			}
			if app.GenerationCLI.Snapshot().Step != gendto.StepGenerating {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "no running session")
				return nil
			}
			if err := app.GenerationCLI.Cancel(ctx); err != nil {
				return err
			}
			snap, err := app.GenerationCLI.WaitForCancel(ctx, waitPoll)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "cancelled; %d cards kept\n", len(snap.Cards))
			return nil
		},
	}
}

func newEstimateCmd(dataDir *string) *cobra.Command {
	var sourceType string
	var size int

	cmd := &cobra.Command{
		Use:   "estimate <file>",
		Short: "Estimate the cost of generating from a document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := loadApp(*dataDir)
			if err != nil {
				return err
			}
			defer app.Close()

			est, err := app.GenerationCLI.EstimateNow(cmd.Context(), args[0], sourceType, size)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "cost    $%.4f (in $%.4f / out $%.4f)\n", est.Cost, est.InputCost, est.OutputCost)
			_, _ = fmt.Fprintf(out, "tokens  %d (in %d / out %d)\n", est.Tokens, est.InputTokens, est.OutputTokens)
			if est.Pages > 0 {
				_, _ = fmt.Fprintf(out, "pages   %d\n", est.Pages)
			}
			if est.Model != "" {
				_, _ = fmt.Fprintf(out, "model   %s\n", est.Model)
			}
			if est.EstimatedCardCount > 0 {
				_, _ = fmt.Fprintf(out, "cards   ~%d\n", est.EstimatedCardCount)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&sourceType, "type", "", "source type: auto|slides|textbook|notes")
	cmd.Flags().IntVar(&size, "size", 0, "target deck size (0 = auto)")
	return cmd
}

func newInspectCmd(dataDir *string) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <file>",
		Short: "Inspect a local source file without contacting the backend",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := loadApp(*dataDir)
			if err != nil {
				return err
			}
			defer app.Close()

			insp, err := app.SourceCLI.Inspect(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "title  %s\n", insp.Title)
			_, _ = fmt.Fprintf(out, "kind   %s\n", insp.Kind)
			_, _ = fmt.Fprintf(out, "size   %d bytes\n", insp.SizeBytes)
			if insp.Pages > 0 {
				approx := "~"
				if insp.PagesExact {
					approx = ""
				}
				_, _ = fmt.Fprintf(out, "pages  %s%d\n", approx, insp.Pages)
			}
			if insp.Lines > 0 {
				_, _ = fmt.Fprintf(out, "lines  %d\n", insp.Lines)
			}
			return nil
		},
	}
}

func newReviewCmd(dataDir *string) *cobra.Command {
	review := &cobra.Command{Use: "review", Short: "Edit, delete, and sync the produced cards"}
	var session string
	review.PersistentFlags().StringVar(&session, "session", "", "archived session id (default: the recovered session)")

	// withRecovered seeds the engine from the persisted slot so review
	// actions address the same card list the TUI would show.
	withRecovered := func(cmd *cobra.Command, fn func(ctx context.Context, app *bootstrap.App) error) error {
		app, err := loadApp(*dataDir)
		if err != nil {
			return err
		}
		defer app.Close()
		ctx := cmd.Context()
		if err := app.GenerationCLI.Recover(ctx); err != nil {
			return err
		}
		return fn(ctx, app)
	}

	review.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List cards in the current or an archived session",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withRecovered(cmd, func(ctx context.Context, app *bootstrap.App) error {
				deck, cards, err := app.ReviewCLI.Cards(ctx, session)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if deck != "" {
					_, _ = fmt.Fprintf(out, "deck: %s\n", deck)
				}
				if len(cards) == 0 {
					_, _ = fmt.Fprintln(out, "no cards")
					return nil
				}
				for i, card := range cards {
					mark := " "
					if card.Synced() {
						mark = "✓"
					}
					_, _ = fmt.Fprintf(out, "%3d %s %s\n", i, mark, oneLine(card.Front))
				}
				return nil
			})
		},
	})

	var front, back string
	var tags []string
	editCmd := &cobra.Command{
		Use:   "edit <index>",
		Short: "Edit a card; synced cards update their Anki note too",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			index, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid index %q", args[0])
			}
			return withRecovered(cmd, func(ctx context.Context, app *bootstrap.App) error {
				if err := app.ReviewCLI.EditCard(ctx, index, front, back, tags); err != nil {
					return err
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "card %d updated\n", index)
				return nil
			})
		},
	}
	editCmd.Flags().StringVar(&front, "front", "", "new front text")
	editCmd.Flags().StringVar(&back, "back", "", "new back text")
	editCmd.Flags().StringSliceVar(&tags, "tags", nil, "replacement tag set")
	review.AddCommand(editCmd)

	review.AddCommand(&cobra.Command{
		Use:   "delete <index>",
		Short: "Delete a card from the draft list",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			index, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid index %q", args[0])
			}
			return withRecovered(cmd, func(ctx context.Context, app *bootstrap.App) error {
				if err := app.ReviewCLI.Delete(ctx, index); err != nil {
					return err
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "card %d deleted\n", index)
				return nil
			})
		},
	})

	review.AddCommand(&cobra.Command{
		Use:   "unlink <index>",
		Short: "Delete a card's Anki note and keep it as a draft",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			index, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid index %q", args[0])
			}
			return withRecovered(cmd, func(ctx context.Context, app *bootstrap.App) error {
				if err := app.ReviewCLI.DeleteFromAnki(ctx, index); err != nil {
					return err
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "card %d unlinked from Anki\n", index)
				return nil
			})
		},
	})

	review.AddCommand(&cobra.Command{
		Use:   "sync",
		Short: "Push the current drafts to Anki and wait for the result",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withRecovered(cmd, func(ctx context.Context, app *bootstrap.App) error {
				if err := app.ReviewCLI.Sync(ctx); err != nil {
					return err
				}
				sync, err := app.ReviewCLI.WaitForSync(ctx, waitPoll)
				if err != nil {
					return err
				}
				if sync.Failed {
					return fmt.Errorf("sync failed: %s", sync.Message)
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "synced %d cards\n", sync.Synced)
				return nil
			})
		},
	})

	review.AddCommand(&cobra.Command{
		Use:   "sort <front|slide|recent>",
		Short: "Set the sticky review sort order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := loadApp(*dataDir)
			if err != nil {
				return err
			}
			defer app.Close()
			if err := app.ReviewCLI.SetSortMode(cmd.Context(), args[0]); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "sort order set to %s\n", args[0])
			return nil
		},
	})

	return review
}

func newExportCmd(dataDir *string) *cobra.Command {
	export := &cobra.Command{Use: "export", Short: "Export cards through exporter plugins"}

	var format, exporter, outPath, session string
	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Export the current or an archived card set to a file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := loadApp(*dataDir)
			if err != nil {
				return err
			}
			defer app.Close()

			ctx := cmd.Context()
			if session == "" {
				if err := app.GenerationCLI.Recover(ctx); err != nil {
					return err
				}
			}
			cwd, err := os.Getwd()
			if err != nil {
				return fmt.Errorf("resolve working directory: %w", err)
			}
			out, err := app.ExportCLI.Export(ctx, exportdto.ExportInput{
				Format:     format,
				Exporter:   exporter,
				OutputPath: outPath,
				SessionID:  session,
				Cwd:        cwd,
			})
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "exported %d cards to %s (%s via %s)\n",
				out.CardCount, out.Path, out.Format, out.Exporter)
			return nil
		},
	}
	runCmd.Flags().StringVar(&format, "format", "", "export format id (required)")
	runCmd.Flags().StringVar(&exporter, "exporter", "", "pin a specific exporter")
	runCmd.Flags().StringVar(&outPath, "out", "", "output path (default: derived from the deck name)")
	runCmd.Flags().StringVar(&session, "session", "", "archived session id")
	_ = runCmd.MarkFlagRequired("format")
	export.AddCommand(runCmd)

	export.AddCommand(&cobra.Command{
		Use:   "formats",
		Short: "List formats offered by enabled exporters",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := loadApp(*dataDir)
			if err != nil {
				return err
			}
			defer app.Close()
			formats, err := app.ExportCLI.ListFormats(cmd.Context())
			if err != nil {
				return err
			}
			if len(formats) == 0 {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "no exporter formats available")
				return nil
			}
			for _, f := range formats {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%-12s %-24s %s\n", f.ID, f.Exporter, f.Title)
			}
			return nil
		},
	})

	export.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List registered exporters",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := loadApp(*dataDir)
			if err != nil {
				return err
			}
			defer app.Close()
			exporters, err := app.ExportCLI.List(cmd.Context())
			if err != nil {
				return err
			}
			for _, e := range exporters {
				state := "disabled"
				if e.Enabled {
					state = "enabled"
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%-24s %-10s %s %s\n", e.Name, e.Version, state, strings.Join(e.Capabilities, ","))
			}
			return nil
		},
	})

	export.AddCommand(&cobra.Command{
		Use:   "doctor",
		Short: "Check every registered exporter's health",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := loadApp(*dataDir)
			if err != nil {
				return err
			}
			defer app.Close()
			results, err := app.ExportCLI.Doctor(cmd.Context())
			if err != nil {
				return err
			}
			for _, r := range results {
				status := "ok"
				if r.Error != "" {
					status = r.Error
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%-24s checksum=%t binary=%t lifecycle=%t %s\n",
					r.Name, r.ChecksumValid, r.BinaryReachable, r.LifecycleOK, status)
			}
			return nil
		},
	})

	return export
}

func newHistoryCmd(dataDir *string) *cobra.Command {
	history := &cobra.Command{Use: "history", Short: "Browse the archive of completed runs"}

	history.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List archived runs",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := loadApp(*dataDir)
			if err != nil {
				return err
			}
			defer app.Close()
			runs, err := app.HistoryCLI.List(cmd.Context())
			if err != nil {
				return err
			}
			printRuns(cmd, runs)
			return nil
		},
	})

	history.AddCommand(&cobra.Command{
		Use:   "show <session-id>",
		Short: "Show one archived run, including its note body",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := loadApp(*dataDir)
			if err != nil {
				return err
			}
			defer app.Close()
			detail, err := app.HistoryCLI.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "deck     %s\n", detail.DeckName)
			_, _ = fmt.Fprintf(out, "source   %s\n", detail.SourceFile)
			_, _ = fmt.Fprintf(out, "cards    %d\n", detail.CardCount)
			_, _ = fmt.Fprintf(out, "note     %s\n", detail.NotePath)
			if strings.TrimSpace(detail.Body) != "" {
				_, _ = fmt.Fprintf(out, "\n%s\n", detail.Body)
			}
			return nil
		},
	})

	history.AddCommand(&cobra.Command{
		Use:   "search <query>",
		Short: "Search archived runs by deck or source",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := loadApp(*dataDir)
			if err != nil {
				return err
			}
			defer app.Close()
			runs, err := app.HistoryCLI.Search(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}
			printRuns(cmd, runs)
			return nil
		},
	})

	history.AddCommand(&cobra.Command{
		Use:   "reindex",
		Short: "Rebuild the run index from the archive notes",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := loadApp(*dataDir)
			if err != nil {
				return err
			}
			defer app.Close()
			n, err := app.HistoryCLI.Reindex(cmd.Context())
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "reindexed %d runs\n", n)
			return nil
		},
	})

	return history
}

func printRunOutcome(cmd *cobra.Command, snap gendto.Snapshot) {
	out := cmd.OutOrStdout()
	switch {
	case snap.Failed:
		_, _ = fmt.Fprintf(out, "run failed after %d cards\n", len(snap.Cards))
	case snap.Step == gendto.StepDone:
		_, _ = fmt.Fprintf(out, "generated %d cards into %q\n", len(snap.Cards), snap.DeckName)
	default:
		_, _ = fmt.Fprintf(out, "run ended in step %s with %d cards\n", snap.Step, len(snap.Cards))
	}
}

func printRuns(cmd *cobra.Command, runs []historydto.RunView) {
	out := cmd.OutOrStdout()
	if len(runs) == 0 {
		_, _ = fmt.Fprintln(out, "no runs")
		return
	}
	for _, run := range runs {
		when := "unknown"
		if !run.FinishedAt.IsZero() {
			when = run.FinishedAt.Format("2006-01-02 15:04")
		}
		_, _ = fmt.Fprintf(out, "%-16s %-32s %4d cards  %s\n", run.SessionID, run.DeckName, run.CardCount, when)
	}
}

func oneLine(s string) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if len(s) > 72 {
		return s[:69] + "…"
	}
	return s
}
