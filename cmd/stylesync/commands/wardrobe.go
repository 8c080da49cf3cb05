package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/benvon/stylesync/internal/models"
	"github.com/benvon/stylesync/internal/services/stylist"
	"github.com/spf13/cobra"
)

func newRecommendCmd(app *App) *cobra.Command {
	var (
		query models.RecommendationQuery
		tags  []string
	)

	cmd := &cobra.Command{
		Use:   "recommend",
		Short: "Ask for an outfit from the wardrobe",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(query.Occasion) == "" {
				return fmt.Errorf("--occasion is required")
			}
			query.PreferenceTags = tags
			return app.run(cmd, func(ctx context.Context, service *stylist.Service) error {
				result, err := service.Recommend(ctx, app.SessionID, query)
				if err != nil {
					var empty *stylist.EmptyWardrobeError
					if errors.As(err, &empty) {
						return fmt.Errorf("the wardrobe is empty, add items with 'stylesync add' first")
					}
					return err
				}
				if app.JSON {
					return printJSON(cmd.OutOrStdout(), result)
				}
				items, err := service.List(ctx, app.SessionID)
				if err != nil {
					return err
				}
				printRecommendation(cmd.OutOrStdout(), result, items)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&query.Occasion, "occasion", "o", "", "Occasion to dress for (required)")
	cmd.Flags().StringVar((*string)(&query.Season), "season", "", "Season: spring, summer, fall, winter or any")
	cmd.Flags().StringSliceVarP(&tags, "tags", "t", nil, "Preference tags, comma separated")
	cmd.Flags().StringVar(&query.TimeOfDay, "time-of-day", "", "Time of day, for example morning or evening")
	cmd.Flags().StringVar(&query.Style, "style", "", "Preferred style, for example minimal or bold")
	cmd.Flags().StringVar(&query.Notes, "notes", "", "Free text notes for the stylist")
	return cmd
}

func printRecommendation(w io.Writer, result *models.RecommendationResult, items []*models.WardrobeItem) {
	byID := make(map[string]*models.WardrobeItem, len(items))
	for _, item := range items {
		byID[item.ID.String()] = item
	}

	if len(result.SelectedItemIDs) == 0 {
		fmt.Fprintln(w, "No items were selected")
	} else {
		fmt.Fprintln(w, "Outfit:")
		for _, id := range result.SelectedItemIDs {
			if item, ok := byID[id.String()]; ok {
				fmt.Fprintf(w, "  - %s %s (%s)\n", item.Color, item.Category, id)
				continue
			}
			fmt.Fprintf(w, "  - %s\n", id)
		}
	}
	if result.Rationale != "" {
		fmt.Fprintf(w, "\n%s\n", result.Rationale)
	}
	if len(result.StyleTips) > 0 {
		fmt.Fprintln(w, "\nTips:")
		for _, tip := range result.StyleTips {
			fmt.Fprintf(w, "  - %s\n", tip)
		}
	}
}

func newExportCmd(app *App) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the wardrobe as a JSON document",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.run(cmd, func(ctx context.Context, service *stylist.Service) error {
				data, err := service.Export(ctx, app.SessionID)
				if err != nil {
					return err
				}
				if output == "" || output == "-" {
					_, err = cmd.OutOrStdout().Write(data)
					return err
				}
				if err := os.WriteFile(output, data, 0o600); err != nil {
					return fmt.Errorf("failed to write %s: %w", output, err)
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "Exported wardrobe to %s\n", output)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&output, "output", "f", "", "File to write, stdout when empty")
	return cmd
}

func newImportCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Replace the wardrobe with an exported document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", args[0], err)
			}
			return app.run(cmd, func(ctx context.Context, service *stylist.Service) error {
				n, err := service.Import(ctx, app.SessionID, data)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Imported %d items\n", n)
				return nil
			})
		},
	}
}

func newStatsCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Summarize the wardrobe",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.run(cmd, func(ctx context.Context, service *stylist.Service) error {
				stats, err := service.Stats(ctx, app.SessionID)
				if err != nil {
					return err
				}
				if app.JSON {
					return printJSON(cmd.OutOrStdout(), stats)
				}
				printStats(cmd.OutOrStdout(), stats)
				return nil
			})
		},
	}
}

func printStats(w io.Writer, stats models.WardrobeStats) {
	fmt.Fprintf(w, "Total items: %d\n", stats.TotalItems)
	if len(stats.Categories) > 0 {
		fmt.Fprintln(w, "Categories:")
		for _, c := range stats.Categories {
			fmt.Fprintf(w, "  %s: %d\n", c.Category, c.Count)
		}
	}
	if len(stats.Seasons) > 0 {
		fmt.Fprintln(w, "Seasons:")
		for _, key := range sortedKeys(stats.Seasons) {
			fmt.Fprintf(w, "  %s: %d\n", key, stats.Seasons[models.Season(key)])
		}
	}
	if len(stats.Tags) > 0 {
		fmt.Fprintln(w, "Tags:")
		tags := make([]string, 0, len(stats.Tags))
		for tag := range stats.Tags {
			tags = append(tags, tag)
		}
		sort.Strings(tags)
		for _, tag := range tags {
			fmt.Fprintf(w, "  %s: %d\n", tag, stats.Tags[tag])
		}
	}
}

func sortedKeys(m map[models.Season]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, string(k))
	}
	sort.Strings(keys)
	return keys
}

func newClearCmd(app *App) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove every item from the wardrobe",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return fmt.Errorf("refusing to clear the wardrobe without --yes")
			}
			return app.run(cmd, func(ctx context.Context, service *stylist.Service) error {
				removed, err := service.Clear(ctx, app.SessionID)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %d items\n", removed)
				return nil
			})
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Confirm removing every item")
	return cmd
}
