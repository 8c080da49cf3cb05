package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/benvon/stylesync/internal/models"
	"github.com/benvon/stylesync/internal/services/stylist"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func newAddCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "add <image>...",
		Short: "Analyze clothing photos and add them to the wardrobe",
		Long: "Analyze each image with the configured AI provider and add the item. " +
			"An image the provider describes in an unreadable way is still added with unknown attributes.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.run(cmd, func(ctx context.Context, service *stylist.Service) error {
				results := make([]*stylist.AddResult, 0, len(args))
				for _, path := range args {
					data, err := os.ReadFile(path)
					if err != nil {
						return fmt.Errorf("failed to read %s: %w", path, err)
					}
					result, err := service.AddFromImage(ctx, app.SessionID, data)
					if err != nil {
						return fmt.Errorf("failed to add %s: %w", path, err)
					}
					results = append(results, result)
					if !app.JSON {
						printAdded(cmd.OutOrStdout(), path, result)
					}
				}
				if app.JSON {
					return printJSON(cmd.OutOrStdout(), results)
				}
				return nil
			})
		},
	}
}

func printAdded(w io.Writer, path string, result *stylist.AddResult) {
	item := result.Item
	fmt.Fprintf(w, "Added %s from %s\n", item.ID, path)
	fmt.Fprintf(w, "  Category: %s\n", item.Category)
	fmt.Fprintf(w, "  Color:    %s\n", item.Color)
	fmt.Fprintf(w, "  Fabric:   %s\n", item.Fabric)
	fmt.Fprintf(w, "  Tags:     %s\n", joinOrNone(item.OccasionTags))
	if result.Warning != "" {
		fmt.Fprintf(w, "  Warning:  %s\n", result.Warning)
	}
}

func newListCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the items in the wardrobe",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.run(cmd, func(ctx context.Context, service *stylist.Service) error {
				items, err := service.List(ctx, app.SessionID)
				if err != nil {
					return err
				}
				if app.JSON {
					return printJSON(cmd.OutOrStdout(), items)
				}
				if len(items) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "The wardrobe is empty")
					return nil
				}
				return printItems(cmd.OutOrStdout(), items)
			})
		},
	}
}

func printItems(w io.Writer, items []*models.WardrobeItem) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCATEGORY\tCOLOR\tFABRIC\tTAGS")
	for _, item := range items {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", item.ID, item.Category, item.Color, item.Fabric, joinOrNone(item.OccasionTags))
	}
	return tw.Flush()
}

func newTagCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "tag <item-id> [tag]...",
		Short: "Replace the occasion tags of an item",
		Long:  "Replace the occasion tags of an item. Pass no tags to clear them.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseItemID(args[0])
			if err != nil {
				return err
			}
			return app.run(cmd, func(ctx context.Context, service *stylist.Service) error {
				item, err := service.SetTags(ctx, app.SessionID, id, args[1:])
				if err != nil {
					return err
				}
				if app.JSON {
					return printJSON(cmd.OutOrStdout(), item)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Tags of %s: %s\n", item.ID, joinOrNone(item.OccasionTags))
				return nil
			})
		},
	}
}

func newRemoveCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:     "remove <item-id>",
		Aliases: []string{"rm"},
		Short:   "Remove an item from the wardrobe",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseItemID(args[0])
			if err != nil {
				return err
			}
			return app.run(cmd, func(ctx context.Context, service *stylist.Service) error {
				if err := service.Remove(ctx, app.SessionID, id); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", id)
				return nil
			})
		},
	}
}

func parseItemID(raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid item id %q", raw)
	}
	return id, nil
}

func joinOrNone(values []string) string {
	if len(values) == 0 {
		return "-"
	}
	return strings.Join(values, ", ")
}
