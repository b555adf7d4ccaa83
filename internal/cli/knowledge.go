package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/olasquare/olasquare/internal/store"
	"github.com/spf13/cobra"
)

func newKnowledgeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "knowledge",
		Aliases: []string{"kb"},
		Short:   "Manage the knowledge base used by search_knowledge",
	}

	cmd.AddCommand(newKnowledgeAddCmd())
	cmd.AddCommand(newKnowledgeImportCmd())
	cmd.AddCommand(newKnowledgeSearchCmd())
	cmd.AddCommand(newKnowledgeListCmd())
	cmd.AddCommand(newKnowledgeDeleteCmd())
	return cmd
}

// openKnowledge opens the runtime and checks the knowledge base exists.
func openKnowledge() (*runtime, error) {
	rt, err := openRuntime(runtimeOptions{})
	if err != nil {
		return nil, err
	}
	if err := rt.requireKnowledge(); err != nil {
		rt.Close()
		return nil, err
	}
	return rt, nil
}

func newKnowledgeAddCmd() *cobra.Command {
	var chunk store.KnowledgeChunk

	cmd := &cobra.Command{
		Use:   "add <text>",
		Short: "Add one passage",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := openKnowledge()
			if err != nil {
				return err
			}
			defer rt.Close()

			chunk.Content = strings.Join(args, " ")
			added, err := rt.knowledge.Add(cmd.Context(), chunk)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added %s\n", added.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&chunk.ID, "id", "", "passage id (replaces an existing passage with the same id)")
	cmd.Flags().StringVar(&chunk.Title, "title", "", "passage title")
	cmd.Flags().StringVar(&chunk.Source, "source", "", "where the passage came from")
	cmd.Flags().StringVar(&chunk.Category, "category", "", "category (default general)")
	return cmd
}

func newKnowledgeImportCmd() *cobra.Command {
	var (
		category string
		maxLen   int
	)

	cmd := &cobra.Command{
		Use:   "import <file>...",
		Short: "Import text files, split into paragraph-sized passages",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := openKnowledge()
			if err != nil {
				return err
			}
			defer rt.Close()

			out := cmd.OutOrStdout()
			total := 0
			for _, path := range args {
				data, err := os.ReadFile(path)
				if err != nil {
					return err
				}
				base := filepath.Base(path)
				title := strings.TrimSuffix(base, filepath.Ext(base))

				parts := store.SplitParagraphs(string(data), maxLen)
				for i, part := range parts {
					_, err := rt.knowledge.Add(cmd.Context(), store.KnowledgeChunk{
						ID:       fmt.Sprintf("%s#%d", base, i+1),
						Title:    title,
						Source:   base,
						Category: category,
						Content:  part,
					})
					if err != nil {
						return fmt.Errorf("%s part %d: %w", path, i+1, err)
					}
				}
				fmt.Fprintf(out, "Imported %d passage(s) from %s\n", len(parts), path)
				total += len(parts)
			}
			log.Info().Int("passages", total).Int("files", len(args)).Msg("knowledge import complete")
			return nil
		},
	}

	cmd.Flags().StringVar(&category, "category", "", "category for every imported passage")
	cmd.Flags().IntVar(&maxLen, "max-len", 1500, "maximum passage length in bytes")
	return cmd
}

func newKnowledgeSearchCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Full-text search the knowledge base",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := openKnowledge()
			if err != nil {
				return err
			}
			defer rt.Close()

			results, err := rt.knowledge.Search(cmd.Context(), strings.Join(args, " "), limit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(results) == 0 {
				fmt.Fprintln(out, "No matches.")
				return nil
			}
			for i, r := range results {
				fmt.Fprintf(out, "[%d] %s  %s\n%s\n\n", i+1, r.ID, r.Title, r.Content)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 5, "maximum results")
	return cmd
}

func newKnowledgeListCmd() *cobra.Command {
	var (
		category string
		limit    int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored passages",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := openKnowledge()
			if err != nil {
				return err
			}
			defer rt.Close()

			chunks, err := rt.knowledge.List(cmd.Context(), category, limit)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tCATEGORY\tTITLE\tSIZE")
			for _, c := range chunks {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d\n", c.ID, c.Category, c.Title, len(c.Content))
			}
			return tw.Flush()
		},
	}

	cmd.Flags().StringVar(&category, "category", "", "only list this category")
	cmd.Flags().IntVarP(&limit, "limit", "n", 100, "maximum passages")
	return cmd
}

func newKnowledgeDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a passage",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := openKnowledge()
			if err != nil {
				return err
			}
			defer rt.Close()

			ok, err := rt.knowledge.Delete(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("no passage with id %q", args[0])
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
			return nil
		},
	}
}
