package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/olasquare/olasquare/internal/domain"
	"github.com/spf13/cobra"
)

func newThreadCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "thread",
		Short: "Inspect stored conversation threads",
	}

	cmd.AddCommand(newThreadListCmd())
	cmd.AddCommand(newThreadShowCmd())
	return cmd
}

func newThreadListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List threads, most recently updated first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := openRuntime(runtimeOptions{})
			if err != nil {
				return err
			}
			defer rt.Close()

			threads, err := rt.threads.List(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(threads) == 0 {
				fmt.Fprintln(out, "No threads yet.")
				return nil
			}

			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "THREAD\tMESSAGES\tUPDATED")
			for _, t := range threads {
				fmt.Fprintf(tw, "%s\t%d\t%s\n", t.ID, t.MessageCount, t.UpdatedAt.Local().Format(time.DateTime))
			}
			return tw.Flush()
		},
	}
}

func newThreadShowCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "show <thread-id>",
		Short: "Print every message in a thread",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := openRuntime(runtimeOptions{})
			if err != nil {
				return err
			}
			defer rt.Close()

			thread, err := rt.threads.Get(cmd.Context(), args[0])
			if errors.Is(err, domain.ErrThreadNotFound) {
				return fmt.Errorf("no thread with id %q", args[0])
			}
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(thread)
			}
			printTranscript(out, thread.Messages)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print the thread as JSON")
	return cmd
}
