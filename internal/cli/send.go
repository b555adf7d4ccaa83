package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os/signal"
	"sort"
	"strings"
	"syscall"

	"github.com/olasquare/olasquare/internal/domain"
	"github.com/spf13/cobra"
)

func newSendCmd() *cobra.Command {
	var (
		threadID   string
		persona    string
		transcript bool
		asJSON     bool
	)

	cmd := &cobra.Command{
		Use:   "send [message]",
		Short: "Run one turn on a thread and print the reply",
		Example: `  olasquare send --thread user001 "What is the weather in Lagos?"
  olasquare send --thread user001 --transcript "What is an API?"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := openRuntime(runtimeOptions{persona: persona, model: true})
			if err != nil {
				return err
			}
			defer rt.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			out := cmd.OutOrStdout()
			result, err := rt.dispatcher.Send(ctx, threadID, strings.Join(args, " "))
			if err != nil {
				return err
			}

			switch {
			case asJSON:
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(result)
			case transcript:
				msgs, err := rt.threads.History(ctx, threadID)
				if err != nil {
					return err
				}
				printTranscript(out, msgs)
			default:
				fmt.Fprintln(out, result.Response)
			}

			if result.Model != "" {
				fmt.Fprintf(cmd.ErrOrStderr(), "\n[model=%s rounds=%d tokens=%d+%d]\n",
					result.Model, result.Rounds, result.Usage.InputTokens, result.Usage.OutputTokens)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&threadID, "thread", "t", "cli", "thread id to append to")
	cmd.Flags().StringVar(&persona, "persona", "", "persona to use (support, assistant, research)")
	cmd.Flags().BoolVar(&transcript, "transcript", false, "print the whole thread after the turn")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the turn result as JSON")

	return cmd
}

// printTranscript writes a thread one message per block.
func printTranscript(w io.Writer, msgs []domain.Message) {
	for i, m := range msgs {
		if i > 0 {
			fmt.Fprintln(w)
		}
		switch {
		case m.HasToolCalls():
			fmt.Fprintln(w, "[assistant] tool calls:")
			for _, tc := range m.ToolCalls {
				fmt.Fprintf(w, "  %s %s(%s)\n", tc.ID, tc.Name, formatArgs(tc.Arguments))
			}
			if m.Content != "" {
				fmt.Fprintln(w, m.Content)
			}
		case m.Role == domain.RoleTool:
			fmt.Fprintf(w, "[tool %s]\n%s\n", m.ToolCallID, m.Content)
		default:
			fmt.Fprintf(w, "[%s]\n%s\n", m.Role, m.Content)
		}
	}
}

// formatArgs renders tool arguments as key=value pairs in key order.
func formatArgs(args map[string]any) string {
	keys := make([]string, 0, len(args))
	for k := range args {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		v, err := json.Marshal(args[k])
		if err != nil {
			v = []byte(fmt.Sprint(args[k]))
		}
		parts = append(parts, k+"="+string(v))
	}
	return strings.Join(parts, ", ")
}

// turnContext is the context for a single interactive turn.
func turnContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, syscall.SIGINT)
}
