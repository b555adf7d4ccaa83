package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/olasquare/olasquare/internal/agent"
	"github.com/spf13/cobra"
)

// turnSender runs one user turn. *agent.Dispatcher satisfies it.
type turnSender interface {
	Send(ctx context.Context, threadID, text string) (*agent.TurnResult, error)
}

func newChatCmd() *cobra.Command {
	var (
		threadID string
		persona  string
		plain    bool
	)

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Chat interactively on a thread",
		Long: "Chat interactively on a thread. Type exit or quit to leave; blank lines are ignored.\n" +
			"Earlier messages on the thread are kept, so a chat can be resumed later.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := openRuntime(runtimeOptions{persona: persona, model: true})
			if err != nil {
				return err
			}
			defer rt.Close()

			if plain {
				return runChatLoop(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout(), rt.dispatcher, threadID)
			}

			history, err := rt.threads.History(cmd.Context(), threadID)
			if err != nil {
				return err
			}
			m := newChatModel(cmd.Context(), rt.dispatcher, threadID, rt.dispatcher.Persona().Name, history)
			_, err = tea.NewProgram(m, tea.WithInput(cmd.InOrStdin()), tea.WithOutput(cmd.OutOrStdout())).Run()
			return err
		},
	}

	cmd.Flags().StringVarP(&threadID, "thread", "t", "user1", "thread id to chat on")
	cmd.Flags().StringVar(&persona, "persona", "", "persona to use (support, assistant, research)")
	cmd.Flags().BoolVar(&plain, "plain", false, "line-oriented prompt instead of the full-screen UI")

	return cmd
}

// isExitWord reports whether the input ends the chat.
func isExitWord(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "exit", "quit":
		return true
	}
	return false
}

// runChatLoop reads one user message per line until EOF or an exit word.
// Turn failures are printed and the loop continues.
func runChatLoop(ctx context.Context, in io.Reader, out io.Writer, s turnSender, threadID string) error {
	fmt.Fprintf(out, "Chatting on thread %q. Type 'exit' or 'quit' to leave.\n", threadID)

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for {
		fmt.Fprint(out, "\nYou: ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		if isExitWord(text) {
			fmt.Fprintln(out, "Goodbye!")
			return nil
		}

		turnCtx, cancel := turnContext(ctx)
		result, err := s.Send(turnCtx, threadID, text)
		cancel()
		if err != nil {
			if errors.Is(err, context.Canceled) && ctx.Err() != nil {
				return ctx.Err()
			}
			fmt.Fprintf(out, "Error: %v\n", err)
			continue
		}
		fmt.Fprintf(out, "Assistant: %s\n", result.Response)
	}
}
