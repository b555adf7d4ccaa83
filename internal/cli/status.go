package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/olasquare/olasquare/internal/config"
	"github.com/olasquare/olasquare/internal/version"
	"github.com/spf13/cobra"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show olasquare status and configuration summary",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "olasquare %s (commit %s)\n\n", version.Version, version.Commit)

			fmt.Fprintf(out, "Config:  %s", paths.Config)
			if _, err := os.Stat(paths.Config); os.IsNotExist(err) {
				fmt.Fprint(out, " (not found, using defaults)")
			}
			fmt.Fprintln(out)
			fmt.Fprintf(out, "Data:    %s\n\n", paths.Data)

			fmt.Fprintf(out, "Model:   %s/%s", cfg.Model.Provider, cfg.Model.Name)
			if cfg.Model.APIKey == "" && cfg.Model.Provider != "ollama" {
				fmt.Fprint(out, " (no API key)")
			}
			fmt.Fprintln(out)
			for _, fb := range cfg.Model.Fallbacks {
				fmt.Fprintf(out, "         fallback %s/%s\n", fb.Provider, fb.Name)
			}
			fmt.Fprintf(out, "Agent:   persona=%s maxToolRounds=%d parallelTools=%v\n",
				cfg.Agent.Persona, cfg.Agent.MaxToolRounds, cfg.Agent.ParallelTools)

			rt, err := openRuntime(runtimeOptions{})
			if err != nil {
				fmt.Fprintf(out, "Store:   error: %v\n", err)
			} else {
				defer rt.Close()
				threads, _ := rt.threads.List(cmd.Context())
				fmt.Fprintf(out, "Store:   driver=%s threads=%d", cfg.Store.Driver, len(threads))
				if rt.knowledge != nil {
					n, _ := rt.knowledge.Count(cmd.Context())
					fmt.Fprintf(out, " knowledge=%d path=%s", n, paths.Database(cfg.Store))
				}
				fmt.Fprintln(out)
				fmt.Fprintf(out, "Tools:   %s\n", strings.Join(rt.tools.Names(), ", "))
				fmt.Fprintf(out, "Hooks:   %s\n", orNone(strings.Join(rt.hooks.Events(), ", ")))
			}

			fmt.Fprintf(out, "Gateway: port=%d bind=%s auth=%s\n",
				cfg.Gateway.Port, cfg.Gateway.Bind, cfg.Gateway.Auth.Mode)
			if irc := cfg.Channels.IRC; irc != nil {
				fmt.Fprintf(out, "IRC:     server=%s nick=%s channels=%s tls=%v scope=%s\n",
					irc.Server, irc.Nick, strings.Join(irc.Channels, ","), irc.UseTLS, cfg.Session.Scope)
			} else {
				fmt.Fprintln(out, "IRC:     (not configured)")
			}

			if issues := config.Validate(&cfg); len(issues) > 0 {
				fmt.Fprintf(out, "\nValidation issues (%d):\n", len(issues))
				for _, issue := range issues {
					fmt.Fprintf(out, "  - %s\n", issue)
				}
			}
			return nil
		},
	}
}

func orNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}
