package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/olasquare/olasquare/internal/agent"
	"github.com/spf13/cobra"
)

func newToolsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tools",
		Short: "Inspect the tools available to the assistant",
	}
	cmd.AddCommand(newToolsListCmd())
	return cmd
}

func newToolsListCmd() *cobra.Command {
	var persona string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List registered tools and whether the persona offers them",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if persona == "" {
				persona = cfg.Agent.Persona
			}
			p, err := agent.LookupPersona(persona)
			if err != nil {
				return err
			}

			rt, err := openRuntime(runtimeOptions{})
			if err != nil {
				return err
			}
			defer rt.Close()

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Persona: %s\n\n", p.Name)

			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "TOOL\tOFFERED\tDESCRIPTION")
			for _, def := range rt.tools.Definitions() {
				offered := "no"
				if p.Allows(def.Name) {
					offered = "yes"
				}
				desc, _, _ := strings.Cut(def.Description, "\n")
				fmt.Fprintf(tw, "%s\t%s\t%s\n", def.Name, offered, desc)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().StringVar(&persona, "persona", "", "persona to check (default agent.persona)")
	return cmd
}
