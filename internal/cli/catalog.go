package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/rajiknows/rig/provider"
)

// NewModelsCmd creates the models command.
func NewModelsCmd() *cobra.Command {
	var (
		providerName string
		jsonOutput   bool
	)

	cmd := &cobra.Command{
		Use:   "models",
		Short: "List known models",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			models := provider.ListModels(providerName)
			out := cmd.OutOrStdout()
			if jsonOutput {
				return writeJSON(out, models)
			}
			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "PROVIDER\tID\tALIASES\tTOOLS\tREASONING")
			for _, m := range models {
				fmt.Fprintf(w, "%s\t%s\t%s\t%t\t%t\n", m.Provider, m.ID, strings.Join(m.Aliases, ","), m.SupportsTools, m.SupportsReasoning)
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVarP(&providerName, "provider", "p", "", "only list models of this provider")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")

	return cmd
}

// NewToolsCmd creates the tools command.
func NewToolsCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "tools",
		Short: "List the tools available to the agent",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			defs := getApp(cmd).Container().Tools().Definitions()
			out := cmd.OutOrStdout()
			if jsonOutput {
				return writeJSON(out, defs)
			}
			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tDESCRIPTION")
			for _, d := range defs {
				fmt.Fprintf(w, "%s\t%s\n", d.Name, d.Description)
			}
			return w.Flush()
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")

	return cmd
}
