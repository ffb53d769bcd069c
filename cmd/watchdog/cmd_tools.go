package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

// toolsCmd lists discovered tools
var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "List the tools available to the agent",
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "PROVIDER\tTOOL\tDESCRIPTION")
		for _, d := range a.session.Registry().ListDescriptors() {
			fmt.Fprintf(w, "%s\t%s\t%s\n", d.Provider, d.Name, d.Description)
		}
		return w.Flush()
	},
}
