package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/cwbudde/saddlegrid/internal/payoff"
)

var problemsCmd = &cobra.Command{
	Use:   "problems",
	Short: "List the built-in problems",
	RunE: func(cmd *cobra.Command, args []string) error {
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tDIMS\tOUTER\tDESCRIPTION")
		for _, name := range payoff.Names() {
			p, err := payoff.Lookup(name)
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "%s\t%dx%d\t%s %s\t%s\n",
				p.Name, p.Dims[0], p.Dims[1], p.Outer, p.OuterArg, p.Description)
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(problemsCmd)
}
