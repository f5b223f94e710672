package cmd

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/yaoapp/relay/definition"
)

var checkDefs string

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Validate an operation definition file",
	RunE: func(cmd *cobra.Command, args []string) error {
		set, err := definition.Load(checkDefs)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		for _, name := range set.Names() {
			def := set[name]
			fmt.Fprintf(out, "%s  start=%s resolve=%s reject=%s\n",
				color.GreenString("✓ %s", name), def.Start, describe(def.Resolve), describe(def.Reject))
		}
		return nil
	},
}

func describe(m definition.Matcher) string {
	switch {
	case m.IsZero():
		return "-"
	case m.When == "":
		return m.Type
	case m.Type == "":
		return fmt.Sprintf("when(%s)", m.When)
	}
	return fmt.Sprintf("%s|when(%s)", m.Type, m.When)
}

func init() {
	checkCmd.Flags().StringVarP(&checkDefs, "defs", "d", "operations.yml", "operation definition file")
}
