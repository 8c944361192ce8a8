package main

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"modeladmin/internal/form"
)

// formCmd prints the input descriptors of one entity.
func formCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "form <entity>",
		Short:   "Print the input descriptors of an entity as JSON",
		Args:    cobra.ExactArgs(1),
		Example: `  modeladmin form order`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			_, descriptors, err := a.engine.Describe(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd, descriptors)
		},
	}
}

// columnsCmd prints the list columns of one entity.
func columnsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "columns <entity>",
		Short: "Print the list columns of an entity as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			m, err := a.engine.Introspector().Model(args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd, form.DescribeColumns(m))
		},
	}
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
