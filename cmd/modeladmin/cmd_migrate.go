package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// migrateCmd creates missing tables for the loaded definitions and exits.
func migrateCmd() *cobra.Command {
	var save bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create missing tables for the loaded definitions",
		Long: `Load definitions, create every missing entity and join table, then exit.
Existing tables are never altered.

With --save the loaded definitions are also written to the definition tables
so that a server started with metadata.source=db picks them up.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			if save {
				if err := a.store.SaveDefinitions(cmd.Context(), a.registry.AllEntities(), a.registry.AllRelations()); err != nil {
					return err
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d entities ready\n", len(a.registry.AllEntities()))
			return nil
		},
	}

	cmd.Flags().BoolVar(&save, "save", false, "Write the loaded definitions to the definition tables")
	return cmd
}
