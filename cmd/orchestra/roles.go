package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
)

func newRolesCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "roles",
		Short: "List configured roles",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.load()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(cfg.Agents) == 0 {
				fmt.Fprintln(out, "No agents configured.")
				return nil
			}

			roles := make([]string, 0, len(cfg.Agents))
			for role := range cfg.Agents {
				roles = append(roles, role)
			}
			sort.Strings(roles)

			for _, role := range roles {
				ac := cfg.Agents[role]
				model := ac.Model
				if model == "" {
					model = "default"
				}
				fmt.Fprintf(out, "%-20s %-10s %s\n", role, ac.Provider, model)
			}
			return nil
		},
	}
}
