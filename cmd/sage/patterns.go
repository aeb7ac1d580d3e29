// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sage Contributors

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/sageway/sage/internal/pattern"
	sageerr "github.com/sageway/sage/pkg/errors"
)

func newPatternsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "patterns",
		Short: "Manage a domain's knowledge patterns",
	}

	cmd.AddCommand(
		newPatternsListCmd(),
		newPatternsShowCmd(),
		newPatternsAddCmd(),
		newPatternsDeleteCmd(),
		newPatternsExportCmd(),
		newPatternsImportCmd(),
		newPatternsReindexCmd(),
	)

	return cmd
}

func newPatternsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list <domain>",
		Short: "List patterns in a domain",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp()
			if err != nil {
				return err
			}
			defer a.Close()

			patterns, err := a.patterns.List(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, p := range patterns {
				fmt.Fprintf(out, "%-20s %-16s %.2f  %s\n", p.ID, p.Category, p.Confidence, p.Name)
			}
			if len(patterns) == 0 {
				fmt.Fprintln(out, "no patterns")
			}
			return nil
		},
	}
}

func newPatternsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <domain> <id>",
		Short: "Show a pattern as YAML",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp()
			if err != nil {
				return err
			}
			defer a.Close()

			p, err := a.patterns.Get(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}

			raw, err := yaml.Marshal(p)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(raw)
			return err
		},
	}
}

func newPatternsAddCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add <domain>",
		Short: "Add a pattern",
		Args:  cobra.ExactArgs(1),
		RunE:  runPatternsAdd,
	}

	cmd.Flags().String("name", "", "pattern name")
	cmd.Flags().String("category", string(pattern.CategoryProcedure), "pattern category")
	cmd.Flags().String("problem", "", "problem statement")
	cmd.Flags().String("solution", "", "solution text")
	cmd.Flags().Float64("confidence", 0.5, "confidence in [0,1]")
	cmd.Flags().StringSlice("tags", nil, "tags")

	return cmd
}

func runPatternsAdd(cmd *cobra.Command, args []string) error {
	a, err := buildApp()
	if err != nil {
		return err
	}
	defer a.Close()

	name, _ := cmd.Flags().GetString("name")
	category, _ := cmd.Flags().GetString("category")
	problem, _ := cmd.Flags().GetString("problem")
	solution, _ := cmd.Flags().GetString("solution")
	confidence, _ := cmd.Flags().GetFloat64("confidence")
	tags, _ := cmd.Flags().GetStringSlice("tags")

	p, err := a.patterns.Create(cmd.Context(), args[0], &pattern.Pattern{
		Name:       name,
		Category:   pattern.Category(category),
		Problem:    problem,
		Solution:   solution,
		Confidence: confidence,
		Tags:       tags,
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "created %s\n", p.ID)
	return nil
}

func newPatternsDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <domain> <id>",
		Short: "Delete a pattern",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp()
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.patterns.Delete(cmd.Context(), args[0], args[1]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[1])
			return nil
		},
	}
}

func newPatternsExportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "export <domain>",
		Short: "Export all patterns in a domain as YAML",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp()
			if err != nil {
				return err
			}
			defer a.Close()

			patterns, err := a.patterns.List(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			raw, err := yaml.Marshal(patterns)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(raw)
			return err
		},
	}
}

func newPatternsImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <domain> <file>",
		Short: "Import patterns from a YAML file",
		Long:  "Read a YAML list of patterns (as produced by export) and create them in the domain. Patterns whose IDs already exist are skipped.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp()
			if err != nil {
				return err
			}
			defer a.Close()

			raw, err := os.ReadFile(args[1])
			if err != nil {
				return err
			}
			var patterns []*pattern.Pattern
			if err := yaml.Unmarshal(raw, &patterns); err != nil {
				return sageerr.Wrapf(err, sageerr.CodeCLIInputInvalid, "parsing %s", args[1])
			}

			out := cmd.OutOrStdout()
			created, skipped := 0, 0
			for _, p := range patterns {
				imported, err := a.patterns.Create(cmd.Context(), args[0], p)
				if err != nil {
					if sageerr.IsConflict(err) {
						skipped++
						continue
					}
					return err
				}
				created++
				fmt.Fprintf(out, "created %s\n", imported.ID)
			}
			fmt.Fprintf(out, "%d created, %d skipped\n", created, skipped)
			return nil
		},
	}
}

func newPatternsReindexCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reindex <domain>",
		Short: "Regenerate the domain's pattern embeddings",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp()
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.patterns.Reindex(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "reindexed")
			return nil
		},
	}
}
