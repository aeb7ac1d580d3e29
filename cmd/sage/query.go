// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sage Contributors

package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sageway/sage/internal/pipeline"
)

func newQueryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "query <domain> <text...>",
		Short: "Resolve a single query",
		Long:  "Run one query through the pipeline for a domain and print the response.",
		Args:  cobra.MinimumNArgs(2),
		RunE:  runQuery,
	}

	cmd.Flags().Bool("trace", false, "print the stage trace")
	cmd.Flags().Bool("skip-patterns", false, "disable the pattern-override check")
	cmd.Flags().Bool("thinking", false, "request visible reasoning")

	return cmd
}

func runQuery(cmd *cobra.Command, args []string) error {
	a, err := buildApp()
	if err != nil {
		return err
	}
	defer a.Close()

	skipPatterns, _ := cmd.Flags().GetBool("skip-patterns")
	thinking, _ := cmd.Flags().GetBool("thinking")

	resp, err := a.pipeline.Execute(cmd.Context(), pipeline.Request{
		Domain:       args[0],
		Query:        strings.Join(args[1:], " "),
		SkipPatterns: skipPatterns,
		ShowThinking: thinking,
	})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, resp.Response)
	fmt.Fprintf(out, "\n[%s via %s, confidence %.2f, %dms]\n",
		resp.Persona, resp.Source, resp.Confidence, resp.ProcessingTimeMS)

	if showTrace, _ := cmd.Flags().GetBool("trace"); showTrace {
		for _, entry := range resp.Trace {
			marker := " "
			if entry.Error {
				marker = "!"
			}
			fmt.Fprintf(out, "%s %-22s %s\n", marker, entry.Stage, entry.Note)
		}
	}
	return nil
}
