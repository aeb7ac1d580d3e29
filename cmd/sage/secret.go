// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sage Contributors

package main

import (
	"fmt"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/sageway/sage/internal/secrets"
	sageerr "github.com/sageway/sage/pkg/errors"
)

func newSecretCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "secret",
		Short: "Manage provider API keys in the OS keyring",
	}

	cmd.AddCommand(
		newSecretSetCmd(),
		newSecretDeleteCmd(),
	)

	return cmd
}

func newSecretSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <provider>",
		Short: "Store a provider API key (prompts on stdin)",
		Args:  cobra.ExactArgs(1),
		RunE:  runSecretSet,
	}
}

func newSecretDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <provider>",
		Short: "Delete a stored provider API key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := secrets.DeleteAPIKey(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted api key for %s\n", args[0])
			return nil
		},
	}
}

func runSecretSet(cmd *cobra.Command, args []string) error {
	fmt.Fprintf(cmd.OutOrStdout(), "API key for %s: ", args[0])
	raw, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(cmd.OutOrStdout())
	if err != nil {
		return sageerr.Wrapf(err, sageerr.CodeCLIInputInvalid, "reading api key")
	}

	if err := secrets.SetAPIKey(args[0], string(raw)); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "stored api key for %s\n", args[0])
	return nil
}
