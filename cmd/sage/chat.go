// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sage Contributors

package main

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/sageway/sage/internal/tui"
	sageerr "github.com/sageway/sage/pkg/errors"
)

func newChatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "chat <domain>",
		Short: "Chat interactively with a domain",
		Long:  "Start an interactive terminal session that routes every message through the domain's persona pipeline.",
		Args:  cobra.ExactArgs(1),
		RunE:  runChat,
	}
}

func runChat(cmd *cobra.Command, args []string) error {
	a, err := buildApp()
	if err != nil {
		return err
	}
	defer a.Close()

	domain := args[0]
	if _, err := a.cfg.Domain(domain); err != nil {
		return err
	}

	program := tea.NewProgram(tui.New(a.pipeline, domain), tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		return sageerr.Wrapf(err, sageerr.CodeCLISetupFailure, "running chat session")
	}
	return nil
}
