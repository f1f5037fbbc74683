// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Courtside Contributors

package main

import (
	"github.com/spf13/cobra"

	"github.com/courtside/courtside/internal/config"
)

// rootOptions is shared by every subcommand.
type rootOptions struct {
	configFile string
	deps       *Deps
}

// NewRootCmd creates the root command for the courtside CLI.
func NewRootCmd() *cobra.Command {
	return newRootCmd(nil)
}

func newRootCmd(deps *Deps) *cobra.Command {
	opts := &rootOptions{deps: deps}

	cmd := &cobra.Command{
		Use:   "courtside",
		Short: "Courtside league session agent",
		Long: `Courtside keeps a volleyball league account signed in, listens for
realtime sanction and payment updates, and shows them as local
notifications.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&opts.configFile, "config", "", "config file path (default: XDG config dir)")
	config.RegisterFlags(cmd.PersistentFlags())

	cmd.AddCommand(newAgentCmd(opts))
	cmd.AddCommand(newLoginCmd(opts))
	cmd.AddCommand(newLogoutCmd(opts))
	cmd.AddCommand(newStatusCmd(opts))
	cmd.AddCommand(newConfigCmd(opts))

	return cmd
}
