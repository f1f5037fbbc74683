// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Courtside Contributors

package main

import (
	"github.com/spf13/cobra"

	"github.com/courtside/courtside/pkg/errutil"
)

func newStatusCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the stored session status",
		Long: `Restore the stored session, re-validate it with the league API and
show who is signed in.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd, opts)
			if err != nil {
				return err
			}
			if err := a.auth.Initialize(cmd.Context()); err != nil {
				errutil.LogWarn(a.logger, "could not restore session", err)
			}
			printUser(cmd.OutOrStdout(), a.auth.CurrentUser())
			return nil
		},
	}
}
