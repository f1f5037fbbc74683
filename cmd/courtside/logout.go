// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Courtside Contributors

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/courtside/courtside/pkg/errutil"
)

func newLogoutCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and clear stored credentials",
		Long: `Sign out of the league API, unregister this device from push
notifications and clear stored credentials. Server-side failures are
logged; local credentials are always cleared.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd, opts)
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			if err := a.auth.Initialize(ctx); err != nil {
				errutil.LogWarn(a.logger, "could not restore session", err)
			}
			if a.auth.IsAuthenticated() {
				if err := a.newNotifier(cmd.OutOrStdout()).Unregister(ctx); err != nil {
					errutil.LogWarn(a.logger, "device unregistration failed", err)
				}
			}
			if err := a.auth.Logout(ctx); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "signed out")
			return nil
		},
	}
}
