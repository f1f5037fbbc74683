// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Courtside Contributors

package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/courtside/courtside/internal/auth"
)

func newLoginCmd(opts *rootOptions) *cobra.Command {
	creds := &credentialFlags{}

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and store credentials",
		Long: `Sign in to the league API with --email and the password from the
environment, and store the session for the agent.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd, opts)
			if err != nil {
				return err
			}
			password, err := creds.password(a.deps)
			if err != nil {
				return err
			}
			if err := a.auth.Login(cmd.Context(), creds.email, password); err != nil {
				return err
			}
			printUser(cmd.OutOrStdout(), a.auth.CurrentUser())
			return nil
		},
	}
	creds.register(cmd)
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func printUser(w io.Writer, u *auth.User) {
	if u == nil {
		fmt.Fprintln(w, "not signed in")
		return
	}
	roles := []string{string(u.Type)}
	for _, r := range u.Roles {
		if r != u.Type {
			roles = append(roles, string(r))
		}
	}
	fmt.Fprintf(w, "signed in as %s <%s> (id %s)\n", u.Name, u.Email, u.ID)
	fmt.Fprintf(w, "roles: %s\n", strings.Join(roles, ", "))
}
