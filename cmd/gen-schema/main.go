// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Courtside Contributors

// Command gen-schema writes the JSON Schema for courtside config files.
// With --check it only reports whether the file on disk is current.
package main

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/samber/oops"
	"github.com/spf13/pflag"

	"github.com/courtside/courtside/internal/config"
)

const defaultOutput = "schemas/config.schema.json"

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "gen-schema:", err)
		os.Exit(1)
	}
}

func run(args []string, stdout io.Writer) error {
	flags := pflag.NewFlagSet("gen-schema", pflag.ContinueOnError)
	output := flags.StringP("output", "o", defaultOutput, "schema file to write")
	check := flags.Bool("check", false, "fail when the schema file is stale instead of writing it")
	if err := flags.Parse(args); err != nil {
		return err
	}

	schema, err := config.GenerateSchema()
	if err != nil {
		return err
	}
	schema = append(schema, '\n')

	if *check {
		current, err := os.ReadFile(*output)
		if err != nil {
			return oops.With("path", *output).Wrapf(err, "read schema")
		}
		if !bytes.Equal(current, schema) {
			return oops.With("path", *output).Errorf("%s is out of date, run gen-schema", *output)
		}
		fmt.Fprintf(stdout, "%s is up to date\n", *output)
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(*output), 0o750); err != nil {
		return oops.With("path", *output).Wrapf(err, "create schema directory")
	}
	if err := os.WriteFile(*output, schema, 0o600); err != nil {
		return oops.With("path", *output).Wrapf(err, "write schema")
	}
	fmt.Fprintf(stdout, "wrote %s\n", *output)
	return nil
}
