// Copyright 2026 The Breakdown Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/pipeline-foundation/breakdown/cmd/breakdown/cli"
	"github.com/pipeline-foundation/breakdown/lib/sealed"
)

func authCommand() *cli.Command {
	return &cli.Command{
		Name:    "auth",
		Summary: "Manage the sealed tracker credentials",
		Subcommands: []*cli.Command{
			authLoginCommand(),
			authStatusCommand(),
			authLogoutCommand(),
		},
	}
}

func authLoginCommand() *cli.Command {
	var opts appOptions
	var site, scriptName, scriptKey string
	var recipients []string
	return &cli.Command{
		Name:    "login",
		Summary: "Seal script credentials for the tracking site",
		Description: `Encrypt the script credentials with age and store them in the
per-user sealed bundle. Without --recipient a fresh identity is
generated and written next to the bundle; point BREAKDOWN_IDENTITY
at it so later commands can decrypt.

The script key is prompted for when not passed on the command line.`,
		Usage: "breakdown auth login --site <url> --script-name <name> [flags]",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("auth login", pflag.ContinueOnError)
			opts.bind(flagSet)
			flagSet.StringVar(&site, "site", "", "tracking site root URL")
			flagSet.StringVar(&scriptName, "script-name", "", "script name registered with the site")
			flagSet.StringVar(&scriptKey, "script-key", "", "script key (prompted when omitted)")
			flagSet.StringArrayVar(&recipients, "recipient", nil, "age recipient to seal to (repeatable)")
			return flagSet
		},
		Examples: []cli.Example{
			{
				Description: "Seal credentials, generating a local identity",
				Command:     "breakdown auth login --site https://studio.example.com --script-name breakdown",
			},
		},
		Run: func(args []string) error {
			return runAuthLogin(opts, site, scriptName, scriptKey, recipients)
		},
	}
}

func runAuthLogin(opts appOptions, site, scriptName, scriptKey string, recipients []string) error {
	app, err := newApp(opts)
	if err != nil {
		return err
	}

	if site == "" {
		site = app.config.Tracker.Site
	}
	if site == "" {
		return cli.Usagef("--site is required (or set tracker.site in the config)")
	}
	if scriptName == "" {
		return cli.Usagef("--script-name is required")
	}
	if scriptKey == "" {
		fmt.Fprintf(os.Stderr, "script key for %s: ", scriptName)
		keyBytes, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return fmt.Errorf("reading script key: %w", err)
		}
		scriptKey = string(keyBytes)
	}

	bundle := sealed.Bundle{Site: site, ScriptName: scriptName, ScriptKey: scriptKey}
	if err := bundle.Validate(); err != nil {
		return err
	}

	bundlePath := app.config.Tracker.CredentialsFile
	if bundlePath == "" {
		bundlePath, err = sealed.DefaultBundlePath()
		if err != nil {
			return err
		}
	}

	if len(recipients) == 0 {
		identity, recipient, err := sealed.GenerateIdentity()
		if err != nil {
			return err
		}
		identityPath := os.Getenv(sealed.EnvIdentity)
		if identityPath == "" {
			identityPath = filepath.Join(filepath.Dir(bundlePath), "identity.key")
		}
		if err := os.MkdirAll(filepath.Dir(identityPath), 0o700); err != nil {
			return fmt.Errorf("creating identity directory: %w", err)
		}
		if err := os.WriteFile(identityPath, []byte(identity+"\n"), 0o600); err != nil {
			return fmt.Errorf("writing identity: %w", err)
		}
		recipients = []string{recipient}
		fmt.Printf("identity written to %s\n", identityPath)
		if os.Getenv(sealed.EnvIdentity) == "" {
			fmt.Printf("export %s=%s\n", sealed.EnvIdentity, identityPath)
		}
	}

	if err := sealed.SaveBundle(bundlePath, bundle, recipients); err != nil {
		return err
	}
	fmt.Printf("credentials for %s sealed to %s\n", site, bundlePath)
	return nil
}

func authStatusCommand() *cli.Command {
	var opts appOptions
	return &cli.Command{
		Name:    "status",
		Summary: "Report where credentials come from",
		Usage:   "breakdown auth status [flags]",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("auth status", pflag.ContinueOnError)
			opts.bind(flagSet)
			return flagSet
		},
		Run: func(args []string) error {
			app, err := newApp(opts)
			if err != nil {
				return err
			}

			source := "sealed bundle"
			if _, ok := sealed.FromEnvironment(); ok {
				source = "environment"
			}

			bundle, err := sealed.Resolve(app.config.Tracker.CredentialsFile)
			if errors.Is(err, sealed.ErrNoCredentials) {
				fmt.Println("no credentials configured")
				return &cli.ExitError{Code: 1}
			}
			if err != nil {
				return err
			}

			if opts.jsonOutput {
				return cli.WriteJSON(map[string]string{
					"site":        bundle.Site,
					"script_name": bundle.ScriptName,
					"source":      source,
				})
			}
			fmt.Printf("site:        %s\n", bundle.Site)
			fmt.Printf("script name: %s\n", bundle.ScriptName)
			fmt.Printf("source:      %s\n", source)
			return nil
		},
	}
}

func authLogoutCommand() *cli.Command {
	var opts appOptions
	return &cli.Command{
		Name:    "logout",
		Summary: "Delete the sealed credential bundle",
		Usage:   "breakdown auth logout [flags]",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("auth logout", pflag.ContinueOnError)
			opts.bind(flagSet)
			return flagSet
		},
		Run: func(args []string) error {
			app, err := newApp(opts)
			if err != nil {
				return err
			}

			bundlePath := app.config.Tracker.CredentialsFile
			if bundlePath == "" {
				bundlePath, err = sealed.DefaultBundlePath()
				if err != nil {
					return err
				}
			}
			if err := os.Remove(bundlePath); err != nil {
				if os.IsNotExist(err) {
					fmt.Println("no sealed credentials to remove")
					return nil
				}
				return err
			}
			fmt.Printf("removed %s\n", bundlePath)
			return nil
		},
	}
}
