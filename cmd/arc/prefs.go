package main

import (
	"bufio"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/arcreactor/workspace/internal/store"
)

func newThemeCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:       "theme [light|dark]",
		Short:     "Show or set the color theme",
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{string(store.ThemeLight), string(store.ThemeDark)},
		RunE: func(cmd *cobra.Command, args []string) error {
			current, _ := store.ParseTheme(a.prefs.Theme())
			ui := store.NewUIStore(current, a.prefs)

			if len(args) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), ui.Snapshot().Theme)
				return nil
			}
			theme, ok := store.ParseTheme(args[0])
			if !ok {
				return fmt.Errorf("unknown theme %q, want light or dark", args[0])
			}
			if err := ui.SetTheme(theme); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "theme set to %s\n", theme)
			return nil
		},
	}
}

func newTokenCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Manage the stored API token",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "set [token]",
		Short: "Store the API token, read from stdin when omitted",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var token string
			if len(args) == 1 {
				token = args[0]
			} else {
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && line == "" {
					return fmt.Errorf("read token: %w", err)
				}
				token = line
			}
			token = strings.TrimSpace(token)
			if token == "" {
				return errors.New("token is empty")
			}
			if err := a.prefs.SetToken(token); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "token saved to %s\n", a.prefs.Path())
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Remove the stored API token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.prefs.SetToken("")
		},
	})
	return cmd
}
