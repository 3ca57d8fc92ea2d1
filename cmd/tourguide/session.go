package main

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aretw0/tourguide/internal/cli"
	"github.com/aretw0/tourguide/internal/presentation/tui"
	"github.com/aretw0/tourguide/pkg/domain"
	"github.com/spf13/cobra"
)

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Manage persisted tutorial sessions",
	Long:  `List, inspect, and reset the tutorial sessions kept in the configured store.`,
}

var sessionListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List the tabs with a persisted session",
	RunE: func(cmd *cobra.Command, args []string) error {
		stack, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer stack.Close()

		tabs, err := stack.Sessions.List(cmd.Context())
		if err != nil {
			return fmt.Errorf("error listing sessions: %w", err)
		}
		out := cmd.OutOrStdout()
		if len(tabs) == 0 {
			fmt.Fprintln(out, "No active sessions found.")
			return nil
		}
		fmt.Fprintln(out, "Active Sessions:")
		for _, tab := range tabs {
			fmt.Fprintln(out, "- "+tab)
		}
		return nil
	},
}

var sessionShowCmd = &cobra.Command{
	Use:     "show <tab-id>",
	Aliases: []string{"inspect"},
	Short:   "Show the session of a tab",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		stack, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer stack.Close()

		s, err := stack.Sessions.Load(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("error loading session '%s': %w", args[0], err)
		}

		out := cmd.OutOrStdout()
		format, _ := cmd.Flags().GetString("format")
		switch format {
		case "json":
			data, err := json.MarshalIndent(s.Record(), "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(out, string(data))
		case "md":
			md := tui.TutorialMarkdown(domain.Tutorial{ID: args[0], Steps: s.Steps}, s.CurrentIndex)
			rendered, err := tui.NewRenderer()(md)
			if err != nil {
				return err
			}
			fmt.Fprint(out, rendered)
		default:
			return fmt.Errorf("unknown format %q (json, md)", format)
		}
		return nil
	},
}

var sessionResetCmd = &cobra.Command{
	Use:     "reset [tab-id]...",
	Aliases: []string{"rm"},
	Short:   "Remove persisted sessions",
	RunE: func(cmd *cobra.Command, args []string) error {
		all, _ := cmd.Flags().GetBool("all")
		if !all && len(args) == 0 {
			return errors.New("pass at least one tab id, or --all")
		}

		stack, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer stack.Close()

		tabs := args
		if all {
			if tabs, err = stack.Sessions.List(cmd.Context()); err != nil {
				return fmt.Errorf("error listing sessions: %w", err)
			}
		}

		var errs []error
		for _, tab := range tabs {
			if err := stack.Sessions.Delete(cmd.Context(), tab); err != nil {
				errs = append(errs, fmt.Errorf("error removing '%s': %w", tab, err))
				continue
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed session '%s'\n", tab)
		}
		return errors.Join(errs...)
	},
}

func init() {
	rootCmd.AddCommand(sessionCmd)
	sessionCmd.AddCommand(sessionListCmd)
	sessionCmd.AddCommand(sessionShowCmd)
	sessionCmd.AddCommand(sessionResetCmd)

	sessionShowCmd.Flags().String("format", "json", "Output format: json or md")
	sessionResetCmd.Flags().Bool("all", false, "Remove every session")
}

func openStore(cmd *cobra.Command) (*cli.Stack, error) {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	return cli.StoreOnly(cfg, logger)
}
