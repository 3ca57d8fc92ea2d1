package main

import (
	"github.com/aretw0/tourguide/internal/cli"
	"github.com/aretw0/tourguide/internal/presentation/tui"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the browser and the HTTP panel",
	Long: `Launches a Chromium instance driven by playwright and serves the panel API over HTTP.
Tabs are opened with POST /tabs and tutorials started with POST /tabs/{tab}/tutorial.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		flags := cmd.Flags()
		if flags.Changed("addr") {
			cfg.Server.Addr, _ = flags.GetString("addr")
		}
		if flags.Changed("headless") {
			cfg.Browser.Headless, _ = flags.GetBool("headless")
		}
		if flags.Changed("url") {
			cfg.Browser.StartURL, _ = flags.GetString("url")
		}
		if flags.Changed("catalog") {
			cfg.Catalog.Dir, _ = flags.GetString("catalog")
		}
		if noBrowser, _ := flags.GetBool("no-browser"); noBrowser {
			cfg.Browser.Enabled = false
		}

		stack, err := cli.Build(cfg, logger)
		if err != nil {
			return err
		}
		defer stack.Close()

		tui.PrintBanner(cmd.ErrOrStderr())
		cli.PrintSystemMessage(cmd.ErrOrStderr(), "Panel API on %s", cfg.Server.Addr)

		sigCtx := cli.NewSignalContext(cmd.Context())
		defer sigCtx.Cancel()

		err = cli.Serve(sigCtx, stack)
		if sig := sigCtx.Signal(); sig != nil {
			cli.PrintSystemMessage(cmd.ErrOrStderr(), "Stopped (%v)", sig)
		}
		return err
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().String("addr", ":8080", "Address of the panel API")
	runCmd.Flags().Bool("headless", true, "Run the browser without a window")
	runCmd.Flags().Bool("no-browser", false, "Serve the panel only, for tabs driven by another process over NATS")
	runCmd.Flags().String("url", "", "Open a first tab on this URL")
	runCmd.Flags().String("catalog", "", "Directory of authored tutorials")
}
