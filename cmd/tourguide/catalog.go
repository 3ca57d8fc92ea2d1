package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/aretw0/tourguide/internal/presentation/graph"
	"github.com/aretw0/tourguide/internal/presentation/tui"
	"github.com/aretw0/tourguide/pkg/adapters/loam"
	"github.com/spf13/cobra"
)

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Browse authored tutorials",
	Long:  `Lists and renders the Markdown tutorials of the catalog directory.`,
}

var catalogListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List the tutorials of the catalog",
	RunE: func(cmd *cobra.Command, args []string) error {
		catalog, err := openCatalog(cmd)
		if err != nil {
			return err
		}
		tutorials, err := catalog.List(cmd.Context())
		if err != nil {
			return err
		}
		if len(tutorials) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No tutorials found.")
			return nil
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tTITLE\tSOFTWARE\tSTEPS")
		for _, t := range tutorials {
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\n", t.ID, t.Title, t.Software, len(t.Steps))
		}
		return w.Flush()
	},
}

var catalogShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Render one tutorial",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		catalog, err := openCatalog(cmd)
		if err != nil {
			return err
		}
		t, err := catalog.Get(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		format, _ := cmd.Flags().GetString("format")
		switch format {
		case "md":
			rendered, err := tui.NewRenderer()(tui.TutorialMarkdown(t, -1))
			if err != nil {
				return err
			}
			fmt.Fprint(out, rendered)
		case "mermaid":
			fmt.Fprint(out, graph.GenerateMermaid(t, nil))
		case "json":
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(t)
		default:
			return fmt.Errorf("unknown format %q (md, mermaid, json)", format)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(catalogCmd)
	catalogCmd.AddCommand(catalogListCmd)
	catalogCmd.AddCommand(catalogShowCmd)

	catalogCmd.PersistentFlags().String("dir", "", "Catalog directory (defaults to catalog.dir of the configuration)")
	catalogShowCmd.Flags().String("format", "md", "Output format: md, mermaid or json")
}

func openCatalog(cmd *cobra.Command) (*loam.Catalog, error) {
	dir, _ := cmd.Flags().GetString("dir")
	if dir == "" {
		cfg, _, err := loadConfig(cmd)
		if err != nil {
			return nil, err
		}
		dir = cfg.Catalog.Dir
	}
	if dir == "" {
		return nil, errors.New("no catalog directory: set catalog.dir or pass --dir")
	}
	return loam.Open(dir)
}
