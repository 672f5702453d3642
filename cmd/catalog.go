package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/huanfeng/entwine-cli/internal/i18n"
	"github.com/huanfeng/entwine-cli/pkg/utils"
)

var (
	catalogOffline bool
	catalogIcons   bool
	catalogSearch  string
)

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: i18n.T("cmd.catalog.short"),
	Long:  i18n.T("cmd.catalog.long"),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := getApp()
		if err != nil {
			return err
		}
		ctx := context.Background()
		catalog, err := a.FetchMods(ctx, catalogOffline)
		if err != nil {
			return err
		}

		if catalogSearch != "" {
			query := strings.ToLower(catalogSearch)
			filtered := catalog[:0]
			for _, m := range catalog {
				if strings.Contains(strings.ToLower(m.Name), query) || strings.Contains(strings.ToLower(m.Description), query) {
					filtered = append(filtered, m)
				}
			}
			catalog = filtered
		}

		if catalogIcons {
			var out io.Writer = os.Stderr
			if jsonOutput {
				out = nil
			}
			bar := utils.NewProgressBar(out, int64(len(catalog)), i18n.T("cmd.catalog.icons"))
			for _, m := range catalog {
				if _, err := a.ModIcon(ctx, m); err != nil {
					utils.Warn("Icon for %s unavailable: %v", m.ID, err)
				}
				bar.Increment()
			}
			bar.Finish()
		}

		if jsonOutput {
			return printJSON(catalog)
		}
		if len(catalog) == 0 {
			fmt.Println(i18n.T("cmd.catalog.empty"))
			return nil
		}
		fmt.Printf(i18n.T("cmd.catalog.count")+"\n\n", len(catalog))
		for _, m := range catalog {
			fmt.Printf("📦 %s  %s  (%s)\n", m.Name, m.Version, m.ID)
			fmt.Printf("   %s · %s · %s\n", orDash(m.Author), m.FileName, utils.FormatBytes(int64(m.FileSize)))
			if m.Description != "" {
				fmt.Printf("   %s\n", m.Description)
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(catalogCmd)

	catalogCmd.Flags().BoolVar(&catalogOffline, "offline", false, i18n.T("cmd.catalog.flag.offline"))
	catalogCmd.Flags().BoolVar(&catalogIcons, "icons", false, i18n.T("cmd.catalog.flag.icons"))
	catalogCmd.Flags().StringVarP(&catalogSearch, "search", "s", "", i18n.T("cmd.catalog.flag.search"))
}
