package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/huanfeng/entwine-cli/internal/i18n"
)

var skipConfirm bool

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: i18n.T("cmd.cache.short"),
	Long:  i18n.T("cmd.cache.long"),
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: i18n.T("cmd.cache.stats.short"),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := getApp()
		if err != nil {
			return err
		}
		cache := a.Cache()
		if jsonOutput {
			stats, err := cache.GetStats()
			if err != nil {
				return err
			}
			return printJSON(stats)
		}
		if err := cache.PrintStats(os.Stdout); err != nil {
			return err
		}

		fmt.Println()
		catalog, err := cache.GetCatalog()
		switch {
		case err != nil:
			return fmt.Errorf("%s: %w", i18n.T("cmd.cache.errRead"), err)
		case catalog == nil:
			fmt.Println(i18n.T("cmd.cache.offline.none"))
		default:
			fmt.Printf(i18n.T("cmd.cache.offline.ready")+"\n", len(catalog.Mods), catalog.FetchedAt.Format("2006-01-02 15:04"))
		}
		return nil
	},
}

var cacheCleanCmd = &cobra.Command{
	Use:   "clean",
	Short: i18n.T("cmd.cache.clean.short"),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := getApp()
		if err != nil {
			return err
		}
		cache := a.Cache()

		fmt.Println(i18n.T("cmd.cache.clean.start"))

		removed, err := cache.CleanExpired()
		if err != nil {
			return fmt.Errorf("%s: %w", i18n.T("cmd.cache.errClean"), err)
		}

		if removed > 0 {
			fmt.Printf(i18n.T("cmd.cache.clean.removed")+"\n", removed)
		} else {
			fmt.Println(i18n.T("cmd.cache.clean.none"))
		}

		fmt.Println()
		return cache.PrintStats(os.Stdout)
	},
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: i18n.T("cmd.cache.clear.short"),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := getApp()
		if err != nil {
			return err
		}

		if !skipConfirm {
			fmt.Print(i18n.T("cmd.cache.clear.confirm"))
			var response string
			fmt.Scanln(&response)
			if !strings.EqualFold(response, "y") && !strings.EqualFold(response, "yes") {
				fmt.Println(i18n.T("cmd.cache.clear.cancel"))
				return nil
			}
		}

		fmt.Println(i18n.T("cmd.cache.clear.start"))

		if err := a.Cache().Clear(); err != nil {
			return fmt.Errorf("%s: %w", i18n.T("cmd.cache.errClear"), err)
		}

		fmt.Println(i18n.T("cmd.cache.clear.success"))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(cacheCmd)

	cacheCmd.AddCommand(cacheStatsCmd)
	cacheCmd.AddCommand(cacheCleanCmd)
	cacheCmd.AddCommand(cacheClearCmd)

	cacheClearCmd.Flags().BoolVarP(&skipConfirm, "yes", "y", false, i18n.T("cmd.cache.flag.yes"))
}
