package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/huanfeng/entwine-cli/internal/i18n"
	"github.com/huanfeng/entwine-cli/internal/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: i18n.T("cmd.version.short"),
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(version.Info())
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
