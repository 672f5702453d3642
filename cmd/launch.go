package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/huanfeng/entwine-cli/internal/i18n"
)

var launchCmd = &cobra.Command{
	Use:   "launch",
	Short: i18n.T("cmd.launch.short"),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, gp, err := targetGame()
		if err != nil {
			return err
		}
		if err := a.Launch(gp); err != nil {
			return err
		}
		fmt.Println(i18n.T("cmd.launch.started"))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(launchCmd)
}
