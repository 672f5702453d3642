package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/huanfeng/entwine-cli/internal/i18n"
)

var bepinexCmd = &cobra.Command{
	Use:   "bepinex",
	Short: i18n.T("cmd.bepinex.short"),
}

var bepinexStatusCmd = &cobra.Command{
	Use:   "status",
	Short: i18n.T("cmd.bepinex.status.short"),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, gp, err := targetGame()
		if err != nil {
			return err
		}
		installed := a.IsBepInExInstalled(gp)
		if jsonOutput {
			return printJSON(map[string]bool{"installed": installed})
		}
		fmt.Printf("%s BepInEx\n", checkmark(installed))
		return nil
	},
}

var bepinexVersionCmd = &cobra.Command{
	Use:   "version",
	Short: i18n.T("cmd.bepinex.version.short"),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, gp, err := targetGame()
		if err != nil {
			return err
		}
		v, err := a.GetBepInExVersion(gp)
		if err != nil {
			return err
		}
		fmt.Println(v)
		return nil
	},
}

var bepinexInstallCmd = &cobra.Command{
	Use:   "install",
	Short: i18n.T("cmd.bepinex.install.short"),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, gp, err := targetGame()
		if err != nil {
			return err
		}
		if err := a.InstallBepInEx(context.Background(), gp); err != nil {
			return err
		}
		v, _ := a.GetBepInExVersion(gp)
		fmt.Printf(i18n.T("cmd.framework.installed")+"\n", "BepInEx", v)
		return nil
	},
}

var bepinexUninstallCmd = &cobra.Command{
	Use:   "uninstall",
	Short: i18n.T("cmd.bepinex.uninstall.short"),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, gp, err := targetGame()
		if err != nil {
			return err
		}
		if err := a.UninstallBepInEx(context.Background(), gp); err != nil {
			return err
		}
		fmt.Printf(i18n.T("cmd.framework.uninstalled")+"\n", "BepInEx")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(bepinexCmd)
	bepinexCmd.AddCommand(bepinexStatusCmd, bepinexVersionCmd, bepinexInstallCmd, bepinexUninstallCmd)
}
