package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/huanfeng/entwine-cli/internal/i18n"
)

var silkInstallVersion string

var silkCmd = &cobra.Command{
	Use:   "silk",
	Short: i18n.T("cmd.silk.short"),
}

var silkInstallCmd = &cobra.Command{
	Use:   "install",
	Short: i18n.T("cmd.silk.install.short"),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, gp, err := targetGame()
		if err != nil {
			return err
		}
		ctx := context.Background()
		if silkInstallVersion != "" {
			err = a.InstallSilkVersion(ctx, silkInstallVersion, gp)
		} else {
			err = a.InstallSilk(ctx, gp)
		}
		if err != nil {
			return err
		}
		v, _ := a.GetSilkVersion(gp)
		fmt.Printf(i18n.T("cmd.framework.installed")+"\n", "Silk", v)
		return nil
	},
}

var silkUninstallCmd = &cobra.Command{
	Use:   "uninstall",
	Short: i18n.T("cmd.silk.uninstall.short"),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, gp, err := targetGame()
		if err != nil {
			return err
		}
		if err := a.UninstallSilk(context.Background(), gp); err != nil {
			return err
		}
		fmt.Printf(i18n.T("cmd.framework.uninstalled")+"\n", "Silk")
		return nil
	},
}

var silkVersionCmd = &cobra.Command{
	Use:   "version",
	Short: i18n.T("cmd.silk.version.short"),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, gp, err := targetGame()
		if err != nil {
			return err
		}
		v, err := a.GetSilkVersion(gp)
		if err != nil {
			return err
		}
		fmt.Println(v)
		return nil
	},
}

var silkLatestCmd = &cobra.Command{
	Use:   "latest",
	Short: i18n.T("cmd.silk.latest.short"),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := getApp()
		if err != nil {
			return err
		}
		v, err := a.GetLatestSilkVersion(context.Background())
		if err != nil {
			return err
		}
		fmt.Println(v)
		return nil
	},
}

var silkCheckCmd = &cobra.Command{
	Use:   "check",
	Short: i18n.T("cmd.silk.check.short"),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, gp, err := targetGame()
		if err != nil {
			return err
		}
		update, err := a.CheckForSilkUpdates(context.Background(), gp)
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(update)
		}
		if update == nil {
			fmt.Println(i18n.T("cmd.silk.check.upToDate"))
			return nil
		}
		fmt.Printf(i18n.T("cmd.silk.check.available")+"\n", update.Version)
		fmt.Printf("   %s\n", update.DownloadURL)
		return nil
	},
}

var silkVersionsCmd = &cobra.Command{
	Use:   "versions",
	Short: i18n.T("cmd.silk.versions.short"),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := getApp()
		if err != nil {
			return err
		}
		list, err := a.ListAvailableSilkVersions(context.Background())
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(list)
		}
		for _, v := range list {
			fmt.Println(v)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(silkCmd)
	silkCmd.AddCommand(silkInstallCmd, silkUninstallCmd, silkVersionCmd, silkLatestCmd, silkCheckCmd, silkVersionsCmd)

	silkInstallCmd.Flags().StringVar(&silkInstallVersion, "version", "", i18n.T("cmd.silk.install.flag.version"))
}
