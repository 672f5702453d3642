package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/huanfeng/entwine-cli/internal/i18n"
	"github.com/huanfeng/entwine-cli/pkg/mods"
)

var (
	modsInstallOffline bool
	modsRequireCompat  bool
)

var modsCmd = &cobra.Command{
	Use:   "mods",
	Short: i18n.T("cmd.mods.short"),
}

var modsListCmd = &cobra.Command{
	Use:   "list",
	Short: i18n.T("cmd.mods.list.short"),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, _, modsPath, err := targetMods()
		if err != nil {
			return err
		}
		installed, err := a.GetInstalledMods(modsPath)
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(installed)
		}
		if len(installed) == 0 {
			fmt.Println(i18n.T("cmd.mods.list.empty"))
			return nil
		}
		for _, m := range installed {
			state := i18n.T("cmd.mods.enabled")
			if !m.Enabled {
				state = i18n.T("cmd.mods.disabled")
			}
			fmt.Printf("%s %-32s %-10s %-10s %s\n", checkmark(m.Enabled), m.FileName, orDash(m.Version), state, orDash(m.Author))
		}
		return nil
	},
}

var modsInstallCmd = &cobra.Command{
	Use:   "install <mod-id>",
	Short: i18n.T("cmd.mods.install.short"),
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, gp, modsPath, err := targetMods()
		if err != nil {
			return err
		}
		ctx := context.Background()
		mod, err := a.FindMod(ctx, args[0], modsInstallOffline)
		if err != nil {
			return err
		}

		opts := mods.InstallOptions{RequireCompatible: modsRequireCompat}
		if modsRequireCompat {
			v, err := a.GetSilkVersion(gp)
			if err != nil {
				return err
			}
			opts.SilkVersion = v
		}
		if err := a.InstallMod(ctx, mod, modsPath, opts); err != nil {
			return err
		}
		fmt.Printf(i18n.T("cmd.mods.install.success")+"\n", mod.Name, mod.Version)
		return nil
	},
}

func toggleCommand(use string, enable bool) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <file>",
		Short: i18n.T("cmd.mods." + use + ".short"),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, _, modsPath, err := targetMods()
			if err != nil {
				return err
			}
			if err := a.ToggleMod(modsPath, args[0], enable); err != nil {
				return err
			}
			fmt.Printf(i18n.T("cmd.mods."+use+".success")+"\n", args[0])
			return nil
		},
	}
}

var modsUninstallCmd = &cobra.Command{
	Use:   "uninstall <file>",
	Short: i18n.T("cmd.mods.uninstall.short"),
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, _, modsPath, err := targetMods()
		if err != nil {
			return err
		}
		if err := a.UninstallMod(modsPath, args[0]); err != nil {
			return err
		}
		fmt.Printf(i18n.T("cmd.mods.uninstall.success")+"\n", args[0])
		return nil
	},
}

var modsCompatCmd = &cobra.Command{
	Use:   "compat <mod-id>",
	Short: i18n.T("cmd.mods.compat.short"),
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, gp, modsPath, err := targetMods()
		if err != nil {
			return err
		}
		ok, err := a.CheckModCompatibility(gp, modsPath, args[0])
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(map[string]bool{"compatible": ok})
		}
		if ok {
			fmt.Printf(i18n.T("cmd.mods.compat.ok")+"\n", args[0])
		} else {
			fmt.Printf(i18n.T("cmd.mods.compat.fail")+"\n", args[0])
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(modsCmd)
	modsCmd.AddCommand(
		modsListCmd,
		modsInstallCmd,
		toggleCommand("enable", true),
		toggleCommand("disable", false),
		modsUninstallCmd,
		modsCompatCmd,
	)

	modsInstallCmd.Flags().BoolVar(&modsInstallOffline, "offline", false, i18n.T("cmd.catalog.flag.offline"))
	modsInstallCmd.Flags().BoolVar(&modsRequireCompat, "require-compatible", false, i18n.T("cmd.mods.install.flag.requireCompatible"))
}
