package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/huanfeng/entwine-cli/internal/i18n"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: i18n.T("cmd.status.short"),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := getApp()
		if err != nil {
			return err
		}
		st := a.GetAppStatus(context.Background())
		if jsonOutput {
			return printJSON(st)
		}

		if st.GamePath == nil {
			fmt.Println(i18n.T("cmd.status.noGame"))
			return nil
		}
		fmt.Println(i18n.T("cmd.status.title"))
		printKV(i18n.T("cmd.status.game"), *st.GamePath)
		printKV(i18n.T("cmd.status.mods"), *st.ModsPath)
		silk := checkmark(st.SilkInstalled)
		if v, err := a.GetSilkVersion(*st.GamePath); err == nil {
			silk += " " + v
		}
		printKV("Silk", silk)
		bep := checkmark(a.IsBepInExInstalled(*st.GamePath))
		if v, err := a.GetBepInExVersion(*st.GamePath); err == nil {
			bep += " " + v
		}
		printKV("BepInEx", bep)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
