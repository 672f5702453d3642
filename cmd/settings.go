package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/huanfeng/entwine-cli/internal/config"
	"github.com/huanfeng/entwine-cli/internal/i18n"
	"github.com/huanfeng/entwine-cli/pkg/launcher"
	"github.com/huanfeng/entwine-cli/pkg/utils"
)

var settingsInitForce bool

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: i18n.T("cmd.settings.short"),
}

var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: i18n.T("cmd.settings.show.short"),
	RunE: func(cmd *cobra.Command, args []string) error {
		if jsonOutput {
			return printJSON(appConfig.Settings)
		}
		printKV(i18n.T("cmd.settings.file"), appConfig.File())
		printKV(i18n.T("cmd.settings.method"), appConfig.Settings.LaunchMethod)
		printKV(i18n.T("cmd.settings.catalog"), appConfig.Registry.CatalogURL)
		printKV(i18n.T("cmd.settings.cacheDir"), appConfig.Paths.CacheDir)
		return nil
	},
}

var settingsLaunchCmd = &cobra.Command{
	Use:       "launch-method <steam|executable>",
	Short:     i18n.T("cmd.settings.launchMethod.short"),
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"steam", "executable"},
	RunE: func(cmd *cobra.Command, args []string) error {
		method, err := launcher.ParseMethod(args[0])
		if err != nil {
			return err
		}
		settings := appConfig.Settings
		settings.LaunchMethod = method
		if err := appConfig.SaveSettings(settings); err != nil {
			return err
		}
		fmt.Printf(i18n.T("cmd.settings.saved")+"\n", appConfig.File())
		return nil
	},
}

var settingsInitCmd = &cobra.Command{
	Use:   "init",
	Short: i18n.T("cmd.settings.init.short"),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := appConfig.File()
		if utils.Exists(path) && !settingsInitForce {
			fmt.Printf(i18n.T("cmd.settings.init.exists")+"\n", path)
			return nil
		}
		if err := config.SaveTemplate(path); err != nil {
			return err
		}
		fmt.Printf(i18n.T("cmd.settings.init.created")+"\n", path)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(settingsCmd)
	settingsCmd.AddCommand(settingsShowCmd, settingsLaunchCmd, settingsInitCmd)

	settingsInitCmd.Flags().BoolVarP(&settingsInitForce, "force", "f", false, i18n.T("cmd.settings.init.flag.force"))
}
