package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/huanfeng/entwine-cli/internal/config"
	apperrors "github.com/huanfeng/entwine-cli/internal/errors"
	"github.com/huanfeng/entwine-cli/internal/i18n"
	"github.com/huanfeng/entwine-cli/internal/version"
	"github.com/huanfeng/entwine-cli/pkg/app"
	"github.com/huanfeng/entwine-cli/pkg/utils"
)

var (
	cfgFile    string
	langFlag   string
	logLevel   string
	gameFlag   string
	verbose    bool
	jsonOutput bool

	appConfig   *config.Config
	application *app.App
)

var rootCmd = &cobra.Command{
	Use:           "entwine",
	Short:         i18n.T("cmd.root.short"),
	Long:          i18n.T("cmd.root.long"),
	Version:       version.Short(),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := i18n.Init(langFlag); err != nil {
			return err
		}

		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		if langFlag == "" && cfg.Lang != "" {
			if err := i18n.Init(cfg.Lang); err != nil {
				return err
			}
		}

		logCfg := utils.DefaultLoggerConfig()
		logCfg.Level = utils.ParseLogLevel(cfg.Log.Level)
		logCfg.Format = utils.ParseLogFormat(cfg.Log.Format)
		if cfg.Log.File != "" {
			logCfg.EnableFile = true
			logCfg.FilePath = cfg.Log.File
			logCfg.EnableColor = false
		}
		if logLevel != "" {
			logCfg.Level = utils.ParseLogLevel(logLevel)
		}
		if verbose {
			logCfg.Level = utils.LogLevelDebug
		}
		if err := utils.InitGlobalLogger(logCfg); err != nil {
			return err
		}

		appConfig = cfg
		return nil
	},
}

// getApp builds the application on first use. Commands that never touch the
// game directory do not pay for it.
func getApp() (*app.App, error) {
	if application != nil {
		return application, nil
	}
	a, err := app.New(appConfig, app.WithProgress(os.Stderr))
	if err != nil {
		return nil, err
	}
	application = a
	return a, nil
}

// targetGame returns the --game override or the stored game path.
func targetGame() (*app.App, string, error) {
	a, err := getApp()
	if err != nil {
		return nil, "", err
	}
	if gameFlag != "" {
		return a, gameFlag, nil
	}
	gp, err := a.GamePath()
	return a, gp, err
}

// targetMods returns the mods directory of the target game.
func targetMods() (*app.App, string, string, error) {
	a, gp, err := targetGame()
	if err != nil {
		return nil, "", "", err
	}
	return a, gp, modsPathOf(gp), nil
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		printError(os.Stderr, err)
		os.Exit(1)
	}
}

func printError(w io.Writer, err error) {
	var ee *apperrors.EntwineError
	if !errors.As(err, &ee) {
		fmt.Fprintf(w, "%s: %v\n", i18n.T("common.error"), err)
		return
	}
	if verbose {
		fmt.Fprint(w, ee.FormatDetailed())
		return
	}
	fmt.Fprintf(w, "%s: %v\n", i18n.T("common.error"), ee)
	for _, s := range ee.Suggestions {
		fmt.Fprintf(w, "  💡 %s\n", s)
	}
	if ee.Retryable {
		fmt.Fprintf(w, "  🔁 %s\n", i18n.T("common.retryHint"))
	}
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", i18n.T("cmd.root.flag.config"))
	pf.StringVar(&langFlag, "lang", "", i18n.T("cmd.root.flag.lang"))
	pf.StringVar(&logLevel, "log-level", "", i18n.T("cmd.root.flag.logLevel"))
	pf.StringVar(&gameFlag, "game", "", i18n.T("cmd.root.flag.game"))
	pf.BoolVarP(&verbose, "verbose", "v", false, i18n.T("cmd.root.flag.verbose"))
	pf.BoolVar(&jsonOutput, "json", false, i18n.T("cmd.root.flag.json"))
}
