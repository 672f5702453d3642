package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	apperrors "github.com/huanfeng/entwine-cli/internal/errors"
	"github.com/huanfeng/entwine-cli/internal/i18n"
)

var detectSave bool

var gameCmd = &cobra.Command{
	Use:   "game",
	Short: i18n.T("cmd.game.short"),
}

var gameSetCmd = &cobra.Command{
	Use:   "set <path>",
	Short: i18n.T("cmd.game.set.short"),
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := getApp()
		if err != nil {
			return err
		}
		st, err := a.SetGamePath(context.Background(), args[0])
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(st)
		}
		fmt.Printf(i18n.T("cmd.game.set.success")+"\n", *st.GamePath)
		return nil
	},
}

var gameDetectCmd = &cobra.Command{
	Use:   "detect",
	Short: i18n.T("cmd.game.detect.short"),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := getApp()
		if err != nil {
			return err
		}
		path, ok := a.DetectGamePath()
		if !ok {
			return apperrors.NewInvalidGameDirectoryError("", "no SpiderHeck installation found in the Steam libraries").
				WithSuggestion("Run 'entwine game set <path>'")
		}
		fmt.Printf(i18n.T("cmd.game.detect.found")+"\n", path)
		if !detectSave {
			return nil
		}
		if _, err := a.SetGamePath(context.Background(), path); err != nil {
			return err
		}
		fmt.Printf(i18n.T("cmd.game.set.success")+"\n", path)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(gameCmd)
	gameCmd.AddCommand(gameSetCmd)
	gameCmd.AddCommand(gameDetectCmd)

	gameDetectCmd.Flags().BoolVar(&detectSave, "save", false, i18n.T("cmd.game.detect.flag.save"))
}
