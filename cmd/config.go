package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	apperrors "github.com/huanfeng/entwine-cli/internal/errors"
	"github.com/huanfeng/entwine-cli/internal/i18n"
	"github.com/huanfeng/entwine-cli/pkg/models"
)

var configLiteralKey bool

var modConfigCmd = &cobra.Command{
	Use:   "config",
	Short: i18n.T("cmd.config.short"),
	Long:  i18n.T("cmd.config.long"),
}

var modConfigGetCmd = &cobra.Command{
	Use:   "get <mod-id>",
	Short: i18n.T("cmd.config.get.short"),
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, gp, err := targetGame()
		if err != nil {
			return err
		}
		doc, err := a.GetModConfig(gp, args[0])
		if err != nil {
			if !apperrors.IsRecoverable(err) {
				return err
			}
			fmt.Fprintf(os.Stderr, "⚠️  %v\n", err)
		}
		if jsonOutput {
			return printJSON(doc)
		}
		if len(doc) == 0 {
			fmt.Println(i18n.T("cmd.config.get.empty"))
			return nil
		}
		data, err := yaml.Marshal(doc)
		if err != nil {
			return err
		}
		fmt.Print(string(data))
		return nil
	},
}

var modConfigSaveCmd = &cobra.Command{
	Use:   "save <mod-id> <file|->",
	Short: i18n.T("cmd.config.save.short"),
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, gp, err := targetGame()
		if err != nil {
			return err
		}
		data, err := readInput(args[1])
		if err != nil {
			return err
		}
		var doc models.ModConfig
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return apperrors.NewInvalidArgumentError(fmt.Sprintf("invalid config document: %v", err))
		}
		if doc == nil {
			doc = models.ModConfig{}
		}
		if err := a.SaveModConfig(gp, args[0], doc); err != nil {
			return err
		}
		fmt.Printf(i18n.T("cmd.config.save.success")+"\n", args[0])
		return nil
	},
}

var modConfigSetCmd = &cobra.Command{
	Use:   "set <mod-id> <key> <value>",
	Short: i18n.T("cmd.config.set.short"),
	Long:  i18n.T("cmd.config.set.long"),
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, gp, err := targetGame()
		if err != nil {
			return err
		}
		modID, key := args[0], args[1]
		value := parseValueArg(args[2])

		if !configLiteralKey && strings.Contains(key, ".") {
			err = a.SetModConfigPath(gp, modID, strings.Split(key, "."), value)
		} else {
			err = a.SetModConfigValue(gp, modID, key, value)
		}
		if err != nil {
			return err
		}
		fmt.Printf(i18n.T("cmd.config.set.success")+"\n", key, modID)
		return nil
	},
}

var modConfigListCmd = &cobra.Command{
	Use:   "list",
	Short: i18n.T("cmd.config.list.short"),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, gp, err := targetGame()
		if err != nil {
			return err
		}
		ids, err := a.ListModConfigs(gp)
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(ids)
		}
		if len(ids) == 0 {
			fmt.Println(i18n.T("cmd.config.list.empty"))
			return nil
		}
		for _, id := range ids {
			fmt.Println(id)
		}
		return nil
	},
}

var modConfigDeleteCmd = &cobra.Command{
	Use:   "delete <mod-id>",
	Short: i18n.T("cmd.config.delete.short"),
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, gp, err := targetGame()
		if err != nil {
			return err
		}
		if err := a.DeleteModConfig(gp, args[0]); err != nil {
			return err
		}
		fmt.Printf(i18n.T("cmd.config.delete.success")+"\n", args[0])
		return nil
	},
}

// parseValueArg reads a JSON literal; anything else is taken as a string.
func parseValueArg(s string) models.ConfigValue {
	if v, err := models.ParseValueJSON([]byte(s)); err == nil {
		return v
	}
	return models.StringValue(s)
}

func readInput(name string) ([]byte, error) {
	if name == "-" {
		return io.ReadAll(os.Stdin)
	}
	data, err := os.ReadFile(name)
	if err != nil {
		return nil, apperrors.NewPathNotFoundError(name, "cannot read input file")
	}
	return data, nil
}

func init() {
	rootCmd.AddCommand(modConfigCmd)
	modConfigCmd.AddCommand(modConfigGetCmd, modConfigSaveCmd, modConfigSetCmd, modConfigListCmd, modConfigDeleteCmd)

	modConfigSetCmd.Flags().BoolVar(&configLiteralKey, "literal", false, i18n.T("cmd.config.set.flag.literal"))
}
