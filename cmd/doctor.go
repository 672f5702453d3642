package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/huanfeng/entwine-cli/internal/errors"
	"github.com/huanfeng/entwine-cli/internal/i18n"
	"github.com/huanfeng/entwine-cli/pkg/app"
	"github.com/huanfeng/entwine-cli/pkg/gamepath"
	"github.com/huanfeng/entwine-cli/pkg/system"
	"github.com/huanfeng/entwine-cli/pkg/utils"
)

var (
	doctorFix     bool
	doctorOffline bool
)

// diagnosis collects the outcome of the doctor checks.
type diagnosis struct {
	issues      []string
	suggestions []string
}

func (d *diagnosis) fail(issue, suggestion string) {
	d.issues = append(d.issues, issue)
	if suggestion != "" {
		d.suggestions = append(d.suggestions, suggestion)
	}
}

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: i18n.T("cmd.doctor.short"),
	Long:  i18n.T("cmd.doctor.long"),
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := utils.GetGlobalLogger()
		logger.Info("Starting diagnostics...")

		fmt.Println("🏥 " + i18n.T("cmd.doctor.title"))
		fmt.Println(strings.Repeat("=", 50))

		a, err := getApp()
		if err != nil {
			return err
		}
		var d diagnosis

		fmt.Println("\n⚙️  " + i18n.T("cmd.doctor.section.config"))
		fmt.Printf("   %s %s\n", checkmark(true), appConfig.File())

		fmt.Println("\n🎮 " + i18n.T("cmd.doctor.section.game"))
		gp, err := a.GamePath()
		if gameFlag != "" {
			gp, err = gameFlag, nil
		}
		if err == nil {
			checkGame(a, gp, &d)
		} else {
			fmt.Printf("   %s %v\n", checkmark(false), err)
			d.fail(i18n.T("cmd.doctor.issue.noGame"), "entwine game detect --save")
		}

		if !doctorOffline {
			fmt.Println("\n🌐 " + i18n.T("cmd.doctor.section.network"))
			if v, err := a.GetLatestSilkVersion(context.Background()); err != nil {
				fmt.Printf("   %s %v\n", checkmark(false), err)
				d.fail(i18n.T("cmd.doctor.issue.network"), i18n.T("cmd.doctor.suggest.offline"))
			} else {
				fmt.Printf("   %s Silk %s\n", checkmark(true), v)
			}
		}

		fmt.Println("\n" + strings.Repeat("=", 50))
		if len(d.issues) == 0 {
			fmt.Println("✅ " + i18n.T("cmd.doctor.allPassed"))
			return nil
		}

		fmt.Printf("❌ "+i18n.T("cmd.doctor.found")+"\n\n", len(d.issues))
		for i, issue := range d.issues {
			fmt.Printf("%d. %s\n", i+1, issue)
		}
		if len(d.suggestions) > 0 {
			fmt.Println("\n💡 " + i18n.T("cmd.doctor.suggestions"))
			for i, s := range d.suggestions {
				fmt.Printf("%d. %s\n", i+1, s)
			}
		}

		return errors.NewError(errors.ErrorTypeValidation, "DIAGNOSTICS_FAILED",
			fmt.Sprintf("diagnostics found %d issue(s)", len(d.issues)))
	},
}

func checkGame(a *app.App, gp string, d *diagnosis) {
	if _, err := gamepath.Validate(gp); err != nil {
		fmt.Printf("   %s %v\n", checkmark(false), err)
		d.fail(i18n.T("cmd.doctor.issue.invalidGame"), "entwine game set <path>")
		return
	}
	fmt.Printf("   %s %s\n", checkmark(true), gp)

	rc := system.NewResourceChecker(utils.GetGlobalLogger())
	if err := rc.CheckWritable(gp); err != nil {
		fmt.Printf("   %s %v\n", checkmark(false), err)
		d.fail(i18n.T("cmd.doctor.issue.readOnly"), "")
	}
	if disk, err := rc.CheckDiskSpace(gp); err == nil {
		fmt.Printf("   %s %s %s\n", checkmark(disk.Sufficient()), utils.FormatBytes(int64(disk.Available)), i18n.T("cmd.doctor.free"))
		if !disk.Sufficient() {
			d.fail(fmt.Sprintf(i18n.T("cmd.doctor.issue.lowSpace"), utils.FormatBytes(system.MinFreeSpace)), "")
		}
	}

	if a.PendingFrameworkRecovery(gp) {
		if doctorFix {
			if err := a.RecoverFrameworks(gp); err != nil {
				fmt.Printf("   %s %v\n", checkmark(false), err)
				d.fail(i18n.T("cmd.doctor.issue.interrupted"), "")
			} else {
				fmt.Printf("   %s %s\n", checkmark(true), i18n.T("cmd.doctor.recovered"))
			}
		} else {
			fmt.Printf("   %s %s\n", checkmark(false), i18n.T("cmd.doctor.issue.interrupted"))
			d.fail(i18n.T("cmd.doctor.issue.interrupted"), "entwine doctor --fix")
		}
	}

	silkVersion, err := a.GetSilkVersion(gp)
	if err != nil {
		fmt.Printf("   %s Silk\n", checkmark(false))
		d.fail(i18n.T("cmd.doctor.issue.noSilk"), "entwine silk install")
		return
	}
	fmt.Printf("   %s Silk %s\n", checkmark(true), silkVersion)
	if v, err := a.GetBepInExVersion(gp); err == nil {
		fmt.Printf("   %s BepInEx %s\n", checkmark(true), v)
	}

	modsPath := modsPathOf(gp)
	installed, err := a.GetInstalledMods(modsPath)
	if err != nil {
		fmt.Printf("   %s %v\n", checkmark(false), err)
		d.fail(i18n.T("cmd.doctor.issue.modsUnreadable"), "")
		return
	}
	for _, m := range installed {
		if m.ID == "" || m.Version == "Unknown" {
			continue
		}
		ok, err := a.CheckModCompatibility(gp, modsPath, m.ID)
		if err != nil || ok {
			continue
		}
		fmt.Printf("   %s %s\n", checkmark(false), m.FileName)
		d.fail(fmt.Sprintf(i18n.T("cmd.doctor.issue.incompatible"), m.Name, silkVersion), "entwine mods disable "+m.FileName)
	}
}

func init() {
	rootCmd.AddCommand(doctorCmd)

	doctorCmd.Flags().BoolVar(&doctorFix, "fix", false, i18n.T("cmd.doctor.flag.fix"))
	doctorCmd.Flags().BoolVar(&doctorOffline, "offline", false, i18n.T("cmd.doctor.flag.offline"))
}
