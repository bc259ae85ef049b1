package commands

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/avenlon/sitepulse/errors"
	"github.com/avenlon/sitepulse/scan"
)

// SettingsCmd shows or changes daily scan settings
var SettingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Show or change daily scan settings",
	Long: `Show or change the settings driving the automatic daily scan.

Examples:
  sitepulse settings show
  sitepulse settings set --enabled --time 03:30
  sitepulse settings set --post-types post,page
  sitepulse settings set --disabled`,
}

var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current settings",
	RunE:  runSettingsShow,
}

var settingsSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Change settings",
	RunE:  runSettingsSet,
}

var (
	settingsEnabled   bool
	settingsDisabled  bool
	settingsTime      string
	settingsPostTypes []string
)

func init() {
	SettingsCmd.AddCommand(settingsShowCmd)
	SettingsCmd.AddCommand(settingsSetCmd)
	settingsSetCmd.Flags().BoolVar(&settingsEnabled, "enabled", false, "Enable the daily scan")
	settingsSetCmd.Flags().BoolVar(&settingsDisabled, "disabled", false, "Disable the daily scan")
	settingsSetCmd.Flags().StringVar(&settingsTime, "time", "", "Daily scan time (HH:MM, site-local)")
	settingsSetCmd.Flags().StringSliceVar(&settingsPostTypes, "post-types", nil, "Post types the daily scan covers")
}

func runSettingsShow(cmd *cobra.Command, args []string) error {
	store, closeDB, err := openScanStore(cmd)
	if err != nil {
		return err
	}
	defer closeDB()

	settings, err := store.Settings()
	if err != nil {
		return err
	}

	state := "disabled"
	if settings.AutoScanEnabled {
		state = "enabled"
	}
	fmt.Printf("Daily scan:  %s\n", state)
	fmt.Printf("Time:        %s\n", settings.ScheduledTime)
	fmt.Printf("Post types:  %s\n", strings.Join(settings.ScheduledPostTypes, ", "))
	return nil
}

func runSettingsSet(cmd *cobra.Command, args []string) error {
	if settingsEnabled && settingsDisabled {
		return errors.New("--enabled and --disabled are mutually exclusive")
	}

	store, closeDB, err := openScanStore(cmd)
	if err != nil {
		return err
	}
	defer closeDB()

	settings, err := store.Settings()
	if err != nil {
		return err
	}

	if settingsEnabled {
		settings.AutoScanEnabled = true
	}
	if settingsDisabled {
		settings.AutoScanEnabled = false
	}
	if settingsTime != "" {
		if _, err := scan.NextOccurrence(time.Now(), settingsTime); err != nil {
			return errors.Newf("invalid time %q, expected HH:MM", settingsTime)
		}
		settings.ScheduledTime = settingsTime
	}
	if cmd.Flags().Changed("post-types") {
		settings.ScheduledPostTypes = settingsPostTypes
	}

	if err := store.SaveSettings(settings); err != nil {
		return err
	}

	fmt.Println("Settings saved. A running server applies them on its next settings")
	fmt.Println("reconcile; use the settings API to apply scheduling changes immediately.")
	return nil
}
