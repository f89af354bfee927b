package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/CosmoTheDev/forumrelay/internal/config"
	"github.com/CosmoTheDev/forumrelay/internal/notify"
)

var doctorSend bool

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Verify configuration and NapCat reachability",
	Long: `Checks that the NapCat address and QQ group are set, that the NapCat API
answers, and that the webhook token and probe schedule are usable.

Use --send to also post the connection test message to the group.`,
	RunE: runDoctor,
}

func init() {
	doctorCmd.Flags().BoolVar(&doctorSend, "send", false,
		"send the connection test message to the QQ group")
}

func runDoctor(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	allOK := true

	fmt.Println(headerStyle.Render("=== forumrelay doctor ==="))

	fmt.Print("Config file .............. ")
	p, _ := config.ConfigPath(cfgFile)
	if _, err := os.Stat(p); err != nil {
		fmt.Println(dimStyle.Render("not found (" + p + "), using env and defaults"))
	} else {
		fmt.Printf("OK (%s)\n", p)
	}

	fmt.Print("NapCat URL ............... ")
	if cfg.NapCat.URL == "" {
		fmt.Println(warnStyle.Render("MISSING (set NAPCAT_URL)"))
		allOK = false
	} else {
		fmt.Printf("OK (%s)\n", cfg.NapCat.URL)
	}

	fmt.Print("QQ group ................. ")
	if cfg.NapCat.GroupID == "" {
		fmt.Println(warnStyle.Render("MISSING (set QQ_GROUP_ID)"))
		allOK = false
	} else {
		fmt.Printf("OK (%s)\n", cfg.NapCat.GroupID)
	}

	fmt.Print("NapCat API ............... ")
	napcat := notify.NewNapCat(cfg.NapCat)
	switch {
	case cfg.NapCat.URL == "":
		fmt.Println(dimStyle.Render("skipped"))
	default:
		if err := napcat.Status(ctx); err != nil {
			fmt.Println(warnStyle.Render(fmt.Sprintf("FAIL (%s)", err)))
			allOK = false
		} else {
			fmt.Println("OK (get_status)")
		}
	}

	fmt.Print("Webhook token ............ ")
	if cfg.Security.WebhookToken == "" {
		fmt.Println(warnStyle.Render("not set (a random token is generated on each start)"))
	} else if len(cfg.Security.WebhookToken) < 16 {
		fmt.Println(warnStyle.Render("WEAK (use at least 16 characters)"))
		allOK = false
	} else {
		fmt.Println("OK")
	}

	fmt.Print("Connection probe ......... ")
	switch {
	case !cfg.Probe.Enabled:
		fmt.Println(dimStyle.Render("disabled"))
	default:
		if _, err := cron.ParseStandard(cfg.Probe.Schedule); err != nil {
			fmt.Println(warnStyle.Render(fmt.Sprintf("INVALID schedule %q (%s)", cfg.Probe.Schedule, err)))
			allOK = false
		} else {
			fmt.Printf("OK (%s)\n", cfg.Probe.Schedule)
		}
	}

	if doctorSend {
		fmt.Print("Test message ............. ")
		if notify.NewDispatcherWithChannel(napcat).TestConnection(ctx) {
			fmt.Println("OK (sent)")
		} else {
			fmt.Println(warnStyle.Render("FAIL (see log output)"))
			allOK = false
		}
	}

	fmt.Println()
	if allOK {
		fmt.Println(successStyle.Render("All checks passed, forumrelay is ready!"))
	} else {
		fmt.Println(warnStyle.Render("Some checks failed, run 'forumrelay onboard' to fix."))
	}
	return nil
}
