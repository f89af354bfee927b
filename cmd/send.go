package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/CosmoTheDev/forumrelay/internal/forum"
	"github.com/CosmoTheDev/forumrelay/internal/notify"
)

var (
	sendText     string
	sendSimulate string
	sendDryRun   bool
)

var sendCmd = &cobra.Command{
	Use:   "send",
	Short: "Send a one-off message or simulated forum event to the QQ group",
	Long: `Sends a single message through NapCat without starting the service.

  forumrelay send --text "hello"              free text
  forumrelay send --simulate user-post        canned forum event (user-post, admin-approval, user-reply)
  forumrelay send --simulate user-reply --dry-run   print the rendered notice only`,
	RunE: runSend,
}

func init() {
	sendCmd.Flags().StringVar(&sendText, "text", "", "free text to send")
	sendCmd.Flags().StringVar(&sendSimulate, "simulate", "",
		"canned event to send: "+strings.Join(forum.SampleNames, ", "))
	sendCmd.Flags().BoolVar(&sendDryRun, "dry-run", false, "print the message instead of sending it")
	sendCmd.MarkFlagsMutuallyExclusive("text", "simulate")
	sendCmd.MarkFlagsOneRequired("text", "simulate")
}

func runSend(cmd *cobra.Command, args []string) error {
	text, err := buildSendText(sendText, sendSimulate)
	if err != nil {
		return err
	}
	if sendDryRun {
		fmt.Println(text)
		return nil
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if missing := cfg.Missing(); len(missing) > 0 {
		return fmt.Errorf("NapCat is not configured (missing %s)", strings.Join(missing, ", "))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	d := notify.NewDispatcher(cfg.NapCat)
	if !d.SendText(ctx, text) {
		return errors.New("NapCat did not accept the message")
	}
	fmt.Println(successStyle.Render("Message sent to group " + cfg.NapCat.GroupID))
	return nil
}

// buildSendText returns the message for --text or the rendered notice for a
// --simulate sample.
func buildSendText(text, sample string) (string, error) {
	if sample == "" {
		if strings.TrimSpace(text) == "" {
			return "", errors.New("--text must not be empty")
		}
		return text, nil
	}
	hook, kind, ok := forum.Sample(sample)
	if !ok {
		return "", fmt.Errorf("unknown sample %q (valid: %s)", sample, strings.Join(forum.SampleNames, ", "))
	}
	evt, ok := forum.ParseAs(kind, hook)
	if !ok {
		return "", fmt.Errorf("sample %q did not parse as %s", sample, kind)
	}
	return notify.Render(evt), nil
}
