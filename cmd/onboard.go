package cmd

import (
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/CosmoTheDev/forumrelay/internal/config"
)

var onboardCmd = &cobra.Command{
	Use:   "onboard",
	Short: "Interactive setup wizard for forumrelay",
	Long: `Walks you through configuring forumrelay:
  - NapCat API address and optional access token
  - Destination QQ group
  - Webhook token embedded in the forum webhook URLs
  - Service port and environment`,
	RunE: runOnboard,
}

var headerStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(lipgloss.Color("#7C3AED")).
	MarginBottom(1)

var successStyle = lipgloss.NewStyle().
	Foreground(lipgloss.Color("#10B981"))

var warnStyle = lipgloss.NewStyle().
	Foreground(lipgloss.Color("#F59E0B"))

var dimStyle = lipgloss.NewStyle().
	Foreground(lipgloss.Color("#6B7280"))

func runOnboard(cmd *cobra.Command, args []string) error {
	fmt.Println()
	fmt.Println(headerStyle.Render("  forumrelay · forum to QQ group notifications"))
	fmt.Println(dimStyle.Render("  Answers are saved to the config file; env vars still override them.\n"))

	// Existing values (file, env, defaults) pre-fill the form.
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	// --- Step 1: NapCat ---
	fmt.Println(headerStyle.Render("  Step 1/3 · NapCat"))

	napcatURL := cfg.NapCat.URL
	if napcatURL == "" {
		napcatURL = "http://127.0.0.1:3001"
	}
	groupID := cfg.NapCat.GroupID
	accessToken := cfg.NapCat.AccessToken

	napcatForm := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("NapCat HTTP API address").
				Description("The OneBot v11 HTTP server of the QQ account that posts notices.").
				Value(&napcatURL).
				Validate(validateHTTPURL),
			huh.NewInput().
				Title("QQ group number").
				Description("Notices are sent to this group.").
				Value(&groupID).
				Validate(validateGroupID),
			huh.NewInput().
				Title("NapCat access token (optional)").
				Description("Only needed when NapCat has an access token configured.").
				EchoMode(huh.EchoModePassword).
				Value(&accessToken),
		),
	)
	if err := napcatForm.Run(); err != nil {
		return err
	}
	cfg.NapCat.URL = strings.TrimRight(strings.TrimSpace(napcatURL), "/")
	cfg.NapCat.GroupID = strings.TrimSpace(groupID)
	cfg.NapCat.AccessToken = strings.TrimSpace(accessToken)

	// --- Step 2: Webhook token ---
	fmt.Println(headerStyle.Render("\n  Step 2/3 · Webhook token"))

	generate := cfg.Security.WebhookToken == ""
	tokenForm := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Generate a new random webhook token?").
				Description("Existing forum webhook URLs stop working when the token changes.").
				Value(&generate),
		),
	)
	if err := tokenForm.Run(); err != nil {
		return err
	}
	if generate {
		tok, err := config.GenerateToken()
		if err != nil {
			return err
		}
		cfg.Security.WebhookToken = tok
	}

	// --- Step 3: Service ---
	fmt.Println(headerStyle.Render("\n  Step 3/3 · Service"))

	port := strconv.Itoa(cfg.Server.Port)
	environment := cfg.Server.Environment
	serviceForm := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Listen port").
				Value(&port).
				Validate(validatePort),
			huh.NewSelect[string]().
				Title("Environment").
				Description("Development serves the /test diagnostics and shows error details.").
				Options(
					huh.NewOption("development", "development"),
					huh.NewOption("production", "production"),
				).
				Value(&environment),
		),
	)
	if err := serviceForm.Run(); err != nil {
		return err
	}
	cfg.Server.Port, _ = strconv.Atoi(strings.TrimSpace(port))
	cfg.Server.Environment = environment

	cfgPath, _ := config.ConfigPath(cfgFile)
	if err := config.Save(cfg, cfgPath); err != nil {
		return fmt.Errorf("saving config: %w", err)
	}

	fmt.Println()
	fmt.Println(headerStyle.Render("  Setup complete!"))
	fmt.Printf("  Config saved to: %s\n\n", dimStyle.Render(cfgPath))
	fmt.Println(headerStyle.Render("  Forum webhook URLs:"))
	base := "http://<host>:" + strconv.Itoa(cfg.Server.Port) + "/webhook/" + cfg.Security.WebhookToken
	for _, line := range []string{
		base + "/forum/user",
		base + "/forum/admin",
		base + "/forum/reply",
		base + "/forum",
	} {
		fmt.Printf("    %s\n", successStyle.Render(line))
	}
	fmt.Println()
	fmt.Println(dimStyle.Render("  Next steps:"))
	fmt.Println(dimStyle.Render("    forumrelay doctor --send   verify NapCat and post a test message"))
	fmt.Println(dimStyle.Render("    forumrelay serve           start the webhook service"))
	fmt.Println()

	slog.Debug("Onboarding complete", "config", cfgPath)
	return nil
}

func validateHTTPURL(s string) error {
	u, err := url.Parse(strings.TrimSpace(s))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("enter an http:// or https:// address")
	}
	return nil
}

func validateGroupID(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return fmt.Errorf("group number is required")
	}
	if _, err := strconv.ParseUint(s, 10, 64); err != nil {
		return fmt.Errorf("group number must be digits only")
	}
	return nil
}

func validatePort(s string) error {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 1 || n > 65535 {
		return fmt.Errorf("port must be between 1 and 65535")
	}
	return nil
}
