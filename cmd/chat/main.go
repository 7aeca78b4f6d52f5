package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"nim-chat/internal/config"
	"nim-chat/internal/llm"
	"nim-chat/internal/sampling"
	"nim-chat/internal/service"
	"nim-chat/internal/session"
)

var rootCmd = &cobra.Command{
	Use:   "nim-chat",
	Short: "Chat with NVIDIA-hosted LLMs from the terminal",
	Long: "Interactive terminal chat against the NVIDIA chat completions endpoint.\n" +
		"Reads NVIDIA_API_KEY and the other settings from the environment or a .env file.",
	SilenceUsage: true,
	RunE:         runChat,
}

func init() {
	flags := rootCmd.Flags()
	flags.String("model", "", "model to start with (defaults to the catalog default)")
	flags.String("base-url", "", "inference endpoint base URL (overrides LLM_BASE_URL)")
	flags.String("catalog", "", "model catalog TOML file (overrides MODEL_CATALOG_PATH)")
	flags.Float64("temp", -1, "initial temperature")
	flags.Int("max-tokens", 0, "initial max output tokens")
	flags.Bool("stream", true, "print the reply as it is generated")
	flags.Bool("no-history", false, "send only the latest message to the model")
	flags.Bool("no-color", false, "disable colored output")
}

func runChat(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if v, _ := flags.GetString("base-url"); v != "" {
		cfg.LLMBaseURL = v
	}
	if v, _ := flags.GetString("catalog"); v != "" {
		cfg.ModelCatalogPath = v
	}
	if v, _ := flags.GetBool("no-history"); v {
		cfg.SendHistory = false
	}
	if v, _ := flags.GetBool("no-color"); v {
		color.NoColor = true
	}
	stream, _ := flags.GetBool("stream")

	// Library logs go to stderr so they do not interleave with the conversation.
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel})))

	controls, err := sampling.LoadControls(cfg.ModelCatalogPath)
	if err != nil {
		return err
	}

	svc := service.NewChatService(
		llm.NewClient(cfg.LLMBaseURL),
		sampling.NewConfigurator(cfg.LLMAPIKey),
		controls,
		service.Options{SendHistory: cfg.SendHistory},
	)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sess := session.NewManager(controls.Defaults(), cfg.SessionIdle).Create()
	if err := applyFlags(ctx, cmd, svc, sess); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	printBanner(out, sess.Config(), cfg.HasCredential())

	// The read on stdin cannot be interrupted, so an interrupt returns from here
	// and leaves the reader behind.
	errc := make(chan error, 1)
	go func() {
		errc <- newREPL(svc, sess, cmd.InOrStdin(), out, stream).run(ctx)
	}()
	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		fmt.Fprintln(out, "\nShutting down...")
		return nil
	}
}

// applyFlags applies the initial-setting flags to the session.
func applyFlags(ctx context.Context, cmd *cobra.Command, svc service.ChatService, sess *session.Session) error {
	var update sampling.Update
	flags := cmd.Flags()
	if v, _ := flags.GetString("model"); v != "" {
		update.Model = &v
	}
	if flags.Changed("temp") {
		v, _ := flags.GetFloat64("temp")
		update.Temperature = &v
	}
	if flags.Changed("max-tokens") {
		v, _ := flags.GetInt("max-tokens")
		update.MaxOutputTokens = &v
	}
	if update == (sampling.Update{}) {
		return nil
	}
	_, err := svc.UpdateSettings(ctx, sess, update)
	return err
}

func printBanner(w io.Writer, cfg sampling.Config, hasCredential bool) {
	boldGreen := color.New(color.FgGreen, color.Bold).SprintFunc()
	boldCyan := color.New(color.FgCyan, color.Bold).SprintFunc()
	fmt.Fprintln(w, boldGreen("NVIDIA NIM Chat"))
	fmt.Fprintf(w, "Using model: %s\n", boldCyan(cfg.Model))
	fmt.Fprintf(w, "Temperature: %.2f, Max Tokens: %d\n", cfg.Temperature, cfg.MaxOutputTokens)
	if !hasCredential {
		fmt.Fprintln(w, color.YellowString("NVIDIA_API_KEY is not set; messages will fail until it is configured."))
	}
	fmt.Fprintln(w, "Type your message and press Enter. Type /help for commands, 'exit' or Ctrl+C to quit.")
	fmt.Fprintln(w)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
