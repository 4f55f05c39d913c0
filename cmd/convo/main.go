package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"convo/internal/config"
	"convo/internal/dialog"
	"convo/internal/generator"
	"convo/internal/history"
	"convo/internal/logging"
)

var (
	// Global flags
	verbose    bool
	configPath string
	workdir    string

	// Logger
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "convo",
	Short: "convo - conversational session manager for text-generation backends",
	Long: `convo maintains per-user conversation state (persona, history,
greetings), assembles token-budgeted prompts, and dispatches them to a
pluggable text-generation backend (llama.cpp server, OpenAI-style chat
endpoints, Google Gemini, or an offline echo backend).

Run without arguments to start the interactive chat interface.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zcfg := zap.NewProductionConfig()
		if verbose {
			zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zcfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return logging.Initialize(workdir)
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logging.CloseAll()
		if logger != nil {
			_ = logger.Sync()
		}
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runInteractiveChat(cmd.Context())
	},
}

// askCmd runs a single turn and prints the answer
var askCmd = &cobra.Command{
	Use:   "ask [text]",
	Short: "Process a single message and print the answer",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, closeFn, err := buildService(cmd.Context())
		if err != nil {
			return err
		}
		defer closeFn()
		res := svc.ProcessMessage(cmd.Context(), 0, strings.Join(args, " "))
		fmt.Println(res.Answer)
		return nil
	},
}

// modelsCmd lists the backend's models
var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List models available on the configured backend",
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, closeFn, err := buildService(cmd.Context())
		if err != nil {
			return err
		}
		defer closeFn()
		models := svc.Dispatcher().Generator().ListModels(cmd.Context())
		if len(models) == 0 {
			fmt.Println("no models reported")
			return nil
		}
		for _, m := range models {
			fmt.Println(m)
		}
		return nil
	},
}

// tokensCmd counts tokens for a text via the backend (with local fallback)
var tokensCmd = &cobra.Command{
	Use:   "tokens [text]",
	Short: "Count tokens for a text",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, closeFn, err := buildService(cmd.Context())
		if err != nil {
			return err
		}
		defer closeFn()
		text := strings.Join(args, " ")
		n := generator.TokenCount(cmd.Context(), svc.Dispatcher().Generator(), text)
		fmt.Println(n)
		return nil
	},
}

// charsCmd lists loadable character cards
var charsCmd = &cobra.Command{
	Use:   "chars",
	Short: "List character cards in the configured directory",
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, closeFn, err := buildService(cmd.Context())
		if err != nil {
			return err
		}
		defer closeFn()
		for _, c := range svc.Characters() {
			fmt.Println(c)
		}
		return nil
	},
}

func runInteractiveChat(ctx context.Context) error {
	svc, closeFn, err := buildService(ctx)
	if err != nil {
		return err
	}
	defer closeFn()

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if watcher, err := svc.StartCardWatcher(); err == nil {
		defer watcher.Close()
	} else {
		logger.Warn("character watcher unavailable", zap.Error(err))
	}

	conv := svc.Session(0)
	fmt.Printf("%s: %s\n", conv.BotName, conv.Greeting)
	fmt.Println(`(commands: /regenerate /delete_word /impersonate /next /continue, "quit" to exit)`)

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Printf("%s: ", conv.UserName)
		if !scanner.Scan() {
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "quit" || line == "exit" {
			return nil
		}

		select {
		case res := <-svc.ProcessMessageAsync(ctx, 0, line):
			switch res.Action {
			case dialog.ActionSystem:
				fmt.Printf("[system] %s\n", res.Answer)
			case dialog.ActionNothing:
				fmt.Println("[nothing new]")
			case dialog.ActionImage:
				fmt.Printf("[image prompt] %s\n", res.Answer)
			default:
				fmt.Printf("%s: %s\n", conv.BotName, res.Answer)
			}
		case <-ctx.Done():
			fmt.Println()
			return nil
		}
	}
}

// buildService assembles config, backend, store, dispatcher, and service.
// The returned close function flushes the history store.
func buildService(ctx context.Context) (*dialog.Service, func(), error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}

	gen, err := buildBackend(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}

	store, err := buildStore(cfg)
	if err != nil {
		logger.Warn("history store unavailable, running memory-only", zap.Error(err))
		store = nil
	}

	disp := dialog.NewDispatcher(cfg, gen)
	svc := dialog.NewService(cfg, disp, store)
	closeFn := func() {
		if store != nil {
			_ = store.Close()
		}
	}
	return svc, closeFn, nil
}

func buildBackend(ctx context.Context, cfg *config.Config) (generator.Generator, error) {
	switch cfg.Backend {
	case "llama-server":
		return generator.NewLlamaServer(cfg.BackendURL, cfg.Generation.TruncationLength), nil
	case "openai":
		return generator.NewOpenAIChat(cfg.BackendURL, cfg.APIKey, cfg.Model), nil
	case "gemini":
		return generator.NewGemini(ctx, cfg.APIKey, cfg.Model)
	case "", "echo":
		return generator.NewEcho(), nil
	}
	return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
}

func buildStore(cfg *config.Config) (history.Store, error) {
	if cfg.HistoryDir == "" {
		return nil, nil
	}
	store, err := history.NewSQLiteStore(cfg.HistoryDir)
	if err != nil {
		// Fall back to flat files when sqlite cannot open.
		return history.NewFileStore(cfg.HistoryDir)
	}
	return store, nil
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.json", "Path to config file")
	rootCmd.PersistentFlags().StringVarP(&workdir, "workdir", "w", ".", "Working directory for logs and state")

	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(modelsCmd)
	rootCmd.AddCommand(tokensCmd)
	rootCmd.AddCommand(charsCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
