package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/jensroth-git/unifiedai"
	"github.com/jensroth-git/unifiedai/agent"
	"github.com/jensroth-git/unifiedai/config"
	"github.com/jensroth-git/unifiedai/llm"
	ailogger "github.com/jensroth-git/unifiedai/logger"
	"github.com/jensroth-git/unifiedai/media"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath = flag.String("config", config.Path(), "Path to config file")
		provider   = flag.String("provider", "", "Provider to use (anthropic, openai, gemini, ollama). Empty tries each enabled provider in order")
		model      = flag.String("model", "", "Model override for the chosen provider")
		system     = flag.String("system", "", "System prompt")
		imagePath  = flag.String("image", "", "Path to an image file to attach")
		logFile    = flag.String("logfile", "", "Path to log file. If not set, logs to stdout/stderr")
		pretty     = flag.Bool("pretty", false, "Use pretty console output (only valid when logfile is not set)")
	)
	flag.Parse()

	if *logFile != "" && *pretty {
		return fmt.Errorf("--logfile and --pretty are mutually exclusive")
	}

	logger, err := ailogger.InitWithOptions(*logFile, *pretty)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	prompt := strings.Join(flag.Args(), " ")
	if prompt == "" {
		// no args: read the prompt from stdin
		scanner := bufio.NewScanner(os.Stdin)
		var lines []string
		for scanner.Scan() {
			lines = append(lines, scanner.Text())
		}
		if err := scanner.Err(); err != nil {
			return fmt.Errorf("failed to read prompt from stdin: %w", err)
		}
		prompt = strings.TrimSpace(strings.Join(lines, "\n"))
	}
	if prompt == "" {
		return fmt.Errorf("no prompt given")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info().Msg("interrupt received, cancelling")
		cancel()
	}()

	var conv llm.Conversation
	if *system != "" {
		conv = conv.Append(llm.NewSystemMessage(*system))
	}
	if *imagePath != "" {
		imageMsg, err := media.ImageFromFile(*imagePath)
		if err != nil {
			return err
		}
		conv = conv.Append(imageMsg)
	}
	conv = conv.Append(llm.NewTextMessage(llm.RoleUser, prompt))

	prefs := preferences(cfg, *provider, *model)

	client := unifiedai.New(cfg, logger)
	req := agent.NewRequest(*model, conv)
	req.MaxToolRoundtrips = cfg.MaxToolRoundtrips
	req.OnText = func(_ context.Context, msg llm.Message) error {
		fmt.Println(msg.Text)
		return nil
	}

	result, err := client.Run(ctx, prefs, req)
	if err != nil {
		return err
	}

	logger.Info().
		Str("stop_reason", string(result.StopReason)).
		Int("calls", result.Calls).
		Int("input_tokens", result.Usage.InputTokens).
		Int("output_tokens", result.Usage.OutputTokens).
		Msg("run complete")
	return nil
}

// preferences builds the provider preference list: an explicit
// --provider flag wins, otherwise every enabled provider is tried in
// configuration order.
func preferences(cfg *config.Config, provider, model string) []llm.Preference {
	if provider != "" {
		return []llm.Preference{{Provider: llm.Provider(provider), Model: model}}
	}
	prefs := make([]llm.Preference, 0, len(cfg.Providers))
	for _, p := range cfg.Providers {
		prefs = append(prefs, llm.Preference{Provider: llm.Provider(p), Model: model})
	}
	return prefs
}
