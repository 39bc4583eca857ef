package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"shellpilot/internal/agent"
	"shellpilot/internal/chat"
	"shellpilot/internal/config"
	"shellpilot/internal/history"
	"shellpilot/internal/llm"
	"shellpilot/internal/logging"
	"shellpilot/internal/mcp"
	"shellpilot/internal/shell"
	"shellpilot/internal/ux"
)

var (
	flagWorkDir   string
	flagModel     string
	flagNoConfirm bool
	flagVerbose   bool
)

var rootCmd = &cobra.Command{
	Use:   "shellpilot [instruction]",
	Short: "Conversational shell agent with guarded command execution",
	Long: `shellpilot turns natural-language instructions into shell commands.

Commands run inside a sandboxed working directory behind a safety guard and,
by default, a per-command confirmation prompt. Long conversations are
compressed automatically to stay inside the model's context window.

With arguments it answers a single instruction and exits; without arguments
it starts an interactive session.`,
	Args:          cobra.ArbitraryArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          run,
}

func init() {
	rootCmd.Flags().StringVar(&flagWorkDir, "workdir", "", "working directory for command execution")
	rootCmd.Flags().StringVar(&flagModel, "model", "", "model name override")
	rootCmd.Flags().BoolVar(&flagNoConfirm, "no-confirm", false, "execute commands without asking")
	rootCmd.Flags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable debug logging")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	applyFlags(cfg)

	if err := logging.Initialize(cfg.LogDir, cfg.Debug); err != nil {
		fmt.Fprintf(os.Stderr, "warning: file logging disabled: %v\n", err)
	}
	defer logging.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	console := ux.NewConsole(os.Stdout, os.Stdin)

	mcpManager := mcp.NewManager()
	defer mcpManager.Cleanup()
	mcpStatus, mcpDetails := connectMCP(ctx, cfg, mcpManager)

	oracle := llm.NewClient(cfg.APIKey, cfg.BaseURL, cfg.Model)
	counter := chat.NewTokenCounter()
	stats := &agent.TokenStats{}
	summarizer := llm.NewSummarizer(oracle, agent.SummaryPrompt(), stats.AddUsage)
	compressor := history.NewCompressor(history.Config{
		MaxContextTokens:   cfg.MaxContextTokens,
		KeepRecentMessages: cfg.KeepRecentMessages,
	}, counter, summarizer)

	var confirm agent.ConfirmFunc
	if cfg.ConfirmBeforeExec {
		confirm = console.Confirm
	}
	executor := shell.NewExecutor(cfg.WorkDir)
	dispatcher := agent.NewDispatcher(executor, mcpManager, confirm, func(command string, res shell.Result) {
		console.CommandResult(res)
	}, cfg.CommandTimeout)

	ag := agent.New(oracle, dispatcher, compressor, counter, stats,
		agent.SystemPrompt(cfg, time.Now()), cfg.Temperature)
	ag.OnCompression = console.CompressionReport
	logging.Boot("session %s started (model=%s workdir=%s)", ag.SessionID(), cfg.Model, cfg.WorkDir)

	if len(args) > 0 {
		return runSingleQuery(ctx, console, ag, strings.Join(args, " "))
	}
	return runREPL(ctx, console, cfg, ag, mcpStatus, mcpDetails)
}

func applyFlags(cfg *config.Config) {
	if flagWorkDir != "" {
		cfg.WorkDir = flagWorkDir
	}
	if flagModel != "" {
		cfg.Model = flagModel
	}
	if flagNoConfirm {
		cfg.ConfirmBeforeExec = false
	}
	if flagVerbose {
		cfg.Debug = true
	}
}

// connectMCP starts the configured MCP servers, if any. Connection failures
// degrade to a status line rather than aborting the session.
func connectMCP(ctx context.Context, cfg *config.Config, manager *mcp.Manager) (status string, details []string) {
	mcpCfg, err := mcp.LoadConfig(cfg.MCPConfigPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "disabled (no config file)", nil
		}
		logging.MCPWarn("config load failed: %v", err)
		return fmt.Sprintf("disabled (%v)", err), nil
	}

	connected := manager.ConnectAll(ctx, mcpCfg)
	if connected == 0 {
		return "no servers connected", nil
	}
	tools := 0
	for server, names := range manager.ServerTools() {
		tools += len(names)
		details = append(details, fmt.Sprintf("%s: %s", server, strings.Join(names, ", ")))
	}
	return fmt.Sprintf("%d server(s), %d tool(s)", connected, tools), details
}

func runSingleQuery(ctx context.Context, console *ux.Console, ag *agent.Agent, query string) error {
	console.SingleQueryPanel(query)
	out, err := ag.HandleTurn(ctx, query)
	if err != nil {
		return err
	}
	console.AgentResponse(out)
	showStats(console, ag)
	return nil
}

func runREPL(ctx context.Context, console *ux.Console, cfg *config.Config, ag *agent.Agent, mcpStatus string, mcpDetails []string) error {
	console.StartupPanel(cfg, mcpStatus, mcpDetails)
	console.Infof("Type /help for commands, /exit to quit.")

	for {
		if ctx.Err() != nil {
			break
		}
		line, err := console.ReadLine("you> ")
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return err
		}
		if line == "" {
			continue
		}

		switch line {
		case "/exit", "/quit", "quit":
			showStats(console, ag)
			console.Infof("Goodbye.")
			return nil
		case "/help":
			console.Help(cfg, mcpStatus, mcpDetails)
			continue
		case "/clear":
			ag.Reset()
			console.Successf("conversation cleared")
			continue
		case "/stats":
			showStats(console, ag)
			continue
		case "/compress":
			console.CompressionReport(ag.Compress(ctx))
			continue
		}

		out, err := ag.HandleTurn(ctx, line)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			console.Errorf("turn failed: %v", err)
			logging.Session("[%s] turn failed: %v", ag.SessionID(), err)
			continue
		}
		console.AgentResponse(out)
	}

	showStats(console, ag)
	console.Infof("Goodbye.")
	return nil
}

func showStats(console *ux.Console, ag *agent.Agent) {
	s := ag.Stats()
	messages, estTokens := ag.TranscriptInfo()
	console.StatsTable(s.PromptTokens, s.CompletionTokens, s.TotalTokens,
		s.APICalls, s.Compressions, messages, estTokens)
}
