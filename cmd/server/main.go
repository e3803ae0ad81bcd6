package main

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/leonardcser/imoney-mcp/internal/config"
	"github.com/leonardcser/imoney-mcp/internal/ipc"
	"github.com/leonardcser/imoney-mcp/internal/logger"
	"github.com/leonardcser/imoney-mcp/internal/prefs"
	"github.com/leonardcser/imoney-mcp/internal/session"
	"github.com/leonardcser/imoney-mcp/internal/tools"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if err := logger.Init(cfg.Log.Path, logger.Options{Level: cfg.Log.Level, Format: cfg.Log.Format, Prefix: "mcp"}); err != nil {
		panic(err)
	}
	defer logger.Close()

	logger.Infof("Starting iMoney MCP server")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Connect to rates daemon; start it if needed, then connect.
	sock := cfg.Daemon.Socket
	logger.Infof("Attempting to connect to rates daemon at %s", sock)
	client := ipc.NewClient(sock)
	if err := client.Ping(ctx); err != nil {
		logger.Warnf("Failed to connect to rates daemon: %v, attempting to start daemon", err)
		if startErr := startDaemon(cfg.Daemon.Binary); startErr != nil {
			logger.Errorf("Failed to start rates daemon: %v", startErr)
		} else {
			logger.Infof("Rates daemon started successfully")
		}
		// wait for socket to appear
		deadline := time.Now().Add(5 * time.Second)
		for time.Now().Before(deadline) {
			if err = client.Ping(ctx); err == nil {
				break
			}
			time.Sleep(200 * time.Millisecond)
		}
		if err != nil {
			logger.Errorf("Failed to connect to rates daemon after startup attempt: %v", err)
			panic(err)
		}
	}
	logger.Infof("Successfully connected to rates daemon")

	sess := session.New(prefs.New(client), client)
	sess.Load(ctx)
	go func() {
		if err := sess.Follow(ctx, session.DefaultFollowPolicy()); err != nil && ctx.Err() == nil {
			logger.Errorf("preference watch stopped: %v", err)
		}
	}()
	logger.Infof("Loaded preferences: %v, language %s", sess.Currencies(), sess.Language())

	s := server.NewMCPServer(
		"iMoney",
		"0.1.0",
		server.WithRecovery(),
		server.WithToolCapabilities(false),
	)

	s.AddTool(mcp.NewTool("convert",
		mcp.WithDescription(multiline(
			"Converts an amount into every displayed currency using the latest exchange rates",
			"\nUsage notes:",
			"- Defaults to 100 USD when no amount or currency is given",
			"- Rates are cached for 30 minutes; when the provider is unreachable the last known rates are used",
			"- Results are rounded to 2 decimal places",
		)),
		mcp.WithNumber("amount", mcp.Description("Amount of the source currency, 0 or more"), mcp.Min(0)),
		mcp.WithString("currency", mcp.Description("ISO 4217 code of the source currency, e.g. USD")),
	), tools.ConvertHandler(sess))

	s.AddTool(mcp.NewTool("list-currencies",
		mcp.WithDescription("Lists the displayed currencies and the ones that can be added"),
	), tools.ListCurrenciesHandler(sess))

	s.AddTool(mcp.NewTool("add-currency",
		mcp.WithDescription("Adds a supported currency to the displayed list"),
		mcp.WithString("code", mcp.Required(), mcp.Description("ISO 4217 code, e.g. EUR")),
	), tools.AddCurrencyHandler(sess))

	s.AddTool(mcp.NewTool("remove-currency",
		mcp.WithDescription("Removes a currency from the displayed list. USD is pinned and cannot be removed"),
		mcp.WithString("code", mcp.Required(), mcp.Description("ISO 4217 code, e.g. EUR")),
	), tools.RemoveCurrencyHandler(sess))

	s.AddTool(mcp.NewTool("set-language",
		mcp.WithDescription("Sets the interface language"),
		mcp.WithString("language", mcp.Required(), mcp.Enum("en", "zh"), mcp.Description("en or zh")),
	), tools.SetLanguageHandler(sess))

	s.AddTool(mcp.NewTool("toggle-language",
		mcp.WithDescription("Switches the interface language between English and Chinese"),
	), tools.ToggleLanguageHandler(sess))
	logger.Infof("Registered tools")

	logger.Infof("Starting MCP server on stdio")
	if err := server.ServeStdio(s); err != nil {
		logger.Errorf("server error: %v", err)
	}
}

// multiline joins lines with newlines for tool descriptions.
func multiline(lines ...string) string { return strings.Join(lines, "\n") }

func startDaemon(name string) error {
	// 1) Try daemon binary next to this server executable
	if exePath, err := os.Executable(); err == nil {
		sibling := filepath.Join(filepath.Dir(exePath), name)
		if _, statErr := os.Stat(sibling); statErr == nil {
			return spawn(sibling)
		}
	}
	// 2) Try PATH binary
	if path, err := exec.LookPath(name); err == nil {
		return spawn(path)
	}
	return exec.ErrNotFound
}

func spawn(path string) error {
	cmd := exec.Command(path)
	cmd.Env = os.Environ()
	return cmd.Start()
}
