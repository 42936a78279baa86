// Package main is the tanya CLI entry point.
package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/hyperjump/tanya/internal/answer"
	"github.com/hyperjump/tanya/internal/audit"
	"github.com/hyperjump/tanya/internal/auth"
	"github.com/hyperjump/tanya/internal/cli"
	"github.com/hyperjump/tanya/internal/config"
	"github.com/hyperjump/tanya/internal/extract"
	"github.com/hyperjump/tanya/internal/indexer"
	"github.com/hyperjump/tanya/internal/keyword"
	"github.com/hyperjump/tanya/internal/models"
	"github.com/hyperjump/tanya/internal/pipeline"
	"github.com/hyperjump/tanya/internal/scheduler"
	"github.com/hyperjump/tanya/internal/search"
	"github.com/hyperjump/tanya/internal/server"
	"github.com/hyperjump/tanya/internal/watcher"
	"github.com/hyperjump/tanya/pkg/utils"
	"go.uber.org/zap"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/tanya/config.yaml"

// loadConfig loads config from path. When path is the default, it first looks for
// config.yaml in the current directory (for development); if that exists it is used.
// Returns the config and the path that was actually loaded.
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

// loadConfigOrDefaults is loadConfig for commands that can run without a config file.
// Only a missing default config falls back to built-in defaults.
func loadConfigOrDefaults(path string) (*config.Config, error) {
	cfg, _, err := loadConfig(path)
	if err == nil {
		return cfg, nil
	}
	if path == defaultConfigPath && errors.Is(err, os.ErrNotExist) {
		cfg = &config.Config{}
		config.ApplyDefaults(cfg)
		return cfg, nil
	}
	return nil, err
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "server":
		runServer()
	case "ask":
		runAsk()
	case "chunk":
		runChunk()
	case "status":
		runStatus()
	case "hash-password":
		runHashPassword()
	case "version", "--version", "-v":
		fmt.Printf("tanya version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

// Components holds the wired core and collaborators.
type Components struct {
	Snapshots *search.SnapshotStore
	Indexer   *indexer.Indexer
	Pipeline  *pipeline.Pipeline
	Auth      *auth.Manager
	Audit     audit.Recorder
	closers   []io.Closer
}

// Close releases the session and audit stores.
func (c *Components) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		_ = c.closers[i].Close()
	}
}

// initializeComponents builds the document core. With withAccess it also opens the
// session store and the audit trail used by the HTTP server.
func initializeComponents(ctx context.Context, cfg *config.Config, logger *zap.Logger, withAccess bool) (*Components, error) {
	analyzer, err := keyword.NewAnalyzer()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize analyzer: %w", err)
	}
	snapshots := search.NewSnapshotStore(nil)
	idx := indexer.NewIndexer(snapshots, analyzer, cfg, extract.NewExtractor(), indexer.WithLogger(logger))
	p := pipeline.New(snapshots,
		search.NewRetriever(analyzer, search.WithTopK(cfg.Retrieval.TopK, cfg.Retrieval.MaxTopK)),
		search.NewConfidenceScorer(cfg.Answer.HighThreshold, cfg.Answer.MediumThreshold),
		answer.NewGenerator(
			answer.WithSupportRatio(cfg.Answer.SupportRatio),
			answer.WithMediumThreshold(cfg.Answer.MediumThreshold),
		),
		pipeline.WithLogger(logger),
	)
	c := &Components{Snapshots: snapshots, Indexer: idx, Pipeline: p, Audit: audit.Nop{}}
	if !withAccess {
		return c, nil
	}

	users, err := auth.NewDirectory(cfg.Auth.Users)
	if err != nil {
		return nil, fmt.Errorf("failed to load users: %w", err)
	}
	if users.Len() == 0 {
		logger.Warn("no users configured; every login will fail")
	}
	store, err := auth.NewStore(ctx, &cfg.Auth)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize session store: %w", err)
	}
	c.Auth = auth.NewManager(users, store,
		auth.WithSessionTTL(cfg.Auth.SessionTTL),
		auth.WithLogger(logger),
	)
	c.closers = append(c.closers, c.Auth)

	if cfg.Audit.EnabledOrDefault() {
		rec, err := audit.NewSQLiteStore(cfg.Audit.DatabasePath)
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("failed to initialize audit store: %w", err)
		}
		c.Audit = rec
		c.closers = append(c.closers, rec)
	}
	return c, nil
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging (reloads, retrieval details, etc.)")
	_ = fs.Parse(os.Args[2:])

	cfg, resolvedConfigPath, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	debugMode := cfg.Debug || *debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("config loaded",
		zap.String("config_path", resolvedConfigPath),
		zap.Bool("debug", debugMode),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	components, err := initializeComponents(ctx, cfg, logger, true)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	idx := components.Indexer
	if _, err := idx.Reload(ctx); err != nil {
		logger.Warn("initial document load failed; serving an empty snapshot", zap.Error(err))
	}
	reload := func(ctx context.Context) error {
		_, err := idx.Reload(ctx)
		return err
	}

	if cfg.Documents.Watch {
		watchOpts := []watcher.WatcherOption{}
		if debugMode {
			watchOpts = append(watchOpts, watcher.WithLogger(logger))
		}
		watchSvc := watcher.NewWatcher(
			idx.Directories(),
			cfg.Documents.Extensions,
			cfg.Documents.RecursiveOrDefault(),
			func() {
				if err := reload(ctx); err != nil {
					logger.Warn("reload after file change failed", zap.Error(err))
				}
			},
			watchOpts...,
		)
		if err := watchSvc.Start(ctx); err != nil {
			logger.Fatal("Failed to start watcher", zap.Error(err))
		}
		defer watchSvc.Stop()
	}

	srv := server.NewServer(
		components.Pipeline,
		components.Snapshots,
		idx,
		components.Auth,
		components.Audit,
		cfg,
		logger,
	)

	sched := scheduler.New(scheduler.WithLogger(logger))
	if err := sched.Add("session-cleanup", cfg.Auth.CleanupSchedule, func(ctx context.Context) error {
		if n := srv.PruneLoginClients(); n > 0 {
			logger.Debug("idle login clients pruned", zap.Int("count", n))
		}
		_, err := components.Auth.Cleanup(ctx)
		return err
	}); err != nil {
		logger.Fatal("Failed to schedule session cleanup", zap.Error(err))
	}
	if err := sched.Add("document-reload", cfg.Documents.ReloadSchedule, reload); err != nil {
		logger.Fatal("Failed to schedule document reload", zap.Error(err))
	}
	sched.Start()

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	sched.Stop(shutdownCtx)
	_ = srv.Stop(shutdownCtx)
}

// argsReorder moves any flags (and their values) that appear after the question
// to the front of the slice so that flag.Parse() sees them. Go's flag package
// stops at the first non-flag argument.
func argsReorder(args []string) []string {
	for i, a := range args {
		if len(a) > 0 && a[0] == '-' {
			if i == 0 {
				return args
			}
			reordered := make([]string, 0, len(args))
			reordered = append(reordered, args[i:]...)
			reordered = append(reordered, args[:i]...)
			return reordered
		}
	}
	return args
}

// buildQuestion joins all positional args with spaces so multi-word questions
// work the same with or without shell quoting.
func buildQuestion(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

func printAskUsage(fs *flag.FlagSet) {
	fmt.Fprintf(fs.Output(), "Usage: tanya ask [flags] <question>\n\n")
	fmt.Fprintf(fs.Output(), "Question is all remaining arguments joined by spaces.\n\n")
	fs.PrintDefaults()
	fmt.Fprintf(fs.Output(), `
Without --server the question is answered in-process from the configured document
directories. With --server it is sent to a running tanya server; pass --token, or
--email and --password to log in first.

Examples:
  tanya ask what documents are required to open an account
  tanya ask --output json "how do I block a lost card?"
  tanya ask --server http://localhost:8080 --email agent@bank.example --password secret close an account
`)
}

func runAsk() {
	fs := flag.NewFlagSet("ask", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path (in-process mode)")
	serverURL := fs.String("server", "", "server URL including any base path (empty = answer in-process)")
	email := fs.String("email", "", "login email (server mode)")
	password := fs.String("password", "", "login password (server mode)")
	token := fs.String("token", "", "session token (server mode)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	fs.Usage = func() { printAskUsage(fs) }
	_ = fs.Parse(argsReorder(os.Args[2:]))

	question := buildQuestion(fs.Args())
	if question == "" {
		printAskUsage(fs)
		os.Exit(1)
	}
	format, err := cli.ParseOutputFormat(*outputFormat)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	var resp *models.AskResponse
	if *serverURL != "" {
		client := &apiClient{baseURL: *serverURL, token: *token, http: &http.Client{Timeout: 60 * time.Second}}
		if client.token == "" {
			if err := client.login(*email, *password); err != nil {
				fmt.Fprintf(os.Stderr, "Login failed: %v\n", err)
				os.Exit(1)
			}
		}
		resp, err = client.ask(question)
	} else {
		resp, err = askInProcess(*configPath, question)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Ask failed: %v\n", err)
		os.Exit(1)
	}
	if err := cli.WriteAnswer(os.Stdout, resp, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func askInProcess(configPath, question string) (*models.AskResponse, error) {
	cfg, err := loadConfigOrDefaults(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger := utils.MustLogger(cfg.Debug)
	defer logger.Sync()

	ctx := context.Background()
	components, err := initializeComponents(ctx, cfg, logger, false)
	if err != nil {
		return nil, err
	}
	defer components.Close()
	if _, err := components.Indexer.Reload(ctx); err != nil {
		return nil, fmt.Errorf("load documents: %w", err)
	}
	ans, err := components.Pipeline.Ask(question)
	if err != nil {
		return nil, err
	}
	return &models.AskResponse{Question: question, Answer: *ans}, nil
}

func runChunk() {
	fs := flag.NewFlagSet("chunk", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path (chunk size and overlap)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(argsReorder(os.Args[2:]))

	if fs.NArg() != 1 {
		fmt.Println("Usage: tanya chunk [flags] <file>")
		os.Exit(1)
	}
	format, err := cli.ParseOutputFormat(*outputFormat)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	cfg, err := loadConfigOrDefaults(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	doc, chunks, err := chunkFile(cfg, fs.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Chunking failed: %v\n", err)
		os.Exit(1)
	}
	if err := cli.WriteChunks(os.Stdout, doc, chunks, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

// chunkFile extracts and chunks a single file with the configured chunk settings.
func chunkFile(cfg *config.Config, path string) (*models.Document, []models.Chunk, error) {
	analyzer, err := keyword.NewAnalyzer()
	if err != nil {
		return nil, nil, err
	}
	idx := indexer.NewIndexer(search.NewSnapshotStore(nil), analyzer, cfg, extract.NewExtractor())
	doc, err := idx.LoadFile(path)
	if err != nil {
		return nil, nil, err
	}
	return doc, idx.Chunker().Chunk(doc), nil
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path (in-process mode)")
	serverURL := fs.String("server", "http://localhost:8080", "server URL (empty = load documents in-process)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	format, err := cli.ParseOutputFormat(*outputFormat)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	var status map[string]interface{}
	if *serverURL != "" {
		client := &apiClient{baseURL: *serverURL, http: &http.Client{Timeout: 10 * time.Second}}
		status, err = client.status()
	} else {
		status, err = statusInProcess(*configPath)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Status failed: %v\n", err)
		os.Exit(1)
	}
	if err := cli.WriteStatus(os.Stdout, status, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func statusInProcess(configPath string) (map[string]interface{}, error) {
	cfg, err := loadConfigOrDefaults(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	ctx := context.Background()
	components, err := initializeComponents(ctx, cfg, zap.NewNop(), false)
	if err != nil {
		return nil, err
	}
	defer components.Close()
	snap, err := components.Indexer.Reload(ctx)
	if err != nil {
		return nil, fmt.Errorf("load documents: %w", err)
	}
	status := map[string]interface{}{
		"documents": snap.DocumentCount(),
		"chunks":    snap.ChunkCount(),
		"config": map[string]interface{}{
			"directories":   cfg.Documents.Directories,
			"chunk_size":    cfg.Chunking.ChunkSize,
			"chunk_overlap": cfg.Chunking.ChunkOverlap,
			"top_k":         cfg.Retrieval.TopK,
		},
	}
	if cfg.Audit.EnabledOrDefault() {
		if n, err := audit.DiskUsageBytes(cfg.Audit.DatabasePath); err == nil {
			status["audit_disk_usage_bytes"] = n
		}
	}
	return status, nil
}

func runHashPassword() {
	var password string
	if len(os.Args) > 2 {
		password = os.Args[2]
	} else {
		fmt.Fprint(os.Stderr, "Password: ")
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil && line == "" {
			fmt.Fprintf(os.Stderr, "Failed to read password: %v\n", err)
			os.Exit(1)
		}
		password = strings.TrimRight(line, "\r\n")
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Hashing failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(hash)
}

// apiClient talks to a running tanya server.
type apiClient struct {
	baseURL string
	token   string
	http    *http.Client
}

func (c *apiClient) url(path string) string {
	return strings.TrimRight(c.baseURL, "/") + path
}

func (c *apiClient) do(method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, c.url(path), reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *apiClient) login(email, password string) error {
	if email == "" || password == "" {
		return errors.New("--token or both --email and --password are required")
	}
	var out struct {
		Success      bool   `json:"success"`
		SessionToken string `json:"session_token"`
		Message      string `json:"message"`
	}
	if err := c.do(http.MethodPost, "/login", map[string]string{"email": email, "password": password}, &out); err != nil {
		return err
	}
	if !out.Success || out.SessionToken == "" {
		return fmt.Errorf("login rejected: %s", out.Message)
	}
	c.token = out.SessionToken
	return nil
}

func (c *apiClient) ask(question string) (*models.AskResponse, error) {
	var out models.AskResponse
	if err := c.do(http.MethodPost, "/ask", models.AskRequest{Question: question}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *apiClient) status() (map[string]interface{}, error) {
	var out map[string]interface{}
	if err := c.do(http.MethodGet, "/status", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func printUsage() {
	fmt.Println(`tanya - Banking procedure Q&A over your document library

Usage:
  tanya server [flags]              Start the HTTP server
  tanya ask [flags] <question>      Answer a question
  tanya chunk [flags] <file>        Show how a document is chunked
  tanya status [flags]              Show loaded documents and settings
  tanya hash-password [password]    Print a bcrypt hash for the users list
  tanya version                     Show version
  tanya help                        Show this help

Server Flags:
  --config string    Config file path (default: /usr/local/etc/tanya/config.yaml)
  --debug            Enable debug logging

Ask Flags:
  --config string    Config file path (in-process mode)
  --server string    Server URL including any base path. Empty (default) answers in-process.
  --email string     Login email (server mode)
  --password string  Login password (server mode)
  --token string     Session token from a previous login (server mode)
  --output string    Output format: text or json (default: text)

Chunk Flags:
  --config string    Config file path (chunk size and overlap)
  --output string    Output format: text or json (default: text)

Status Flags:
  --config string    Config file path (in-process mode)
  --server string    Server URL (default: http://localhost:8080). Use empty (--server "") to load in-process.
  --output string    Output format: text or json (default: text)

Examples:
  tanya server
  tanya ask what documents are required to open an account
  tanya ask --output json "how do I block a lost card?"
  tanya chunk procedures/account-opening.pdf
  tanya status --output json
  tanya hash-password 's3cret'`)
}
