package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"

	"finrag/internal/artifact"
	"finrag/internal/chunker"
	"finrag/internal/config"
	"finrag/internal/detect"
	"finrag/internal/embedding"
	"finrag/internal/llm"
	"finrag/internal/parser"
	"finrag/internal/pipeline"
	"finrag/internal/query"
	"finrag/internal/summarize"
	"finrag/internal/tui"
	"finrag/internal/vectorstore"
	"finrag/internal/vectorstore/local"
	"finrag/internal/vectorstore/qdrant"
	"finrag/internal/web"
)

const usage = `finrag - financial report RAG over text and tables

Usage:
  finrag ingest [-pdf <path>] [-force]   index a filing (default: every supported file in the data dir)
  finrag query <question>                ask a one-shot question
  finrag app [-addr <addr>]              serve the chat web UI
  finrag chat                            interactive terminal chat
  finrag help                            show this help
`

func main() {
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	cmd, args := os.Args[1], os.Args[2:]
	if cmd == "help" || cmd == "-h" || cmd == "--help" {
		fmt.Print(usage)
		return
	}

	log := slog.New(slog.NewJSONHandler(os.Stderr, nil))
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	var err error
	switch cmd {
	case "ingest":
		err = runIngest(cfg, log, args)
	case "query":
		err = runQuery(cfg, log, args)
	case "app":
		err = runApp(cfg, log, args)
	case "chat":
		err = runChat(cfg, args)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", cmd, usage)
		os.Exit(2)
	}
	if err != nil {
		log.Error(cmd+" failed", "error", err)
		os.Exit(1)
	}
}

func runIngest(cfg config.Config, log *slog.Logger, args []string) error {
	fs := flag.NewFlagSet("ingest", flag.ExitOnError)
	pdfPath := fs.String("pdf", "", "path to a single filing; default is every supported file in the data dir")
	force := fs.Bool("force", false, "re-ingest even if already indexed, clearing prior artifacts and index")
	fs.Parse(args)

	paths, err := ingestTargets(*pdfPath, cfg.DataDir)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	stats := llm.NewStats(15 * time.Minute)
	client, err := buildLLM(ctx, cfg, stats)
	if err != nil {
		return err
	}
	embedder, err := buildEmbedder(cfg)
	if err != nil {
		return err
	}
	store, err := buildStore(cfg)
	if err != nil {
		return err
	}
	manifest, err := pipeline.LoadManifest(cfg.StorageDir)
	if err != nil {
		return err
	}

	p := pipeline.New(
		detect.NewHTTPDetector(cfg.DetectorURL, cfg.DetectorConfidence, log),
		artifact.NewPdftoppmRenderer(cfg.RenderDPI),
		artifact.NewStore(cfg.TablesDir),
		summarize.NewTableSummarizer(client, cfg.VisionModel),
		embedder,
		store,
		manifest,
		log,
		pipeline.Options{
			ChunkCfg: chunker.Config{
				ChunkSize:    cfg.ChunkSize,
				ChunkOverlap: cfg.ChunkOverlap,
				MinChunk:     20,
			},
			MaxSummaryWorkers: cfg.MaxSummaryWorkers,
		},
	)

	for i, path := range paths {
		// Force clears the whole index, so only apply it to the first run.
		report, err := p.Run(ctx, path, *force && i == 0)
		if err != nil {
			return fmt.Errorf("ingest %s: %w", path, err)
		}
		if report.Skipped {
			fmt.Printf("%s: already ingested, skipped (use -force to re-ingest)\n", path)
			continue
		}
		fmt.Printf("%s: %d text nodes, %d table nodes", path, report.TextNodes, report.TableNodes)
		if n := report.DegradedPages(); n > 0 {
			fmt.Printf(", %d degraded pages", n)
		}
		fmt.Println()
	}
	return nil
}

func ingestTargets(pdfPath, dataDir string) ([]string, error) {
	if pdfPath != "" {
		if _, err := os.Stat(pdfPath); err != nil {
			return nil, fmt.Errorf("filing not found: %w", err)
		}
		return []string{pdfPath}, nil
	}
	entries, err := os.ReadDir(dataDir)
	if err != nil {
		return nil, fmt.Errorf("read data dir %s: %w", dataDir, err)
	}
	var paths []string
	for _, e := range entries {
		if e.IsDir() || !parser.IsSupportedExtension(e.Name()) {
			continue
		}
		paths = append(paths, filepath.Join(dataDir, e.Name()))
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no supported files in %s", dataDir)
	}
	sort.Strings(paths)
	return paths, nil
}

func runQuery(cfg config.Config, log *slog.Logger, args []string) error {
	fs := flag.NewFlagSet("query", flag.ExitOnError)
	fs.Parse(args)
	question := strings.TrimSpace(strings.Join(fs.Args(), " "))
	if question == "" {
		return fmt.Errorf("usage: finrag query <question>")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	engine, _, err := buildEngine(ctx, cfg, log)
	if err != nil {
		return err
	}
	answer, err := engine.Ask(ctx, question)
	if err != nil {
		return err
	}

	fmt.Println(answer.Text)
	if len(answer.Images) > 0 {
		fmt.Println("\nSource tables:")
		for _, img := range answer.Images {
			fmt.Println("  " + img)
		}
	}
	return nil
}

func runApp(cfg config.Config, log *slog.Logger, args []string) error {
	fs := flag.NewFlagSet("app", flag.ExitOnError)
	addr := fs.String("addr", ":"+cfg.Port, "listen address")
	fs.Parse(args)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	stats := llm.NewStats(15 * time.Minute)
	client, err := buildLLM(ctx, cfg, stats)
	if err != nil {
		return err
	}
	embedder, err := buildEmbedder(cfg)
	if err != nil {
		return err
	}
	store, err := buildStore(cfg)
	if err != nil {
		return err
	}
	engine := query.New(embedder, store, client, cfg.LLMModel, cfg.TopK, log)
	srv := web.NewServer(engine, store, stats, cfg.LLMModel, cfg.TablesDir, log)

	httpServer := &http.Server{
		Addr:         *addr,
		Handler:      srv,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		log.Info("shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		httpServer.Shutdown(shutdownCtx)
	}()

	log.Info("serving chat UI", "addr", *addr, "model", cfg.LLMModel)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func runChat(cfg config.Config, args []string) error {
	// The TUI owns the terminal; route logs away from it.
	log := slog.New(slog.NewJSONHandler(io.Discard, nil))

	ctx := context.Background()
	engine, _, err := buildEngine(ctx, cfg, log)
	if err != nil {
		return err
	}

	_, err = tea.NewProgram(tui.New(engine), tea.WithAltScreen()).Run()
	return err
}

func buildEngine(ctx context.Context, cfg config.Config, log *slog.Logger) (*query.Engine, *llm.Stats, error) {
	stats := llm.NewStats(15 * time.Minute)
	client, err := buildLLM(ctx, cfg, stats)
	if err != nil {
		return nil, nil, err
	}
	embedder, err := buildEmbedder(cfg)
	if err != nil {
		return nil, nil, err
	}
	store, err := buildStore(cfg)
	if err != nil {
		return nil, nil, err
	}
	return query.New(embedder, store, client, cfg.LLMModel, cfg.TopK, log), stats, nil
}

func buildLLM(ctx context.Context, cfg config.Config, stats *llm.Stats) (llm.Client, error) {
	switch cfg.Provider {
	case "gemini":
		return llm.NewGeminiClient(ctx, cfg.GeminiAPIKey, stats)
	default:
		return llm.NewOpenRouterClient(cfg.BaseURL, cfg.OpenRouterAPIKey, cfg.LLMTimeout, stats), nil
	}
}

func buildEmbedder(cfg config.Config) (embedding.Embedder, error) {
	// Embeddings always go through the OpenAI-compatible endpoint, even
	// when chat uses Gemini, so ingest and query share one vector space.
	return embedding.NewClient(embedding.Config{
		BaseURL: cfg.BaseURL,
		APIKey:  cfg.OpenRouterAPIKey,
		Model:   cfg.EmbedModel,
		Timeout: cfg.LLMTimeout,
	})
}

func buildStore(cfg config.Config) (vectorstore.Store, error) {
	switch cfg.StoreBackend {
	case "qdrant":
		return qdrant.NewStore(qdrant.Config{
			URL:        cfg.QdrantURL,
			APIKey:     cfg.QdrantAPIKey,
			Collection: cfg.QdrantCollection,
		}), nil
	default:
		return local.Open(cfg.StorageDir)
	}
}
