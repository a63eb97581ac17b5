package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"finrag/internal/artifact"
	"finrag/internal/chunker"
	"finrag/internal/detect"
	"finrag/internal/embedding"
	"finrag/internal/node"
	"finrag/internal/parser"
	"finrag/internal/summarize"
	"finrag/internal/vectorstore"
)

// Summarizer describes a table image. Satisfied by
// summarize.TableSummarizer; tests use fakes.
type Summarizer interface {
	Summarize(ctx context.Context, imagePath string) (string, error)
}

// Options tunes an ingestion run.
type Options struct {
	ChunkCfg          chunker.Config
	MaxSummaryWorkers int

	// Parser overrides extension-based parser selection when set.
	Parser parser.Parser
}

// Pipeline ingests one filing: extract text, detect and crop tables,
// summarize them with the vision model, and commit everything to the
// vector store as a single logical batch.
type Pipeline struct {
	detector   detect.Detector
	renderer   artifact.Renderer
	artifacts  *artifact.Store
	summarizer Summarizer
	embedder   embedding.Embedder
	store      vectorstore.Store
	manifest   *Manifest
	log        *slog.Logger
	opts       Options
}

func New(
	detector detect.Detector,
	renderer artifact.Renderer,
	artifacts *artifact.Store,
	summarizer Summarizer,
	embedder embedding.Embedder,
	store vectorstore.Store,
	manifest *Manifest,
	log *slog.Logger,
	opts Options,
) *Pipeline {
	if opts.MaxSummaryWorkers <= 0 {
		opts.MaxSummaryWorkers = 5
	}
	return &Pipeline{
		detector:   detector,
		renderer:   renderer,
		artifacts:  artifacts,
		summarizer: summarizer,
		embedder:   embedder,
		store:      store,
		manifest:   manifest,
		log:        log,
		opts:       opts,
	}
}

type crop struct {
	page  int
	index int
	path  string
}

// Run ingests the filing at path. Without force, a document whose
// content fingerprint is already in the manifest is skipped so repeated
// runs never duplicate nodes. With force, prior artifacts and the index
// are cleared first.
func (p *Pipeline) Run(ctx context.Context, path string, force bool) (*Report, error) {
	report := &Report{Path: path, Stage: StageLoaded}

	fp, err := Fingerprint(path)
	if err != nil {
		return report, err
	}
	report.Fingerprint = fp

	if !force && p.manifest.Has(fp) {
		p.log.Info("document already ingested, skipping", "path", path, "fingerprint", fp[:12])
		report.Skipped = true
		return report, nil
	}
	if force {
		if err := p.artifacts.Clean(); err != nil {
			return report, err
		}
		if err := p.store.Clear(ctx); err != nil {
			return report, fmt.Errorf("clear index: %w", err)
		}
		if err := p.manifest.Reset(); err != nil {
			return report, err
		}
	}

	// Stage 1: text extraction.
	prs := p.opts.Parser
	if prs == nil {
		if prs, err = parser.ForFile(path); err != nil {
			return report, err
		}
	}
	f, err := os.Open(path)
	if err != nil {
		return report, fmt.Errorf("open %s: %w", path, err)
	}
	doc, err := prs.Parse(f, filepath.Base(path))
	f.Close()
	if err != nil {
		return report, err
	}
	report.Stage = StageTextExtracted

	chunks := chunker.ChunkDocument(doc, p.opts.ChunkCfg)
	p.log.Info("extracted text", "pages", len(doc.Pages), "chunks", len(chunks))

	pageResults := make(map[int]*PageResult)
	pageResult := func(n int) *PageResult {
		if pr, ok := pageResults[n]; ok {
			return pr
		}
		pr := &PageResult{Page: n}
		pageResults[n] = pr
		return pr
	}
	for _, c := range chunks {
		pageResult(c.Page).TextChunks++
	}

	// Stage 2: table detection and cropping. Only PDFs rasterize; a
	// detector or renderer failure degrades the page to text-only.
	var crops []crop
	if strings.EqualFold(filepath.Ext(path), ".pdf") {
		crops = p.detectAndCrop(ctx, path, doc, pageResult, force)
	}
	report.Stage = StageTablesDetected

	// Stage 3: vision summaries, bounded concurrency.
	tableNodes := p.summarizeTables(ctx, crops, fp, pageResult)
	report.Stage = StageTablesSummarized

	// Stage 4: embed and commit as one batch.
	nodes := make([]node.Node, 0, len(chunks)+len(tableNodes))
	fileName := filepath.Base(path)
	for _, c := range chunks {
		nodes = append(nodes, node.Node{
			ID:             uuid.NewString(),
			Kind:           node.KindText,
			Text:           c.Text,
			Page:           c.Page,
			FileName:       fileName,
			DocFingerprint: fp,
		})
	}
	nodes = append(nodes, tableNodes...)
	report.TextNodes = len(chunks)
	report.TableNodes = len(tableNodes)

	if len(nodes) == 0 {
		return report, fmt.Errorf("no indexable content in %s", path)
	}

	vectors, err := p.embedAll(ctx, nodes)
	if err != nil {
		return report, fmt.Errorf("embed nodes: %w", err)
	}
	if err := p.store.Init(ctx, len(vectors[0])); err != nil {
		return report, fmt.Errorf("init index: %w", err)
	}
	if err := p.store.Add(ctx, nodes, vectors); err != nil {
		return report, fmt.Errorf("index persistence: %w", err)
	}

	if err := p.manifest.Put(fp, ManifestEntry{
		Path:       path,
		Nodes:      len(nodes),
		IngestedAt: time.Now().UTC(),
	}); err != nil {
		return report, err
	}

	for _, pr := range pageResults {
		report.Pages = append(report.Pages, *pr)
	}
	sort.Slice(report.Pages, func(i, j int) bool { return report.Pages[i].Page < report.Pages[j].Page })
	report.Stage = StageIndexed

	p.log.Info("ingestion complete",
		"text_nodes", report.TextNodes,
		"table_nodes", report.TableNodes,
		"degraded_pages", report.DegradedPages(),
	)
	return report, nil
}

func (p *Pipeline) detectAndCrop(ctx context.Context, path string, doc *parser.Document, pageResult func(int) *PageResult, force bool) []crop {
	var crops []crop
	tableIndex := 0
	for _, page := range doc.Pages {
		pr := pageResult(page.Number)

		img, err := p.renderer.RenderPage(ctx, path, page.Number)
		if err != nil {
			p.log.Warn("page render failed, skipping tables", "page", page.Number, "error", err)
			pr.TablesSkipped = true
			continue
		}

		regions, err := p.detector.DetectTables(ctx, img)
		if err != nil {
			p.log.Warn("table detection failed, skipping tables", "page", page.Number, "error", err)
			pr.TablesSkipped = true
			continue
		}

		for _, region := range regions {
			artifactPath, err := p.artifacts.SaveCrop(img, region, page.Number, tableIndex, force)
			if err != nil {
				p.log.Warn("crop failed", "page", page.Number, "table", tableIndex, "error", err)
				pr.Tables = append(pr.Tables, TableResult{Page: page.Number, Index: tableIndex, Error: err.Error()})
				tableIndex++
				continue
			}
			crops = append(crops, crop{page: page.Number, index: tableIndex, path: artifactPath})
			tableIndex++
		}
	}
	return crops
}

// summarizeTables runs vision summaries with bounded concurrency,
// retrying transient provider failures. A table whose summary keeps
// failing is indexed with a placeholder so the filing's text and the
// other tables are never lost.
func (p *Pipeline) summarizeTables(ctx context.Context, crops []crop, fingerprint string, pageResult func(int) *PageResult) []node.Node {
	if len(crops) == 0 {
		return nil
	}

	type result struct {
		crop        crop
		summary     string
		placeholder bool
	}
	results := make(chan result, len(crops))
	sem := make(chan struct{}, p.opts.MaxSummaryWorkers)

	for _, c := range crops {
		sem <- struct{}{}
		go func(c crop) {
			defer func() { <-sem }()

			var summary string
			var lastErr error
			for attempt := 0; attempt < MaxRetries; attempt++ {
				summary, lastErr = p.summarizer.Summarize(ctx, c.path)
				if lastErr == nil || !IsRetryable(lastErr) || attempt == MaxRetries-1 {
					break
				}
				p.log.Warn("retryable summarization error", "table", c.path, "attempt", attempt, "error", lastErr)
				select {
				case <-time.After(Backoff(attempt)):
				case <-ctx.Done():
					lastErr = ctx.Err()
				}
				if ctx.Err() != nil {
					break
				}
			}

			if lastErr != nil {
				p.log.Error("summarization failed, indexing placeholder", "table", c.path, "error", lastErr)
				results <- result{crop: c, summary: summarize.Placeholder(c.path), placeholder: true}
				return
			}
			results <- result{crop: c, summary: summary}
		}(c)
	}

	nodes := make([]node.Node, 0, len(crops))
	for range crops {
		r := <-results
		pr := pageResult(r.crop.page)
		pr.Tables = append(pr.Tables, TableResult{
			Page:         r.crop.page,
			Index:        r.crop.index,
			ArtifactPath: r.crop.path,
			Placeholder:  r.placeholder,
		})
		nodes = append(nodes, node.Node{
			ID:             uuid.NewString(),
			Kind:           node.KindTableSummary,
			Text:           r.summary,
			Page:           r.crop.page,
			ImagePath:      r.crop.path,
			FileName:       filepath.Base(r.crop.path),
			DocFingerprint: fingerprint,
		})
	}
	return nodes
}

const embedBatchSize = 32

func (p *Pipeline) embedAll(ctx context.Context, nodes []node.Node) ([][]float64, error) {
	vectors := make([][]float64, 0, len(nodes))
	for start := 0; start < len(nodes); start += embedBatchSize {
		end := start + embedBatchSize
		if end > len(nodes) {
			end = len(nodes)
		}
		texts := make([]string, 0, end-start)
		for _, n := range nodes[start:end] {
			texts = append(texts, n.Text)
		}
		batch, err := p.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return nil, err
		}
		vectors = append(vectors, batch...)
	}
	return vectors, nil
}
