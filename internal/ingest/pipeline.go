package ingest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/bmeyer99/docaiche-sub000/internal/common"
	"github.com/bmeyer99/docaiche-sub000/internal/interfaces"
	"github.com/bmeyer99/docaiche-sub000/internal/models"
	"github.com/bmeyer99/docaiche-sub000/internal/ttl"
)

// Result reports per-document ingestion outcomes for one batch
type Result struct {
	Succeeded []models.Context7Document
	Failed    []models.Context7Document
	Errors    []error
}

// Status maps the outcome counts onto the ingestion status reported to callers
func (r *Result) Status() models.IngestionStatus {
	switch {
	case len(r.Succeeded) == 0 && len(r.Failed) == 0:
		return models.IngestionNotAttempted
	case len(r.Failed) == 0:
		return models.IngestionComplete
	case len(r.Succeeded) == 0:
		return models.IngestionFailed
	default:
		return models.IngestionPartial
	}
}

type docClassifier interface {
	Classify(doc *models.Context7Document) models.DocType
}

// Pipeline processes fetched documents through classification, quality
// analysis and TTL computation, then persists each one. Documents are
// independent: one failure never aborts the rest of the batch.
type Pipeline struct {
	storage    interfaces.DocumentStorage
	vector     interfaces.VectorSearchService
	calculator *ttl.Calculator
	classifier docClassifier
	analyzer   *QualityAnalyzer
	config     *common.IngestionConfig
	logger     arbor.ILogger
}

// NewPipeline creates an ingestion pipeline. The vector service may be nil
// when no search index is wired; persisted documents are still queryable
// through the document store.
func NewPipeline(storage interfaces.DocumentStorage, vector interfaces.VectorSearchService, calculator *ttl.Calculator, config *common.IngestionConfig, logger arbor.ILogger) *Pipeline {
	return &Pipeline{
		storage:    storage,
		vector:     vector,
		calculator: calculator,
		classifier: NewClassifier(),
		analyzer:   NewQualityAnalyzer(),
		config:     config,
		logger:     logger,
	}
}

// Ingest processes documents in sub-batches with bounded parallelism and
// returns the per-document outcomes. The context bounds the whole batch;
// cancellation marks unprocessed documents as failed.
func (p *Pipeline) Ingest(ctx context.Context, workspace string, docs []models.Context7Document) *Result {
	result := &Result{}
	if len(docs) == 0 {
		return result
	}

	batchSize := p.config.BatchSize
	if batchSize <= 0 {
		batchSize = 5
	}
	maxConcurrent := p.config.MaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = 5
	}

	start := time.Now()
	var mu sync.Mutex
	sem := make(chan struct{}, maxConcurrent)

	for offset := 0; offset < len(docs); offset += batchSize {
		end := offset + batchSize
		if end > len(docs) {
			end = len(docs)
		}
		batch := docs[offset:end]

		var wg sync.WaitGroup
		for _, doc := range batch {
			if ctx.Err() != nil {
				mu.Lock()
				result.Failed = append(result.Failed, doc)
				result.Errors = append(result.Errors, ctx.Err())
				mu.Unlock()
				continue
			}

			wg.Add(1)
			sem <- struct{}{}
			go func(doc models.Context7Document) {
				defer wg.Done()
				defer func() { <-sem }()

				err := p.ingestOne(ctx, workspace, &doc)

				mu.Lock()
				defer mu.Unlock()
				if err != nil {
					result.Failed = append(result.Failed, doc)
					result.Errors = append(result.Errors, err)
					p.logger.Warn().
						Str("doc_id", doc.ID).
						Str("technology", doc.Technology).
						Err(err).
						Msg("Document ingestion failed")
					return
				}
				result.Succeeded = append(result.Succeeded, doc)
			}(doc)
		}
		wg.Wait()
	}

	p.logger.Info().
		Str("workspace", workspace).
		Int("succeeded", len(result.Succeeded)).
		Int("failed", len(result.Failed)).
		Str("duration", time.Since(start).String()).
		Msg("Ingestion batch complete")

	return result
}

// ingestOne runs the full pipeline for a single document. Panics from
// classification or analysis are recovered and reported as that document's
// failure.
func (p *Pipeline) ingestOne(ctx context.Context, workspace string, doc *models.Context7Document) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("document processing panicked: %v", r)
		}
	}()

	doc.DocType = p.classifier.Classify(doc)
	doc.Quality = p.analyzer.Analyze(doc.Content)
	qualityScore := p.analyzer.Score(doc.Quality)

	ttlMeta, err := p.calculator.Calculate(doc, qualityScore)
	if err != nil {
		return fmt.Errorf("TTL computation failed: %w", err)
	}

	now := time.Now().UTC()
	stored := &models.StoredDocument{
		ID:         doc.ID,
		Workspace:  workspace,
		Technology: doc.Technology,
		Title:      doc.Title,
		Content:    doc.Content,
		DocType:    doc.DocType,
		Quality:    doc.Quality,
		Metadata:   doc.Metadata,
		URL:        doc.URL,
		TTL:        ttlMeta,
		IngestedAt: now,
		UpdatedAt:  now,
	}
	if stored.ID == "" {
		stored.ID = common.NewDocumentID()
		doc.ID = stored.ID
	}

	if err := p.storage.SaveDocument(stored); err != nil {
		return fmt.Errorf("failed to persist document: %w", err)
	}

	if p.vector != nil {
		if err := p.vector.Upsert(ctx, stored); err != nil {
			return fmt.Errorf("failed to index document: %w", err)
		}
	}

	p.logger.Debug().
		Str("doc_id", stored.ID).
		Str("doc_type", string(stored.DocType)).
		Int("ttl_days", ttlMeta.TTLDays).
		Msg("Document ingested")

	return nil
}
