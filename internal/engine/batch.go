package engine

import (
	"context"
	"sync"

	"github.com/docintake/template-engine/internal/docsource"
	"github.com/docintake/template-engine/internal/errs"
	"github.com/docintake/template-engine/internal/fingerprint"
)

// BatchItem is the per-document entry of a batch operation. A document
// whose processing failed is reported as unmatched with the error
// attached; it never aborts its siblings.
type BatchItem struct {
	DocumentPath string                           `json:"document_path"`
	Outcome      *MatchOutcome                    `json:"outcome,omitempty"`
	Fingerprint  *fingerprint.DocumentFingerprint `json:"fingerprint,omitempty"`
	Error        string                           `json:"error,omitempty"`
}

// BatchMatch matches many documents concurrently. Fan-out is bounded by
// the configured concurrency limit; results keep the input order.
// Cancellation stops scheduling and is returned as a distinct error.
func (s *Service) BatchMatch(ctx context.Context, docs []*docsource.Document) ([]BatchItem, error) {
	return s.runBatch(ctx, docs, func(ctx context.Context, doc *docsource.Document) BatchItem {
		item := BatchItem{DocumentPath: doc.Path}
		outcome, err := s.MatchDocument(ctx, doc)
		if err != nil {
			if errs.IsCancelled(err) {
				item.Error = err.Error()
				return item
			}
			s.logger.Warn().Err(err).Str("document", doc.Path).Msg("document failed in batch, recording as unmatched")
			item.Outcome = &MatchOutcome{DocumentPath: doc.Path, Reason: err.Error()}
			item.Error = err.Error()
			return item
		}
		item.Outcome = outcome
		return item
	})
}

// BatchFingerprint fingerprints many documents concurrently
func (s *Service) BatchFingerprint(ctx context.Context, docs []*docsource.Document) ([]BatchItem, error) {
	return s.runBatch(ctx, docs, func(_ context.Context, doc *docsource.Document) BatchItem {
		return BatchItem{
			DocumentPath: doc.Path,
			Fingerprint:  s.docFPs.Fingerprint(doc),
		}
	})
}

// runBatch fans work out over a counting-semaphore worker pool. The
// scheduler checks cancellation between documents; items already in
// flight finish, unscheduled items are abandoned.
func (s *Service) runBatch(ctx context.Context, docs []*docsource.Document, work func(context.Context, *docsource.Document) BatchItem) ([]BatchItem, error) {
	results := make([]BatchItem, len(docs))

	// A Config built by hand may carry a zero limit; a zero-capacity
	// semaphore would block the first send forever.
	limit := s.cfg.MaxConcurrent
	if limit < 1 {
		limit = 1
	}

	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		sem = make(chan struct{}, limit)
	)

	for i, doc := range docs {
		select {
		case <-ctx.Done():
			wg.Wait()
			return nil, errs.Cancelled(ctx.Err())
		case sem <- struct{}{}:
		}

		wg.Add(1)
		go func(i int, doc *docsource.Document) {
			defer wg.Done()
			defer func() { <-sem }()

			item := work(ctx, doc)
			mu.Lock()
			results[i] = item
			mu.Unlock()
		}(i, doc)
	}

	wg.Wait()

	select {
	case <-ctx.Done():
		return nil, errs.Cancelled(ctx.Err())
	default:
	}
	return results, nil
}
