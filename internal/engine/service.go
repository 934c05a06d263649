package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/docintake/template-engine/internal/config"
	"github.com/docintake/template-engine/internal/docsource"
	"github.com/docintake/template-engine/internal/extract"
	"github.com/docintake/template-engine/internal/fingerprint"
	"github.com/docintake/template-engine/internal/inherit"
	"github.com/docintake/template-engine/internal/logging"
	"github.com/docintake/template-engine/internal/match"
	"github.com/docintake/template-engine/internal/store"
	"github.com/docintake/template-engine/internal/template"
)

// MatchOutcome is the full result of matching one document: the winning
// template, its resolved form, and the extracted fields. An unmatched
// document carries an explicit zero confidence and a reason, never a
// silent absence.
type MatchOutcome struct {
	DocumentPath string                           `json:"document_path"`
	Matched      bool                             `json:"matched"`
	Reason       string                           `json:"reason,omitempty"`
	Fingerprint  *fingerprint.DocumentFingerprint `json:"fingerprint,omitempty"`
	Match        *match.MatchResult               `json:"match,omitempty"`
	Resolved     *inherit.ResolvedTemplate        `json:"resolved,omitempty"`
	Extraction   *extract.TemplateResult          `json:"extraction,omitempty"`
}

// Confidence returns the outcome's overall confidence; unmatched
// documents always report 0.0
func (o *MatchOutcome) Confidence() float64 {
	if !o.Matched || o.Match == nil {
		return 0.0
	}
	return o.Match.Score.Overall
}

// Service wires the fingerprinting, scoring, extraction, and inheritance
// subsystems over a template store
type Service struct {
	cfg      *config.Config
	store    *store.Store
	docFPs   *fingerprint.DocumentFingerprinter
	tmplFPs  *fingerprint.TemplateFingerprinter
	regexes  *fingerprint.RegexCache
	ranker   *match.Ranker
	pipeline *extract.Pipeline
	resolver *inherit.Resolver
	logger   *logging.Logger
	now      func() time.Time
}

// Option configures optional service collaborators
type Option func(*options)

type options struct {
	zones extract.ZoneExtractor
	ocr   extract.OCRProvider
}

// WithZoneExtractor wires the coordinate-extraction collaborator
func WithZoneExtractor(z extract.ZoneExtractor) Option {
	return func(o *options) { o.zones = z }
}

// WithOCRProvider wires the OCR collaborator
func WithOCRProvider(p extract.OCRProvider) Option {
	return func(o *options) { o.ocr = p }
}

// New creates the engine service
func New(cfg *config.Config, st *store.Store, logger *logging.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = logging.Nop()
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	regexes := fingerprint.NewRegexCache()
	tmplFPs := fingerprint.NewTemplateFingerprinter()
	weights := cfg.ScoreWeights()
	scorer := match.NewScorer(match.ScorerConfig{
		FuzzyKeywords:  cfg.FuzzyMatching,
		FuzzyThreshold: cfg.FuzzyThreshold,
		DefaultWeights: &weights,
	})

	pipelineOpts := []extract.Option{}
	if o.zones != nil {
		pipelineOpts = append(pipelineOpts, extract.WithZoneExtractor(o.zones))
	}
	if o.ocr != nil {
		pipelineOpts = append(pipelineOpts, extract.WithOCRProvider(o.ocr))
	}

	return &Service{
		cfg:      cfg,
		store:    st,
		docFPs:   fingerprint.NewDocumentFingerprinter(cfg.FingerprintCacheTTL, logger),
		tmplFPs:  tmplFPs,
		regexes:  regexes,
		ranker:   match.NewRanker(scorer, tmplFPs, logger),
		pipeline: extract.NewPipeline(regexes, logger, pipelineOpts...),
		resolver: inherit.NewResolver(st, logger),
		logger:   logger.WithComponent("engine"),
		now:      time.Now,
	}
}

// Fingerprint derives (or returns the cached) fingerprint of a document
func (s *Service) Fingerprint(doc *docsource.Document) *fingerprint.DocumentFingerprint {
	return s.docFPs.Fingerprint(doc)
}

// Matches ranks every active template against the document
func (s *Service) Matches(ctx context.Context, doc *docsource.Document, minConfidence float64, maxResults int) ([]match.MatchResult, error) {
	templates, err := s.store.ListTemplates(ctx, true)
	if err != nil {
		return nil, err
	}
	return s.ranker.GetAllMatches(ctx, s.docFPs.Fingerprint(doc), templates, minConfidence, maxResults)
}

// Extract runs a template's field pipeline over a document without
// going through matching
func (s *Service) Extract(ctx context.Context, doc *docsource.Document, t *template.Template) (*extract.TemplateResult, error) {
	return s.pipeline.Extract(ctx, doc, t)
}

// MatchDocument matches one document against the template library,
// resolves the winning template's inheritance chain, and extracts its
// fields
func (s *Service) MatchDocument(ctx context.Context, doc *docsource.Document) (*MatchOutcome, error) {
	docFP := s.docFPs.Fingerprint(doc)
	outcome := &MatchOutcome{
		DocumentPath: doc.Path,
		Fingerprint:  docFP,
	}

	templates, err := s.store.ListTemplates(ctx, true)
	if err != nil {
		return nil, err
	}
	if len(templates) == 0 {
		outcome.Reason = "no active templates in the library"
		return outcome, nil
	}

	best, err := s.ranker.FindBestMatch(ctx, docFP, templates, s.cfg.MinConfidence)
	if err != nil {
		return nil, err
	}
	if best == nil {
		outcome.Reason = fmt.Sprintf("no template reached the minimum confidence of %.2f", s.cfg.MinConfidence)
		return outcome, nil
	}
	outcome.Matched = true
	outcome.Match = best

	resolved, err := s.resolver.Resolve(ctx, best.Template.ID)
	if err != nil {
		return nil, err
	}
	outcome.Resolved = resolved

	extraction, err := s.pipeline.Extract(ctx, doc, resolved.Template)
	if err != nil {
		return nil, err
	}
	outcome.Extraction = extraction

	s.recordUsage(ctx, best.Template, extraction)

	s.logger.Info().
		Str("document", doc.Path).
		Str("template_id", best.Template.ID).
		Float64("confidence", best.Score.Overall).
		Float64("extraction_confidence", extraction.OverallConfidence).
		Msg("matched document")

	return outcome, nil
}

// recordUsage folds the extraction outcome into the template's running
// statistics. A stats write failure is logged, not surfaced; usage
// accounting never fails an extraction.
func (s *Service) recordUsage(ctx context.Context, t *template.Template, extraction *extract.TemplateResult) {
	t.Stats.RecordUse(extraction.Success, extraction.Duration, s.now())
	if err := s.store.UpdateStats(ctx, t.ID, t.Stats); err != nil {
		s.logger.Warn().Err(err).Str("template_id", t.ID).Msg("failed to update usage statistics")
	}
}

// SaveTemplate validates and persists a template and invalidates its
// cached fingerprint
func (s *Service) SaveTemplate(ctx context.Context, t *template.Template) error {
	if err := s.store.SaveTemplate(ctx, t); err != nil {
		return err
	}
	s.tmplFPs.Invalidate(t.ID)
	return nil
}

// GetTemplate loads a template by id
func (s *Service) GetTemplate(ctx context.Context, id string) (*template.Template, error) {
	return s.store.GetTemplate(ctx, id)
}

// ListTemplates lists stored templates
func (s *Service) ListTemplates(ctx context.Context, activeOnly bool) ([]*template.Template, error) {
	return s.store.ListTemplates(ctx, activeOnly)
}

// DeleteTemplate removes a template and invalidates its cached
// fingerprint
func (s *Service) DeleteTemplate(ctx context.Context, id string) error {
	if err := s.store.DeleteTemplate(ctx, id); err != nil {
		return err
	}
	s.tmplFPs.Invalidate(id)
	return nil
}

// CreateInheritance validates a new parent -> child edge against the
// graph and persists it. A rejected edge leaves no partial state.
func (s *Service) CreateInheritance(ctx context.Context, rel *template.InheritanceRelationship) error {
	if err := template.ValidateRelationship(rel); err != nil {
		return err
	}
	if err := s.resolver.ValidateEdge(ctx, rel.ChildID, rel.ParentID); err != nil {
		return err
	}
	rel.Validated = true
	return s.store.CreateRelationship(ctx, rel)
}

// RemoveInheritance deletes an inheritance edge
func (s *Service) RemoveInheritance(ctx context.Context, relationshipID string) error {
	return s.store.DeleteRelationship(ctx, relationshipID)
}

// ResolveTemplate applies a template's full inheritance chain
func (s *Service) ResolveTemplate(ctx context.Context, templateID string) (*inherit.ResolvedTemplate, error) {
	return s.resolver.Resolve(ctx, templateID)
}

// VersionHistory returns a template's stored snapshots, newest first
func (s *Service) VersionHistory(ctx context.Context, templateID string) ([]store.TemplateVersion, error) {
	return s.store.GetVersionHistory(ctx, templateID)
}
