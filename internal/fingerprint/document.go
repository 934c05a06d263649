package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/docintake/template-engine/internal/docsource"
	"github.com/docintake/template-engine/internal/logging"
)

const (
	maxKeywords       = 50
	minKeywordLength  = 3
	languageHitFloor  = 5.0 // common-word hits per 1,000 words below which language stays unknown
	languageSampleCap = 5000
)

// stopWords are excluded from keyword extraction
var stopWords = map[string]bool{
	"the": true, "and": true, "for": true, "are": true, "but": true,
	"not": true, "you": true, "all": true, "can": true, "had": true,
	"her": true, "was": true, "one": true, "our": true, "out": true,
	"has": true, "have": true, "this": true, "that": true, "with": true,
	"from": true, "they": true, "will": true, "would": true, "there": true,
	"their": true, "what": true, "about": true, "which": true, "when": true,
	"were": true, "been": true, "more": true, "also": true, "into": true,
	"than": true, "then": true, "them": true, "these": true, "some": true,
	"your": true, "its": true, "his": true, "she": true, "him": true,
}

// commonEnglishWords drive the lightweight language heuristic
var commonEnglishWords = []string{
	"the", "and", "for", "are", "with", "this", "that", "from", "have",
	"not", "was", "you", "will", "been", "were", "their", "which",
}

// namedPattern pairs a structural pattern name with its detector
type namedPattern struct {
	name string
	re   *regexp.Regexp
}

// structuralPatterns is the fixed set of text shapes the fingerprinter
// looks for in document content
var structuralPatterns = []namedPattern{
	{name: "iso-date", re: regexp.MustCompile(`\b\d{4}-\d{2}-\d{2}\b`)},
	{name: "us-date", re: regexp.MustCompile(`\b\d{1,2}/\d{1,2}/\d{2,4}\b`)},
	{name: "ticket-number", re: regexp.MustCompile(`\b[A-Z]{2,10}-\d{1,8}\b`)},
	{name: "email", re: regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)},
	{name: "us-phone", re: regexp.MustCompile(`\(?\d{3}\)?[-.\s]?\d{3}[-.\s]?\d{4}`)},
}

var (
	tabLineRe    = regexp.MustCompile(`(?m)^[^\t\n]+\t[^\t\n]+`)
	pipeLineRe   = regexp.MustCompile(`(?m)^\s*\|?[^|\n]+\|[^|\n]+\|`)
	labelValueRe = regexp.MustCompile(`(?m)^\s*[A-Za-z][A-Za-z /]{1,40}:\s*\S`)
	salutationRe = regexp.MustCompile(`(?im)^\s*(dear|to whom it may concern|hello|hi)\b`)
	closingRe    = regexp.MustCompile(`(?im)^\s*(sincerely|regards|best regards|kind regards|yours truly|yours faithfully)\b`)
)

type cachedDocumentFP struct {
	fp        *DocumentFingerprint
	createdAt time.Time
}

// DocumentFingerprinter derives comparable feature sets from processed
// documents. Fingerprints are cached by document path with a wall-clock
// expiry; the cache is never authoritative and always degrades to
// recomputation.
type DocumentFingerprinter struct {
	cacheTTL time.Duration
	cache    map[string]cachedDocumentFP
	mu       sync.RWMutex
	logger   *logging.Logger
	now      func() time.Time
}

// NewDocumentFingerprinter creates a fingerprinter with the given cache
// expiry window. A zero or negative TTL disables caching.
func NewDocumentFingerprinter(cacheTTL time.Duration, logger *logging.Logger) *DocumentFingerprinter {
	if logger == nil {
		logger = logging.Nop()
	}
	return &DocumentFingerprinter{
		cacheTTL: cacheTTL,
		cache:    make(map[string]cachedDocumentFP),
		logger:   logger.WithComponent("document_fingerprinter"),
		now:      time.Now,
	}
}

// Fingerprint derives the feature set of a document, reusing a cached
// fingerprint while it is within the expiry window
func (f *DocumentFingerprinter) Fingerprint(doc *docsource.Document) *DocumentFingerprint {
	if f.cacheTTL > 0 && doc.Path != "" {
		f.mu.RLock()
		entry, ok := f.cache[doc.Path]
		f.mu.RUnlock()
		if ok && f.now().Sub(entry.createdAt) < f.cacheTTL {
			return entry.fp
		}
	}

	fp := f.compute(doc)

	if f.cacheTTL > 0 && doc.Path != "" {
		f.mu.Lock()
		f.cache[doc.Path] = cachedDocumentFP{fp: fp, createdAt: f.now()}
		f.mu.Unlock()
	}
	return fp
}

// Invalidate drops the cached fingerprint for a document path
func (f *DocumentFingerprinter) Invalidate(path string) {
	f.mu.Lock()
	delete(f.cache, path)
	f.mu.Unlock()
}

func (f *DocumentFingerprinter) compute(doc *docsource.Document) *DocumentFingerprint {
	text := doc.Text
	words := strings.Fields(text)
	wordCount := len(words)
	if doc.WordCount > 0 {
		wordCount = doc.WordCount
	}

	hasTables := detectTables(text)

	fp := &DocumentFingerprint{
		DocumentPath: doc.Path,
		Format:       doc.Format(),
		ContentHash:  hashContent(text),
		Language:     detectLanguage(words),
		Structure: Structure{
			PageCount: doc.PageCount,
			WordCount: wordCount,
			HasTables: hasTables,
			HasImages: doc.Flag("has_images"),
			IsScanned: doc.Flag("is_scanned"),
			Layout:    classifyLayout(text, hasTables),
		},
		Keywords:  extractKeywords(words),
		Patterns:  detectPatterns(text),
		Metadata:  snapshotMetadata(doc),
		CreatedAt: f.now(),
	}

	f.logger.Debug().
		Str("document", doc.Path).
		Str("format", fp.Format).
		Str("layout", string(fp.Structure.Layout)).
		Int("keywords", len(fp.Keywords)).
		Msg("fingerprinted document")

	return fp
}

func hashContent(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// detectLanguage counts common-word hits per 1,000 words. Only English is
// recognized; everything below the hit floor stays "unknown".
func detectLanguage(words []string) string {
	if len(words) == 0 {
		return "unknown"
	}

	sample := words
	if len(sample) > languageSampleCap {
		sample = sample[:languageSampleCap]
	}

	common := make(map[string]bool, len(commonEnglishWords))
	for _, w := range commonEnglishWords {
		common[w] = true
	}

	hits := 0
	for _, w := range sample {
		if common[strings.ToLower(strings.Trim(w, ".,;:!?\"'()"))] {
			hits++
		}
	}

	perThousand := float64(hits) / float64(len(sample)) * 1000.0
	if perThousand >= languageHitFloor {
		return "en"
	}
	return "unknown"
}

func detectTables(text string) bool {
	if len(tabLineRe.FindAllString(text, 3)) >= 2 {
		return true
	}
	return len(pipeLineRe.FindAllString(text, 3)) >= 2
}

// classifyLayout picks the dominant layout in priority order:
// Table > Form > Letter > Standard
func classifyLayout(text string, hasTables bool) LayoutType {
	if hasTables {
		return LayoutTable
	}
	if len(labelValueRe.FindAllString(text, 4)) >= 3 {
		return LayoutForm
	}
	if salutationRe.MatchString(text) || closingRe.MatchString(text) {
		return LayoutLetter
	}
	return LayoutStandard
}

// extractKeywords returns the top-50 words by frequency, stop words and
// words shorter than three characters excluded, ranked most frequent first
func extractKeywords(words []string) []string {
	freq := make(map[string]int)
	for _, w := range words {
		w = strings.ToLower(strings.Trim(w, ".,;:!?\"'()[]{}"))
		if len(w) < minKeywordLength || stopWords[w] {
			continue
		}
		freq[w]++
	}

	keywords := make([]string, 0, len(freq))
	for w := range freq {
		keywords = append(keywords, w)
	}
	sort.Slice(keywords, func(i, j int) bool {
		if freq[keywords[i]] != freq[keywords[j]] {
			return freq[keywords[i]] > freq[keywords[j]]
		}
		return keywords[i] < keywords[j]
	})

	if len(keywords) > maxKeywords {
		keywords = keywords[:maxKeywords]
	}
	return keywords
}

func detectPatterns(text string) []string {
	var found []string
	for _, p := range structuralPatterns {
		if p.re.MatchString(text) {
			found = append(found, p.name)
		}
	}
	return found
}

func snapshotMetadata(doc *docsource.Document) map[string]string {
	meta := make(map[string]string)
	if doc.Author != "" {
		meta["author"] = doc.Author
	}
	if doc.Creator != "" {
		meta["creator"] = doc.Creator
	}
	if doc.Title != "" {
		meta["title"] = doc.Title
	}
	if doc.Subject != "" {
		meta["subject"] = doc.Subject
	}
	if doc.DocumentDate != nil {
		meta["document_date"] = doc.DocumentDate.Format(time.RFC3339)
	}
	if doc.CreatedDate != nil {
		meta["created_date"] = doc.CreatedDate.Format(time.RFC3339)
	}
	for k, v := range doc.CustomProperties {
		meta["custom:"+k] = v
	}
	if len(meta) == 0 {
		return nil
	}
	return meta
}
