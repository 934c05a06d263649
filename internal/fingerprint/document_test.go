package fingerprint

import (
	"strings"
	"testing"
	"time"

	"github.com/docintake/template-engine/internal/docsource"
)

const englishSample = `Dear customer, the invoice for your recent order is attached.
The total amount is due within thirty days and the payment should reference
the invoice number. This notice was generated for your records and the
details are listed below. Sincerely, Accounts`

func TestFingerprint_Determinism(t *testing.T) {
	f := NewDocumentFingerprinter(0, nil)

	a := f.Fingerprint(docsource.NewFromText("a.pdf", englishSample, 1))
	b := f.Fingerprint(docsource.NewFromText("a.pdf", englishSample, 1))

	if a.ContentHash != b.ContentHash {
		t.Errorf("Expected identical content hashes, got %s and %s", a.ContentHash, b.ContentHash)
	}
	if len(a.ContentHash) != 64 {
		t.Errorf("Expected a hex sha256 hash, got %q", a.ContentHash)
	}
	if len(a.Keywords) != len(b.Keywords) {
		t.Fatalf("Expected identical keyword sets, got %d and %d", len(a.Keywords), len(b.Keywords))
	}
	for i := range a.Keywords {
		if a.Keywords[i] != b.Keywords[i] {
			t.Errorf("Keyword order diverged at %d: %q vs %q", i, a.Keywords[i], b.Keywords[i])
		}
	}
}

func TestFingerprint_HashChangesWithContent(t *testing.T) {
	f := NewDocumentFingerprinter(0, nil)

	a := f.Fingerprint(docsource.NewFromText("a.pdf", "alpha", 1))
	b := f.Fingerprint(docsource.NewFromText("b.pdf", "beta", 1))

	if a.ContentHash == b.ContentHash {
		t.Error("Expected different content to produce different hashes")
	}
}

func TestExtractKeywords(t *testing.T) {
	text := "invoice invoice invoice payment payment total to an it the and for"
	kws := extractKeywords(strings.Fields(text))

	if len(kws) != 3 {
		t.Fatalf("Expected 3 keywords, got %d: %v", len(kws), kws)
	}
	if kws[0] != "invoice" {
		t.Errorf("Expected most frequent keyword first, got %q", kws[0])
	}
	if kws[1] != "payment" {
		t.Errorf("Expected second keyword 'payment', got %q", kws[1])
	}
	for _, k := range kws {
		if len(k) < 3 {
			t.Errorf("Keyword %q shorter than minimum length", k)
		}
		if stopWords[k] {
			t.Errorf("Stop word %q leaked into keywords", k)
		}
	}
}

func TestExtractKeywords_CapAtFifty(t *testing.T) {
	var words []string
	for i := 0; i < 80; i++ {
		words = append(words, strings.Repeat(string(rune('a'+i%26)), 3)+strings.Repeat("x", i/26+1))
	}
	kws := extractKeywords(words)
	if len(kws) > 50 {
		t.Errorf("Expected at most 50 keywords, got %d", len(kws))
	}
}

func TestDetectPatterns(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{"iso date", "issued 2026-03-15 in Berlin", "iso-date"},
		{"us date", "issued 3/15/2026 in Boston", "us-date"},
		{"ticket number", "see ticket INC-20441 for details", "ticket-number"},
		{"email", "contact billing@example.com for help", "email"},
		{"phone", "call (555) 867-5309 for support", "us-phone"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			found := detectPatterns(tt.text)
			ok := false
			for _, p := range found {
				if p == tt.want {
					ok = true
				}
			}
			if !ok {
				t.Errorf("Expected pattern %q in %v", tt.want, found)
			}
		})
	}
}

func TestClassifyLayout(t *testing.T) {
	tableText := "name\tamount\nwidget\t12.50\ngadget\t8.00"
	formText := "Name: Alice\nDepartment: Finance\nCost Center: 4411\nApproved: yes"
	letterText := "Dear Ms. Okafor,\n\nThank you for your inquiry.\n\nSincerely,\nThe Team"

	if got := classifyLayout(tableText, detectTables(tableText)); got != LayoutTable {
		t.Errorf("Expected table layout, got %s", got)
	}
	if got := classifyLayout(formText, detectTables(formText)); got != LayoutForm {
		t.Errorf("Expected form layout, got %s", got)
	}
	if got := classifyLayout(letterText, detectTables(letterText)); got != LayoutLetter {
		t.Errorf("Expected letter layout, got %s", got)
	}
	if got := classifyLayout("plain prose with no structure", false); got != LayoutStandard {
		t.Errorf("Expected standard layout, got %s", got)
	}
}

func TestClassifyLayout_TableWinsOverForm(t *testing.T) {
	// A document with both table rows and label:value lines classifies
	// as table because table has the higher priority.
	text := "Name: Alice\nRole: Admin\nSite: HQ\ncol\tcol\nval\tval"
	if got := classifyLayout(text, detectTables(text)); got != LayoutTable {
		t.Errorf("Expected table to win the priority order, got %s", got)
	}
}

func TestDetectLanguage(t *testing.T) {
	english := strings.Fields(strings.Repeat("the quick brown fox and the lazy dog ", 20))
	if got := detectLanguage(english); got != "en" {
		t.Errorf("Expected 'en', got %q", got)
	}

	numbers := strings.Fields(strings.Repeat("4481 9920 1234 8871 ", 20))
	if got := detectLanguage(numbers); got != "unknown" {
		t.Errorf("Expected 'unknown' below the hit floor, got %q", got)
	}

	if got := detectLanguage(nil); got != "unknown" {
		t.Errorf("Expected 'unknown' for empty input, got %q", got)
	}
}

func TestFingerprint_CacheTTL(t *testing.T) {
	f := NewDocumentFingerprinter(10*time.Minute, nil)
	current := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	f.now = func() time.Time { return current }

	doc := docsource.NewFromText("cached.pdf", englishSample, 1)

	first := f.Fingerprint(doc)
	second := f.Fingerprint(doc)
	if first != second {
		t.Error("Expected the cached fingerprint inside the TTL window")
	}

	current = current.Add(11 * time.Minute)
	third := f.Fingerprint(doc)
	if first == third {
		t.Error("Expected recomputation after the TTL expired")
	}
}

func TestFingerprint_Invalidate(t *testing.T) {
	f := NewDocumentFingerprinter(time.Hour, nil)
	doc := docsource.NewFromText("inv.pdf", englishSample, 1)

	first := f.Fingerprint(doc)
	f.Invalidate("inv.pdf")
	second := f.Fingerprint(doc)
	if first == second {
		t.Error("Expected invalidation to force recomputation")
	}
}

func TestFingerprint_MetadataSnapshot(t *testing.T) {
	doc := docsource.NewFromText("meta.pdf", "text", 1)
	doc.Author = "asmith"
	doc.Title = "Expense Report"
	doc.CustomProperties = map[string]string{"department": "finance"}

	f := NewDocumentFingerprinter(0, nil)
	fp := f.Fingerprint(doc)

	if fp.Metadata["author"] != "asmith" {
		t.Errorf("Expected author in snapshot, got %v", fp.Metadata)
	}
	if fp.Metadata["title"] != "Expense Report" {
		t.Errorf("Expected title in snapshot, got %v", fp.Metadata)
	}
	if fp.Metadata["custom:department"] != "finance" {
		t.Errorf("Expected namespaced custom property, got %v", fp.Metadata)
	}
}
