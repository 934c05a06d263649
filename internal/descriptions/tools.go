package descriptions

// Comprehensive tool descriptions with practical examples and use cases

const (
	MatchDocumentDescription = `Match a document against the template library, resolve the winning template, and extract its fields in one step.

**When to use:** An incoming document needs to be identified and its data captured without knowing up front which template applies.

**Why it's useful:** Combines fingerprinting, confidence scoring across every active template, inheritance resolution, and field extraction into a single call.

**Examples:**
• Classify an incoming invoice: "Match invoice-2024-001.pdf and pull out the line items"
• Route unknown mail: "Match scan-0042.pdf to decide which workflow should handle it"

**Common workflows:**
1. Intake: match_document → inspect confidence → auto-apply or queue for review
2. Triage: match_document → no match → fingerprint_document → author a new template

**Best practices:** Check the confidence breakdown in the response; a strong overall score with a weak keyword score usually means the template's keyword list needs tuning.`

	FingerprintDocumentDescription = `Compute the comparable feature fingerprint of a document: content hash, top keywords, structural patterns, layout class, and language.

**When to use:** Need to see exactly which features the matcher would compare, typically while authoring or debugging a template.

**Why it's useful:** Makes the matching inputs visible so a low confidence score can be traced to the feature that caused it.

**Examples:**
• Template authoring: "Fingerprint sample-ticket.pdf so I can pick its distinguishing keywords"
• Debugging: "Fingerprint report.pdf to check why the table layout was not detected"`

	ExtractFieldsDescription = `Extract a specific template's fields from a document, bypassing matching entirely.

**When to use:** The template is already known (operator choice, upstream routing) and only the field values are needed.

**Why it's useful:** Skips scoring and applies the template's full inheritance chain, fallback methods, transformations, and validation rules directly.

**Examples:**
• Known sender: "Extract fields from acme-invoice.pdf using template acme-inv-v2"
• Re-extraction: "Re-run extraction on claim-881.pdf with the corrected template"`

	ListTemplatesDescription = `List the templates stored in the library with their category, field count, and active status.

**When to use:** Need an overview of the library, or a template identifier for extract_fields or resolve_template.`

	ResolveTemplateDescription = `Apply a template's full inheritance chain and show the resolved fields with their provenance.

**When to use:** A template inherits from parents and you need to see the effective field set it will actually extract with.

**Why it's useful:** Shows for each field whether it was defined on the template itself, inherited from an ancestor, or merged from both, which makes override behaviour auditable.

**Examples:**
• Audit: "Resolve template eu-invoice to verify the base fields were inherited"
• Debug: "Resolve template acme-inv-v2 to see why the date field kept the parent's patterns"`
)
