package mcp

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/docintake/template-engine/internal/config"
	"github.com/docintake/template-engine/internal/descriptions"
	"github.com/docintake/template-engine/internal/docsource"
	"github.com/docintake/template-engine/internal/engine"
	"github.com/docintake/template-engine/internal/extract"
	"github.com/docintake/template-engine/internal/logging"
	"github.com/docintake/template-engine/internal/match"
)

const serverName = "template-engine"

// Server exposes the matching engine as an MCP tool server
type Server struct {
	config    *config.Config
	engine    *engine.Service
	loader    *docsource.PDFLoader
	mcpServer *server.MCPServer
	logger    *logging.Logger
}

// NewServer creates a new MCP server instance
func NewServer(cfg *config.Config, eng *engine.Service, logger *logging.Logger) (*Server, error) {
	if eng == nil {
		return nil, fmt.Errorf("engine cannot be nil")
	}
	if logger == nil {
		logger = logging.Nop()
	}

	mcpServer := server.NewMCPServer(
		serverName,
		cfg.Version,
		server.WithToolCapabilities(false),
	)

	s := &Server{
		config:    cfg,
		engine:    eng,
		loader:    docsource.NewPDFLoader(),
		mcpServer: mcpServer,
		logger:    logger.WithComponent("mcp_server"),
	}

	s.registerTools()

	return s, nil
}

// registerTools registers all available MCP tools
func (s *Server) registerTools() {
	matchDocumentTool := mcp.NewTool(
		"match_document",
		mcp.WithDescription(descriptions.MatchDocumentDescription),
		mcp.WithString("path",
			mcp.Description("Path to a PDF file to match (alternative to 'text')"),
		),
		mcp.WithString("text",
			mcp.Description("Already-extracted document text (alternative to 'path')"),
		),
	)
	s.mcpServer.AddTool(matchDocumentTool, s.handleMatchDocument)

	fingerprintTool := mcp.NewTool(
		"fingerprint_document",
		mcp.WithDescription(descriptions.FingerprintDocumentDescription),
		mcp.WithString("path",
			mcp.Description("Path to a PDF file (alternative to 'text')"),
		),
		mcp.WithString("text",
			mcp.Description("Already-extracted document text (alternative to 'path')"),
		),
	)
	s.mcpServer.AddTool(fingerprintTool, s.handleFingerprintDocument)

	extractFieldsTool := mcp.NewTool(
		"extract_fields",
		mcp.WithDescription(descriptions.ExtractFieldsDescription),
		mcp.WithString("template_id",
			mcp.Required(),
			mcp.Description("Identifier of the template to apply"),
		),
		mcp.WithString("path",
			mcp.Description("Path to a PDF file (alternative to 'text')"),
		),
		mcp.WithString("text",
			mcp.Description("Already-extracted document text (alternative to 'path')"),
		),
	)
	s.mcpServer.AddTool(extractFieldsTool, s.handleExtractFields)

	listTemplatesTool := mcp.NewTool(
		"list_templates",
		mcp.WithDescription(descriptions.ListTemplatesDescription),
	)
	s.mcpServer.AddTool(listTemplatesTool, s.handleListTemplates)

	resolveTemplateTool := mcp.NewTool(
		"resolve_template",
		mcp.WithDescription(descriptions.ResolveTemplateDescription),
		mcp.WithString("template_id",
			mcp.Required(),
			mcp.Description("Identifier of the template to resolve"),
		),
	)
	s.mcpServer.AddTool(resolveTemplateTool, s.handleResolveTemplate)
}

// documentFromRequest builds a Document from either a PDF path or raw
// text supplied in the tool arguments
func (s *Server) documentFromRequest(request mcp.CallToolRequest) (*docsource.Document, error) {
	args := request.GetArguments()

	if path, ok := args["path"].(string); ok && path != "" {
		return s.loader.Load(path)
	}
	if text, ok := args["text"].(string); ok && text != "" {
		return docsource.NewFromText("inline.txt", text, 1), nil
	}
	return nil, fmt.Errorf("either 'path' or 'text' must be provided")
}

// Handler functions

func (s *Server) handleMatchDocument(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	doc, err := s.documentFromRequest(request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	outcome, err := s.engine.MatchDocument(ctx, doc)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(s.formatMatchOutcome(outcome)), nil
}

func (s *Server) handleFingerprintDocument(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	doc, err := s.documentFromRequest(request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	fp := s.engine.Fingerprint(doc)

	var text strings.Builder
	fmt.Fprintf(&text, "Fingerprint of %s\n", fp.DocumentPath)
	fmt.Fprintf(&text, "Format: %s\n", fp.Format)
	fmt.Fprintf(&text, "Language: %s\n", fp.Language)
	fmt.Fprintf(&text, "Content hash: %s\n", fp.ContentHash)
	fmt.Fprintf(&text, "Pages: %d, Words: %d, Layout: %s\n",
		fp.Structure.PageCount, fp.Structure.WordCount, fp.Structure.Layout)
	fmt.Fprintf(&text, "Keywords: %s\n", strings.Join(fp.Keywords, ", "))
	fmt.Fprintf(&text, "Patterns: %s\n", strings.Join(fp.Patterns, ", "))
	return mcp.NewToolResultText(text.String()), nil
}

func (s *Server) handleExtractFields(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	templateID, err := request.RequireString("template_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	doc, err := s.documentFromRequest(request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	resolved, err := s.engine.ResolveTemplate(ctx, templateID)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result, err := s.engine.Extract(ctx, doc, resolved.Template)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(s.formatExtractionResult(result)), nil
}

func (s *Server) handleListTemplates(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	templates, err := s.engine.ListTemplates(ctx, false)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	if len(templates) == 0 {
		return mcp.NewToolResultText("No templates in the library"), nil
	}

	var text strings.Builder
	fmt.Fprintf(&text, "%d template(s) in the library:\n", len(templates))
	for i, t := range templates {
		status := "inactive"
		if t.Active {
			status = "active"
		}
		fmt.Fprintf(&text, "%d. %s (%s) - %s, %d field(s), %s\n",
			i+1, t.Name, t.ID, t.Category, len(t.Fields), status)
	}
	return mcp.NewToolResultText(text.String()), nil
}

func (s *Server) handleResolveTemplate(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	templateID, err := request.RequireString("template_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	resolved, err := s.engine.ResolveTemplate(ctx, templateID)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var text strings.Builder
	fmt.Fprintf(&text, "Resolved template %s\n", resolved.Template.ID)
	fmt.Fprintf(&text, "Inheritance chain (root first): %s\n", strings.Join(resolved.Chain, " -> "))
	fmt.Fprintf(&text, "Fields:\n")
	for _, f := range resolved.Template.Fields {
		fmt.Fprintf(&text, "  %s (%s, %s) [%s]\n", f.Name, f.Type, f.Method, resolved.Provenance[f.Name])
	}
	return mcp.NewToolResultText(text.String()), nil
}

// Formatting methods

func (s *Server) formatMatchOutcome(outcome *engine.MatchOutcome) string {
	var text strings.Builder

	if !outcome.Matched {
		fmt.Fprintf(&text, "No template matched %s\n", outcome.DocumentPath)
		fmt.Fprintf(&text, "Confidence: 0.00\n")
		fmt.Fprintf(&text, "Reason: %s\n", outcome.Reason)
		return text.String()
	}

	fmt.Fprintf(&text, "Matched %s\n", outcome.DocumentPath)
	fmt.Fprintf(&text, "Template: %s (%s)\n", outcome.Match.Template.Name, outcome.Match.Template.ID)
	fmt.Fprintf(&text, "Confidence: %.2f\n", outcome.Match.Score.Overall)
	s.formatScore(&text, outcome.Match)

	if outcome.Extraction != nil {
		text.WriteString("\n")
		text.WriteString(s.formatExtractionResult(outcome.Extraction))
	}
	return text.String()
}

func (s *Server) formatScore(text *strings.Builder, result *match.MatchResult) {
	fmt.Fprintf(text, "Score breakdown: format %.2f, keyword %.2f, pattern %.2f, structure %.2f, metadata %.2f, filename %.2f\n",
		result.Score.FormatMatch, result.Score.KeywordMatch, result.Score.PatternMatch,
		result.Score.StructureMatch, result.Score.MetadataMatch, result.Score.FilenameMatch)
	for _, reason := range result.Reasons {
		fmt.Fprintf(text, "  + %s\n", reason)
	}
	for _, warning := range result.Warnings {
		fmt.Fprintf(text, "  ! %s\n", warning)
	}
}

func (s *Server) formatExtractionResult(result *extract.TemplateResult) string {
	var text strings.Builder
	fmt.Fprintf(&text, "Extraction with template %s\n", result.TemplateID)
	fmt.Fprintf(&text, "Overall confidence: %.2f\n", result.OverallConfidence)
	for _, f := range result.Fields {
		if f.Success {
			fmt.Fprintf(&text, "  %s = %q (%.2f via %s)\n", f.FieldName, f.Value, f.Confidence, f.Method)
		} else {
			fmt.Fprintf(&text, "  %s: FAILED (%s)\n", f.FieldName, strings.Join(f.Errors, "; "))
		}
	}
	return text.String()
}

// Run starts the MCP server on stdio
func (s *Server) Run(_ context.Context) error {
	s.logger.Info().Str("db", s.config.DatabasePath).Msg("starting MCP tool server on stdio")

	if err := server.ServeStdio(s.mcpServer); err != nil {
		return fmt.Errorf("failed to serve stdio: %w", err)
	}
	return nil
}
