// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes nbmark tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/nbmark/internal/apperr"
	"github.com/starford/nbmark/internal/notebookservice"
)

const rulesURI = "nbmark://markdown-rules"

// Server wraps the MCP server with nbmark tools.
type Server struct {
	mcp *server.MCPServer
	svc *notebookservice.Service
}

// New creates a new MCP server with all nbmark tools registered.
func New(svc *notebookservice.Service) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"nbmark",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("list_notebooks",
		mcp.WithDescription("List indexed notebooks with title, cell counts and error counts."),
		mcp.WithNumber("limit", mcp.Description("Page size (default 50)")),
		mcp.WithNumber("offset", mcp.Description("Page offset")),
		mcp.WithString("sort", mcp.Description("Sort order"), mcp.Enum("path", "title", "updated")),
	), s.listNotebooks)

	s.mcp.AddTool(mcp.NewTool("read_notebook",
		mcp.WithDescription("Read a notebook as JSON: cells in order with their source and canonical outputs."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Relative path to the notebook (e.g. folder/analysis.ipynb)")),
	), s.readNotebook)

	s.mcp.AddTool(mcp.NewTool("render_notebook",
		mcp.WithDescription("Render a notebook to Markdown. Read the rules via get_markdown_rules "+
			"or the "+rulesURI+" resource to know how cells and outputs are laid out."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Relative path to the notebook")),
	), s.renderNotebook)

	s.mcp.AddTool(mcp.NewTool("search_notebooks",
		mcp.WithDescription("Full-text search through notebook cell sources and titles."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
		mcp.WithNumber("limit", mcp.Description("Max results (default 20)")),
	), s.searchNotebooks)

	s.mcp.AddTool(mcp.NewTool("export_notebook",
		mcp.WithDescription("Write the Markdown rendering of a notebook into the workspace and return its path."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Relative path to the notebook")),
	), s.exportNotebook)

	s.mcp.AddTool(mcp.NewTool("import_notebook",
		mcp.WithDescription("Fetch a notebook from an http(s) URL or a base64 data URI, validate it "+
			"and save it into the workspace under "+importDir+"/."),
		mcp.WithString("url", mcp.Required(), mcp.Description("http(s) URL or data:application/x-ipynb+json;base64,... URI")),
		mcp.WithString("filename", mcp.Description("Optional file name (must end with .ipynb)")),
	), s.importNotebook)

	s.mcp.AddTool(mcp.NewTool("get_markdown_rules",
		mcp.WithDescription("Returns the rules nbmark follows when rendering notebooks to Markdown."),
	), s.getMarkdownRules)

	// Resource: Markdown rendering rules.
	s.mcp.AddResource(
		mcp.NewResource(rulesURI, "Markdown Rendering Rules",
			mcp.WithResourceDescription("How notebook cells and outputs are laid out in rendered Markdown."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readMarkdownRulesResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

// toolError turns a service error into a tool result the model can act on.
func toolError(path string, err error) *mcp.CallToolResult {
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", path))
	case errors.Is(err, apperr.ErrAlreadyExists):
		return mcp.NewToolResultError(fmt.Sprintf("already exists: %s", path))
	default:
		return mcp.NewToolResultError(err.Error())
	}
}

func jsonResult(v any) *mcp.CallToolResult {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error())
	}
	return mcp.NewToolResultText(string(out))
}

func (s *Server) listNotebooks(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	limit := req.GetInt("limit", 50)
	offset := req.GetInt("offset", 0)
	sort := req.GetString("sort", "")

	items, total, err := s.svc.ListNotebooks(ctx, limit, offset, sort)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(map[string]any{"notebooks": items, "total": total}), nil
}

func (s *Server) readNotebook(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	nb, err := s.svc.GetNotebook(ctx, path)
	if err != nil {
		return toolError(path, err), nil
	}
	return jsonResult(nb), nil
}

func (s *Server) renderNotebook(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	md, err := s.svc.RenderMarkdown(ctx, path)
	if err != nil {
		return toolError(path, err), nil
	}
	return mcp.NewToolResultText(md), nil
}

func (s *Server) searchNotebooks(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	results, err := s.svc.Search(ctx, query, req.GetInt("limit", 20))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(results), nil
}

func (s *Server) exportNotebook(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, err := s.svc.ExportNotebook(ctx, path)
	if err != nil {
		return toolError(path, err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("exported: %s", out)), nil
}

func (s *Server) getMarkdownRules(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(MarkdownRules), nil
}

func (s *Server) readMarkdownRulesResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      rulesURI,
			MIMEType: "text/markdown",
			Text:     MarkdownRules,
		},
	}, nil
}
