// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes ProTasker tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/protasker/internal/annotationservice"
	"github.com/starford/protasker/internal/checklist"
	"github.com/starford/protasker/internal/models"
	"github.com/starford/protasker/internal/store"
)

const formatURI = "protasker://store-format"

// Server wraps the MCP server with ProTasker tools.
type Server struct {
	mcp *server.MCPServer
	svc *annotationservice.Service
}

// New creates a new MCP server with all ProTasker tools registered.
func New(svc *annotationservice.Service) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"ProTasker",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("search_annotations",
		mcp.WithDescription("Case-insensitive substring search over every annotation, checklist name and item."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
	), s.searchAnnotations)

	s.mcp.AddTool(mcp.NewTool("filter_annotations",
		mcp.WithDescription("List annotations of one type (note, comment, checklist, event, line, a custom type, or all)."),
		mcp.WithString("type", mcp.Required(), mcp.Description("Annotation type or 'all'")),
		mcp.WithString("category", mcp.Description("Collection to restrict to: all, files, directories or lines")),
	), s.filterAnnotations)

	s.mcp.AddTool(mcp.NewTool("add_annotation",
		mcp.WithDescription("Annotate a file or directory. Read the store format first via "+
			"the get_store_format tool or the "+formatURI+" resource."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Absolute path of the file or directory")),
		mcp.WithString("type", mcp.Required(), mcp.Description("Annotation type (note, comment, checklist, event or custom)")),
		mcp.WithString("content", mcp.Required(), mcp.Description("Text, or the checklist name")),
		mcp.WithBoolean("directory", mcp.Description("Anchor on a directory instead of a file")),
		mcp.WithArray("items", mcp.WithStringItems(), mcp.Description("Initial checklist items")),
		mcp.WithString("deadline", mcp.Description("Optional ISO-8601 deadline")),
	), s.addAnnotation)

	s.mcp.AddTool(mcp.NewTool("add_line_annotation",
		mcp.WithDescription("Annotate one line of a file."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Absolute file path")),
		mcp.WithNumber("line", mcp.Required(), mcp.Description("1-based line number")),
		mcp.WithString("content", mcp.Required(), mcp.Description("Annotation text")),
		mcp.WithString("type", mcp.Description("Line annotation type, defaults to line")),
		mcp.WithString("deadline", mcp.Description("Optional ISO-8601 deadline")),
	), s.addLineAnnotation)

	s.mcp.AddTool(mcp.NewTool("delete_annotation",
		mcp.WithDescription("Delete an annotation by id. Deleting an absent id is a no-op."),
		mcp.WithString("collection", mcp.Required(), mcp.Description("files, directories or lines")),
		mcp.WithNumber("id", mcp.Required(), mcp.Description("Annotation id")),
		mcp.WithString("path", mcp.Description("Anchor path (optional, narrows the lookup)")),
	), s.deleteAnnotation)

	s.mcp.AddTool(mcp.NewTool("toggle_checklist_item",
		mcp.WithDescription("Flip the done flag of a checklist item, addressed by uid or index."),
		mcp.WithNumber("id", mcp.Required(), mcp.Description("Checklist id")),
		mcp.WithString("uid", mcp.Description("Item uid")),
		mcp.WithNumber("index", mcp.Description("0-based item index, used when uid is empty")),
		mcp.WithString("collection", mcp.Description("files (default) or directories")),
		mcp.WithString("path", mcp.Description("Anchor path")),
	), s.toggleChecklistItem)

	s.mcp.AddTool(mcp.NewTool("checklist_progress",
		mcp.WithDescription("Completion of a checklist: completed, total, percent and band."),
		mcp.WithNumber("id", mcp.Required(), mcp.Description("Checklist id")),
		mcp.WithString("collection", mcp.Description("files (default) or directories")),
		mcp.WithString("path", mcp.Description("Anchor path")),
	), s.checklistProgress)

	s.mcp.AddTool(mcp.NewTool("get_store_format",
		mcp.WithDescription("Returns the ProTasker store format. "+
			"Call this before adding annotations to use the right paths and types."),
	), s.getStoreFormat)

	// Resource: store format.
	s.mcp.AddResource(
		mcp.NewResource(formatURI, "Store Format",
			mcp.WithResourceDescription("Shape of the persisted annotation document."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readStoreFormatResource,
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

func jsonResult(v any) *mcp.CallToolResult {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error())
	}
	return mcp.NewToolResultText(string(out))
}

func checklistRef(req mcp.CallToolRequest) (store.Ref, error) {
	coll := models.Files
	if raw := req.GetString("collection", ""); raw != "" {
		c, err := models.ParseCollection(raw)
		if err != nil {
			return store.Ref{}, err
		}
		coll = c
	}
	return store.Ref{Collection: coll, Path: req.GetString("path", "")}, nil
}

func (s *Server) searchAnnotations(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	results, err := s.svc.Search(ctx, query)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(results), nil
}

func (s *Server) filterAnnotations(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	typ, err := req.RequireString("type")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	results, err := s.svc.Filter(ctx, typ, req.GetString("category", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(results), nil
}

func (s *Server) addAnnotation(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	typ, err := req.RequireString("type")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	content, err := req.RequireString("content")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	loc, err := s.svc.AddAnnotation(ctx, annotationservice.AddRequest{
		Path:      path,
		Directory: req.GetBool("directory", false),
		Type:      typ,
		Content:   content,
		Items:     req.GetStringSlice("items", nil),
		Deadline:  req.GetString("deadline", ""),
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(loc), nil
}

func (s *Server) addLineAnnotation(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	line, err := req.RequireInt("line")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	content, err := req.RequireString("content")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	loc, err := s.svc.AddLineAnnotation(ctx, annotationservice.LineRequest{
		Path:     path,
		Line:     line,
		Type:     req.GetString("type", ""),
		Content:  content,
		Deadline: req.GetString("deadline", ""),
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(loc), nil
}

func (s *Server) deleteAnnotation(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw, err := req.RequireString("collection")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	coll, err := models.ParseCollection(raw)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	id, err := req.RequireInt("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	ref := store.Ref{Collection: coll, Path: req.GetString("path", "")}
	removed, err := s.svc.Delete(ctx, ref, int64(id))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if !removed {
		return mcp.NewToolResultText(fmt.Sprintf("nothing to delete: %s/%d", coll, id)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("deleted: %s/%d", coll, id)), nil
}

func (s *Server) toggleChecklistItem(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireInt("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	item := checklist.ItemRef{UID: req.GetString("uid", ""), Index: -1}
	if item.UID == "" {
		idx, err := req.RequireInt("index")
		if err != nil {
			return mcp.NewToolResultError("uid or index is required"), nil
		}
		item.Index = idx
	}
	ref, err := checklistRef(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	cl, err := s.svc.ToggleItem(ctx, ref, int64(id), item)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(cl), nil
}

func (s *Server) checklistProgress(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireInt("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	ref, err := checklistRef(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	p, err := s.svc.Progress(ctx, ref, int64(id))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(p), nil
}

func (s *Server) getStoreFormat(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(StoreFormatContract), nil
}

func (s *Server) readStoreFormatResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      formatURI,
			MIMEType: "text/markdown",
			Text:     StoreFormatContract,
		},
	}, nil
}
