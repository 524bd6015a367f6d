// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes the category store as tools over stdio.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/mldataset/internal/models"
)

// Store is the part of the category store the tools use.
type Store interface {
	Current() (models.Snapshot, bool)
	EnsureCategory(name string) (bool, error)
	DeleteCategory(name string) error
	AddItem(item models.FileItem, category string) error
	Items(category string) ([]models.ItemMetadata, error)
}

// Server wraps the MCP server with the dataset tools.
type Server struct {
	mcp   *server.MCPServer
	store Store
}

// New creates a new MCP server with all tools registered.
func New(store Store) *Server {
	s := &Server{store: store}

	s.mcp = server.NewMCPServer(
		"mldataset",
		"1.0.0",
		server.WithToolCapabilities(false),
	)

	s.mcp.AddTool(mcp.NewTool("list_categories",
		mcp.WithDescription("List the data set categories in their current order."),
	), s.listCategories)

	s.mcp.AddTool(mcp.NewTool("create_category",
		mcp.WithDescription("Create a category. Creating an existing category is a no-op."),
		mcp.WithString("name", mcp.Required(), mcp.Description("Category name (a single directory name)")),
	), s.createCategory)

	s.mcp.AddTool(mcp.NewTool("delete_category",
		mcp.WithDescription("Delete a category together with every item stored in it."),
		mcp.WithString("name", mcp.Required(), mcp.Description("Category name")),
	), s.deleteCategory)

	s.mcp.AddTool(mcp.NewTool("add_item",
		mcp.WithDescription("Store an image in a category, creating the category when missing. "+
			"An item with the same name is replaced."),
		mcp.WithString("category", mcp.Required(), mcp.Description("Target category")),
		mcp.WithString("content", mcp.Required(), mcp.Description("Base64 image data or a data:<type>;base64, URI")),
		mcp.WithString("name", mcp.Description("Item file name; a capture-<uuid> name is generated when empty")),
	), s.addItem)

	s.mcp.AddTool(mcp.NewTool("list_items",
		mcp.WithDescription("List the items stored in a category."),
		mcp.WithString("category", mcp.Required(), mcp.Description("Category name")),
	), s.listItems)

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

func (s *Server) listCategories(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	snap, loaded := s.store.Current()
	if !loaded {
		return mcp.NewToolResultError("store unavailable"), nil
	}
	if len(snap.Categories) == 0 {
		return mcp.NewToolResultText("no categories"), nil
	}
	return mcp.NewToolResultText(strings.Join(snap.Names(), "\n")), nil
}

func (s *Server) createCategory(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	created, err := s.store.EnsureCategory(name)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if !created {
		return mcp.NewToolResultText(fmt.Sprintf("exists: %s", name)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("created: %s", name)), nil
}

func (s *Server) deleteCategory(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := s.store.DeleteCategory(name); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("deleted: %s", name)), nil
}

func (s *Server) addItem(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	category, err := req.RequireString("category")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	content, err := req.RequireString("content")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	name := ""
	if v, nErr := req.RequireString("name"); nErr == nil {
		name = v
	}

	item, err := decodeItem(name, content)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := s.store.AddItem(item, category); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	out, _ := json.Marshal(addResult{
		Category: category,
		Name:     item.Name(),
		Size:     len(item.Content),
	})
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) listItems(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	category, err := req.RequireString("category")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	items, err := s.store.Items(category)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _ := json.MarshalIndent(items, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}
