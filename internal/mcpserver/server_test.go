package mcpserver

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/mldataset/internal/models"
	"github.com/starford/mldataset/internal/testutil"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

func testServer(t *testing.T) (*Server, string) {
	t.Helper()
	root, store := testutil.TestStore(t)
	return New(store), root
}

func callTool(t *testing.T, srv *Server, name string, args map[string]interface{}) *mcp.CallToolResult {
	t.Helper()
	ctx := context.Background()
	req := mcp.CallToolRequest{}
	req.Method = "tools/call"
	req.Params.Name = name
	req.Params.Arguments = args

	var result *mcp.CallToolResult
	var err error

	switch name {
	case "list_categories":
		result, err = srv.listCategories(ctx, req)
	case "create_category":
		result, err = srv.createCategory(ctx, req)
	case "delete_category":
		result, err = srv.deleteCategory(ctx, req)
	case "add_item":
		result, err = srv.addItem(ctx, req)
	case "list_items":
		result, err = srv.listItems(ctx, req)
	default:
		t.Fatalf("unknown tool: %s", name)
	}

	if err != nil {
		t.Fatalf("tool %s error: %v", name, err)
	}
	return result
}

func resultText(r *mcp.CallToolResult) string {
	if len(r.Content) > 0 {
		if tc, ok := r.Content[0].(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func TestCreateAndListCategories(t *testing.T) {
	srv, root := testServer(t)

	r := callTool(t, srv, "list_categories", map[string]interface{}{})
	if text := resultText(r); text != "no categories" {
		t.Errorf("empty list = %q", text)
	}

	for _, n := range []string{"Cats", "Dogs"} {
		r = callTool(t, srv, "create_category", map[string]interface{}{"name": n})
		if text := resultText(r); text != "created: "+n {
			t.Errorf("create result = %q", text)
		}
	}
	if _, err := os.Stat(filepath.Join(root, "Dogs")); err != nil {
		t.Errorf("Dogs not on disk: %v", err)
	}

	r = callTool(t, srv, "list_categories", map[string]interface{}{})
	if text := resultText(r); text != "Cats\nDogs" {
		t.Errorf("list = %q", text)
	}
}

func TestCreateCategoryInvalid(t *testing.T) {
	srv, _ := testServer(t)
	r := callTool(t, srv, "create_category", map[string]interface{}{"name": "../x"})
	if !r.IsError {
		t.Error("expected error for invalid name")
	}
	r = callTool(t, srv, "create_category", map[string]interface{}{})
	if !r.IsError {
		t.Error("expected error for missing name")
	}
}

func TestDeleteCategory(t *testing.T) {
	srv, root := testServer(t)
	callTool(t, srv, "create_category", map[string]interface{}{"name": "Cats"})

	r := callTool(t, srv, "delete_category", map[string]interface{}{"name": "Cats"})
	if text := resultText(r); text != "deleted: Cats" {
		t.Errorf("delete result = %q", text)
	}
	if _, err := os.Stat(filepath.Join(root, "Cats")); !os.IsNotExist(err) {
		t.Error("Cats should be gone")
	}

	r = callTool(t, srv, "delete_category", map[string]interface{}{"name": "Cats"})
	if !r.IsError {
		t.Error("expected error deleting a missing category")
	}
}

func TestAddItemNamed(t *testing.T) {
	srv, root := testServer(t)

	r := callTool(t, srv, "add_item", map[string]interface{}{
		"category": "Cats",
		"name":     "a.png",
		"content":  base64.StdEncoding.EncodeToString(pngHeader),
	})
	if r.IsError {
		t.Fatalf("add_item failed: %s", resultText(r))
	}
	got, err := os.ReadFile(filepath.Join(root, "Cats", "a.png"))
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != string(pngHeader) {
		t.Error("content mismatch")
	}
}

func TestAddItemDataURICapture(t *testing.T) {
	srv, root := testServer(t)

	r := callTool(t, srv, "add_item", map[string]interface{}{
		"category": "Cats",
		"content":  "data:image/png;base64," + base64.StdEncoding.EncodeToString(pngHeader),
	})
	if r.IsError {
		t.Fatalf("add_item failed: %s", resultText(r))
	}
	var res addResult
	if err := json.Unmarshal([]byte(resultText(r)), &res); err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(res.Name, "capture-") || !strings.HasSuffix(res.Name, ".png") {
		t.Errorf("name = %q", res.Name)
	}
	if _, err := os.Stat(filepath.Join(root, "Cats", res.Name)); err != nil {
		t.Errorf("capture not stored: %v", err)
	}
}

func TestCreateCategoryExisting(t *testing.T) {
	srv, root := testServer(t)
	if err := os.Mkdir(filepath.Join(root, "Cats"), 0o755); err != nil {
		t.Fatal(err)
	}

	r := callTool(t, srv, "create_category", map[string]interface{}{"name": "Cats"})
	if r.IsError || resultText(r) != "exists: Cats" {
		t.Errorf("create existing = %q", resultText(r))
	}
	if text := resultText(callTool(t, srv, "list_categories", map[string]interface{}{})); text != "Cats" {
		t.Errorf("list = %q", text)
	}
}

func TestDecodeItemSizeLimit(t *testing.T) {
	data := make([]byte, 12<<20)
	copy(data, pngHeader)
	item, err := decodeItem("big.png", base64.StdEncoding.EncodeToString(data))
	if err != nil {
		t.Fatalf("12 MB item rejected: %v", err)
	}
	if len(item.Content) != len(data) {
		t.Errorf("content size = %d", len(item.Content))
	}

	over := make([]byte, models.MaxItemSize+1)
	if _, err := decodeItem("huge.png", base64.StdEncoding.EncodeToString(over)); err == nil {
		t.Error("expected error above the item size limit")
	}
}

func TestAddItemBadContent(t *testing.T) {
	srv, _ := testServer(t)
	for _, content := range []string{"%%%", "data:image/png,raw", "data:text/plain;base64,aGk="} {
		r := callTool(t, srv, "add_item", map[string]interface{}{
			"category": "Cats",
			"content":  content,
		})
		if !r.IsError {
			t.Errorf("content %q: expected error", content)
		}
	}
}

func TestListItems(t *testing.T) {
	srv, _ := testServer(t)
	callTool(t, srv, "add_item", map[string]interface{}{
		"category": "Cats",
		"name":     "a.png",
		"content":  base64.StdEncoding.EncodeToString(pngHeader),
	})

	r := callTool(t, srv, "list_items", map[string]interface{}{"category": "Cats"})
	if !strings.Contains(resultText(r), `"a.png"`) {
		t.Errorf("list_items = %q", resultText(r))
	}

	r = callTool(t, srv, "list_items", map[string]interface{}{"category": "Nope"})
	if !r.IsError {
		t.Error("expected error for missing category")
	}
}
