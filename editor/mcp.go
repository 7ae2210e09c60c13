package editor

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/hive/editor/export"
	"github.com/hazyhaar/hive/kit"
)

// RegisterMCP registers the editor tools on an MCP server.
func (e *Editor) RegisterMCP(srv *mcp.Server) {
	e.registerGetSourceTool(srv)
	e.registerSetSourceTool(srv)
	e.registerUndoTool(srv)
	e.registerRedoTool(srv)
	e.registerSelectTool(srv)
	e.registerApplyStyleTool(srv)
	e.registerExportTool(srv)
	e.registerLayersTool(srv)
}

// inputSchema builds a JSON Schema object with type "object".
func inputSchema(properties map[string]any, required []string) map[string]any {
	s := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		s["required"] = required
	}
	return s
}

// register wraps endpoint with call logging and registers it.
func (e *Editor) register(srv *mcp.Server, tool *mcp.Tool, endpoint kit.Endpoint, decode kit.MCPDecoder) {
	kit.RegisterMCPTool(srv, tool, kit.Logging(e.logger, tool.Name)(endpoint), decode)
}

type historyResponse struct {
	Changed bool `json:"changed"`
	CanUndo bool `json:"can_undo"`
	CanRedo bool `json:"can_redo"`
}

func (e *Editor) historyResponse(changed bool) historyResponse {
	st := e.History()
	return historyResponse{Changed: changed, CanUndo: st.CanUndo, CanRedo: st.CanRedo}
}

// --- get_source ---

type noArgs struct{}

func (e *Editor) registerGetSourceTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "hive_get_source",
		Description: "Return the current HTML of the edited page, element identity attributes included.",
		InputSchema: inputSchema(map[string]any{}, nil),
	}
	endpoint := func(_ context.Context, _ any) (any, error) {
		return map[string]string{"html": e.SyncedSource()}, nil
	}
	e.register(srv, tool, endpoint, kit.DecodeJSON[noArgs]())
}

// --- set_source ---

type setSourceRequest struct {
	HTML string `json:"html"`
}

func (e *Editor) registerSetSourceTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "hive_set_source",
		Description: "Replace the whole page with new HTML. The change can be undone.",
		InputSchema: inputSchema(map[string]any{
			"html": map[string]any{"type": "string", "description": "Complete HTML document"},
		}, []string{"html"}),
	}
	endpoint := func(_ context.Context, req any) (any, error) {
		r := req.(*setSourceRequest)
		if err := e.SetSourceFromCode(r.HTML); err != nil {
			return nil, err
		}
		return e.historyResponse(true), nil
	}
	e.register(srv, tool, endpoint, kit.DecodeJSON[setSourceRequest]())
}

// --- undo / redo ---

func (e *Editor) registerUndoTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "hive_undo",
		Description: "Undo the last edit. changed is false when there was nothing to undo.",
		InputSchema: inputSchema(map[string]any{}, nil),
	}
	endpoint := func(_ context.Context, _ any) (any, error) {
		ok, err := e.Undo()
		if err != nil {
			return nil, err
		}
		return e.historyResponse(ok), nil
	}
	e.register(srv, tool, endpoint, kit.DecodeJSON[noArgs]())
}

func (e *Editor) registerRedoTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "hive_redo",
		Description: "Redo the last undone edit. changed is false when there was nothing to redo.",
		InputSchema: inputSchema(map[string]any{}, nil),
	}
	endpoint := func(_ context.Context, _ any) (any, error) {
		ok, err := e.Redo()
		if err != nil {
			return nil, err
		}
		return e.historyResponse(ok), nil
	}
	e.register(srv, tool, endpoint, kit.DecodeJSON[noArgs]())
}

// --- select ---

type selectRequest struct {
	Path     string `json:"path,omitempty"`
	Identity string `json:"identity,omitempty"`
}

func (e *Editor) registerSelectTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "hive_select",
		Description: "Select an element by path (e.g. section:0/h1:0, from <body>) or by its data-hive-id identity. An empty path clears the selection.",
		InputSchema: inputSchema(map[string]any{
			"path":     map[string]any{"type": "string", "description": "Element path tag:index/tag:index from <body>"},
			"identity": map[string]any{"type": "string", "description": "Value of the data-hive-id attribute"},
		}, nil),
	}
	endpoint := func(_ context.Context, req any) (any, error) {
		r := req.(*selectRequest)
		var (
			sel *Selection
			err error
		)
		if r.Identity != "" {
			sel, err = e.SelectIdentity(r.Identity)
		} else {
			sel, err = e.SelectPath(r.Path)
		}
		if err != nil {
			return nil, err
		}
		return map[string]any{"selection": sel}, nil
	}
	e.register(srv, tool, endpoint, kit.DecodeJSON[selectRequest]())
}

// --- apply_style ---

type applyStyleRequest struct {
	Styles map[string]string `json:"styles"`
}

func (e *Editor) registerApplyStyleTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "hive_apply_style",
		Description: "Set inline CSS properties on the selected element and record the edit. An empty value removes the property.",
		InputSchema: inputSchema(map[string]any{
			"styles": map[string]any{
				"type":                 "object",
				"additionalProperties": map[string]any{"type": "string"},
				"description":          "CSS property to value, e.g. {\"color\": \"red\"}",
			},
		}, []string{"styles"}),
	}
	endpoint := func(_ context.Context, req any) (any, error) {
		r := req.(*applyStyleRequest)
		for prop, val := range r.Styles {
			if err := e.ApplyStyle(prop, val); err != nil {
				return nil, err
			}
		}
		changed := e.Commit()
		return map[string]any{"selection": e.Selected(), "history": e.historyResponse(changed)}, nil
	}
	e.register(srv, tool, endpoint, kit.DecodeJSON[applyStyleRequest]())
}

// --- export ---

type exportRequest struct {
	Format string `json:"format,omitempty"`
}

func (e *Editor) registerExportTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "hive_export",
		Description: "Export the page as clean HTML (identities stripped) or Markdown.",
		InputSchema: inputSchema(map[string]any{
			"format": map[string]any{"type": "string", "enum": []any{"html", "md"}, "description": "Export format (default html)"},
		}, nil),
	}
	endpoint := func(_ context.Context, req any) (any, error) {
		r := req.(*exportRequest)
		f, err := export.ParseFormat(r.Format)
		if err != nil {
			return nil, err
		}
		out, err := e.Export(f)
		if err != nil {
			return nil, err
		}
		return map[string]string{"format": string(f), "content": out}, nil
	}
	e.register(srv, tool, endpoint, kit.DecodeJSON[exportRequest]())
}

// --- layers ---

func (e *Editor) registerLayersTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "hive_layers",
		Description: "List the element tree of the page with paths usable by hive_select.",
		InputSchema: inputSchema(map[string]any{}, nil),
	}
	endpoint := func(_ context.Context, _ any) (any, error) {
		return map[string]any{"layers": e.Layers(), "tree": e.LayersTree()}, nil
	}
	e.register(srv, tool, endpoint, kit.DecodeJSON[noArgs]())
}
