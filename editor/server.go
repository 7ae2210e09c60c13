package editor

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/hive/editor/dom"
	"github.com/hazyhaar/hive/editor/element"
	"github.com/hazyhaar/hive/editor/export"
	"github.com/hazyhaar/hive/editor/history"
	"github.com/hazyhaar/hive/editor/persist"
	"github.com/hazyhaar/hive/editor/state"
	"github.com/hazyhaar/hive/editor/templates"
	"github.com/hazyhaar/hive/shield"
)

// Handler returns the HTTP API. When mcpSrv is non-nil it is also served
// (streamable HTTP transport) at /mcp.
func (e *Editor) Handler(mcpSrv *mcp.Server) http.Handler {
	r := chi.NewRouter()
	for _, mw := range shield.DefaultStack(e.logger, e.cfg.Server.MaxBody) {
		r.Use(mw)
	}

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, 200, map[string]string{"status": "ok", "session": e.session})
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/source", e.handleGetSource)
		r.Put("/source", e.handlePutSource)
		r.Get("/export", e.handleExport)

		r.Post("/undo", e.handleUndo)
		r.Post("/redo", e.handleRedo)
		r.Get("/history", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, 200, e.History())
		})
		r.Get("/snapshot", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, 200, e.Snapshot())
		})
		r.Get("/stats", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, 200, e.SyncStats())
		})

		r.Put("/mode", e.handleMode)
		r.Put("/viewport", e.handleViewport)

		r.Get("/selection", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, 200, map[string]any{"selection": e.Selected(), "menu": e.Menu()})
		})
		r.Post("/select", e.handleSelect)
		r.Post("/click", e.handleClick)

		r.Route("/elements", func(r chi.Router) {
			r.Post("/style", e.handleStyle)
			r.Post("/attr", e.handleAttr)
			r.Post("/text", e.handleText)
			r.Post("/insert", e.handleInsert)
			r.Post("/duplicate", e.handleDuplicate)
			r.Post("/move", e.handleMove)
			r.Post("/delete", e.handleDelete)
		})

		r.Get("/layers", e.handleLayers)

		r.Get("/templates", e.handleListTemplates)
		r.Post("/templates/{id}", e.handleLoadTemplate)
		r.Put("/templates/{id}", e.handlePutTemplate)
		r.Delete("/templates/{id}", e.handleDeleteTemplate)

		r.Get("/preview", func(w http.ResponseWriter, _ *http.Request) {
			st, err := e.PreviewStatus()
			if err != nil {
				writeError(w, statusOf(err), err)
				return
			}
			writeJSON(w, 200, st)
		})
		r.Get("/preview/screenshot", e.handleScreenshot)

		r.Post("/open", e.handleOpen)
		r.Post("/save", e.handleSave)
		r.Post("/save-as", e.handleSaveAs)
	})

	if mcpSrv != nil {
		r.Handle("/mcp", mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server { return mcpSrv }, nil))
	}
	return r
}

func (e *Editor) handleScreenshot(w http.ResponseWriter, _ *http.Request) {
	png, err := e.Screenshot()
	if err != nil {
		writeError(w, statusOf(err), err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Write(png)
}

type editResponse struct {
	Selection *Selection    `json:"selection"`
	History   history.State `json:"history"`
}

// edited commits the edit just made and describes the result.
func (e *Editor) edited(w http.ResponseWriter) {
	e.Commit()
	writeJSON(w, 200, editResponse{Selection: e.Selected(), History: e.History()})
}

func (e *Editor) handleGetSource(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	io.WriteString(w, e.SyncedSource())
}

func (e *Editor) handlePutSource(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, bodyStatus(err), err)
		return
	}
	if err := e.SetSourceFromCode(string(body)); err != nil {
		writeError(w, statusOf(err), err)
		return
	}
	writeJSON(w, 200, e.History())
}

func (e *Editor) handleExport(w http.ResponseWriter, r *http.Request) {
	f, err := export.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		writeError(w, 400, err)
		return
	}
	out, err := e.Export(f)
	if err != nil {
		writeError(w, 500, err)
		return
	}
	w.Header().Set("Content-Type", f.ContentType())
	io.WriteString(w, out)
}

func (e *Editor) handleUndo(w http.ResponseWriter, r *http.Request) {
	ok, err := e.Undo()
	if err != nil {
		writeError(w, statusOf(err), err)
		return
	}
	writeJSON(w, 200, map[string]any{"changed": ok, "history": e.History()})
}

func (e *Editor) handleRedo(w http.ResponseWriter, r *http.Request) {
	ok, err := e.Redo()
	if err != nil {
		writeError(w, statusOf(err), err)
		return
	}
	writeJSON(w, 200, map[string]any{"changed": ok, "history": e.History()})
}

func (e *Editor) handleMode(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Mode string `json:"mode"`
	}
	if !decode(w, r, &req) {
		return
	}
	m, err := state.ParseMode(req.Mode)
	if err != nil {
		writeError(w, 400, err)
		return
	}
	e.SetMode(m)
	writeJSON(w, 200, map[string]string{"mode": string(e.Mode())})
}

func (e *Editor) handleViewport(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name   string `json:"name"`
		Width  int    `json:"width"`
		Height int    `json:"height"`
	}
	if !decode(w, r, &req) {
		return
	}
	var (
		v   state.Viewport
		err error
	)
	if req.Name != "" && req.Name != "custom" {
		v, err = state.ViewportByName(req.Name)
	} else {
		v, err = state.CustomViewport(req.Width, req.Height)
	}
	if err != nil {
		writeError(w, 400, err)
		return
	}
	e.SetViewport(v)
	writeJSON(w, 200, v)
}

func (e *Editor) handleSelect(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Path     string `json:"path"`
		Identity string `json:"identity"`
	}
	if !decode(w, r, &req) {
		return
	}
	var (
		sel *Selection
		err error
	)
	if req.Identity != "" {
		sel, err = e.SelectIdentity(req.Identity)
	} else {
		sel, err = e.SelectPath(req.Path)
	}
	if err != nil {
		writeError(w, statusOf(err), err)
		return
	}
	writeJSON(w, 200, map[string]any{"selection": sel})
}

func (e *Editor) handleClick(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Path   string  `json:"path"`
		X      float64 `json:"x"`
		Y      float64 `json:"y"`
		Button string  `json:"button"` // left (default) | right
	}
	if !decode(w, r, &req) {
		return
	}
	click := e.ClickPath
	if req.Button == "right" {
		click = e.ContextMenuPath
	}
	sel, err := click(req.Path, req.X, req.Y)
	if err != nil {
		writeError(w, statusOf(err), err)
		return
	}
	writeJSON(w, 200, map[string]any{"selection": sel, "menu": e.Menu()})
}

func (e *Editor) handleStyle(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Property string `json:"property"`
		Value    string `json:"value"`
	}
	if !decode(w, r, &req) {
		return
	}
	if err := e.ApplyStyle(req.Property, req.Value); err != nil {
		writeError(w, statusOf(err), err)
		return
	}
	e.edited(w)
}

func (e *Editor) handleAttr(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name  string `json:"name"`
		Value string `json:"value"`
	}
	if !decode(w, r, &req) {
		return
	}
	if err := e.SetAttr(req.Name, req.Value); err != nil {
		writeError(w, statusOf(err), err)
		return
	}
	e.edited(w)
}

func (e *Editor) handleText(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text string  `json:"text"`
		HTML *string `json:"html"`
	}
	if !decode(w, r, &req) {
		return
	}
	var err error
	if req.HTML != nil {
		err = e.SetInnerHTML(*req.HTML)
	} else {
		err = e.SetText(req.Text)
	}
	if err != nil {
		writeError(w, statusOf(err), err)
		return
	}
	e.edited(w)
}

func (e *Editor) handleInsert(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Tag      string `json:"tag"`
		Position string `json:"position"`
	}
	if !decode(w, r, &req) {
		return
	}
	pos := dom.Position(req.Position)
	if pos == "" {
		pos = dom.PositionAfter
	}
	if _, err := e.Insert(req.Tag, pos); err != nil {
		writeError(w, statusOf(err), err)
		return
	}
	e.edited(w)
}

func (e *Editor) handleDuplicate(w http.ResponseWriter, r *http.Request) {
	if _, err := e.Duplicate(); err != nil {
		writeError(w, statusOf(err), err)
		return
	}
	e.edited(w)
}

func (e *Editor) handleMove(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Direction string `json:"direction"`
		Target    string `json:"target"`
	}
	if !decode(w, r, &req) {
		return
	}
	if _, err := e.Move(dom.Direction(req.Direction), req.Target); err != nil {
		writeError(w, statusOf(err), err)
		return
	}
	e.edited(w)
}

func (e *Editor) handleDelete(w http.ResponseWriter, r *http.Request) {
	if err := e.Delete(); err != nil {
		writeError(w, statusOf(err), err)
		return
	}
	e.edited(w)
}

func (e *Editor) handleLayers(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("format") == "text" {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		io.WriteString(w, e.LayersTree())
		return
	}
	writeJSON(w, 200, e.Layers())
}

func (e *Editor) handleListTemplates(w http.ResponseWriter, r *http.Request) {
	list, err := e.Templates(r.Context(), r.URL.Query().Get("pattern"))
	if err != nil {
		writeError(w, 400, err)
		return
	}
	writeJSON(w, 200, list)
}

func (e *Editor) handleLoadTemplate(w http.ResponseWriter, r *http.Request) {
	if err := e.LoadTemplate(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, statusOf(err), err)
		return
	}
	writeJSON(w, 200, e.History())
}

func (e *Editor) handlePutTemplate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name        string `json:"name"`
		Description string `json:"description"`
	}
	if !decode(w, r, &req) {
		return
	}
	t := templates.Template{ID: chi.URLParam(r, "id"), Name: req.Name, Description: req.Description}
	if err := e.SaveTemplate(r.Context(), t); err != nil {
		writeError(w, statusOf(err), err)
		return
	}
	writeJSON(w, 201, t)
}

func (e *Editor) handleDeleteTemplate(w http.ResponseWriter, r *http.Request) {
	if err := e.DeleteTemplate(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, statusOf(err), err)
		return
	}
	writeJSON(w, 200, map[string]string{"status": "deleted"})
}

func (e *Editor) handleOpen(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Path string `json:"path"`
	}
	if !decode(w, r, &req) {
		return
	}
	h, err := e.Open(r.Context(), req.Path)
	if err != nil {
		writeError(w, statusOf(err), err)
		return
	}
	writeJSON(w, 200, h)
}

func (e *Editor) handleSave(w http.ResponseWriter, r *http.Request) {
	res, err := e.Save(r.Context())
	if err != nil {
		writeError(w, statusOf(err), err)
		return
	}
	writeJSON(w, 200, res)
}

func (e *Editor) handleSaveAs(w http.ResponseWriter, r *http.Request) {
	res, err := e.SaveAs(r.Context())
	if err != nil {
		writeError(w, statusOf(err), err)
		return
	}
	writeJSON(w, 200, res)
}

// statusOf maps editor errors to HTTP status codes.
func statusOf(err error) int {
	switch {
	case errors.Is(err, element.ErrNotFound), errors.Is(err, templates.ErrNotFound), errors.Is(err, ErrNoPreview):
		return 404
	case errors.Is(err, persist.ErrCancelled), errors.Is(err, ErrNoSelection), errors.Is(err, dom.ErrDetached):
		return 409
	case errors.Is(err, templates.ErrReadOnly):
		return 403
	case errors.Is(err, dom.ErrNotEditable), errors.Is(err, dom.ErrInvalidPosition),
		errors.Is(err, persist.ErrUnsupported), errors.Is(err, ErrInvalidPath):
		return 400
	case errors.Is(err, dom.ErrUnavailable):
		return 503
	}
	return 500
}

// decode reads a JSON body into v. An empty body leaves v untouched.
func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil || errors.Is(err, io.EOF) {
		return true
	}
	writeError(w, bodyStatus(err), err)
	return false
}

func bodyStatus(err error) int {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return 413
	}
	return 400
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}
