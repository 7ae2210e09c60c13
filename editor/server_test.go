package editor

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hazyhaar/hive/editor/element"
	"github.com/hazyhaar/hive/editor/history"
)

func testServer(t *testing.T) (*Editor, *httptest.Server) {
	t.Helper()
	ed := newEditor(t)
	srv := httptest.NewServer(ed.Handler(nil))
	t.Cleanup(srv.Close)
	return ed, srv
}

func do(t *testing.T, srv *httptest.Server, method, path, body string) (int, string) {
	t.Helper()
	req, err := http.NewRequest(method, srv.URL+path, strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	resp, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	data, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, string(data)
}

func mustDo(t *testing.T, srv *httptest.Server, method, path, body string) string {
	t.Helper()
	code, out := do(t, srv, method, path, body)
	if code != 200 {
		t.Fatalf("%s %s = %d: %s", method, path, code, out)
	}
	return out
}

func TestHTTP_Health(t *testing.T) {
	ed, srv := testServer(t)
	out := mustDo(t, srv, "GET", "/health", "")
	if !strings.Contains(out, ed.Session()) {
		t.Fatalf("health = %s", out)
	}
}

func TestHTTP_Snapshot(t *testing.T) {
	ed, srv := testServer(t)
	mustDo(t, srv, "PUT", "/api/source", `<p>a</p>`)
	out := mustDo(t, srv, "GET", "/api/snapshot", "")
	if !strings.Contains(out, `"html_hash":"`+ed.Snapshot().HTMLHash+`"`) {
		t.Fatalf("snapshot = %s", out)
	}
}

func TestHTTP_SourceEditUndo(t *testing.T) {
	_, srv := testServer(t)

	mustDo(t, srv, "PUT", "/api/source", `<h1>Hello</h1><p>World</p>`)
	src := mustDo(t, srv, "GET", "/api/source", "")
	if !strings.HasPrefix(src, "<!DOCTYPE html>") || !strings.Contains(src, "Hello</h1>") {
		t.Fatalf("source = %s", src)
	}

	mustDo(t, srv, "POST", "/api/select", `{"path":"h1:0"}`)
	out := mustDo(t, srv, "POST", "/api/elements/style", `{"property":"fontSize","value":"40px"}`)
	var resp editResponse
	if err := json.Unmarshal([]byte(out), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Selection == nil || resp.Selection.Attrs["style"] != "font-size: 40px" {
		t.Fatalf("edit response = %s", out)
	}
	if !resp.History.CanUndo {
		t.Fatalf("history = %+v", resp.History)
	}

	mustDo(t, srv, "POST", "/api/undo", "")
	if src := mustDo(t, srv, "GET", "/api/source", ""); strings.Contains(src, "font-size") {
		t.Fatalf("undo kept the style: %s", src)
	}
	var h history.State
	json.Unmarshal([]byte(mustDo(t, srv, "GET", "/api/history", "")), &h)
	if !h.CanRedo {
		t.Fatalf("history = %+v", h)
	}
	mustDo(t, srv, "POST", "/api/redo", "")
	if src := mustDo(t, srv, "GET", "/api/source", ""); !strings.Contains(src, "font-size: 40px") {
		t.Fatalf("redo lost the style: %s", src)
	}
}

func TestHTTP_ClickNeedsEditMode(t *testing.T) {
	_, srv := testServer(t)
	mustDo(t, srv, "PUT", "/api/source", `<p>a</p>`)

	out := mustDo(t, srv, "POST", "/api/click", `{"path":"p:0"}`)
	if !strings.Contains(out, `"selection":null`) {
		t.Fatalf("preview click = %s", out)
	}
	mustDo(t, srv, "PUT", "/api/mode", `{"mode":"edit"}`)
	out = mustDo(t, srv, "POST", "/api/click", `{"path":"p:0"}`)
	if !strings.Contains(out, `"path":"p:0"`) {
		t.Fatalf("edit click = %s", out)
	}
	out = mustDo(t, srv, "POST", "/api/click", `{"path":"p:0","button":"right","x":5,"y":6}`)
	if !strings.Contains(out, `"menu":{"path":"p:0","x":5,"y":6}`) {
		t.Fatalf("context menu = %s", out)
	}
}

func TestHTTP_StructuralEdits(t *testing.T) {
	_, srv := testServer(t)
	mustDo(t, srv, "PUT", "/api/source", `<ul><li>one</li></ul>`)
	mustDo(t, srv, "POST", "/api/select", `{"path":"ul:0/li:0"}`)

	out := mustDo(t, srv, "POST", "/api/elements/duplicate", "")
	if !strings.Contains(out, `"path":"ul:0/li:1"`) {
		t.Fatalf("duplicate = %s", out)
	}
	mustDo(t, srv, "POST", "/api/elements/text", `{"text":"two"}`)
	out = mustDo(t, srv, "POST", "/api/elements/move", `{"direction":"up"}`)
	if !strings.Contains(out, `"path":"ul:0/li:0"`) {
		t.Fatalf("move = %s", out)
	}
	mustDo(t, srv, "POST", "/api/elements/insert", `{"tag":"button","position":"after"}`)
	mustDo(t, srv, "POST", "/api/elements/attr", `{"name":"disabled","value":"disabled"}`)
	mustDo(t, srv, "POST", "/api/elements/delete", "")

	src := mustDo(t, srv, "GET", "/api/source", "")
	if i, j := strings.Index(src, ">two</li>"), strings.Index(src, ">one</li>"); i < 0 || j < 0 || i > j {
		t.Fatalf("order wrong: %s", src)
	}
	if strings.Contains(src, "<button") {
		t.Fatalf("button not deleted: %s", src)
	}
}

func TestHTTP_Errors(t *testing.T) {
	_, srv := testServer(t)
	mustDo(t, srv, "PUT", "/api/source", `<p>a</p>`)

	cases := []struct {
		method, path, body string
		want               int
	}{
		{"POST", "/api/elements/style", `{"property":"color","value":"red"}`, 409},
		{"POST", "/api/select", `{"path":"div:3"}`, 404},
		{"POST", "/api/select", `{"path":"p:x"}`, 400},
		{"POST", "/api/select", `not json`, 400},
		{"PUT", "/api/mode", `{"mode":"fly"}`, 400},
		{"PUT", "/api/viewport", `{"width":0,"height":10}`, 400},
		{"GET", "/api/export?format=pdf", "", 400},
		{"POST", "/api/templates/nope", "", 404},
		{"PUT", "/api/templates/mine", `{"name":"Mine"}`, 403},
		{"GET", "/api/preview", "", 404},
		{"GET", "/api/preview/screenshot", "", 404},
	}
	for _, c := range cases {
		if code, out := do(t, srv, c.method, c.path, c.body); code != c.want {
			t.Errorf("%s %s = %d, want %d: %s", c.method, c.path, code, c.want, out)
		}
	}
}

func TestHTTP_ViewportAndLayers(t *testing.T) {
	ed, srv := testServer(t)
	mustDo(t, srv, "PUT", "/api/source", `<main><h1>T</h1></main>`)

	mustDo(t, srv, "PUT", "/api/viewport", `{"name":"mobile"}`)
	if v := ed.App().Viewport.Get(); v.Width != 375 {
		t.Fatalf("viewport = %+v", v)
	}
	mustDo(t, srv, "PUT", "/api/viewport", `{"width":1000,"height":700}`)
	if v := ed.App().Viewport.Get(); v.Width != 1000 || v.Height != 700 {
		t.Fatalf("viewport = %+v", v)
	}

	var layers []Layer
	if err := json.Unmarshal([]byte(mustDo(t, srv, "GET", "/api/layers", "")), &layers); err != nil {
		t.Fatal(err)
	}
	if len(layers) != 1 || layers[0].Children[0].Path != "main:0/h1:0" {
		t.Fatalf("layers = %+v", layers)
	}
	if tree := mustDo(t, srv, "GET", "/api/layers?format=text", ""); !strings.Contains(tree, "main:0/h1:0") {
		t.Fatalf("tree = %s", tree)
	}
}

func TestHTTP_TemplatesExportSave(t *testing.T) {
	_, srv := testServer(t)

	list := mustDo(t, srv, "GET", "/api/templates?pattern=p*", "")
	if !strings.Contains(list, `"portfolio"`) || strings.Contains(list, `"blog"`) {
		t.Fatalf("templates = %s", list)
	}
	mustDo(t, srv, "POST", "/api/templates/portfolio", "")

	out := mustDo(t, srv, "GET", "/api/export?format=html", "")
	if !strings.HasPrefix(out, "<!DOCTYPE html>") || strings.Contains(out, element.IdentityAttr) {
		t.Fatalf("export = %.200s", out)
	}
	if md := mustDo(t, srv, "GET", "/api/export?format=md", ""); strings.Contains(md, "<body") {
		t.Fatalf("markdown = %.200s", md)
	}

	out = mustDo(t, srv, "POST", "/api/save", "")
	if !strings.Contains(out, `"downloaded":true`) {
		t.Fatalf("save = %s", out)
	}
}
