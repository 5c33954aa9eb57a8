package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/starford/protasker/internal/annotationservice"
	"github.com/starford/protasker/internal/checklist"
	"github.com/starford/protasker/internal/models"
	"github.com/starford/protasker/internal/projection"
	"github.com/starford/protasker/internal/testutil"
)

// testEnv sets up a temp store, SQLite DB, service, and router for testing.
// An empty authToken means disabled mode.
func testEnv(t *testing.T, authToken string) (*annotationservice.Service, http.Handler) {
	t.Helper()
	_, st := testutil.TestStore(t)
	db := testutil.TestDB(t)
	svc := annotationservice.NewService(st, db, nil)
	st.OnChange(svc.HandleChange)
	router := NewRouter(svc, authToken != "", authToken, nil)
	return svc, router
}

func do(t *testing.T, router http.Handler, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode: %v", err)
		}
	}
	req := httptest.NewRequest(method, target, &buf)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeBody[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return v
}

func TestCreateAndGetAnnotation(t *testing.T) {
	_, router := testEnv(t, "")

	w := do(t, router, http.MethodPost, "/annotations", map[string]any{
		"path": "/src/a.go", "type": "note", "content": "Refactor",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body = %s", w.Code, w.Body.String())
	}
	loc := decodeBody[models.Located](t, w)
	if loc.Annotation.ID == 0 || loc.Category != "notes" {
		t.Fatalf("unexpected located: %+v", loc)
	}

	w = do(t, router, http.MethodGet, "/annotations/files/"+strconv.FormatInt(loc.Annotation.ID, 10), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get status = %d, body = %s", w.Code, w.Body.String())
	}
	got := decodeBody[models.Located](t, w)
	if got.Annotation.Content.Text != "Refactor" {
		t.Errorf("content = %q", got.Annotation.Content.Text)
	}
}

func TestCreateValidation(t *testing.T) {
	_, router := testEnv(t, "")

	cases := []map[string]any{
		{"path": "", "type": "note", "content": "x"},
		{"path": "/a", "type": "", "content": "x"},
		{"path": "/a", "type": "note", "content": ""},
		{"path": "/a", "type": "no spaces", "content": "x"},
	}
	for _, body := range cases {
		w := do(t, router, http.MethodPost, "/annotations", body)
		if w.Code != http.StatusBadRequest {
			t.Errorf("body %v: status = %d, want 400", body, w.Code)
		}
	}

	req := httptest.NewRequest(http.MethodPost, "/annotations", bytes.NewBufferString("{"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("malformed JSON status = %d", rec.Code)
	}
}

func TestLineAnnotations(t *testing.T) {
	_, router := testEnv(t, "")

	w := do(t, router, http.MethodPost, "/lines", map[string]any{"path": "/a.go", "line": 0, "content": "x"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("line 0 status = %d", w.Code)
	}
	w = do(t, router, http.MethodPost, "/lines", map[string]any{"path": "/a.go", "line": 12, "content": "check"})
	if w.Code != http.StatusCreated {
		t.Fatalf("create line status = %d, body = %s", w.Code, w.Body.String())
	}

	w = do(t, router, http.MethodGet, "/lines?path=/a.go&line=12", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get lines status = %d", w.Code)
	}
	lines := decodeBody[[]models.LineAnnotation](t, w)
	if len(lines) != 1 || lines[0].Line != 12 {
		t.Fatalf("lines = %+v", lines)
	}

	w = do(t, router, http.MethodGet, "/lines?path=/a.go&line=13", nil)
	if w.Code != http.StatusOK || w.Body.String() != "[]\n" {
		t.Errorf("empty line: status = %d body = %q", w.Code, w.Body.String())
	}
}

func TestEditAndDelete(t *testing.T) {
	_, router := testEnv(t, "")

	w := do(t, router, http.MethodPost, "/annotations", map[string]any{"path": "/a", "type": "note", "content": "old"})
	loc := decodeBody[models.Located](t, w)
	target := "/annotations/files/" + strconv.FormatInt(loc.Annotation.ID, 10)

	w = do(t, router, http.MethodPut, target, map[string]any{"content": "new"})
	if w.Code != http.StatusOK {
		t.Fatalf("edit status = %d, body = %s", w.Code, w.Body.String())
	}
	if got := decodeBody[models.Located](t, w); got.Annotation.Content.Text != "new" {
		t.Errorf("edited content = %q", got.Annotation.Content.Text)
	}

	w = do(t, router, http.MethodPut, target+"/deadline", map[string]any{"deadline": "tomorrow-ish"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("bad deadline status = %d", w.Code)
	}
	w = do(t, router, http.MethodPut, target+"/deadline", map[string]any{"deadline": "2030-01-01T00:00:00Z"})
	if w.Code != http.StatusOK {
		t.Fatalf("deadline status = %d, body = %s", w.Code, w.Body.String())
	}

	w = do(t, router, http.MethodDelete, target, nil)
	if w.Code != http.StatusNoContent || w.Header().Get("X-Deleted") != "true" {
		t.Fatalf("delete status = %d, X-Deleted = %q", w.Code, w.Header().Get("X-Deleted"))
	}
	// Deleting an absent id is a no-op, not an error.
	w = do(t, router, http.MethodDelete, target, nil)
	if w.Code != http.StatusNoContent || w.Header().Get("X-Deleted") != "false" {
		t.Errorf("second delete status = %d, X-Deleted = %q, want 204/false", w.Code, w.Header().Get("X-Deleted"))
	}
	w = do(t, router, http.MethodGet, target, nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("get deleted status = %d, want 404", w.Code)
	}
}

func TestBadCollectionAndID(t *testing.T) {
	_, router := testEnv(t, "")

	if w := do(t, router, http.MethodGet, "/annotations/bogus/1", nil); w.Code != http.StatusBadRequest {
		t.Errorf("bad collection status = %d", w.Code)
	}
	if w := do(t, router, http.MethodGet, "/annotations/files/abc", nil); w.Code != http.StatusBadRequest {
		t.Errorf("bad id status = %d", w.Code)
	}
}

func TestChecklistEndpoints(t *testing.T) {
	_, router := testEnv(t, "")

	w := do(t, router, http.MethodPost, "/annotations", map[string]any{
		"path": "/a", "type": "checklist", "content": "Release", "items": []string{"tag", "build"},
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body = %s", w.Code, w.Body.String())
	}
	loc := decodeBody[models.Located](t, w)
	base := "/checklists/" + strconv.FormatInt(loc.Annotation.ID, 10)

	w = do(t, router, http.MethodPost, base+"/items", map[string]any{"path": "/a", "text": "ship"})
	if w.Code != http.StatusCreated {
		t.Fatalf("add item status = %d, body = %s", w.Code, w.Body.String())
	}
	cl := decodeBody[models.Checklist](t, w)
	if len(cl.Items) != 3 {
		t.Fatalf("items = %d, want 3", len(cl.Items))
	}

	w = do(t, router, http.MethodPost, base+"/items/toggle", map[string]any{"uid": cl.Items[0].UID})
	if w.Code != http.StatusOK {
		t.Fatalf("toggle status = %d, body = %s", w.Code, w.Body.String())
	}

	w = do(t, router, http.MethodPost, base+"/items/toggle", map[string]any{})
	if w.Code != http.StatusBadRequest {
		t.Errorf("toggle without address status = %d", w.Code)
	}
	w = do(t, router, http.MethodPost, base+"/items/toggle", map[string]any{"index": 9})
	if w.Code != http.StatusBadRequest {
		t.Errorf("toggle out of range status = %d", w.Code)
	}

	w = do(t, router, http.MethodGet, base+"/progress", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("progress status = %d", w.Code)
	}
	p := decodeBody[checklist.Progress](t, w)
	if p.Completed != 1 || p.Total != 3 || p.Percent != 33 || p.Band != checklist.BandMid {
		t.Errorf("progress = %+v", p)
	}

	w = do(t, router, http.MethodDelete, base+"/items?index=2", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("remove status = %d, body = %s", w.Code, w.Body.String())
	}
	if cl := decodeBody[models.Checklist](t, w); len(cl.Items) != 2 {
		t.Errorf("items after remove = %d", len(cl.Items))
	}

	if w := do(t, router, http.MethodGet, "/checklists/999/progress", nil); w.Code != http.StatusNotFound {
		t.Errorf("missing checklist status = %d", w.Code)
	}
}

func TestSearchFilterAndView(t *testing.T) {
	_, router := testEnv(t, "")

	do(t, router, http.MethodPost, "/annotations", map[string]any{"path": "/a", "type": "note", "content": "Fix Parser"})
	do(t, router, http.MethodPost, "/annotations", map[string]any{"path": "/b", "type": "event", "content": "standup"})
	do(t, router, http.MethodPost, "/lines", map[string]any{"path": "/a", "line": 3, "content": "parser edge case"})

	w := do(t, router, http.MethodGet, "/search?q=PARSER", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("search status = %d", w.Code)
	}
	if res := decodeBody[ListResponse](t, w); res.Total != 2 {
		t.Errorf("search total = %d, want 2", res.Total)
	}
	if st := decodeBody[projection.ViewState](t, do(t, router, http.MethodGet, "/view", nil)); st.Mode != projection.ModeSearching {
		t.Errorf("mode = %v, want searching", st.Mode)
	}

	if w := do(t, router, http.MethodGet, "/search?q=%20", nil); w.Code != http.StatusBadRequest {
		t.Errorf("blank search status = %d", w.Code)
	}

	w = do(t, router, http.MethodGet, "/filter?type=event", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("filter status = %d", w.Code)
	}
	if res := decodeBody[ListResponse](t, w); res.Total != 1 {
		t.Errorf("filter total = %d, want 1", res.Total)
	}
	if w := do(t, router, http.MethodGet, "/filter?type=event&category=bogus", nil); w.Code != http.StatusBadRequest {
		t.Errorf("bad category status = %d", w.Code)
	}

	w = do(t, router, http.MethodGet, "/tree", nil)
	if nodes := decodeBody[[]projection.Node](t, w); len(nodes) != 1 || nodes[0].Path != "/b" {
		t.Errorf("filtered tree = %+v", nodes)
	}

	w = do(t, router, http.MethodPost, "/view/reset", nil)
	if st := decodeBody[projection.ViewState](t, w); st.Mode != projection.ModeUnfiltered {
		t.Errorf("mode after reset = %v", st.Mode)
	}

	w = do(t, router, http.MethodGet, "/search/fulltext?q=standup", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("fulltext status = %d, body = %s", w.Code, w.Body.String())
	}
}

func TestTreeChildren(t *testing.T) {
	_, router := testEnv(t, "")
	do(t, router, http.MethodPost, "/annotations", map[string]any{"path": "/a", "type": "note", "content": "x"})

	roots := decodeBody[[]projection.Node](t, do(t, router, http.MethodGet, "/tree", nil))
	if len(roots) != 1 {
		t.Fatalf("roots = %+v", roots)
	}
	w := do(t, router, http.MethodGet, "/tree/children?node="+roots[0].Handle, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("children status = %d, body = %s", w.Code, w.Body.String())
	}
	if kids := decodeBody[[]projection.Node](t, w); len(kids) == 0 {
		t.Error("expected children")
	}
	if w := do(t, router, http.MethodGet, "/tree/children?node=garbage", nil); w.Code != http.StatusBadRequest {
		t.Errorf("bad handle status = %d", w.Code)
	}
}

func TestClearEndpoints(t *testing.T) {
	svc, router := testEnv(t, "")
	do(t, router, http.MethodPost, "/annotations", map[string]any{"path": "/a", "type": "note", "content": "x"})
	do(t, router, http.MethodPost, "/annotations", map[string]any{"path": "/a", "type": "event", "content": "y"})
	do(t, router, http.MethodPost, "/annotations", map[string]any{"path": "/b", "type": "note", "content": "z"})

	w := do(t, router, http.MethodDelete, "/anchors/files?path=/a", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("clear anchor status = %d", w.Code)
	}
	if got := decodeBody[map[string]int](t, w); got["removed"] != 2 {
		t.Errorf("removed = %d, want 2", got["removed"])
	}

	if w := do(t, router, http.MethodDelete, "/store", nil); w.Code != http.StatusNoContent {
		t.Fatalf("clear store status = %d", w.Code)
	}
	if anchors := svc.Anchors(t.Context()); len(anchors[models.Files]) != 0 {
		t.Errorf("anchors after clear = %v", anchors)
	}
}

func TestAuthMiddleware(t *testing.T) {
	_, router := testEnv(t, "secret")

	if w := do(t, router, http.MethodGet, "/anchors", nil); w.Code != http.StatusUnauthorized {
		t.Errorf("no token status = %d", w.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/anchors", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("wrong token status = %d", w.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/anchors", nil)
	req.Header.Set("Authorization", "Bearer secret")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("valid token status = %d", w.Code)
	}
}

func TestAuthQueryTokenOnlyForGet(t *testing.T) {
	_, router := testEnv(t, "secret")

	if w := do(t, router, http.MethodGet, "/anchors?access_token=secret", nil); w.Code != http.StatusOK {
		t.Errorf("GET with query token status = %d", w.Code)
	}
	if w := do(t, router, http.MethodDelete, "/store?access_token=secret", nil); w.Code != http.StatusUnauthorized {
		t.Errorf("DELETE with query token status = %d, want 401", w.Code)
	}
}
