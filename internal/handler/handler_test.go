package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"kbase/internal/domain"
	"kbase/internal/domain/models/docsystem"
	docsysSvc "kbase/internal/domain/services/docsystem"
	"kbase/internal/httputil"
)

// stubStore records the last request and returns canned values
type stubStore struct {
	docsysSvc.TreeStore

	created    *docsysSvc.CreateNodeRequest
	updated    *docsysSvc.UpdateNodeRequest
	listParent *string
	recursive  bool
	err        error
}

func (s *stubStore) Create(_ context.Context, req *docsysSvc.CreateNodeRequest) (*docsystem.Node, error) {
	s.created = req
	if s.err != nil {
		return nil, s.err
	}
	return &docsystem.Node{ID: "n1", Title: req.Title, Kind: req.Kind}, nil
}

func (s *stubStore) Get(_ context.Context, id string) (*docsystem.Node, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &docsystem.Node{ID: id, Title: "Found"}, nil
}

func (s *stubStore) Update(_ context.Context, id string, req *docsysSvc.UpdateNodeRequest) (*docsystem.Node, error) {
	s.updated = req
	if s.err != nil {
		return nil, s.err
	}
	return &docsystem.Node{ID: id}, nil
}

func (s *stubStore) Delete(context.Context, string) error { return s.err }

func (s *stubStore) ListChildren(_ context.Context, parentID *string, recursive bool) ([]docsystem.Node, error) {
	s.listParent, s.recursive = parentID, recursive
	return []docsystem.Node{{ID: "c1"}}, s.err
}

func (s *stubStore) Breadcrumb(_ context.Context, id string) (*docsystem.Breadcrumb, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &docsystem.Breadcrumb{Chain: []docsystem.Node{{ID: id, Title: "Leaf"}}, FullPath: "Leaf"}, nil
}

type stubStructure struct {
	moved     *docsysSvc.MoveNodeRequest
	reordered *docsysSvc.ReorderRequest
	err       error
}

func (s *stubStructure) Move(_ context.Context, id string, req *docsysSvc.MoveNodeRequest) (*docsystem.Node, error) {
	s.moved = req
	if s.err != nil {
		return nil, s.err
	}
	return &docsystem.Node{ID: id}, nil
}

func (s *stubStructure) Reorder(_ context.Context, req *docsysSvc.ReorderRequest) (int, error) {
	s.reordered = req
	return len(req.NodeIDs), s.err
}

type stubSearch struct {
	req *docsysSvc.SearchRequest
	err error
}

func (s *stubSearch) Search(_ context.Context, req *docsysSvc.SearchRequest) (*docsystem.SearchResults, error) {
	s.req = req
	if s.err != nil {
		return nil, s.err
	}
	opts := &docsystem.SearchOptions{Limit: req.Limit, Offset: req.Offset}
	return docsystem.NewSearchResults(nil, 0, opts, docsystem.SearchModeRanked), nil
}

type stubTree struct {
	opts docsystem.TreeOptions
}

func (s *stubTree) GetTree(_ context.Context, opts docsystem.TreeOptions) ([]*docsystem.TreeNode, error) {
	s.opts = opts
	return []*docsystem.TreeNode{}, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newRequest(method, target, body string) *http.Request {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	return httptest.NewRequest(method, target, reader)
}

func decodeProblem(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
	var problem map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &problem))
	return problem
}

func TestCreateNode(t *testing.T) {
	store := &stubStore{}
	h := NewNodeHandler(store, &stubStructure{}, discardLogger())

	req := newRequest(http.MethodPost, "/api/nodes", `{"title":"Notes","type":"folder","parent_id":"p1"}`)
	req = httputil.WithUserID(req, "user-1")
	rec := httptest.NewRecorder()
	h.CreateNode(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "user-1", store.created.UserID)
	assert.Equal(t, docsystem.NodeKindFolder, store.created.Kind)
	require.NotNil(t, store.created.ParentID)
	assert.Equal(t, "p1", *store.created.ParentID)
}

func TestCreateNodeRejectsBadJSON(t *testing.T) {
	h := NewNodeHandler(&stubStore{}, &stubStructure{}, discardLogger())
	rec := httptest.NewRecorder()
	h.CreateNode(rec, newRequest(http.MethodPost, "/api/nodes", `{"title":`))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUpdateNodeParentTriState(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		wantPresent bool
		wantValue   *string
	}{
		{"absent", `{"title":"New"}`, false, nil},
		{"null moves to root", `{"parent_id":null}`, true, nil},
		{"empty string moves to root", `{"parent_id":""}`, true, nil},
		{"value", `{"parent_id":"f1"}`, true, ptr("f1")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &stubStore{}
			h := NewNodeHandler(store, &stubStructure{}, discardLogger())
			req := newRequest(http.MethodPatch, "/api/nodes/n1", tt.body)
			req.SetPathValue("id", "n1")
			rec := httptest.NewRecorder()
			h.UpdateNode(rec, req)

			require.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, tt.wantPresent, store.updated.ParentID.Present)
			assert.Equal(t, tt.wantValue, store.updated.ParentID.Value)
		})
	}
}

func TestMoveNode(t *testing.T) {
	structure := &stubStructure{}
	h := NewNodeHandler(&stubStore{}, structure, discardLogger())

	req := newRequest(http.MethodPost, "/api/nodes/n1/move", `{"parent_id":"f1","position":2}`)
	req.SetPathValue("id", "n1")
	rec := httptest.NewRecorder()
	h.MoveNode(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, structure.moved.ParentID.Present)
	assert.Equal(t, "f1", *structure.moved.ParentID.Value)
	assert.Equal(t, 2, *structure.moved.Position)
}

func TestReorder(t *testing.T) {
	structure := &stubStructure{}
	h := NewNodeHandler(&stubStore{}, structure, discardLogger())

	rec := httptest.NewRecorder()
	h.Reorder(rec, newRequest(http.MethodPost, "/api/nodes/reorder", `{"parent_id":null,"node_ids":["a","b"]}`))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"updated":2}`, rec.Body.String())
	assert.Nil(t, structure.reordered.ParentID)
}

func TestReorderValidationErrorListsIDs(t *testing.T) {
	structure := &stubStructure{err: domain.NewValidationError("nodes not found", "x", "y")}
	h := NewNodeHandler(&stubStore{}, structure, discardLogger())

	rec := httptest.NewRecorder()
	h.Reorder(rec, newRequest(http.MethodPost, "/api/nodes/reorder", `{"node_ids":["x","y"]}`))

	require.Equal(t, http.StatusBadRequest, rec.Code)
	problem := decodeProblem(t, rec)
	assert.Equal(t, []any{"x", "y"}, problem["ids"])
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"not found", domain.NewNotFoundError("node", "n1"), http.StatusNotFound},
		{"validation", domain.NewValidationError("title is required"), http.StatusBadRequest},
		{"wrapped validation", errors.Join(errors.New("ctx"), domain.ErrValidation), http.StatusBadRequest},
		{"conflict", &domain.ConflictError{Message: "folder has children", ResourceType: "folder", ResourceID: "f1"}, http.StatusConflict},
		{"unauthorized", domain.ErrUnauthorized, http.StatusUnauthorized},
		{"persistence", domain.ErrPersistence, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewNodeHandler(&stubStore{err: tt.err}, &stubStructure{}, discardLogger())
			req := newRequest(http.MethodDelete, "/api/nodes/n1", "")
			req.SetPathValue("id", "n1")
			rec := httptest.NewRecorder()
			h.DeleteNode(rec, req)

			require.Equal(t, tt.wantStatus, rec.Code)
			problem := decodeProblem(t, rec)
			assert.Equal(t, float64(tt.wantStatus), problem["status"])
		})
	}
}

func TestDeleteConflictCarriesResourceID(t *testing.T) {
	err := &domain.ConflictError{Message: "folder has children", ResourceType: "folder", ResourceID: "f1"}
	h := NewNodeHandler(&stubStore{err: err}, &stubStructure{}, discardLogger())
	req := newRequest(http.MethodDelete, "/api/nodes/f1", "")
	req.SetPathValue("id", "f1")
	rec := httptest.NewRecorder()
	h.DeleteNode(rec, req)

	problem := decodeProblem(t, rec)
	assert.Equal(t, "f1", problem["resource_id"])
}

func TestDeleteNodeNoContent(t *testing.T) {
	h := NewNodeHandler(&stubStore{}, &stubStructure{}, discardLogger())
	req := newRequest(http.MethodDelete, "/api/nodes/n1", "")
	req.SetPathValue("id", "n1")
	rec := httptest.NewRecorder()
	h.DeleteNode(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestListChildren(t *testing.T) {
	store := &stubStore{}
	h := NewNodeHandler(store, &stubStructure{}, discardLogger())

	rec := httptest.NewRecorder()
	h.ListChildren(rec, newRequest(http.MethodGet, "/api/nodes?parent_id=f1&recursive=true", ""))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "f1", *store.listParent)
	assert.True(t, store.recursive)

	rec = httptest.NewRecorder()
	h.ListChildren(rec, newRequest(http.MethodGet, "/api/nodes", ""))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Nil(t, store.listParent)
	assert.False(t, store.recursive)

	rec = httptest.NewRecorder()
	h.ListChildren(rec, newRequest(http.MethodGet, "/api/nodes?recursive=maybe", ""))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetPath(t *testing.T) {
	h := NewNodeHandler(&stubStore{}, &stubStructure{}, discardLogger())
	req := newRequest(http.MethodGet, "/api/nodes/n1/path", "")
	req.SetPathValue("id", "n1")
	rec := httptest.NewRecorder()
	h.GetPath(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"path":[{"id":"n1","title":"Leaf","type":"","parent_id":null,"path":"","position":0,"created_by":"","created_at":"0001-01-01T00:00:00Z","updated_at":"0001-01-01T00:00:00Z"}],"full_path":"Leaf"}`, rec.Body.String())
}

func TestSearchHandler(t *testing.T) {
	search := &stubSearch{}
	h := NewSearchHandler(search, discardLogger())

	rec := httptest.NewRecorder()
	h.Search(rec, newRequest(http.MethodGet, "/api/search?query=hello+world&limit=5&offset=10", ""))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "hello world", search.req.Query)
	assert.Equal(t, 5, search.req.Limit)
	assert.Equal(t, 10, search.req.Offset)

	rec = httptest.NewRecorder()
	h.Search(rec, newRequest(http.MethodGet, "/api/search?query=x", ""))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, docsystem.DefaultSearchLimit, search.req.Limit)

	rec = httptest.NewRecorder()
	h.Search(rec, newRequest(http.MethodGet, "/api/search?query=x&limit=ten", ""))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTreeHandler(t *testing.T) {
	tree := &stubTree{}
	h := NewTreeHandler(tree, discardLogger())

	rec := httptest.NewRecorder()
	h.GetTree(rec, newRequest(http.MethodGet, "/api/nodes/tree?root_only=true&expand=1", ""))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, docsystem.TreeOptions{RootOnly: true, Expand: true}, tree.opts)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

type stubPinger struct{ err error }

func (p stubPinger) Ping(context.Context) error { return p.err }

func TestHealthCheck(t *testing.T) {
	rec := httptest.NewRecorder()
	NewHealthHandler(stubPinger{}).HealthCheck(rec, newRequest(http.MethodGet, "/health", ""))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	NewHealthHandler(stubPinger{err: errors.New("down")}).HealthCheck(rec, newRequest(http.MethodGet, "/health", ""))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func ptr[T any](v T) *T { return &v }
