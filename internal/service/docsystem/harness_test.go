package docsystem

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"kbase/internal/config"
	models "kbase/internal/domain/models/docsystem"
	docsysSvc "kbase/internal/domain/services/docsystem"
)

const testUserID = "user-1"

// harness wires every service over one in-memory store
type harness struct {
	store     *memNodeStore
	indexer   *recordingIndexer
	cleaner   *recordingCleaner
	notifier  *recordingNotifier
	ranked    *stubRanked
	guard     *HierarchyGuard
	tree      docsysSvc.TreeStore
	structure docsysSvc.StructureService
	search    docsysSvc.SearchService
	treeView  docsysSvc.TreeService
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	h := &harness{
		store:    newMemNodeStore(),
		indexer:  &recordingIndexer{},
		cleaner:  &recordingCleaner{},
		notifier: &recordingNotifier{},
		ranked:   &stubRanked{page: &models.HitPage{}},
	}
	logger := newTestLogger()

	h.guard = NewHierarchyGuard(h.store)
	h.structure = NewStructureService(h.store, h.store, h.guard, logger)
	h.tree = NewNodeStore(h.store, h.store, h.guard, h.structure, h.indexer, h.cleaner, h.notifier, logger)
	h.search = NewSearchService(h.ranked, h.store, h.guard, config.DefaultSearchSettings(), h.notifier, logger)
	h.treeView = NewTreeService(h.store, logger)
	return h
}

func (h *harness) create(t *testing.T, title string, kind models.NodeKind, parent *models.Node) *models.Node {
	t.Helper()

	req := &docsysSvc.CreateNodeRequest{UserID: testUserID, Title: title, Kind: kind}
	if parent != nil {
		req.ParentID = &parent.ID
	}
	node, err := h.tree.Create(context.Background(), req)
	require.NoError(t, err)
	return node
}

func (h *harness) folder(t *testing.T, title string, parent *models.Node) *models.Node {
	return h.create(t, title, models.NodeKindFolder, parent)
}

func (h *harness) doc(t *testing.T, title string, parent *models.Node) *models.Node {
	return h.create(t, title, models.NodeKindDocument, parent)
}

// get reads a node straight from the store
func (h *harness) get(t *testing.T, id string) models.Node {
	t.Helper()
	n, ok := h.store.snapshot()[id]
	require.True(t, ok, "node %s missing", id)
	return n
}

// requireContiguous asserts every sibling group holds exactly positions 0..n-1
func (h *harness) requireContiguous(t *testing.T) {
	t.Helper()

	groups := make(map[string][]int)
	for _, n := range h.store.snapshot() {
		key := ""
		if n.ParentID != nil {
			key = *n.ParentID
		}
		groups[key] = append(groups[key], n.Position)
	}
	for parent, positions := range groups {
		seen := make(map[int]bool)
		for _, p := range positions {
			require.False(t, seen[p], "duplicate position %d under %q", p, parent)
			seen[p] = true
		}
		for i := range positions {
			require.True(t, seen[i], "gap at position %d under %q (positions %v)", i, parent, positions)
		}
	}
}

// requireAcyclic asserts that following parents from any node never revisits it
func (h *harness) requireAcyclic(t *testing.T) {
	t.Helper()

	nodes := h.store.snapshot()
	for id := range nodes {
		seen := map[string]bool{id: true}
		current := nodes[id]
		for current.ParentID != nil {
			parentID := *current.ParentID
			require.False(t, seen[parentID], "cycle through %s", id)
			seen[parentID] = true
			next, ok := nodes[parentID]
			if !ok {
				break
			}
			current = next
		}
	}
}

// requirePathsConsistent asserts every stored path equals parent path + "/" + slug
func (h *harness) requirePathsConsistent(t *testing.T) {
	t.Helper()

	nodes := h.store.snapshot()
	for _, n := range nodes {
		parentPath := ""
		if n.ParentID != nil {
			parentPath = nodes[*n.ParentID].Path
		}
		require.Equal(t, BuildPath(parentPath, n.Title), n.Path, "stale path for %q", n.Title)
	}
}

// titlesUnder returns node titles of a sibling group in position order
func (h *harness) titlesUnder(t *testing.T, parent *models.Node) []string {
	t.Helper()

	var parentID *string
	if parent != nil {
		parentID = &parent.ID
	}
	children, err := h.store.ListChildren(context.Background(), parentID)
	require.NoError(t, err)

	titles := make([]string, len(children))
	for i, c := range children {
		titles[i] = c.Title
	}
	return titles
}

func ptr[T any](v T) *T { return &v }
