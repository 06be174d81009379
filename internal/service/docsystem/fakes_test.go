package docsystem

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"kbase/internal/domain"
	models "kbase/internal/domain/models/docsystem"
	"kbase/internal/domain/repositories"
	docsysRepo "kbase/internal/domain/repositories/docsystem"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type memTxKey struct{}

// memTx is the state of one in-memory transaction
type memTx struct {
	// undo holds the first pre-image of every written node; nil means it did not exist
	undo map[string]*models.Node
	// held maps lock keys to whether they are held exclusively
	held    map[string]bool
	release []func()
}

// memNodeStore is an in-memory NodeRepository and TransactionManager.
// Transactions only exclude each other through LockTree and LockSiblingGroups,
// like advisory locks do, and undo their writes on error.
type memNodeStore struct {
	mu    sync.Mutex
	nodes map[string]models.Node

	locksMu sync.Mutex
	locks   map[string]*sync.RWMutex

	// shiftErr, when set, is returned by ShiftPositions
	shiftErr error
	// afterGet, when set, runs after GetByID has read its node
	afterGet func(id string)
	// locked records every sibling group passed to LockSiblingGroups
	locked []string
	// treeLocks records every mode passed to LockTree
	treeLocks []docsysRepo.TreeLock
}

var (
	_ docsysRepo.NodeRepository       = (*memNodeStore)(nil)
	_ repositories.TransactionManager = (*memNodeStore)(nil)
)

func newMemNodeStore() *memNodeStore {
	return &memNodeStore{
		nodes: make(map[string]models.Node),
		locks: make(map[string]*sync.RWMutex),
	}
}

func txOf(ctx context.Context) *memTx {
	tx, _ := ctx.Value(memTxKey{}).(*memTx)
	return tx
}

func (m *memNodeStore) ExecTx(ctx context.Context, fn repositories.TxFn) error {
	if txOf(ctx) != nil {
		return fn(ctx)
	}

	tx := &memTx{undo: make(map[string]*models.Node), held: make(map[string]bool)}
	defer func() {
		for i := len(tx.release) - 1; i >= 0; i-- {
			tx.release[i]()
		}
	}()

	if err := fn(context.WithValue(ctx, memTxKey{}, tx)); err != nil {
		m.mu.Lock()
		for id, before := range tx.undo {
			if before == nil {
				delete(m.nodes, id)
			} else {
				m.nodes[id] = *before
			}
		}
		m.mu.Unlock()
		return err
	}
	return nil
}

// acquire blocks until tx holds key. Keys already held are not taken twice.
func (m *memNodeStore) acquire(tx *memTx, key string, exclusive bool) error {
	if held, ok := tx.held[key]; ok {
		if exclusive && !held {
			return fmt.Errorf("lock %s: upgrade from shared", key)
		}
		return nil
	}

	m.locksMu.Lock()
	l, ok := m.locks[key]
	if !ok {
		l = &sync.RWMutex{}
		m.locks[key] = l
	}
	m.locksMu.Unlock()

	if exclusive {
		l.Lock()
		tx.release = append(tx.release, l.Unlock)
	} else {
		l.RLock()
		tx.release = append(tx.release, l.RUnlock)
	}
	tx.held[key] = exclusive
	return nil
}

// do runs fn under the store mutex
func (m *memNodeStore) do(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	fn()
}

// touch saves the pre-image of id for rollback; m.mu must be held
func (m *memNodeStore) touch(ctx context.Context, id string) {
	tx := txOf(ctx)
	if tx == nil {
		return
	}
	if _, saved := tx.undo[id]; saved {
		return
	}
	if n, ok := m.nodes[id]; ok {
		tx.undo[id] = &n
		return
	}
	tx.undo[id] = nil
}

// put stores a node directly, bypassing services
func (m *memNodeStore) put(n models.Node) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nodes[n.ID] = n
}

func (m *memNodeStore) snapshot() map[string]models.Node {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]models.Node, len(m.nodes))
	for id, n := range m.nodes {
		out[id] = n
	}
	return out
}

func (m *memNodeStore) Create(ctx context.Context, node *models.Node) error {
	var err error
	m.do(func() {
		if _, exists := m.nodes[node.ID]; exists {
			err = &domain.ConflictError{Message: "duplicate id", ResourceType: "node", ResourceID: node.ID}
			return
		}
		m.touch(ctx, node.ID)
		m.nodes[node.ID] = *node
	})
	return err
}

func (m *memNodeStore) GetByID(ctx context.Context, id string) (*models.Node, error) {
	var out *models.Node
	m.do(func() {
		if n, ok := m.nodes[id]; ok {
			out = &n
		}
	})
	if m.afterGet != nil {
		m.afterGet(id)
	}
	if out == nil {
		return nil, domain.NewNotFoundError("node", id)
	}
	return out, nil
}

func (m *memNodeStore) GetByIDs(ctx context.Context, ids []string) (map[string]*models.Node, error) {
	out := make(map[string]*models.Node)
	m.do(func() {
		for _, id := range ids {
			if n, ok := m.nodes[id]; ok {
				out[id] = &n
			}
		}
	})
	return out, nil
}

func (m *memNodeStore) children(parentID *string) []models.Node {
	var out []models.Node
	for _, n := range m.nodes {
		if models.SameParent(n.ParentID, parentID) {
			out = append(out, n)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out
}

func (m *memNodeStore) ListChildren(ctx context.Context, parentID *string) ([]models.Node, error) {
	var out []models.Node
	m.do(func() { out = m.children(parentID) })
	return out, nil
}

func (m *memNodeStore) CountChildren(ctx context.Context, parentID *string) (int, error) {
	var count int
	m.do(func() { count = len(m.children(parentID)) })
	return count, nil
}

func (m *memNodeStore) ListDescendants(ctx context.Context, id string) ([]models.Node, error) {
	var out []models.Node
	m.do(func() {
		queue := []string{id}
		seen := map[string]bool{id: true}
		for len(queue) > 0 {
			current := queue[0]
			queue = queue[1:]
			for _, child := range m.children(&current) {
				if seen[child.ID] {
					continue
				}
				seen[child.ID] = true
				out = append(out, child)
				queue = append(queue, child.ID)
			}
		}
	})
	return out, nil
}

func (m *memNodeStore) ListAll(ctx context.Context) ([]models.Node, error) {
	var out []models.Node
	m.do(func() {
		for _, n := range m.nodes {
			out = append(out, n)
		}
	})
	sort.Slice(out, func(i, j int) bool {
		if out[i].Path != out[j].Path {
			return out[i].Path < out[j].Path
		}
		return out[i].Position < out[j].Position
	})
	return out, nil
}

func (m *memNodeStore) Update(ctx context.Context, node *models.Node) error {
	var err error
	m.do(func() {
		if _, ok := m.nodes[node.ID]; !ok {
			err = domain.NewNotFoundError("node", node.ID)
			return
		}
		m.touch(ctx, node.ID)
		m.nodes[node.ID] = *node
	})
	return err
}

func (m *memNodeStore) UpdateDetails(ctx context.Context, node *models.Node) error {
	var err error
	m.do(func() {
		current, ok := m.nodes[node.ID]
		if !ok {
			err = domain.NewNotFoundError("node", node.ID)
			return
		}
		m.touch(ctx, node.ID)
		current.Title = node.Title
		current.Content = node.Content
		current.Path = node.Path
		current.UpdatedAt = node.UpdatedAt
		m.nodes[node.ID] = current
	})
	return err
}

func (m *memNodeStore) UpdatePaths(ctx context.Context, paths map[string]string) error {
	m.do(func() {
		for id, path := range paths {
			if n, ok := m.nodes[id]; ok {
				m.touch(ctx, id)
				n.Path = path
				m.nodes[id] = n
			}
		}
	})
	return nil
}

func (m *memNodeStore) ShiftPositions(ctx context.Context, parentID *string, rng docsysRepo.PositionRange, delta int) error {
	if m.shiftErr != nil {
		return m.shiftErr
	}
	m.do(func() {
		for id, n := range m.nodes {
			if models.SameParent(n.ParentID, parentID) && rng.Contains(n.Position) {
				m.touch(ctx, id)
				n.Position += delta
				m.nodes[id] = n
			}
		}
	})
	return nil
}

func (m *memNodeStore) SetPositions(ctx context.Context, orderedIDs []string) error {
	m.do(func() {
		for i, id := range orderedIDs {
			if n, ok := m.nodes[id]; ok {
				m.touch(ctx, id)
				n.Position = i
				m.nodes[id] = n
			}
		}
	})
	return nil
}

func (m *memNodeStore) Delete(ctx context.Context, id string) error {
	var err error
	m.do(func() {
		if _, ok := m.nodes[id]; !ok {
			err = domain.NewNotFoundError("node", id)
			return
		}
		m.touch(ctx, id)
		delete(m.nodes, id)
	})
	return err
}

// LockSiblingGroups takes one exclusive lock per group in sorted order
func (m *memNodeStore) LockSiblingGroups(ctx context.Context, parentIDs ...*string) error {
	tx := txOf(ctx)
	if tx == nil {
		return repositories.ErrNoTx
	}

	keys := make([]string, 0, len(parentIDs))
	for _, p := range parentIDs {
		key := "root"
		if p != nil {
			key = *p
		}
		keys = append(keys, key)
	}
	m.do(func() { m.locked = append(m.locked, keys...) })

	sort.Strings(keys)
	for _, key := range keys {
		if err := m.acquire(tx, "group:"+key, true); err != nil {
			return err
		}
	}
	return nil
}

func (m *memNodeStore) LockTree(ctx context.Context, mode docsysRepo.TreeLock) error {
	tx := txOf(ctx)
	if tx == nil {
		return repositories.ErrNoTx
	}
	m.do(func() { m.treeLocks = append(m.treeLocks, mode) })
	return m.acquire(tx, "tree", mode == docsysRepo.TreeExclusive)
}

// SubstringSearch mirrors the Postgres ILIKE fallback
func (m *memNodeStore) SubstringSearch(ctx context.Context, opts *models.SearchOptions) (*models.HitPage, error) {
	needle := strings.ToLower(opts.Query)
	var matches []models.Node
	m.do(func() {
		for _, n := range m.nodes {
			if n.Kind != models.NodeKindDocument {
				continue
			}
			if strings.Contains(strings.ToLower(n.Title), needle) || strings.Contains(strings.ToLower(n.ContentString()), needle) {
				matches = append(matches, n)
			}
		}
	})
	sort.Slice(matches, func(i, j int) bool { return matches[i].UpdatedAt.After(matches[j].UpdatedAt) })

	page := &models.HitPage{TotalCount: len(matches)}
	for i := opts.Offset; i < len(matches) && i < opts.Offset+opts.Limit; i++ {
		page.Hits = append(page.Hits, models.RankedHit{Node: matches[i]})
	}
	return page, nil
}

// stubRanked returns a canned page or error
type stubRanked struct {
	page   *models.HitPage
	err    error
	markup models.HighlightMarkup
	calls  int
}

func (s *stubRanked) RankedSearch(ctx context.Context, opts *models.SearchOptions) (*models.HitPage, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.page, nil
}

func (s *stubRanked) Markup() models.HighlightMarkup { return s.markup }

// recordingIndexer remembers index operations
type recordingIndexer struct {
	indexed []string
	removed []string
	err     error
}

func (r *recordingIndexer) Index(ctx context.Context, node *models.Node) error {
	r.indexed = append(r.indexed, node.ID)
	return r.err
}

func (r *recordingIndexer) Remove(ctx context.Context, id string) error {
	r.removed = append(r.removed, id)
	return r.err
}

// recordingCleaner remembers attachment cleanups
type recordingCleaner struct {
	nodeIDs []string
	err     error
}

func (r *recordingCleaner) DeleteForNode(ctx context.Context, nodeID string) error {
	r.nodeIDs = append(r.nodeIDs, nodeID)
	return r.err
}

// recordingNotifier remembers warnings and errors
type recordingNotifier struct {
	mu       sync.Mutex
	warnings []string
	errors   []string
}

func (r *recordingNotifier) Warn(ctx context.Context, msg string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.warnings = append(r.warnings, msg)
}

func (r *recordingNotifier) Error(ctx context.Context, msg string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errors = append(r.errors, msg)
}

var errEngineDown = errors.New("syntax error in tsquery")
