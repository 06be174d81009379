package docsystem

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"

	"kbase/internal/config"
	"kbase/internal/domain"
	models "kbase/internal/domain/models/docsystem"
	"kbase/internal/domain/repositories"
	docsysRepo "kbase/internal/domain/repositories/docsystem"
	"kbase/internal/domain/services"
	docsysSvc "kbase/internal/domain/services/docsystem"
)

// maxLockAttempts bounds how often a mutation re-reads a node whose parent
// changed while its sibling-group lock was being acquired
const maxLockAttempts = 3

type nodeStore struct {
	nodeRepo  docsysRepo.NodeRepository
	txManager repositories.TransactionManager
	guard     *HierarchyGuard
	structure docsysSvc.StructureService // Parent changes on update are delegated here
	indexer   docsysRepo.SearchIndexer
	cleaner   services.AttachmentCleaner
	notifier  services.Notifier
	logger    *slog.Logger
}

// NewNodeStore creates a new tree store
func NewNodeStore(
	nodeRepo docsysRepo.NodeRepository,
	txManager repositories.TransactionManager,
	guard *HierarchyGuard,
	structure docsysSvc.StructureService,
	indexer docsysRepo.SearchIndexer,
	cleaner services.AttachmentCleaner,
	notifier services.Notifier,
	logger *slog.Logger,
) docsysSvc.TreeStore {
	return &nodeStore{
		nodeRepo:  nodeRepo,
		txManager: txManager,
		guard:     guard,
		structure: structure,
		indexer:   indexer,
		cleaner:   cleaner,
		notifier:  notifier,
		logger:    logger,
	}
}

// Create inserts a node as the last child of its parent
func (s *nodeStore) Create(ctx context.Context, req *docsysSvc.CreateNodeRequest) (*models.Node, error) {
	if err := s.validateCreateRequest(req); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}
	if req.ParentID != nil && *req.ParentID == "" {
		req.ParentID = nil
	}

	now := time.Now()
	node := &models.Node{
		ID:        uuid.NewString(),
		Title:     strings.TrimSpace(req.Title),
		Kind:      req.Kind,
		ParentID:  req.ParentID,
		CreatedBy: req.UserID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if node.Kind == models.NodeKindDocument {
		content := ""
		if req.Content != nil {
			content = *req.Content
		}
		node.Content = &content
	}

	err := s.txManager.ExecTx(ctx, func(txCtx context.Context) error {
		if err := s.nodeRepo.LockTree(txCtx, docsysRepo.TreeShared); err != nil {
			return err
		}
		if err := s.nodeRepo.LockSiblingGroups(txCtx, node.ParentID); err != nil {
			return err
		}

		parent, err := s.guard.ValidatePlacement(txCtx, "", node.ParentID)
		if err != nil {
			return err
		}

		count, err := s.nodeRepo.CountChildren(txCtx, node.ParentID)
		if err != nil {
			return fmt.Errorf("count siblings: %w", err)
		}
		node.Position = count
		node.Path = BuildPath(pathOf(parent), node.Title)

		return s.nodeRepo.Create(txCtx, node)
	})
	if err != nil {
		return nil, err
	}

	s.syncIndex(ctx, node)

	s.logger.Info("node created",
		"id", node.ID,
		"kind", node.Kind,
		"parent_id", node.ParentID,
		"position", node.Position,
		"path", node.Path,
	)

	return node, nil
}

// Get retrieves a node by ID
func (s *nodeStore) Get(ctx context.Context, id string) (*models.Node, error) {
	if err := validation.Validate(id, validation.Required, validation.By(isUUID)); err != nil {
		return nil, fmt.Errorf("%w: id %v", domain.ErrValidation, err)
	}
	return s.nodeRepo.GetByID(ctx, id)
}

// Update changes title and content. A present parent is handed to the structure
// engine inside the same transaction so both halves commit together.
// Parent and position are never written from here.
func (s *nodeStore) Update(ctx context.Context, id string, req *docsysSvc.UpdateNodeRequest) (*models.Node, error) {
	if err := s.validateUpdateRequest(id, req); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}

	var updated *models.Node
	err := s.txManager.ExecTx(ctx, func(txCtx context.Context) error {
		mode, err := s.updateLockMode(txCtx, id, req)
		if err != nil {
			return err
		}
		if err := s.nodeRepo.LockTree(txCtx, mode); err != nil {
			return err
		}

		node, err := lockNodeGroups(txCtx, s.nodeRepo, id)
		if err != nil {
			return err
		}

		if req.Content != nil {
			if node.IsFolder() {
				return domain.NewValidationError("folders cannot have content", node.ID)
			}
			content := *req.Content
			node.Content = &content
		}

		renamed := false
		if req.Title != nil {
			title := strings.TrimSpace(*req.Title)
			renamed = title != node.Title
			node.Title = title
		}
		node.UpdatedAt = time.Now()

		if renamed {
			parent, err := s.guard.ResolveParent(txCtx, node.ParentID)
			if err != nil && !errors.Is(err, domain.ErrNotFound) {
				return err
			}
			node.Path = BuildPath(pathOf(parent), node.Title)
		}

		if err := s.nodeRepo.UpdateDetails(txCtx, node); err != nil {
			return err
		}
		if renamed {
			if _, err := rebuildDescendantPaths(txCtx, s.nodeRepo, node); err != nil {
				return err
			}
		}
		updated = node

		if req.ParentID.Present {
			moved, err := s.structure.Move(txCtx, id, &docsysSvc.MoveNodeRequest{ParentID: req.ParentID})
			if err != nil {
				return err
			}
			updated = moved
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.syncIndex(ctx, updated)

	s.logger.Info("node updated",
		"id", updated.ID,
		"parent_id", updated.ParentID,
		"position", updated.Position,
		"path", updated.Path,
	)

	return updated, nil
}

// Delete removes a document or an empty folder and closes the gap it leaves
func (s *nodeStore) Delete(ctx context.Context, id string) error {
	if err := validation.Validate(id, validation.Required, validation.By(isUUID)); err != nil {
		return fmt.Errorf("%w: id %v", domain.ErrValidation, err)
	}

	var deleted *models.Node
	err := s.txManager.ExecTx(ctx, func(txCtx context.Context) error {
		if err := s.nodeRepo.LockTree(txCtx, docsysRepo.TreeShared); err != nil {
			return err
		}
		// The node's own group keeps creates out of a folder being deleted
		node, err := lockNodeGroups(txCtx, s.nodeRepo, id, &id)
		if err != nil {
			return err
		}

		if node.IsFolder() {
			children, err := s.nodeRepo.CountChildren(txCtx, &node.ID)
			if err != nil {
				return fmt.Errorf("count children: %w", err)
			}
			if children > 0 {
				return &domain.ConflictError{
					Message:      fmt.Sprintf("cannot delete folder with %d children; delete or move them first", children),
					ResourceType: string(node.Kind),
					ResourceID:   node.ID,
				}
			}
		}

		if err := s.nodeRepo.Delete(txCtx, node.ID); err != nil {
			return err
		}

		// Close the gap
		from := node.Position + 1
		if err := s.nodeRepo.ShiftPositions(txCtx, node.ParentID, docsysRepo.PositionRange{Min: &from}, -1); err != nil {
			return fmt.Errorf("shift siblings: %w", err)
		}
		deleted = node
		return nil
	})
	if err != nil {
		return err
	}

	if deleted.Kind == models.NodeKindDocument {
		if err := s.indexer.Remove(ctx, deleted.ID); err != nil {
			s.notifier.Warn(ctx, "failed to remove node from search index", "id", deleted.ID, "error", err)
		}
	}
	if err := s.cleaner.DeleteForNode(ctx, deleted.ID); err != nil {
		s.notifier.Warn(ctx, "failed to clean up node attachments", "id", deleted.ID, "error", err)
	}

	s.logger.Info("node deleted",
		"id", deleted.ID,
		"kind", deleted.Kind,
		"parent_id", deleted.ParentID,
		"position", deleted.Position,
	)

	return nil
}

// ListChildren lists direct children by position, or the whole subtree in
// depth-first order with each level in position order
func (s *nodeStore) ListChildren(ctx context.Context, parentID *string, recursive bool) ([]models.Node, error) {
	if parentID != nil && *parentID == "" {
		parentID = nil
	}
	if parentID != nil {
		if err := validation.Validate(*parentID, validation.By(isUUID)); err != nil {
			return nil, fmt.Errorf("%w: parent_id %v", domain.ErrValidation, err)
		}
		if _, err := s.nodeRepo.GetByID(ctx, *parentID); err != nil {
			return nil, err
		}
	}

	if !recursive {
		return s.nodeRepo.ListChildren(ctx, parentID)
	}

	var all []models.Node
	var err error
	if parentID == nil {
		all, err = s.nodeRepo.ListAll(ctx)
	} else {
		all, err = s.nodeRepo.ListDescendants(ctx, *parentID)
	}
	if err != nil {
		return nil, err
	}
	return depthFirst(parentID, all), nil
}

// AncestorChain returns the nodes from the root down to id
func (s *nodeStore) AncestorChain(ctx context.Context, id string) ([]models.Node, error) {
	return s.guard.AncestorChain(ctx, id)
}

// WouldCreateCycle reports whether nodeID placed under candidateParentID would loop
func (s *nodeStore) WouldCreateCycle(ctx context.Context, nodeID, candidateParentID string) (bool, error) {
	return s.guard.WouldCreateCycle(ctx, nodeID, candidateParentID)
}

// Breadcrumb returns the ancestor chain with titles joined by " / "
func (s *nodeStore) Breadcrumb(ctx context.Context, id string) (*models.Breadcrumb, error) {
	chain, err := s.guard.AncestorChain(ctx, id)
	if err != nil {
		return nil, err
	}
	return &models.Breadcrumb{Chain: chain, FullPath: joinTitles(chain, " / ")}, nil
}

// updateLockMode picks the tree lock an update needs. Reparenting and folder
// renames rewrite subtree paths and take it exclusively. Kind never changes,
// so it may be read before any lock is held.
func (s *nodeStore) updateLockMode(ctx context.Context, id string, req *docsysSvc.UpdateNodeRequest) (docsysRepo.TreeLock, error) {
	if req.ParentID.Present {
		return docsysRepo.TreeExclusive, nil
	}
	if req.Title == nil {
		return docsysRepo.TreeShared, nil
	}
	node, err := s.nodeRepo.GetByID(ctx, id)
	if err != nil {
		return docsysRepo.TreeShared, err
	}
	if node.IsFolder() {
		return docsysRepo.TreeExclusive, nil
	}
	return docsysRepo.TreeShared, nil
}

// syncIndex pushes a committed document to the ranked index. Failures only
// degrade search freshness, so they are reported and swallowed.
func (s *nodeStore) syncIndex(ctx context.Context, node *models.Node) {
	if node.Kind != models.NodeKindDocument {
		return
	}
	if err := s.indexer.Index(ctx, node); err != nil {
		s.notifier.Warn(ctx, "failed to index node", "id", node.ID, "error", err)
	}
}

// validateCreateRequest validates a node creation request
func (s *nodeStore) validateCreateRequest(req *docsysSvc.CreateNodeRequest) error {
	return validation.ValidateStruct(req,
		validation.Field(&req.Title,
			validation.Required,
			validation.By(notBlank),
			validation.RuneLength(1, config.MaxTitleLength),
		),
		validation.Field(&req.Kind,
			validation.Required,
			validation.In(models.NodeKindDocument, models.NodeKindFolder).Error("must be document or folder"),
		),
		validation.Field(&req.Content,
			validation.When(req.Kind == models.NodeKindFolder,
				validation.By(emptyContent),
			),
		),
		validation.Field(&req.ParentID, validation.By(isUUID)),
	)
}

// validateUpdateRequest validates a partial node update
func (s *nodeStore) validateUpdateRequest(id string, req *docsysSvc.UpdateNodeRequest) error {
	if err := validation.Validate(id, validation.Required, validation.By(isUUID)); err != nil {
		return fmt.Errorf("id: %w", err)
	}
	if req.Empty() {
		return fmt.Errorf("at least one field must be provided")
	}

	rules := []*validation.FieldRules{}
	if req.Title != nil {
		rules = append(rules,
			validation.Field(&req.Title,
				validation.Required,
				validation.By(notBlank),
				validation.RuneLength(1, config.MaxTitleLength),
			),
		)
	}
	if err := validation.ValidateStruct(req, rules...); err != nil {
		return err
	}
	if req.ParentID.Present {
		if err := validation.Validate(req.ParentID.Value, validation.By(isUUID)); err != nil {
			return fmt.Errorf("parent_id: %w", err)
		}
	}
	return nil
}

func notBlank(value interface{}) error {
	var s string
	switch v := value.(type) {
	case string:
		s = v
	case *string:
		if v == nil {
			return nil
		}
		s = *v
	}
	if strings.TrimSpace(s) == "" {
		return errors.New("cannot be blank")
	}
	return nil
}

func emptyContent(value interface{}) error {
	if v, ok := value.(*string); ok && v != nil && *v != "" {
		return errors.New("folders cannot have content")
	}
	return nil
}

// lockNodeGroups locks the sibling group of id plus any extra groups and returns
// the node as seen under the lock. The node is re-read until its parent is stable.
// The caller must already hold the tree lock.
func lockNodeGroups(ctx context.Context, repo docsysRepo.NodeRepository, id string, extra ...*string) (*models.Node, error) {
	for attempt := 0; attempt < maxLockAttempts; attempt++ {
		before, err := repo.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}

		groups := append([]*string{before.ParentID}, extra...)
		if err := repo.LockSiblingGroups(ctx, groups...); err != nil {
			return nil, err
		}

		after, err := repo.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if models.SameParent(before.ParentID, after.ParentID) {
			return after, nil
		}
	}
	return nil, &domain.ConflictError{
		Message:      "node is being moved concurrently; retry",
		ResourceType: "node",
		ResourceID:   id,
	}
}

// rebuildDescendantPaths recomputes the stored path of every node below root
// from root's current path. Returns the number of rewritten paths.
func rebuildDescendantPaths(ctx context.Context, repo docsysRepo.NodeRepository, root *models.Node) (int, error) {
	descendants, err := repo.ListDescendants(ctx, root.ID)
	if err != nil {
		return 0, fmt.Errorf("list descendants: %w", err)
	}
	if len(descendants) == 0 {
		return 0, nil
	}

	byParent := groupByParent(descendants)
	paths := make(map[string]string)
	visited := map[string]struct{}{root.ID: {}}
	queue := []models.Node{*root}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for _, child := range byParent[current.ID] {
			if _, seen := visited[child.ID]; seen {
				continue
			}
			visited[child.ID] = struct{}{}

			path := BuildPath(current.Path, child.Title)
			if path != child.Path {
				paths[child.ID] = path
			}
			child.Path = path
			queue = append(queue, child)
		}
	}

	if len(paths) == 0 {
		return 0, nil
	}
	if err := repo.UpdatePaths(ctx, paths); err != nil {
		return 0, fmt.Errorf("update descendant paths: %w", err)
	}
	return len(paths), nil
}

// groupByParent buckets nodes by parent ID, each bucket in position order.
// Root-level nodes are keyed by "".
func groupByParent(nodes []models.Node) map[string][]models.Node {
	byParent := make(map[string][]models.Node)
	for _, n := range nodes {
		key := ""
		if n.ParentID != nil {
			key = *n.ParentID
		}
		byParent[key] = append(byParent[key], n)
	}
	for _, children := range byParent {
		sort.SliceStable(children, func(i, j int) bool { return children[i].Position < children[j].Position })
	}
	return byParent
}

// depthFirst orders nodes pre-order from the children of parentID
func depthFirst(parentID *string, nodes []models.Node) []models.Node {
	byParent := groupByParent(nodes)
	out := make([]models.Node, 0, len(nodes))
	visited := make(map[string]struct{}, len(nodes))

	var walk func(key string)
	walk = func(key string) {
		for _, child := range byParent[key] {
			if _, seen := visited[child.ID]; seen {
				continue
			}
			visited[child.ID] = struct{}{}
			out = append(out, child)
			walk(child.ID)
		}
	}

	root := ""
	if parentID != nil {
		root = *parentID
	}
	walk(root)
	return out
}

func pathOf(parent *models.Node) string {
	if parent == nil {
		return ""
	}
	return parent.Path
}

func joinTitles(chain []models.Node, sep string) string {
	titles := make([]string, len(chain))
	for i, n := range chain {
		titles[i] = n.Title
	}
	return strings.Join(titles, sep)
}
