package docsystem

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"kbase/internal/config"
	"kbase/internal/domain"
	models "kbase/internal/domain/models/docsystem"
	"kbase/internal/domain/repositories"
	docsysRepo "kbase/internal/domain/repositories/docsystem"
	docsysSvc "kbase/internal/domain/services/docsystem"
)

type structureService struct {
	nodeRepo  docsysRepo.NodeRepository
	txManager repositories.TransactionManager
	guard     *HierarchyGuard
	logger    *slog.Logger
}

// NewStructureService creates a new reparent/reorder engine
func NewStructureService(
	nodeRepo docsysRepo.NodeRepository,
	txManager repositories.TransactionManager,
	guard *HierarchyGuard,
	logger *slog.Logger,
) docsysSvc.StructureService {
	return &structureService{
		nodeRepo:  nodeRepo,
		txManager: txManager,
		guard:     guard,
		logger:    logger,
	}
}

// Move re-parents and/or repositions a node.
//
// Positions are shifted so both the old and the new sibling group stay
// contiguous, and the paths of the node and its whole subtree are rebuilt.
func (s *structureService) Move(ctx context.Context, id string, req *docsysSvc.MoveNodeRequest) (*models.Node, error) {
	if err := s.validateMoveRequest(id, req); err != nil {
		return nil, err
	}
	target := req.ParentID
	if target.Value != nil && *target.Value == "" {
		target.Value = nil
	}

	var moved *models.Node
	var oldParent *string
	var oldPosition int
	err := s.txManager.ExecTx(ctx, func(txCtx context.Context) error {
		// Reparenting walks and rewrites ancestry, which no sibling-group lock covers
		mode := docsysRepo.TreeShared
		var extra []*string
		if target.Present {
			mode = docsysRepo.TreeExclusive
			extra = append(extra, target.Value)
		}
		if err := s.nodeRepo.LockTree(txCtx, mode); err != nil {
			return err
		}
		node, err := lockNodeGroups(txCtx, s.nodeRepo, id, extra...)
		if err != nil {
			return err
		}
		oldParent, oldPosition = node.ParentID, node.Position

		finalParent := node.ParentID
		var parent *models.Node
		if target.Present {
			finalParent = target.Value
			parent, err = s.guard.ValidatePlacement(txCtx, node.ID, finalParent)
			if errors.Is(err, domain.ErrNotFound) {
				return domain.NewValidationError("target parent not found", *finalParent)
			}
		} else {
			parent, err = s.guard.ResolveParent(txCtx, finalParent)
			if errors.Is(err, domain.ErrNotFound) {
				err = nil
			}
		}
		if err != nil {
			return err
		}

		sameParent := models.SameParent(node.ParentID, finalParent)

		// Destination sibling count, excluding the node itself
		count, err := s.nodeRepo.CountChildren(txCtx, finalParent)
		if err != nil {
			return fmt.Errorf("count siblings: %w", err)
		}
		if sameParent {
			count--
		}

		finalPosition := count
		switch {
		case req.Position != nil:
			finalPosition = min(*req.Position, count)
		case sameParent:
			finalPosition = node.Position
		}

		if err := s.shiftSiblings(txCtx, node, finalParent, finalPosition, sameParent); err != nil {
			return err
		}

		node.ParentID = finalParent
		node.Position = finalPosition
		node.Path = BuildPath(pathOf(parent), node.Title)
		node.UpdatedAt = time.Now()
		if err := s.nodeRepo.Update(txCtx, node); err != nil {
			return err
		}

		rewritten, err := rebuildDescendantPaths(txCtx, s.nodeRepo, node)
		if err != nil {
			return err
		}
		if rewritten > 0 {
			s.logger.Debug("descendant paths rebuilt", "id", node.ID, "count", rewritten)
		}

		moved = node
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("node moved",
		"id", moved.ID,
		"old_parent_id", oldParent,
		"old_position", oldPosition,
		"parent_id", moved.ParentID,
		"position", moved.Position,
		"path", moved.Path,
	)

	return moved, nil
}

// shiftSiblings opens a slot at finalPosition in the destination group and
// closes the one the node leaves behind
func (s *structureService) shiftSiblings(ctx context.Context, node *models.Node, finalParent *string, finalPosition int, sameParent bool) error {
	oldPosition := node.Position

	if sameParent {
		switch {
		case finalPosition < oldPosition:
			// Moving up: [final, old) slide down one slot
			hi := oldPosition - 1
			return s.shift(ctx, finalParent, &finalPosition, &hi, 1)
		case finalPosition > oldPosition:
			// Moving down: (old, final] slide up one slot
			lo := oldPosition + 1
			return s.shift(ctx, finalParent, &lo, &finalPosition, -1)
		}
		return nil
	}

	lo := oldPosition + 1
	if err := s.shift(ctx, node.ParentID, &lo, nil, -1); err != nil {
		return err
	}
	return s.shift(ctx, finalParent, &finalPosition, nil, 1)
}

func (s *structureService) shift(ctx context.Context, parentID *string, lo, hi *int, delta int) error {
	rng := docsysRepo.PositionRange{Min: lo, Max: hi}
	if err := s.nodeRepo.ShiftPositions(ctx, parentID, rng, delta); err != nil {
		return fmt.Errorf("shift siblings: %w", err)
	}
	return nil
}

// Reorder assigns position = index to each listed node. Siblings left out of
// the list keep their relative order after the listed ones.
func (s *structureService) Reorder(ctx context.Context, req *docsysSvc.ReorderRequest) (int, error) {
	if req.ParentID != nil && *req.ParentID == "" {
		req.ParentID = nil
	}
	if err := s.validateReorderRequest(req); err != nil {
		return 0, err
	}

	err := s.txManager.ExecTx(ctx, func(txCtx context.Context) error {
		if err := s.nodeRepo.LockTree(txCtx, docsysRepo.TreeShared); err != nil {
			return err
		}
		if err := s.nodeRepo.LockSiblingGroups(txCtx, req.ParentID); err != nil {
			return err
		}

		found, err := s.nodeRepo.GetByIDs(txCtx, req.NodeIDs)
		if err != nil {
			return err
		}

		var missing, foreign []string
		for _, id := range req.NodeIDs {
			node, ok := found[id]
			switch {
			case !ok:
				missing = append(missing, id)
			case !models.SameParent(node.ParentID, req.ParentID):
				foreign = append(foreign, id)
			}
		}
		if len(missing) > 0 {
			return domain.NewValidationError("nodes not found", missing...)
		}
		if len(foreign) > 0 {
			return domain.NewValidationError("nodes do not belong to the specified parent", foreign...)
		}

		siblings, err := s.nodeRepo.ListChildren(txCtx, req.ParentID)
		if err != nil {
			return err
		}

		listed := make(map[string]struct{}, len(req.NodeIDs))
		order := make([]string, 0, len(siblings))
		for _, id := range req.NodeIDs {
			listed[id] = struct{}{}
			order = append(order, id)
		}
		for _, sibling := range siblings {
			if _, ok := listed[sibling.ID]; !ok {
				order = append(order, sibling.ID)
			}
		}

		return s.nodeRepo.SetPositions(txCtx, order)
	})
	if err != nil {
		return 0, err
	}

	s.logger.Info("siblings reordered",
		"parent_id", req.ParentID,
		"count", len(req.NodeIDs),
	)

	return len(req.NodeIDs), nil
}

// validateMoveRequest validates a move request
func (s *structureService) validateMoveRequest(id string, req *docsysSvc.MoveNodeRequest) error {
	if err := validation.Validate(id, validation.Required, validation.By(isUUID)); err != nil {
		return fmt.Errorf("%w: id %v", domain.ErrValidation, err)
	}
	if req.Position != nil && *req.Position < 0 {
		return domain.NewValidationError("position must be non-negative", id)
	}
	if req.ParentID.Present {
		if err := validation.Validate(req.ParentID.Value, validation.By(isUUID)); err != nil {
			return fmt.Errorf("%w: parent_id %v", domain.ErrValidation, err)
		}
	}
	return nil
}

// validateReorderRequest validates a reorder request
func (s *structureService) validateReorderRequest(req *docsysSvc.ReorderRequest) error {
	err := validation.ValidateStruct(req,
		validation.Field(&req.ParentID, validation.By(isUUID)),
		validation.Field(&req.NodeIDs,
			validation.Required,
			validation.Length(1, config.MaxReorderBatch),
			validation.Each(validation.Required, validation.By(isUUID)),
		),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}

	seen := make(map[string]struct{}, len(req.NodeIDs))
	var duplicates []string
	for _, id := range req.NodeIDs {
		if _, ok := seen[id]; ok {
			duplicates = append(duplicates, id)
			continue
		}
		seen[id] = struct{}{}
	}
	if len(duplicates) > 0 {
		return domain.NewValidationError("duplicate node ids", duplicates...)
	}
	return nil
}
