package services

import "context"

// Notifier receives operational events the core recovers from but that an
// operator should hear about (search fallback, failed cleanup).
type Notifier interface {
	Warn(ctx context.Context, msg string, args ...any)
	Error(ctx context.Context, msg string, args ...any)
}

// AttachmentCleaner removes files owned by a node once the node is gone
type AttachmentCleaner interface {
	DeleteForNode(ctx context.Context, nodeID string) error
}
