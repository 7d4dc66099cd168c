package txstore

import "context"

// Backend is a pluggable persistence target. The store mirrors every
// mutation to each configured backend; local device storage and a remote
// per-identity document store are interchangeable behind this interface.
type Backend interface {
	AddRecord(ctx context.Context, owner string, tx *Transaction) error
	UpdateRecord(ctx context.Context, owner string, tx *Transaction) error
	DeleteRecord(ctx context.Context, owner string, id string) error
	QueryByOwner(ctx context.Context, owner string) ([]*Transaction, error)
	Close() error
}
