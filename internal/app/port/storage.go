package port

import "context"

// StateStorage is durable key-value storage for JSON-encoded state records.
type StateStorage interface {
	// Load returns the stored bytes and false when the key has never been saved.
	Load(ctx context.Context, key string) ([]byte, bool, error)
	Save(ctx context.Context, key string, data []byte) error
}
