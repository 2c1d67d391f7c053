package storage

import "context"

// Well-known blob keys
const (
	// BankKey holds the bank device's ledger snapshot
	BankKey = "bank"
	// WalletKey holds the player device's wallet state
	WalletKey = "wallet"
)

// Storage persists opaque state blobs under fixed keys.
// Get returns model.ErrBlobNotFound when nothing has been stored under key.
type Storage interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, data []byte) error
	Delete(ctx context.Context, key string) error
}
