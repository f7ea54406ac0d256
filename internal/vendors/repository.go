package vendors

import (
	"context"

	"github.com/bissquit/oprisk/internal/domain"
)

// Repository defines the interface for vendor storage.
type Repository interface {
	// GetVendor returns an error matching domain.ErrNotFound for unknown ids.
	GetVendor(ctx context.Context, id string) (*domain.VendorProfile, error)
}

// FeedProvider supplies external risk signals for a vendor. A nil result with a nil
// error means no data is available.
type FeedProvider interface {
	GetFeed(ctx context.Context, vendorID string) (*domain.FeedData, error)
}
