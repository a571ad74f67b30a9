package processor

import (
	"context"

	"github.com/pauljones0/wanderdeals/internal/models"
	"github.com/pauljones0/wanderdeals/internal/notifier"
)

// DealStore abstracts the storage layer for deal data.
type DealStore interface {
	GetDealByID(ctx context.Context, id string) (*models.Deal, error)
	TryCreateDeal(ctx context.Context, deal models.Deal) error
	UpdateImportedDeal(ctx context.Context, deal models.Deal) error
	TrimOldDeals(ctx context.Context, maxDeals int) error
}

// DealNotifier abstracts the moderation notification layer.
type DealNotifier interface {
	NotifyPendingDeal(ctx context.Context, deal models.Deal, origin notifier.Origin) (string, error)
	NotifyImportSummary(ctx context.Context, s notifier.ImportSummary) error
}

// DealImporter scrapes one partner listing.
type DealImporter interface {
	Import(ctx context.Context, source string) ([]models.Deal, error)
}

// Categorizer assigns categories keyed by index into deals. It may return nil.
type Categorizer interface {
	Categorize(ctx context.Context, deals []models.Deal) (map[int]string, error)
}

// Validator checks a deal before it is stored.
type Validator interface {
	ValidateStruct(s any) error
}
