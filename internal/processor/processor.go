package processor

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/pauljones0/wanderdeals/internal/config"
	"github.com/pauljones0/wanderdeals/internal/models"
	"github.com/pauljones0/wanderdeals/internal/notifier"
)

type Processor interface {
	ImportDeals(ctx context.Context) error
}

type DealProcessor struct {
	store       DealStore
	notifier    DealNotifier
	importer    DealImporter
	categorizer Categorizer
	validator   Validator
	config      *config.Config
	now         func() time.Time
}

func New(store DealStore, n DealNotifier, imp DealImporter, cat Categorizer, v Validator, cfg *config.Config) *DealProcessor {
	return &DealProcessor{
		store:       store,
		notifier:    n,
		importer:    imp,
		categorizer: cat,
		validator:   v,
		config:      cfg,
		now:         time.Now,
	}
}

// GenerateDealID creates a stable deal identity from the normalized partner
// URL, so re-importing a listing updates the same document.
func GenerateDealID(sourceURL string) string {
	hash := sha256.Sum256([]byte(sourceURL))
	return hex.EncodeToString(hash[:])
}

// ImportDeals runs every configured source through the pipeline:
// scrape, categorize new deals, validate, create or update, notify, trim.
func (p *DealProcessor) ImportDeals(ctx context.Context) error {
	start := p.now()
	summary := notifier.ImportSummary{Sources: len(p.config.ImportSources)}
	var errorMessages []string

	var scraped []models.Deal
	seen := make(map[string]bool)
	for _, source := range p.config.ImportSources {
		deals, err := p.importer.Import(ctx, source)
		if err != nil {
			summary.Failed++
			errorMessages = append(errorMessages, err.Error())
			continue
		}
		for _, d := range deals {
			if strings.TrimSpace(d.Title) == "" || strings.TrimSpace(d.SourceURL) == "" {
				continue
			}
			d.ID = GenerateDealID(d.SourceURL)
			if seen[d.ID] {
				continue
			}
			seen[d.ID] = true
			scraped = append(scraped, d)
		}
	}
	slog.Info("Scraped partner listings", "sources", summary.Sources, "deals", len(scraped))

	var fresh []models.Deal
	existingDeals := make(map[string]*models.Deal)
	for _, d := range scraped {
		existing, err := p.store.GetDealByID(ctx, d.ID)
		switch {
		case errors.Is(err, models.ErrNotFound):
			fresh = append(fresh, d)
		case err != nil:
			summary.Failed++
			errorMessages = append(errorMessages, fmt.Sprintf("failed to check deal %s: %v", d.ID, err))
		default:
			existingDeals[d.ID] = existing
		}
	}

	p.categorize(ctx, fresh)

	for _, d := range fresh {
		created, err := p.createDeal(ctx, d)
		if err != nil {
			summary.Failed++
			errorMessages = append(errorMessages, err.Error())
			continue
		}
		if created {
			summary.Created++
		} else {
			summary.Updated++
		}
	}

	for _, d := range scraped {
		existing, ok := existingDeals[d.ID]
		if !ok {
			continue
		}
		updated, err := p.updateDeal(ctx, existing, d)
		if err != nil {
			summary.Failed++
			errorMessages = append(errorMessages, err.Error())
			continue
		}
		if updated {
			summary.Updated++
		}
	}

	// Trim old deals once per run instead of per deal
	if summary.Created > 0 && p.config.MaxStoredDeals > 0 {
		if err := p.store.TrimOldDeals(ctx, p.config.MaxStoredDeals); err != nil {
			slog.Warn("Failed to trim old deals", "error", err)
		}
	}

	summary.Took = p.now().Sub(start)
	if err := p.notifier.NotifyImportSummary(ctx, summary); err != nil {
		slog.Warn("Failed to send import summary", "error", err)
	}

	slog.Info("Finished import", "new", summary.Created, "updated", summary.Updated, "failed", summary.Failed)
	if len(errorMessages) > 0 {
		return fmt.Errorf("imported with errors: %s", strings.Join(errorMessages, "; "))
	}
	return nil
}

func (p *DealProcessor) categorize(ctx context.Context, deals []models.Deal) {
	var idx []int
	var pending []models.Deal
	for i, d := range deals {
		if d.Category == "" {
			idx = append(idx, i)
			pending = append(pending, d)
		}
	}
	if len(pending) > 0 && p.categorizer != nil {
		categories, err := p.categorizer.Categorize(ctx, pending)
		if err != nil {
			slog.Warn("Categorization failed, deals stay uncategorized", "count", len(pending), "error", err)
		}
		for j, cat := range categories {
			deals[idx[j]].Category = cat
		}
	}
	for i := range deals {
		if deals[i].Category == "" {
			deals[i].Category = models.CategoryOther
		}
	}
}

// createDeal stores an imported deal as pending moderation. It reports false
// when another run created the deal first and it was updated instead.
func (p *DealProcessor) createDeal(ctx context.Context, deal models.Deal) (bool, error) {
	now := p.now()
	deal.Status = models.StatusPending
	deal.IsActive = false
	deal.CreatedAt = now
	deal.LastUpdated = now
	deal.ValidFrom = now

	if err := p.validator.ValidateStruct(deal); err != nil {
		return false, fmt.Errorf("invalid deal %q from %s: %w", deal.Title, deal.SourceURL, err)
	}

	createErr := p.store.TryCreateDeal(ctx, deal)
	if createErr == nil {
		slog.Info("New deal imported", "title", deal.Title, "id", deal.ID)
		if _, err := p.notifier.NotifyPendingDeal(ctx, deal, notifier.OriginImport); err != nil {
			slog.Error("Error sending moderation notification", "id", deal.ID, "error", err)
		}
		return true, nil
	}

	// Race condition: another instance created it first
	if !errors.Is(createErr, models.ErrDealExists) {
		return false, fmt.Errorf("failed to create deal %s: %w", deal.Title, createErr)
	}
	existing, err := p.store.GetDealByID(ctx, deal.ID)
	if err != nil {
		return false, fmt.Errorf("error recovering from race for deal %s: %w", deal.ID, err)
	}
	_, err = p.updateDeal(ctx, existing, deal)
	return false, err
}

func (p *DealProcessor) updateDeal(ctx context.Context, existing *models.Deal, scraped models.Deal) (bool, error) {
	if !dealChanged(existing, &scraped) {
		return false, nil
	}

	existing.Title = scraped.Title
	existing.Description = scraped.Description
	existing.Discount = scraped.Discount
	existing.DiscountType = scraped.DiscountType
	existing.BusinessName = scraped.BusinessName
	existing.OriginalPrice = scraped.OriginalPrice
	existing.DiscountedPrice = scraped.DiscountedPrice
	existing.Images = scraped.Images
	existing.ValidUntil = scraped.ValidUntil
	existing.SourceURL = scraped.SourceURL
	existing.LastUpdated = p.now()

	if err := p.validator.ValidateStruct(*existing); err != nil {
		return false, fmt.Errorf("invalid update for deal %s: %w", existing.ID, err)
	}
	if err := p.store.UpdateImportedDeal(ctx, *existing); err != nil {
		return false, fmt.Errorf("failed to update deal %s: %w", existing.ID, err)
	}
	slog.Info("Updated imported deal", "title", existing.Title, "id", existing.ID)
	return true, nil
}

func dealChanged(existing, scraped *models.Deal) bool {
	return existing.Title != scraped.Title ||
		existing.Description != scraped.Description ||
		existing.Discount != scraped.Discount ||
		existing.BusinessName != scraped.BusinessName ||
		existing.OriginalPrice != scraped.OriginalPrice ||
		existing.DiscountedPrice != scraped.DiscountedPrice ||
		!slices.Equal(existing.Images, scraped.Images) ||
		!sameTime(existing.ValidUntil, scraped.ValidUntil)
}

func sameTime(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}
