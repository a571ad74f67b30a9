package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"cloud.google.com/go/firestore"
	"cloud.google.com/go/firestore/apiv1/firestorepb"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/pauljones0/wanderdeals/internal/models"
)

// Collection names.
const (
	DealsCollection      = "deals"
	UsersCollection      = "users"
	PostsCollection      = "posts"
	BusinessesCollection = "businesses"
)

type Client struct {
	client *firestore.Client
	now    func() time.Time
}

func New(ctx context.Context, projectID string) (*Client, error) {
	client, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("firestore.NewClient: %w", err)
	}
	return &Client{client: client, now: time.Now}, nil
}

func (c *Client) Close() error {
	return c.client.Close()
}

func (c *Client) deals() *firestore.CollectionRef {
	return c.client.Collection(DealsCollection)
}

func decodeDeal(doc *firestore.DocumentSnapshot) (models.Deal, error) {
	var deal models.Deal
	if err := doc.DataTo(&deal); err != nil {
		return models.Deal{}, fmt.Errorf("failed to unmarshal deal %s: %w", doc.Ref.ID, err)
	}
	deal.ID = doc.Ref.ID
	return deal, nil
}

func collectDeals(iter *firestore.DocumentIterator) ([]models.Deal, error) {
	defer iter.Stop()
	var out []models.Deal
	for {
		doc, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			return out, nil
		}
		if err != nil {
			return nil, fmt.Errorf("failed to iterate deals: %w", err)
		}
		deal, err := decodeDeal(doc)
		if err != nil {
			slog.Warn("Skipping malformed deal document", "id", doc.Ref.ID, "error", err)
			continue
		}
		out = append(out, deal)
	}
}

// ListDeals returns every deal that is not logically deleted, for moderation.
func (c *Client) ListDeals(ctx context.Context) ([]models.Deal, error) {
	return collectDeals(c.deals().Where("deleted", "==", false).Documents(ctx))
}

// ListVisibleDeals returns the active, approved, non-deleted deals shown publicly.
func (c *Client) ListVisibleDeals(ctx context.Context) ([]models.Deal, error) {
	iter := c.deals().
		Where("deleted", "==", false).
		Where("isActive", "==", true).
		Where("status", "==", models.StatusApproved).
		Documents(ctx)
	return collectDeals(iter)
}

// GetDealByID returns models.ErrNotFound for missing or logically deleted deals.
func (c *Client) GetDealByID(ctx context.Context, id string) (*models.Deal, error) {
	doc, err := c.deals().Doc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get deal by ID %s: %w", id, err)
	}

	deal, err := decodeDeal(doc)
	if err != nil {
		return nil, err
	}
	if deal.Deleted {
		return nil, models.ErrNotFound
	}
	return &deal, nil
}

// TryCreateDeal creates the deal under deal.ID. It returns models.ErrDealExists
// if a document with that id is already present.
func (c *Client) TryCreateDeal(ctx context.Context, deal models.Deal) error {
	_, err := c.deals().Doc(deal.ID).Create(ctx, deal)
	if err != nil {
		if status.Code(err) == codes.AlreadyExists {
			return models.ErrDealExists
		}
		return fmt.Errorf("failed to create deal %s: %w", deal.ID, err)
	}
	return nil
}

// UpdateImportedDeal refreshes the partner-owned fields of an imported deal,
// leaving counters and moderation state untouched.
func (c *Client) UpdateImportedDeal(ctx context.Context, deal models.Deal) error {
	_, err := c.deals().Doc(deal.ID).Update(ctx, []firestore.Update{
		{Path: "title", Value: deal.Title},
		{Path: "description", Value: deal.Description},
		{Path: "discount", Value: deal.Discount},
		{Path: "discountType", Value: deal.DiscountType},
		{Path: "businessName", Value: deal.BusinessName},
		{Path: "originalPrice", Value: deal.OriginalPrice},
		{Path: "discountedPrice", Value: deal.DiscountedPrice},
		{Path: "images", Value: deal.Images},
		{Path: "validUntil", Value: deal.ValidUntil},
		{Path: "sourceURL", Value: deal.SourceURL},
		{Path: "lastUpdated", Value: deal.LastUpdated},
	})
	if err != nil {
		return fmt.Errorf("failed to update deal %s: %w", deal.ID, err)
	}
	return nil
}

// IncrementViews bumps the view counter of a visible deal.
func (c *Client) IncrementViews(ctx context.Context, id string) error {
	return c.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		ref := c.deals().Doc(id)
		deal, err := c.txDeal(tx, ref)
		if err != nil {
			return err
		}
		if !deal.Visible() {
			return models.ErrNotFound
		}
		return tx.Update(ref, []firestore.Update{{Path: "views", Value: firestore.Increment(1)}})
	})
}

// ClaimDeal bumps the claim counter, or returns models.ErrDealNotClaimable when
// the deal is inactive, unapproved, not yet valid or expired.
func (c *Client) ClaimDeal(ctx context.Context, id string) error {
	return c.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		ref := c.deals().Doc(id)
		deal, err := c.txDeal(tx, ref)
		if err != nil {
			return err
		}
		if !deal.Claimable(c.now()) {
			return models.ErrDealNotClaimable
		}
		return tx.Update(ref, []firestore.Update{{Path: "claims", Value: firestore.Increment(1)}})
	})
}

func (c *Client) txDeal(tx *firestore.Transaction, ref *firestore.DocumentRef) (models.Deal, error) {
	doc, err := tx.Get(ref)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return models.Deal{}, models.ErrNotFound
		}
		return models.Deal{}, fmt.Errorf("failed to get deal %s: %w", ref.ID, err)
	}
	deal, err := decodeDeal(doc)
	if err != nil {
		return models.Deal{}, err
	}
	if deal.Deleted {
		return models.Deal{}, models.ErrNotFound
	}
	return deal, nil
}

// SetDealStatus moves deals to a moderation status. Approving also activates them.
func (c *Client) SetDealStatus(ctx context.Context, ids []string, st string) error {
	updates := []firestore.Update{
		{Path: "status", Value: st},
		{Path: "lastUpdated", Value: c.now()},
	}
	if st == models.StatusApproved {
		updates = append(updates, firestore.Update{Path: "isActive", Value: true})
	}
	if st == models.StatusRejected {
		updates = append(updates, firestore.Update{Path: "isActive", Value: false})
	}
	return c.UpdateDocuments(ctx, DealsCollection, ids, updates)
}

func (c *Client) SetDealsActive(ctx context.Context, ids []string, active bool) error {
	return c.UpdateDocuments(ctx, DealsCollection, ids, []firestore.Update{
		{Path: "isActive", Value: active},
		{Path: "lastUpdated", Value: c.now()},
	})
}

// DeleteDeals logically deletes deals; they disappear from every listing.
func (c *Client) DeleteDeals(ctx context.Context, ids []string) error {
	return c.UpdateDocuments(ctx, DealsCollection, ids, []firestore.Update{
		{Path: "deleted", Value: true},
		{Path: "isActive", Value: false},
		{Path: "lastUpdated", Value: c.now()},
	})
}

// DeactivateExpiredDeals switches off active deals whose validUntil has passed
// and returns how many were changed.
func (c *Client) DeactivateExpiredDeals(ctx context.Context) (int, error) {
	now := c.now()
	iter := c.deals().
		Where("isActive", "==", true).
		Where("validUntil", "<=", now).
		Documents(ctx)
	defer iter.Stop()

	var ids []string
	for {
		doc, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return 0, fmt.Errorf("failed to iterate expired deals: %w", err)
		}
		ids = append(ids, doc.Ref.ID)
	}
	if len(ids) == 0 {
		return 0, nil
	}
	if err := c.SetDealsActive(ctx, ids, false); err != nil {
		return 0, err
	}
	return len(ids), nil
}

// TrimOldDeals deletes the oldest deals (by createdAt) beyond maxDeals.
func (c *Client) TrimOldDeals(ctx context.Context, maxDeals int) error {
	collectionRef := c.deals()

	countSnapshot, err := collectionRef.NewAggregationQuery().WithCount("all").Get(ctx)
	if err != nil {
		return fmt.Errorf("failed to get deal count for trimming: %w", err)
	}
	raw, ok := countSnapshot["all"]
	if !ok {
		return fmt.Errorf("count aggregation result for trimming was invalid: 'all' key missing")
	}
	count, err := countValue(raw)
	if err != nil {
		return fmt.Errorf("count aggregation result for trimming: %w", err)
	}

	currentDealCount := int(count)
	if currentDealCount <= maxDeals {
		return nil
	}

	numToDelete := currentDealCount - maxDeals
	slog.Info("Trimming old deals", "current", currentDealCount, "max", maxDeals, "deleting", numToDelete)

	iter := collectionRef.
		OrderBy("createdAt", firestore.Asc).
		Limit(numToDelete).
		Documents(ctx)
	defer iter.Stop()

	bulkWriter := c.client.BulkWriter(ctx)
	defer bulkWriter.End()

	deletedCount := 0
	for {
		doc, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to iterate deals for trimming: %w", err)
		}
		if _, err := bulkWriter.Delete(doc.Ref); err != nil {
			slog.Warn("Error queueing delete", "id", doc.Ref.ID, "error", err)
			continue
		}
		deletedCount++
	}

	if deletedCount > 0 {
		bulkWriter.Flush()
		slog.Info("Flushed trim deletes", "count", deletedCount)
	}
	return nil
}

// countValue normalises an aggregation count result.
func countValue(v any) (int64, error) {
	switch val := v.(type) {
	case int64:
		return val, nil
	case *firestorepb.Value:
		return val.GetIntegerValue(), nil
	default:
		return 0, fmt.Errorf("unexpected type %T", v)
	}
}
