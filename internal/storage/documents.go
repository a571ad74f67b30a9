package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"

	"github.com/pauljones0/wanderdeals/internal/models"
)

// ListDocuments reads a whole collection as opaque rows with the document id under "_id".
func (c *Client) ListDocuments(ctx context.Context, collection string) ([]models.MapRow, error) {
	iter := c.client.Collection(collection).Documents(ctx)
	defer iter.Stop()

	var rows []models.MapRow
	for {
		doc, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			return rows, nil
		}
		if err != nil {
			return nil, fmt.Errorf("failed to iterate %s: %w", collection, err)
		}
		rows = append(rows, docRow(doc))
	}
}

func docRow(doc *firestore.DocumentSnapshot) models.MapRow {
	row := models.MapRow(doc.Data())
	if row == nil {
		row = models.MapRow{}
	}
	row["_id"] = doc.Ref.ID
	return row
}

// FindUserByUsername returns models.ErrNotFound when no user has that username.
func (c *Client) FindUserByUsername(ctx context.Context, username string) (models.MapRow, error) {
	iter := c.client.Collection(UsersCollection).Where("username", "==", username).Limit(1).Documents(ctx)
	defer iter.Stop()

	doc, err := iter.Next()
	if errors.Is(err, iterator.Done) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up user %q: %w", username, err)
	}
	return docRow(doc), nil
}

// UpdateDocuments applies the same field updates to every id in one bulk write.
func (c *Client) UpdateDocuments(ctx context.Context, collection string, ids []string, updates []firestore.Update) error {
	return c.bulk(ctx, collection, ids, func(bw *firestore.BulkWriter, ref *firestore.DocumentRef) (*firestore.BulkWriterJob, error) {
		return bw.Update(ref, updates)
	})
}

// DeleteDocuments hard-deletes documents.
func (c *Client) DeleteDocuments(ctx context.Context, collection string, ids []string) error {
	return c.bulk(ctx, collection, ids, func(bw *firestore.BulkWriter, ref *firestore.DocumentRef) (*firestore.BulkWriterJob, error) {
		return bw.Delete(ref)
	})
}

type bulkOp func(bw *firestore.BulkWriter, ref *firestore.DocumentRef) (*firestore.BulkWriterJob, error)

func (c *Client) bulk(ctx context.Context, collection string, ids []string, op bulkOp) error {
	if len(ids) == 0 {
		return nil
	}
	bw := c.client.BulkWriter(ctx)
	coll := c.client.Collection(collection)

	jobs := make([]*firestore.BulkWriterJob, 0, len(ids))
	var errs []error
	for _, id := range ids {
		job, err := op(bw, coll.Doc(id))
		if err != nil {
			errs = append(errs, fmt.Errorf("%s/%s: %w", collection, id, err))
			continue
		}
		jobs = append(jobs, job)
	}
	bw.End()

	for i, job := range jobs {
		if _, err := job.Results(); err != nil {
			errs = append(errs, fmt.Errorf("%s write %d: %w", collection, i, err))
		}
	}
	if len(errs) > 0 {
		slog.Warn("Bulk write finished with errors", "collection", collection, "failed", len(errs), "total", len(ids))
		return errors.Join(errs...)
	}
	return nil
}
