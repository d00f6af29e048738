package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/vivesbank/backend/shared/apperrors"
	"github.com/vivesbank/backend/shared/database"
	"github.com/vivesbank/backend/shared/models"
)

// DirectDebitRepository stores standing direct debit orders.
type DirectDebitRepository struct {
	coll *mongo.Collection
}

func NewDirectDebitRepository(db *mongo.Database) *DirectDebitRepository {
	return &DirectDebitRepository{coll: db.Collection(database.DirectDebitsCollection)}
}

func (r *DirectDebitRepository) Create(ctx context.Context, d *models.DirectDebit) error {
	if _, err := r.coll.InsertOne(ctx, directDebitToDoc(d)); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return apperrors.Conflict("direct debit", "guid", d.GUID)
		}
		return fmt.Errorf("failed to save direct debit: %w", err)
	}
	return nil
}

func (r *DirectDebitRepository) GetByGUID(ctx context.Context, guid string) (*models.DirectDebit, error) {
	var doc directDebitDoc
	err := r.coll.FindOne(ctx, bson.D{{Key: "guid", Value: guid}}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, apperrors.NotFound("direct debit", guid)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get direct debit: %w", err)
	}
	return doc.model(), nil
}

func (r *DirectDebitRepository) ListByClient(ctx context.Context, clientGUID string) ([]models.DirectDebit, error) {
	return r.find(ctx, bson.D{{Key: "clientGuid", Value: clientGUID}})
}

func (r *DirectDebitRepository) ListActive(ctx context.Context) ([]models.DirectDebit, error) {
	return r.find(ctx, bson.D{{Key: "active", Value: true}})
}

// ExistsActive reports whether the client already pays destinationIBAN by
// direct debit.
func (r *DirectDebitRepository) ExistsActive(ctx context.Context, clientGUID, destinationIBAN string) (bool, error) {
	n, err := r.coll.CountDocuments(ctx, bson.D{
		{Key: "clientGuid", Value: clientGUID},
		{Key: "destinationIban", Value: destinationIBAN},
		{Key: "active", Value: true},
	})
	if err != nil {
		return false, fmt.Errorf("failed to check direct debits: %w", err)
	}
	return n > 0, nil
}

func (r *DirectDebitRepository) Deactivate(ctx context.Context, guid string) error {
	return r.set(ctx, guid, bson.D{{Key: "active", Value: false}})
}

func (r *DirectDebitRepository) MarkExecuted(ctx context.Context, guid string, at time.Time) error {
	return r.set(ctx, guid, bson.D{{Key: "lastExecution", Value: at}})
}

func (r *DirectDebitRepository) set(ctx context.Context, guid string, fields bson.D) error {
	res, err := r.coll.UpdateOne(ctx, bson.D{{Key: "guid", Value: guid}}, bson.D{{Key: "$set", Value: fields}})
	if err != nil {
		return fmt.Errorf("failed to update direct debit: %w", err)
	}
	if res.MatchedCount == 0 {
		return apperrors.NotFound("direct debit", guid)
	}
	return nil
}

func (r *DirectDebitRepository) find(ctx context.Context, filter bson.D) ([]models.DirectDebit, error) {
	cur, err := r.coll.Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to find direct debits: %w", err)
	}
	defer cur.Close(ctx)

	debits := []models.DirectDebit{}
	for cur.Next(ctx) {
		var doc directDebitDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode direct debit: %w", err)
		}
		debits = append(debits, *doc.model())
	}
	return debits, cur.Err()
}
