package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/vivesbank/backend/shared/apperrors"
	"github.com/vivesbank/backend/shared/database"
	"github.com/vivesbank/backend/shared/models"
)

var activeMovement = bson.E{Key: "isDeleted", Value: false}

// MovementRepository stores movements in the movements collection.
type MovementRepository struct {
	coll *mongo.Collection
}

func NewMovementRepository(db *mongo.Database) *MovementRepository {
	return &MovementRepository{coll: db.Collection(database.MovementsCollection)}
}

func (r *MovementRepository) Create(ctx context.Context, m *models.Movement) error {
	if _, err := r.coll.InsertOne(ctx, movementToDoc(m)); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return apperrors.Conflict("movement", "guid", m.GUID)
		}
		return fmt.Errorf("failed to save movement: %w", err)
	}
	return nil
}

func (r *MovementRepository) GetByGUID(ctx context.Context, guid string) (*models.Movement, error) {
	var doc movementDoc
	err := r.coll.FindOne(ctx, bson.D{{Key: "guid", Value: guid}, activeMovement}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, apperrors.NotFound("movement", guid)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get movement: %w", err)
	}
	return doc.model(), nil
}

// List pages through active movements, newest first unless asked otherwise.
func (r *MovementRepository) List(ctx context.Context, page models.PageRequest) ([]models.Movement, int64, error) {
	filter := bson.D{activeMovement}
	total, err := r.coll.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count movements: %w", err)
	}
	dir := -1
	if page.Direction == "asc" {
		dir = 1
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: dir}}).
		SetSkip(int64(page.Offset())).
		SetLimit(int64(page.Size))
	movements, err := r.find(ctx, filter, opts)
	return movements, total, err
}

func (r *MovementRepository) ListByClient(ctx context.Context, clientGUID string) ([]models.Movement, error) {
	return r.find(ctx, bson.D{{Key: "clientGuid", Value: clientGUID}, activeMovement},
		options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}))
}

// All returns every movement, deleted ones included, oldest first.
func (r *MovementRepository) All(ctx context.Context) ([]models.Movement, error) {
	return r.find(ctx, bson.D{}, options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}}))
}

// CardSpendSince sums the card payments made with number at or after since.
func (r *MovementRepository) CardSpendSince(ctx context.Context, number string, since time.Time) (decimal.Decimal, error) {
	movements, err := r.find(ctx, bson.D{
		{Key: "cardPayment.cardNumber", Value: number},
		{Key: "createdAt", Value: bson.D{{Key: "$gte", Value: since}}},
		activeMovement,
	}, options.Find())
	if err != nil {
		return decimal.Zero, err
	}
	total := decimal.Zero
	for _, m := range movements {
		total = total.Add(m.CardPayment.Amount)
	}
	return total, nil
}

func (r *MovementRepository) SoftDelete(ctx context.Context, guids ...string) error {
	_, err := r.coll.UpdateMany(ctx,
		bson.D{{Key: "guid", Value: bson.D{{Key: "$in", Value: guids}}}},
		bson.D{{Key: "$set", Value: bson.D{{Key: "isDeleted", Value: true}}}})
	if err != nil {
		return fmt.Errorf("failed to delete movements: %w", err)
	}
	return nil
}

// Claim soft deletes guid only while it is still active. It reports whether
// this call made the change, so only one of several concurrent callers wins.
func (r *MovementRepository) Claim(ctx context.Context, guid string) (bool, error) {
	res, err := r.coll.UpdateOne(ctx,
		bson.D{{Key: "guid", Value: guid}, activeMovement},
		bson.D{{Key: "$set", Value: bson.D{{Key: "isDeleted", Value: true}}}})
	if err != nil {
		return false, fmt.Errorf("failed to claim movement: %w", err)
	}
	return res.ModifiedCount == 1, nil
}

// Restore undoes a Claim.
func (r *MovementRepository) Restore(ctx context.Context, guid string) error {
	_, err := r.coll.UpdateOne(ctx,
		bson.D{{Key: "guid", Value: guid}},
		bson.D{{Key: "$set", Value: bson.D{{Key: "isDeleted", Value: false}}}})
	if err != nil {
		return fmt.Errorf("failed to restore movement: %w", err)
	}
	return nil
}

func (r *MovementRepository) find(ctx context.Context, filter bson.D, opts *options.FindOptions) ([]models.Movement, error) {
	cur, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find movements: %w", err)
	}
	defer cur.Close(ctx)

	movements := []models.Movement{}
	for cur.Next(ctx) {
		var doc movementDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode movement: %w", err)
		}
		movements = append(movements, *doc.model())
	}
	return movements, cur.Err()
}
