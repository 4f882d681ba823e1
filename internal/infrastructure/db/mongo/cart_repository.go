package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/storefront/storefront-api/internal/core/domain"
)

const collectionCartLines = "cart_lines"

// CartRepository implements ports.CartRepository. The unique
// (user_id, product_id) index created by EnsureIndexes is what keeps a user
// from ever holding two lines for the same product.
type CartRepository struct {
	col *mongo.Collection
}

func NewCartRepository(db *mongo.Database) *CartRepository {
	return &CartRepository{col: db.Collection(collectionCartLines)}
}

type cartLineDoc struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	UserID    string             `bson:"user_id"`
	ProductID primitive.ObjectID `bson:"product_id"`
	Quantity  int                `bson:"quantity"`
	CreatedAt time.Time          `bson:"created_at"`
	UpdatedAt time.Time          `bson:"updated_at"`

	// Product is only populated by the $lookup stage.
	Product *productDoc `bson:"product,omitempty"`
}

func (d cartLineDoc) toDomain() (*domain.CartLine, error) {
	line := &domain.CartLine{
		ID:        d.ID.Hex(),
		UserID:    d.UserID,
		ProductID: d.ProductID.Hex(),
		Quantity:  d.Quantity,
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
	if d.Product != nil && !d.Product.ID.IsZero() {
		p, err := d.Product.toDomain()
		if err != nil {
			return nil, err
		}
		line.Product = p
	}
	return line, nil
}

// AddOrIncrement upserts the (userID, productID) line in a single
// findAndModify. Two concurrent first inserts can both miss the filter; the
// loser hits the unique index and gets domain.ErrCartConflict. A line whose
// quantity has no room for the increment also misses the filter, and the
// resulting duplicate key is reported as domain.ErrQuantityLimit.
func (r *CartRepository) AddOrIncrement(ctx context.Context, userID, productID string, quantity int) (*domain.CartLine, bool, error) {
	pid, err := primitive.ObjectIDFromHex(productID)
	if err != nil {
		return nil, false, domain.InvalidField("productId", "is not valid")
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	now := time.Now().UTC()
	filter := bson.M{
		"user_id":    userID,
		"product_id": pid,
		"quantity":   bson.M{"$not": bson.M{"$gt": domain.MaxLineQuantity - quantity}},
	}
	update := bson.M{
		"$inc":         bson.M{"quantity": quantity},
		"$set":         bson.M{"updated_at": now},
		"$setOnInsert": bson.M{"created_at": now},
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var d cartLineDoc
	if err := r.col.FindOneAndUpdate(ctx, filter, update, opts).Decode(&d); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, false, r.classifyDuplicate(ctx, userID, pid, quantity)
		}
		return nil, false, fmt.Errorf("upsert cart line: %w", err)
	}

	line, err := d.toDomain()
	if err != nil {
		return nil, false, err
	}
	// Stored quantities are at least 1, so a merge always ends above quantity.
	return line, d.Quantity == quantity, nil
}

// classifyDuplicate tells a full line apart from a lost insert race.
func (r *CartRepository) classifyDuplicate(ctx context.Context, userID string, pid primitive.ObjectID, quantity int) error {
	var d cartLineDoc
	err := r.col.FindOne(ctx, bson.M{"user_id": userID, "product_id": pid}).Decode(&d)
	if err == nil && d.Quantity+quantity > domain.MaxLineQuantity {
		return domain.ErrQuantityLimit
	}
	return domain.ErrCartConflict
}

func (r *CartRepository) FindLine(ctx context.Context, userID, lineID string) (*domain.CartLine, error) {
	oid, err := primitive.ObjectIDFromHex(lineID)
	if err != nil {
		return nil, domain.ErrCartLineNotFound
	}

	lines, err := r.aggregate(ctx, bson.M{"_id": oid, "user_id": userID})
	if err != nil {
		return nil, err
	}
	if len(lines) == 0 {
		return nil, domain.ErrCartLineNotFound
	}
	return &lines[0], nil
}

func (r *CartRepository) ListByUser(ctx context.Context, userID string) ([]domain.CartLine, error) {
	return r.aggregate(ctx, bson.M{"user_id": userID})
}

// aggregate runs match, then sort by insertion, then a left join onto products.
// Lines whose product is gone come back with a nil Product.
func (r *CartRepository) aggregate(ctx context.Context, match bson.M) ([]domain.CartLine, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: match}},
		{{Key: "$sort", Value: bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}}}},
		{{Key: "$lookup", Value: bson.D{
			{Key: "from", Value: collectionProducts},
			{Key: "localField", Value: "product_id"},
			{Key: "foreignField", Value: "_id"},
			{Key: "as", Value: "product"},
		}}},
		{{Key: "$unwind", Value: bson.D{
			{Key: "path", Value: "$product"},
			{Key: "preserveNullAndEmptyArrays", Value: true},
		}}},
	}

	cur, err := r.col.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("aggregate cart lines: %w", err)
	}
	defer cur.Close(ctx)

	var docs []cartLineDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode cart lines: %w", err)
	}

	out := make([]domain.CartLine, 0, len(docs))
	for _, d := range docs {
		line, err := d.toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, *line)
	}
	return out, nil
}

// SetQuantity replaces the quantity of a line owned by userID.
func (r *CartRepository) SetQuantity(ctx context.Context, userID, lineID string, quantity int) (*domain.CartLine, error) {
	oid, err := primitive.ObjectIDFromHex(lineID)
	if err != nil {
		return nil, domain.ErrCartLineNotFound
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	filter := bson.M{"_id": oid, "user_id": userID}
	update := bson.M{"$set": bson.M{"quantity": quantity, "updated_at": time.Now().UTC()}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var d cartLineDoc
	if err := r.col.FindOneAndUpdate(ctx, filter, update, opts).Decode(&d); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrCartLineNotFound
		}
		return nil, fmt.Errorf("update cart line: %w", err)
	}
	return d.toDomain()
}

func (r *CartRepository) Delete(ctx context.Context, userID, lineID string) error {
	oid, err := primitive.ObjectIDFromHex(lineID)
	if err != nil {
		return domain.ErrCartLineNotFound
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := r.col.DeleteOne(ctx, bson.M{"_id": oid, "user_id": userID})
	if err != nil {
		return fmt.Errorf("delete cart line: %w", err)
	}
	if res.DeletedCount == 0 {
		return domain.ErrCartLineNotFound
	}
	return nil
}

func (r *CartRepository) DeleteAllByUser(ctx context.Context, userID string) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := r.col.DeleteMany(ctx, bson.M{"user_id": userID})
	if err != nil {
		return 0, fmt.Errorf("clear cart: %w", err)
	}
	return res.DeletedCount, nil
}

// EnsureIndexes creates necessary indexes on the cart_lines collection.
func (r *CartRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "product_id", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_user_product"),
		},
		{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: 1}}},
	}

	_, err := r.col.Indexes().CreateMany(ctx, indexes)
	return err
}
