package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/storefront/storefront-api/internal/core/domain"
)

const collectionProducts = "products"

type ProductRepository struct {
	col *mongo.Collection
}

func NewProductRepository(db *mongo.Database) *ProductRepository {
	return &ProductRepository{col: db.Collection(collectionProducts)}
}

type productDoc struct {
	ID          primitive.ObjectID   `bson:"_id,omitempty"`
	Name        string               `bson:"name"`
	Price       primitive.Decimal128 `bson:"price"`
	Category    string               `bson:"category,omitempty"`
	Image       string               `bson:"image,omitempty"`
	Description string               `bson:"description,omitempty"`
	CreatedAt   time.Time            `bson:"created_at"`
}

func newProductDoc(p *domain.Product) (productDoc, error) {
	price, err := primitive.ParseDecimal128(p.Price.String())
	if err != nil {
		return productDoc{}, fmt.Errorf("encode price %s: %w", p.Price, err)
	}
	return productDoc{
		Name:        p.Name,
		Price:       price,
		Category:    p.Category,
		Image:       p.Image,
		Description: p.Description,
		CreatedAt:   p.CreatedAt.UTC(),
	}, nil
}

func (d productDoc) toDomain() (*domain.Product, error) {
	price, err := decimal.NewFromString(d.Price.String())
	if err != nil {
		return nil, fmt.Errorf("decode price of product %s: %w", d.ID.Hex(), err)
	}
	return &domain.Product{
		ID:          d.ID.Hex(),
		Name:        d.Name,
		Price:       price,
		Category:    d.Category,
		Image:       d.Image,
		Description: d.Description,
		CreatedAt:   d.CreatedAt,
	}, nil
}

// FindByID retrieves a product. Malformed ids are reported as not found.
func (r *ProductRepository) FindByID(ctx context.Context, id string) (*domain.Product, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, domain.ErrProductNotFound
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var d productDoc
	if err := r.col.FindOne(ctx, bson.M{"_id": oid}).Decode(&d); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrProductNotFound
		}
		return nil, err
	}
	return d.toDomain()
}

// List returns products oldest first, optionally restricted to one category.
func (r *ProductRepository) List(ctx context.Context, category string) ([]domain.Product, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	filter := bson.M{}
	if category != "" {
		filter["category"] = category
	}

	cur, err := r.col.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("find products: %w", err)
	}
	defer cur.Close(ctx)

	var docs []productDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode products: %w", err)
	}

	out := make([]domain.Product, 0, len(docs))
	for _, d := range docs {
		p, err := d.toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, nil
}

func (r *ProductRepository) Create(ctx context.Context, p *domain.Product) (*domain.Product, error) {
	doc, err := newProductDoc(p)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := r.col.InsertOne(ctx, doc)
	if err != nil {
		return nil, fmt.Errorf("insert product: %w", err)
	}

	created := *p
	if oid, ok := res.InsertedID.(primitive.ObjectID); ok {
		created.ID = oid.Hex()
	}
	return &created, nil
}

// Update replaces the editable fields of p.ID and returns the stored product.
func (r *ProductRepository) Update(ctx context.Context, p *domain.Product) (*domain.Product, error) {
	oid, err := primitive.ObjectIDFromHex(p.ID)
	if err != nil {
		return nil, domain.ErrProductNotFound
	}
	doc, err := newProductDoc(p)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	update := bson.M{"$set": bson.M{
		"name":        doc.Name,
		"price":       doc.Price,
		"category":    doc.Category,
		"image":       doc.Image,
		"description": doc.Description,
	}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var d productDoc
	if err := r.col.FindOneAndUpdate(ctx, bson.M{"_id": oid}, update, opts).Decode(&d); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrProductNotFound
		}
		return nil, fmt.Errorf("update product: %w", err)
	}
	return d.toDomain()
}

func (r *ProductRepository) Delete(ctx context.Context, id string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return domain.ErrProductNotFound
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := r.col.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return fmt.Errorf("delete product: %w", err)
	}
	if res.DeletedCount == 0 {
		return domain.ErrProductNotFound
	}
	return nil
}

// EnsureIndexes creates necessary indexes on the products collection.
func (r *ProductRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	_, err := r.col.Indexes().CreateOne(ctx, mongo.IndexModel{Keys: bson.D{{Key: "category", Value: 1}}})
	return err
}
