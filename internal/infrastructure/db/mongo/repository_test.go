package mongo

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/ory/dockertest/v3"
	"github.com/ory/dockertest/v3/docker"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"golang.org/x/sync/errgroup"

	"github.com/storefront/storefront-api/internal/core/domain"
)

// These tests run against a real MongoDB: MONGO_TEST_URI when set, otherwise
// a throwaway container started through the local Docker daemon. Without
// either they are skipped.

var (
	testClient *mongo.Client
	skipReason string
)

func TestMain(m *testing.M) {
	os.Exit(runWithMongo(m))
}

func runWithMongo(m *testing.M) int {
	ctx := context.Background()

	if uri := os.Getenv("MONGO_TEST_URI"); uri != "" {
		client, _, err := Connect(ctx, Config{URI: uri, Database: "storefront_test"})
		if err != nil {
			fmt.Fprintf(os.Stderr, "mongo at MONGO_TEST_URI: %v\n", err)
			return 1
		}
		defer func() { _ = client.Disconnect(ctx) }()
		testClient = client
		return m.Run()
	}

	pool, err := dockertest.NewPool("")
	if err == nil {
		err = pool.Client.Ping()
	}
	if err != nil {
		skipReason = "no MONGO_TEST_URI and no docker daemon: " + err.Error()
		return m.Run()
	}

	resource, err := pool.RunWithOptions(&dockertest.RunOptions{
		Repository: "mongo",
		Tag:        "7",
	}, func(hc *docker.HostConfig) {
		hc.AutoRemove = true
		hc.RestartPolicy = docker.RestartPolicy{Name: "no"}
	})
	if err != nil {
		skipReason = "start mongo container: " + err.Error()
		return m.Run()
	}
	defer func() { _ = pool.Purge(resource) }()
	_ = resource.Expire(300)

	uri := "mongodb://" + resource.GetHostPort("27017/tcp")
	pool.MaxWait = 90 * time.Second
	if err := pool.Retry(func() error {
		client, _, err := Connect(ctx, Config{URI: uri, Database: "storefront_test", Timeout: 2 * time.Second})
		if err != nil {
			return err
		}
		testClient = client
		return nil
	}); err != nil {
		fmt.Fprintf(os.Stderr, "mongo container never became ready: %v\n", err)
		return 1
	}
	defer func() { _ = testClient.Disconnect(ctx) }()

	return m.Run()
}

// newTestDB returns an empty database with the repository indexes in place,
// dropped when the test ends.
func newTestDB(t *testing.T) (*CartRepository, *ProductRepository, *MongoAuthRepository, *mongo.Database) {
	t.Helper()
	if testClient == nil {
		t.Skip(skipReason)
	}

	db := testClient.Database("storefront_test_" + primitive.NewObjectID().Hex())
	t.Cleanup(func() { _ = db.Drop(context.Background()) })

	carts, products, users := NewCartRepository(db), NewProductRepository(db), NewAuthRepository(db)
	if err := EnsureIndexes(context.Background(), carts, products, users); err != nil {
		t.Fatalf("EnsureIndexes: %v", err)
	}
	return carts, products, users, db
}

func seedProduct(t *testing.T, repo *ProductRepository, name, price string) *domain.Product {
	t.Helper()
	p, err := repo.Create(context.Background(), &domain.Product{
		Name:      name,
		Price:     decimal.RequireFromString(price),
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("seed product: %v", err)
	}
	return p
}

// addWithRetry mirrors the service: a lost race on the unique index is retried.
func addWithRetry(ctx context.Context, repo *CartRepository, userID, productID string, qty int) (*domain.CartLine, bool, error) {
	for {
		line, created, err := repo.AddOrIncrement(ctx, userID, productID, qty)
		if !errors.Is(err, domain.ErrCartConflict) {
			return line, created, err
		}
	}
}

func TestCartRepository_AddOrIncrement_Merges(t *testing.T) {
	carts, products, _, _ := newTestDB(t)
	ctx := context.Background()
	p := seedProduct(t, products, "Beans", "12.50")

	first, created, err := carts.AddOrIncrement(ctx, "alice", p.ID, 2)
	if err != nil || !created {
		t.Fatalf("first add: created=%v err=%v", created, err)
	}
	second, created, err := carts.AddOrIncrement(ctx, "alice", p.ID, 3)
	if err != nil || created {
		t.Fatalf("second add: created=%v err=%v", created, err)
	}
	if second.ID != first.ID || second.Quantity != 5 {
		t.Fatalf("expected merge into %s with quantity 5, got %+v", first.ID, second)
	}
	if second.UpdatedAt.Before(second.CreatedAt) {
		t.Fatalf("updated_at before created_at: %+v", second)
	}
}

func TestCartRepository_ConcurrentAddsKeepOneLine(t *testing.T) {
	carts, products, _, _ := newTestDB(t)
	ctx := context.Background()
	p := seedProduct(t, products, "Beans", "12.50")

	const n = 50
	var (
		mu      sync.Mutex
		creates int
	)
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < n; i++ {
		g.Go(func() error {
			_, created, err := addWithRetry(gctx, carts, "alice", p.ID, 1)
			if created {
				mu.Lock()
				creates++
				mu.Unlock()
			}
			return err
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("concurrent add: %v", err)
	}

	lines, err := carts.ListByUser(ctx, "alice")
	if err != nil {
		t.Fatalf("ListByUser: %v", err)
	}
	if len(lines) != 1 || lines[0].Quantity != n {
		t.Fatalf("expected one line with quantity %d, got %+v", n, lines)
	}
	if creates != 1 {
		t.Fatalf("expected exactly one insert, got %d", creates)
	}
}

func TestCartRepository_DuplicateKeyIsConflict(t *testing.T) {
	carts, products, _, db := newTestDB(t)
	ctx := context.Background()
	p1 := seedProduct(t, products, "Beans", "1")
	p2 := seedProduct(t, products, "Mug", "2")

	// A one-line-per-user index makes the second product's upsert collide.
	_, err := db.Collection(collectionCartLines).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "user_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		t.Fatalf("create index: %v", err)
	}

	if _, _, err := carts.AddOrIncrement(ctx, "alice", p1.ID, 1); err != nil {
		t.Fatalf("first add: %v", err)
	}
	if _, _, err := carts.AddOrIncrement(ctx, "alice", p2.ID, 1); !errors.Is(err, domain.ErrCartConflict) {
		t.Fatalf("expected ErrCartConflict, got %v", err)
	}
}

func TestCartRepository_IncrementStopsAtLimit(t *testing.T) {
	carts, products, _, _ := newTestDB(t)
	ctx := context.Background()
	p := seedProduct(t, products, "Beans", "1")

	if _, _, err := carts.AddOrIncrement(ctx, "alice", p.ID, domain.MaxLineQuantity); err != nil {
		t.Fatalf("add up to the limit: %v", err)
	}
	if _, _, err := carts.AddOrIncrement(ctx, "alice", p.ID, 1); !errors.Is(err, domain.ErrQuantityLimit) {
		t.Fatalf("expected ErrQuantityLimit, got %v", err)
	}
	lines, err := carts.ListByUser(ctx, "alice")
	if err != nil || len(lines) != 1 || lines[0].Quantity != domain.MaxLineQuantity {
		t.Fatalf("line must stay at the limit: %+v, %v", lines, err)
	}
}

func TestCartRepository_OwnerScoping(t *testing.T) {
	carts, products, _, _ := newTestDB(t)
	ctx := context.Background()
	p := seedProduct(t, products, "Beans", "12.50")

	line, _, err := carts.AddOrIncrement(ctx, "alice", p.ID, 1)
	if err != nil {
		t.Fatalf("add: %v", err)
	}

	if _, err := carts.FindLine(ctx, "bob", line.ID); !errors.Is(err, domain.ErrCartLineNotFound) {
		t.Errorf("FindLine by other user: expected not found, got %v", err)
	}
	if _, err := carts.SetQuantity(ctx, "bob", line.ID, 9); !errors.Is(err, domain.ErrCartLineNotFound) {
		t.Errorf("SetQuantity by other user: expected not found, got %v", err)
	}
	if err := carts.Delete(ctx, "bob", line.ID); !errors.Is(err, domain.ErrCartLineNotFound) {
		t.Errorf("Delete by other user: expected not found, got %v", err)
	}

	updated, err := carts.SetQuantity(ctx, "alice", line.ID, 7)
	if err != nil || updated.Quantity != 7 {
		t.Fatalf("SetQuantity by owner: %+v, %v", updated, err)
	}
	if err := carts.Delete(ctx, "alice", line.ID); err != nil {
		t.Fatalf("Delete by owner: %v", err)
	}
	if err := carts.Delete(ctx, "alice", line.ID); !errors.Is(err, domain.ErrCartLineNotFound) {
		t.Errorf("second delete: expected not found, got %v", err)
	}
}

func TestCartRepository_JoinAndOrder(t *testing.T) {
	carts, products, _, _ := newTestDB(t)
	ctx := context.Background()
	beans := seedProduct(t, products, "Beans", "12.50")
	mug := seedProduct(t, products, "Mug", "4.20")

	if _, _, err := carts.AddOrIncrement(ctx, "alice", beans.ID, 1); err != nil {
		t.Fatal(err)
	}
	if _, _, err := carts.AddOrIncrement(ctx, "alice", mug.ID, 2); err != nil {
		t.Fatal(err)
	}
	if err := products.Delete(ctx, mug.ID); err != nil {
		t.Fatalf("delete product: %v", err)
	}

	lines, err := carts.ListByUser(ctx, "alice")
	if err != nil {
		t.Fatalf("ListByUser: %v", err)
	}
	if len(lines) != 2 || lines[0].ProductID != beans.ID || lines[1].ProductID != mug.ID {
		t.Fatalf("expected insertion order [beans, mug], got %+v", lines)
	}
	if lines[0].Product == nil || !lines[0].Product.Price.Equal(decimal.RequireFromString("12.5")) {
		t.Errorf("expected joined beans, got %+v", lines[0].Product)
	}
	if lines[1].Product != nil {
		t.Errorf("deleted product must join as nil, got %+v", lines[1].Product)
	}

	one, err := carts.FindLine(ctx, "alice", lines[1].ID)
	if err != nil || one.Product != nil || one.Quantity != 2 {
		t.Fatalf("FindLine of orphaned line: %+v, %v", one, err)
	}
}

func TestCartRepository_DeleteAllByUser(t *testing.T) {
	carts, products, _, _ := newTestDB(t)
	ctx := context.Background()
	p := seedProduct(t, products, "Beans", "1")

	_, _, _ = carts.AddOrIncrement(ctx, "alice", p.ID, 1)
	_, _, _ = carts.AddOrIncrement(ctx, "bob", p.ID, 1)

	n, err := carts.DeleteAllByUser(ctx, "alice")
	if err != nil || n != 1 {
		t.Fatalf("DeleteAllByUser: n=%d err=%v", n, err)
	}
	if n, err := carts.DeleteAllByUser(ctx, "alice"); err != nil || n != 0 {
		t.Fatalf("clearing an empty cart: n=%d err=%v", n, err)
	}
	if lines, _ := carts.ListByUser(ctx, "bob"); len(lines) != 1 {
		t.Fatalf("other carts must be untouched, got %+v", lines)
	}
}

func TestProductRepository_UpdateAndDelete(t *testing.T) {
	_, products, _, _ := newTestDB(t)
	ctx := context.Background()
	p := seedProduct(t, products, "Beans", "12.50")

	updated, err := products.Update(ctx, &domain.Product{ID: p.ID, Name: "Decaf", Price: decimal.RequireFromString("9.90"), Category: "coffee"})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.ID != p.ID || updated.Name != "Decaf" || updated.Category != "coffee" || !updated.CreatedAt.Equal(p.CreatedAt.Truncate(time.Millisecond)) {
		t.Fatalf("unexpected product: %+v", updated)
	}

	missing := primitive.NewObjectID().Hex()
	if _, err := products.Update(ctx, &domain.Product{ID: missing, Name: "x"}); !errors.Is(err, domain.ErrProductNotFound) {
		t.Errorf("update missing: expected not found, got %v", err)
	}
	if err := products.Delete(ctx, missing); !errors.Is(err, domain.ErrProductNotFound) {
		t.Errorf("delete missing: expected not found, got %v", err)
	}
}

func TestAuthRepository_UniqueEmail(t *testing.T) {
	_, _, users, _ := newTestDB(t)
	ctx := context.Background()
	u := &domain.User{Username: "alice", Email: "a@example.com", PasswordHash: "h", Role: domain.RoleCustomer, CreatedAt: time.Now()}

	created, err := users.Create(ctx, u)
	if err != nil || created.ID == "" {
		t.Fatalf("Create: %+v, %v", created, err)
	}
	if _, err := users.Create(ctx, u); !errors.Is(err, domain.ErrUserExists) {
		t.Fatalf("expected ErrUserExists, got %v", err)
	}
	found, err := users.FindByEmail(ctx, "a@example.com")
	if err != nil || found.ID != created.ID || found.Role != domain.RoleCustomer {
		t.Fatalf("FindByEmail: %+v, %v", found, err)
	}
}
