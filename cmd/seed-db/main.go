package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xenking/shop-orders/internal/domain/product"
	"github.com/xenking/shop-orders/internal/domain/user"
	"github.com/xenking/shop-orders/internal/handler"
	"github.com/xenking/shop-orders/internal/storage/postgres"
)

type seedFile struct {
	Users []struct {
		ID    string    `json:"id"`
		Email string    `json:"email"`
		Name  string    `json:"name"`
		Role  user.Role `json:"role"`
	} `json:"users"`
	Products []struct {
		ID          string          `json:"id"`
		Name        string          `json:"name"`
		Description string          `json:"description"`
		Price       decimal.Decimal `json:"price"`
		Stock       int             `json:"stock"`
		CategoryID  string          `json:"categoryId"`
		ImageURL    string          `json:"imgUrl"`
	} `json:"products"`
}

func main() {
	var (
		databaseURL string
		seedPath    string
		jwtSecret   string
		tokenTTL    time.Duration
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&seedPath, "seed-file", "db/seed/seed.json", "path to users and products JSON file")
	flag.StringVar(&jwtSecret, "jwt-secret", "", "secret used to print tokens for seeded users (or SHOP_AUTH_JWT_SECRET env)")
	flag.DurationVar(&tokenTTL, "token-ttl", 24*time.Hour, "lifetime of printed tokens")
	flag.Parse()

	lg, err := zap.NewDevelopment()
	if err != nil {
		panic(err)
	}
	defer func() { _ = lg.Sync() }()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		lg.Fatal("Database URL is required: set --database-url or DATABASE_URL")
	}
	if jwtSecret == "" {
		jwtSecret = os.Getenv("SHOP_AUTH_JWT_SECRET")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, lg, databaseURL, seedPath, jwtSecret, tokenTTL); err != nil {
		lg.Fatal("Seed failed", zap.Error(err))
	}
	lg.Info("Seed completed")
}

func run(ctx context.Context, lg *zap.Logger, databaseURL, seedPath, jwtSecret string, ttl time.Duration) error {
	data, err := os.ReadFile(seedPath)
	if err != nil {
		return errors.Wrap(err, "read seed file")
	}
	var f seedFile
	if err := json.Unmarshal(data, &f); err != nil {
		return errors.Wrap(err, "parse seed file")
	}

	users := make([]user.User, 0, len(f.Users))
	for _, u := range f.Users {
		if !u.Role.Valid() {
			return errors.Errorf("user %s: unknown role %q", u.ID, u.Role)
		}
		users = append(users, user.User{ID: u.ID, Email: u.Email, Name: u.Name, Role: u.Role})
	}
	products := make([]product.Product, 0, len(f.Products))
	for _, p := range f.Products {
		if p.Stock < 0 || p.Price.IsNegative() {
			return errors.Errorf("product %s: negative price or stock", p.ID)
		}
		products = append(products, product.Product{
			ID:          p.ID,
			Name:        p.Name,
			Description: p.Description,
			Price:       p.Price.Round(2),
			Stock:       p.Stock,
			CategoryID:  p.CategoryID,
			ImageURL:    p.ImageURL,
		})
	}

	lg.Info("Connecting to database")
	pool, err := postgres.NewPool(ctx, databaseURL, postgres.PoolConfig{})
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}
	if err := postgres.Seed(ctx, pool, users, products); err != nil {
		return errors.Wrap(err, "seed")
	}
	lg.Info("Upserted seed data", zap.Int("users", len(users)), zap.Int("products", len(products)))

	if jwtSecret == "" {
		return nil
	}
	auth := handler.NewAuth(jwtSecret, false)
	for _, u := range users {
		tok, err := auth.IssueToken(u.ID, u.Role, ttl)
		if err != nil {
			return errors.Wrapf(err, "issue token for %s", u.Email)
		}
		fmt.Printf("%s\t%s\t%s\n", u.Email, u.Role, tok)
	}
	return nil
}
