// Package catalog reads the seller's product list for reply grounding and order pricing.
package catalog

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// GroundingLimit caps how many products are handed to the generation collaborator.
const GroundingLimit = 20

// Querier is satisfied by pgxpool.Pool and pgx.Tx.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

type Product struct {
	ID          uuid.UUID
	OwnerID     string
	Name        string
	Description string
	PriceMinor  int64
	Stock       int
}

func (p Product) InStock() bool { return p.Stock > 0 }

type Store struct {
	db Querier
}

func NewStore(db Querier) *Store {
	if db == nil {
		panic("catalog: pgx querier required")
	}
	return &Store{db: db}
}

// ActiveProducts returns up to limit active products, oldest first.
func (s *Store) ActiveProducts(ctx context.Context, ownerID string, limit int) ([]Product, error) {
	if limit <= 0 {
		limit = GroundingLimit
	}
	query := `
		SELECT id, name, description, price_minor, stock
		FROM products
		WHERE owner_id = $1 AND active
		ORDER BY created_at ASC, id ASC
		LIMIT $2
	`
	rows, err := s.db.Query(ctx, query, ownerID, limit)
	if err != nil {
		return nil, fmt.Errorf("catalog: query products: %w", err)
	}
	defer rows.Close()

	var products []Product
	for rows.Next() {
		p := Product{OwnerID: ownerID}
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.PriceMinor, &p.Stock); err != nil {
			return nil, fmt.Errorf("catalog: scan product: %w", err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("catalog: iterate products: %w", err)
	}
	return products, nil
}

// ResolveForOrder picks the product an order refers to. A product whose name
// appears in the items summary wins (longest name first); otherwise the first
// active product is used.
func (s *Store) ResolveForOrder(ctx context.Context, ownerID, itemsSummary string) (Product, error) {
	products, err := s.ActiveProducts(ctx, ownerID, GroundingLimit)
	if err != nil {
		return Product{}, err
	}
	if p, ok := MatchByName(products, itemsSummary); ok {
		return p, nil
	}
	if len(products) == 0 {
		return Product{}, ErrNoProduct
	}
	return products[0], nil
}

// MatchByName finds the product with the longest name contained in text.
func MatchByName(products []Product, text string) (Product, bool) {
	haystack := strings.ToLower(text)
	if strings.TrimSpace(haystack) == "" {
		return Product{}, false
	}
	var best Product
	found := false
	for _, p := range products {
		name := strings.ToLower(strings.TrimSpace(p.Name))
		if name == "" || !strings.Contains(haystack, name) {
			continue
		}
		if !found || len(name) > len(strings.TrimSpace(best.Name)) {
			best = p
			found = true
		}
	}
	return best, found
}
