// Command seed loads a demo footwear catalog into the record store and stocks
// it through the engine's own mutation path, so the movement log stays
// consistent with the seeded quantities.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/soletrack/soletrack/internal/app"
	"github.com/soletrack/soletrack/internal/inventory"
	"github.com/soletrack/soletrack/internal/platform/pocketbase"
)

type seedProduct struct {
	sku    string
	name   string
	color  string
	gender string
	cost   float64
	price  float64
	stock  map[string]int // size -> quantity
}

var catalog = []seedProduct{
	{"AM90-BLU", "Air Max 90", "Blue", "homme", 55, 139.99, map[string]int{"41": 4, "42": 6, "43": 3}},
	{"AM90-RED", "Air Max 90", "Red", "femme", 55, 139.99, map[string]int{"38": 5, "39": 2}},
	{"AF1-WHT", "Air Force 1", "White", "mixte", 48, 119.99, map[string]int{"40": 8, "42": 5, "44": 2}},
	{"GZL-BLK", "Gazelle", "Black", "homme", 40, 99.99, map[string]int{"42": 7, "43": 4}},
	{"SPR-GRN", "Superstar", "Green", "femme", 42, 104.99, map[string]int{"37": 3, "38": 6}},
}

func main() {
	ctx := context.Background()

	cfg, err := app.LoadConfig()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	auth := pocketbase.NewTokenProvider(cfg.StoreURL, cfg.StoreEmail, cfg.StorePassword, cfg.StoreTimeout)
	store := pocketbase.NewClient(cfg.StoreURL, auth, cfg.StoreTimeout)
	if err := store.Ping(ctx); err != nil {
		log.Fatalf("store unreachable: %v", err)
	}

	repo := inventory.NewRepository(store, cfg.StoreURL)
	svc := inventory.NewService(repo, nil, nil, nil, nil)

	fmt.Println("→ Seeding products...")
	if err := seedProducts(ctx, store); err != nil {
		log.Fatalf("seed products: %v", err)
	}

	fmt.Println("→ Stocking variants...")
	if err := stockVariants(ctx, svc); err != nil {
		log.Fatalf("stock variants: %v", err)
	}

	fmt.Println("Seed complete.")
}

func seedProducts(ctx context.Context, store *pocketbase.Client) error {
	for _, p := range catalog {
		existing, err := store.Find(ctx, "products", pocketbase.Query{
			Clauses: []pocketbase.Clause{pocketbase.Eq("sku", p.sku)},
			PerPage: 1,
		})
		if err != nil {
			return err
		}
		if len(existing) > 0 {
			continue
		}
		_, err = store.Create(ctx, "products", map[string]any{
			"sku":    p.sku,
			"name":   p.name,
			"color":  p.color,
			"gender": p.gender,
			"cost":   p.cost,
			"price":  p.price,
		})
		if err != nil {
			return fmt.Errorf("create product %s: %w", p.sku, err)
		}
	}
	return nil
}

func stockVariants(ctx context.Context, svc *inventory.Service) error {
	for _, p := range catalog {
		for size, quantity := range p.stock {
			result, err := svc.AddStock(ctx, inventory.MutationInput{
				SKU:      p.sku,
				Size:     size,
				Quantity: quantity,
				Reason:   "seed import",
			})
			if err != nil {
				var inconsistent *inventory.ConsistencyError
				if errors.As(err, &inconsistent) {
					return fmt.Errorf("stock %s/%s left inconsistent state: %w", p.sku, size, err)
				}
				return fmt.Errorf("stock %s/%s: %w", p.sku, size, err)
			}
			fmt.Printf("  %s size %s -> %d\n", p.sku, size, result.NewQuantity)
		}
	}
	return nil
}
