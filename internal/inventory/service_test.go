package inventory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

type memoryRepo struct {
	mu            sync.Mutex
	products      []Product
	variants      []Variant
	inventory     []InventoryRecord
	movements     []MovementRecord
	nextID        int
	failMovements bool
}

func newMemoryRepo(products ...Product) *memoryRepo {
	repo := &memoryRepo{}
	for _, p := range products {
		if p.ID == "" {
			p.ID = repo.id()
		}
		repo.products = append(repo.products, p)
	}
	return repo
}

func (r *memoryRepo) id() string {
	r.nextID++
	return fmt.Sprintf("rec%04d", r.nextID)
}

func (r *memoryRepo) ListInventoryJoined(ctx context.Context) ([]InventoryJoin, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	joins := make([]InventoryJoin, 0, len(r.inventory))
	for _, inv := range r.inventory {
		join := InventoryJoin{Inventory: inv}
		for i := range r.variants {
			if r.variants[i].ID == inv.VariantID {
				variant := r.variants[i]
				join.Variant = &variant
				for j := range r.products {
					if r.products[j].ID == variant.ProductID {
						product := r.products[j]
						join.Product = &product
					}
				}
			}
		}
		joins = append(joins, join)
	}
	return joins, nil
}

func (r *memoryRepo) ListProducts(ctx context.Context) ([]Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Product, len(r.products))
	copy(out, r.products)
	return out, nil
}

func (r *memoryRepo) FindProductBySKU(ctx context.Context, sku string) (Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.products {
		if p.SKU == sku {
			return p, nil
		}
	}
	return Product{}, ErrProductNotFound
}

func (r *memoryRepo) FindVariant(ctx context.Context, productID, size string) (Variant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, v := range r.variants {
		if v.ProductID == productID && v.Size == size {
			return v, nil
		}
	}
	return Variant{}, ErrVariantNotFound
}

func (r *memoryRepo) CreateVariant(ctx context.Context, productID, size string) (Variant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v := Variant{ID: r.id(), ProductID: productID, Size: size}
	r.variants = append(r.variants, v)
	return v, nil
}

func (r *memoryRepo) GetOrCreateInventory(ctx context.Context, variantID string) (InventoryRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rec := range r.inventory {
		if rec.VariantID == variantID {
			return rec, nil
		}
	}
	rec := InventoryRecord{ID: r.id(), VariantID: variantID}
	r.inventory = append(r.inventory, rec)
	return rec, nil
}

func (r *memoryRepo) UpdateQuantity(ctx context.Context, recordID string, quantity int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.inventory {
		if r.inventory[i].ID == recordID {
			r.inventory[i].Quantity = quantity
			return nil
		}
	}
	return fmt.Errorf("inventory record %s not found", recordID)
}

func (r *memoryRepo) AppendMovement(ctx context.Context, variantID string, movementType MovementType, quantity int, reason string) (MovementRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failMovements {
		return MovementRecord{}, errors.New("movement write refused")
	}
	m := MovementRecord{ID: r.id(), VariantID: variantID, Type: movementType, Quantity: quantity, Reason: reason}
	r.movements = append(r.movements, m)
	return m, nil
}

func (r *memoryRepo) ListMovements(ctx context.Context, filter MovementFilter) ([]MovementView, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	views := make([]MovementView, 0, len(r.movements))
	for _, m := range r.movements {
		if filter.Type != "" && m.Type != filter.Type {
			continue
		}
		views = append(views, MovementView{ID: m.ID, Type: m.Type, Quantity: m.Quantity, Reason: m.Reason})
	}
	return views, nil
}

func (r *memoryRepo) ImageURL(productID, photo string) string {
	return "http://store.local/api/files/products/" + productID + "/" + photo
}

func (r *memoryRepo) quantityFor(t *testing.T, sku, size string) int {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.products {
		if p.SKU != sku {
			continue
		}
		for _, v := range r.variants {
			if v.ProductID == p.ID && v.Size == size {
				for _, rec := range r.inventory {
					if rec.VariantID == v.ID {
						return rec.Quantity
					}
				}
			}
		}
	}
	t.Fatalf("no inventory for %s/%s", sku, size)
	return 0
}

func newTestService(repo *memoryRepo) *Service {
	return NewService(repo, nil, nil, nil, nil)
}

func TestAddStockCreatesVariantAndInventoryOnce(t *testing.T) {
	repo := newMemoryRepo(Product{SKU: "X1", Name: "Air Max 90"})
	svc := newTestService(repo)
	ctx := context.Background()

	result, err := svc.AddStock(ctx, MutationInput{SKU: "X1", Size: "42", Quantity: 5})
	require.NoError(t, err)
	require.Equal(t, AddResult{SKU: "X1", Size: "42", QuantityAdded: 5, NewQuantity: 5}, result)
	require.Len(t, repo.variants, 1)
	require.Len(t, repo.inventory, 1)

	result, err = svc.AddStock(ctx, MutationInput{SKU: "X1", Size: "42", Quantity: 2})
	require.NoError(t, err)
	require.Equal(t, 7, result.NewQuantity)
	require.Len(t, repo.variants, 1, "second add must reuse the variant")
	require.Len(t, repo.inventory, 1, "second add must reuse the inventory record")
	require.Len(t, repo.movements, 2)
}

func TestAddStockValidation(t *testing.T) {
	repo := newMemoryRepo(Product{SKU: "X1", Name: "Air Max 90"})
	svc := newTestService(repo)
	ctx := context.Background()

	_, err := svc.AddStock(ctx, MutationInput{SKU: "X1", Size: "42", Quantity: 0})
	require.ErrorIs(t, err, ErrInvalidQuantity)

	_, err = svc.AddStock(ctx, MutationInput{SKU: "X1", Size: "42", Quantity: -3})
	require.ErrorIs(t, err, ErrInvalidQuantity)

	_, err = svc.AddStock(ctx, MutationInput{SKU: "nope", Size: "42", Quantity: 1})
	require.ErrorIs(t, err, ErrProductNotFound)
	require.Empty(t, repo.movements)
}

func TestSellStockScenario(t *testing.T) {
	repo := newMemoryRepo(Product{SKU: "X1", Name: "Air Max 90"})
	svc := newTestService(repo)
	ctx := context.Background()

	_, err := svc.AddStock(ctx, MutationInput{SKU: "X1", Size: "42", Quantity: 5})
	require.NoError(t, err)

	result, err := svc.SellStock(ctx, MutationInput{SKU: "X1", Size: "42", Quantity: 3})
	require.NoError(t, err)
	require.Equal(t, SellResult{SKU: "X1", Size: "42", QuantitySold: 3, NewQuantity: 2}, result)

	sale := repo.movements[len(repo.movements)-1]
	require.Equal(t, MovementSale, sale.Type)
	require.Equal(t, 3, sale.Quantity)
	require.Equal(t, "API sale", sale.Reason)

	movementsBefore := len(repo.movements)
	_, err = svc.SellStock(ctx, MutationInput{SKU: "X1", Size: "42", Quantity: 3})
	var insufficient *InsufficientStockError
	require.ErrorAs(t, err, &insufficient)
	require.Equal(t, 2, insufficient.Available)
	require.Equal(t, 3, insufficient.Requested)
	require.Equal(t, 2, repo.quantityFor(t, "X1", "42"), "failed sale must not change quantity")
	require.Len(t, repo.movements, movementsBefore, "failed sale must not append a movement")
}

func TestSellStockMissingVariantCreatesNothing(t *testing.T) {
	repo := newMemoryRepo(Product{SKU: "X1", Name: "Air Max 90"})
	svc := newTestService(repo)

	_, err := svc.SellStock(context.Background(), MutationInput{SKU: "X1", Size: "42", Quantity: 1})
	require.ErrorIs(t, err, ErrVariantNotFound)
	require.Empty(t, repo.variants)
	require.Empty(t, repo.inventory)
	require.Empty(t, repo.movements)
}

func TestQuantityConservation(t *testing.T) {
	repo := newMemoryRepo(Product{SKU: "X1", Name: "Air Max 90"})
	svc := newTestService(repo)
	ctx := context.Background()

	adds := []int{10, 4, 1}
	sells := []int{3, 2, 5}
	for _, q := range adds {
		_, err := svc.AddStock(ctx, MutationInput{SKU: "X1", Size: "42", Quantity: q})
		require.NoError(t, err)
	}
	for _, q := range sells {
		_, err := svc.SellStock(ctx, MutationInput{SKU: "X1", Size: "42", Quantity: q})
		require.NoError(t, err)
	}
	require.Equal(t, 5, repo.quantityFor(t, "X1", "42"))
	require.Len(t, repo.movements, len(adds)+len(sells))
}

func TestConcurrentSellsNeverOversell(t *testing.T) {
	repo := newMemoryRepo(Product{SKU: "X1", Name: "Air Max 90"})
	svc := newTestService(repo)
	ctx := context.Background()

	_, err := svc.AddStock(ctx, MutationInput{SKU: "X1", Size: "42", Quantity: 5})
	require.NoError(t, err)

	const workers = 10
	var wg sync.WaitGroup
	results := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = svc.SellStock(ctx, MutationInput{SKU: "X1", Size: "42", Quantity: 1})
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range results {
		if err == nil {
			succeeded++
			continue
		}
		var insufficient *InsufficientStockError
		require.ErrorAs(t, err, &insufficient)
	}
	require.Equal(t, 5, succeeded)
	require.Equal(t, 0, repo.quantityFor(t, "X1", "42"))
}

func TestConcurrentConflictingSalesAtMostOneSucceeds(t *testing.T) {
	repo := newMemoryRepo(Product{SKU: "X1", Name: "Air Max 90"})
	svc := newTestService(repo)
	ctx := context.Background()

	_, err := svc.AddStock(ctx, MutationInput{SKU: "X1", Size: "42", Quantity: 5})
	require.NoError(t, err)

	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.SellStock(ctx, MutationInput{SKU: "X1", Size: "42", Quantity: 3}); err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	require.Equal(t, 1, succeeded, "conflicting sales may race on which fails, never both commit")
	require.Equal(t, 2, repo.quantityFor(t, "X1", "42"))
}

func TestMovementAppendFailureSurfacesConsistencyError(t *testing.T) {
	repo := newMemoryRepo(Product{SKU: "X1", Name: "Air Max 90"})
	svc := newTestService(repo)
	ctx := context.Background()

	repo.failMovements = true
	_, err := svc.AddStock(ctx, MutationInput{SKU: "X1", Size: "42", Quantity: 5})
	var inconsistent *ConsistencyError
	require.ErrorAs(t, err, &inconsistent)
	require.Equal(t, MovementAddStock, inconsistent.Type)
	require.Equal(t, 5, inconsistent.Quantity)
}

func TestListInventoryResolvesAndDropsFilters(t *testing.T) {
	repo := newMemoryRepo(
		Product{SKU: "X1", Name: "Air Max 90", Color: "Blue", Gender: "homme"},
		Product{SKU: "X2", Name: "Air Force 1", Color: "White", Gender: "femme"},
	)
	svc := newTestService(repo)
	ctx := context.Background()

	_, err := svc.AddStock(ctx, MutationInput{SKU: "X1", Size: "42", Quantity: 5})
	require.NoError(t, err)
	_, err = svc.AddStock(ctx, MutationInput{SKU: "X1", Size: "43", Quantity: 1})
	require.NoError(t, err)
	_, err = svc.AddStock(ctx, MutationInput{SKU: "X2", Size: "42", Quantity: 2})
	require.NoError(t, err)

	// Fuzzy model match plus an unresolvable color: the color filter drops
	// instead of excluding every row.
	result, err := svc.ListInventory(ctx, ListFilters{Model: "Air Max", Color: "red"})
	require.NoError(t, err)
	require.NotNil(t, result.Filters.Model)
	require.Equal(t, "Air Max 90", *result.Filters.Model)
	require.Nil(t, result.Filters.Color)
	require.Len(t, result.Items, 2)
	for _, item := range result.Items {
		require.Equal(t, "Air Max 90", item.Model)
	}

	// Size is matched literally and case-sensitively.
	result, err = svc.ListInventory(ctx, ListFilters{Size: "42"})
	require.NoError(t, err)
	require.Len(t, result.Items, 2)

	// Gender is literal but case-insensitive.
	result, err = svc.ListInventory(ctx, ListFilters{Gender: "FEMME"})
	require.NoError(t, err)
	require.Len(t, result.Items, 1)
	require.Equal(t, "X2", result.Items[0].SKU)
}

func TestListInventoryNoFilters(t *testing.T) {
	repo := newMemoryRepo(Product{SKU: "X1", Name: "Air Max 90", Color: "Blue"})
	svc := newTestService(repo)
	ctx := context.Background()

	_, err := svc.AddStock(ctx, MutationInput{SKU: "X1", Size: "42", Quantity: 5})
	require.NoError(t, err)

	result, err := svc.ListInventory(ctx, ListFilters{})
	require.NoError(t, err)
	require.Nil(t, result.Filters.Model)
	require.Nil(t, result.Filters.Color)
	require.Len(t, result.Items, 1)
	require.Equal(t, 5, result.Items[0].Quantity)
}

func TestListModelsAggregation(t *testing.T) {
	repo := newMemoryRepo(
		Product{SKU: "X1", Name: "Air Max 90", Color: "Blue", Gender: "homme"},
		Product{SKU: "X2", Name: "Air Max 90", Color: "Red", Gender: "femme"},
		Product{SKU: "X3", Name: "Air Force 1", Color: "White", Gender: "mixte"},
	)
	svc := newTestService(repo)

	models, err := svc.ListModels(context.Background())
	require.NoError(t, err)
	require.Len(t, models, 2)
	require.Equal(t, "Air Force 1", models[0].Name)
	require.Equal(t, "Air Max 90", models[1].Name)
	require.Equal(t, []string{"Blue", "Red"}, models[1].Colors)
	require.Equal(t, []string{"femme", "homme"}, models[1].Genders)
}
