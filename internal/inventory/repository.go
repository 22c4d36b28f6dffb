package inventory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/soletrack/soletrack/internal/platform/pocketbase"
)

// Store is the record store collaborator contract: exact-equality filtered
// finds with relation expansion, plus create and update.
type Store interface {
	Find(ctx context.Context, collection string, q pocketbase.Query) ([]pocketbase.Record, error)
	Create(ctx context.Context, collection string, fields map[string]any) (pocketbase.Record, error)
	Update(ctx context.Context, collection, id string, fields map[string]any) (pocketbase.Record, error)
}

// Collection names in the backing store.
const (
	collectionProducts  = "products"
	collectionVariants  = "variants"
	collectionInventory = "inventory"
	collectionMovements = "movements"
)

const movementFanout = 4

// Repository adapts the record store to typed domain structs. All record
// shape handling lives here; business logic never sees raw records.
type Repository struct {
	store    Store
	fileBase string
}

// NewRepository constructs Repository. fileBase is the store base URL used to
// synthesise product image URLs.
func NewRepository(store Store, fileBase string) *Repository {
	return &Repository{store: store, fileBase: fileBase}
}

// ImageURL builds the retrieval URL for a product photo reference.
func (r *Repository) ImageURL(productID, photo string) string {
	return fmt.Sprintf("%s/api/files/%s/%s/%s", r.fileBase, collectionProducts, productID, photo)
}

// ListInventoryJoined returns every inventory record joined to its variant
// and product in one expanded query.
func (r *Repository) ListInventoryJoined(ctx context.Context) ([]InventoryJoin, error) {
	records, err := r.store.Find(ctx, collectionInventory, pocketbase.Query{
		Expand: []string{"variant", "variant.product"},
	})
	if err != nil {
		return nil, err
	}
	joins := make([]InventoryJoin, 0, len(records))
	for _, rec := range records {
		join := InventoryJoin{Inventory: inventoryFromRecord(rec)}
		if vrec, ok := rec.Expand("variant"); ok {
			variant := variantFromRecord(vrec)
			join.Variant = &variant
			if prec, ok := vrec.Expand("product"); ok {
				product := productFromRecord(prec)
				join.Product = &product
			}
		}
		joins = append(joins, join)
	}
	return joins, nil
}

// ListProducts returns the full product catalog.
func (r *Repository) ListProducts(ctx context.Context) ([]Product, error) {
	records, err := r.store.Find(ctx, collectionProducts, pocketbase.Query{})
	if err != nil {
		return nil, err
	}
	products := make([]Product, 0, len(records))
	for _, rec := range records {
		products = append(products, productFromRecord(rec))
	}
	return products, nil
}

// FindProductBySKU returns the product with the exact SKU, first result if
// the store holds duplicates.
func (r *Repository) FindProductBySKU(ctx context.Context, sku string) (Product, error) {
	records, err := r.store.Find(ctx, collectionProducts, pocketbase.Query{
		Clauses: []pocketbase.Clause{pocketbase.Eq("sku", sku)},
		PerPage: 1,
	})
	if err != nil {
		return Product{}, err
	}
	if len(records) == 0 {
		return Product{}, ErrProductNotFound
	}
	return productFromRecord(records[0]), nil
}

// FindVariant returns the (product, size) variant.
func (r *Repository) FindVariant(ctx context.Context, productID, size string) (Variant, error) {
	records, err := r.store.Find(ctx, collectionVariants, pocketbase.Query{
		Clauses: []pocketbase.Clause{
			pocketbase.Eq("product", productID),
			pocketbase.Eq("size", size),
		},
		PerPage: 1,
	})
	if err != nil {
		return Variant{}, err
	}
	if len(records) == 0 {
		return Variant{}, ErrVariantNotFound
	}
	return variantFromRecord(records[0]), nil
}

// CreateVariant inserts a new size variant for the product.
func (r *Repository) CreateVariant(ctx context.Context, productID, size string) (Variant, error) {
	rec, err := r.store.Create(ctx, collectionVariants, map[string]any{
		"product": productID,
		"size":    size,
	})
	if err != nil {
		return Variant{}, err
	}
	return variantFromRecord(rec), nil
}

// GetOrCreateInventory returns the variant's inventory record, creating it at
// zero on first use. Idempotent.
func (r *Repository) GetOrCreateInventory(ctx context.Context, variantID string) (InventoryRecord, error) {
	records, err := r.store.Find(ctx, collectionInventory, pocketbase.Query{
		Clauses: []pocketbase.Clause{pocketbase.Eq("variant", variantID)},
		PerPage: 1,
	})
	if err != nil {
		return InventoryRecord{}, err
	}
	if len(records) > 0 {
		return inventoryFromRecord(records[0]), nil
	}
	rec, err := r.store.Create(ctx, collectionInventory, map[string]any{
		"variant":  variantID,
		"quantity": 0,
		"reserved": 0,
	})
	if err != nil {
		return InventoryRecord{}, err
	}
	return inventoryFromRecord(rec), nil
}

// UpdateQuantity persists the new absolute quantity on an inventory record.
func (r *Repository) UpdateQuantity(ctx context.Context, recordID string, quantity int) error {
	_, err := r.store.Update(ctx, collectionInventory, recordID, map[string]any{
		"quantity": quantity,
	})
	return err
}

// AppendMovement writes one immutable audit entry.
func (r *Repository) AppendMovement(ctx context.Context, variantID string, movementType MovementType, quantity int, reason string) (MovementRecord, error) {
	rec, err := r.store.Create(ctx, collectionMovements, map[string]any{
		"variant":       variantID,
		"movement_type": string(movementType),
		"quantity":      quantity,
		"reason":        reason,
	})
	if err != nil {
		return MovementRecord{}, err
	}
	return movementFromRecord(rec), nil
}

// ListMovementsByVariant returns the raw movement history of one variant.
func (r *Repository) ListMovementsByVariant(ctx context.Context, variantID string) ([]MovementRecord, error) {
	records, err := r.store.Find(ctx, collectionMovements, pocketbase.Query{
		Clauses: []pocketbase.Clause{pocketbase.Eq("variant", variantID)},
		Sort:    "-created",
	})
	if err != nil {
		return nil, err
	}
	movements := make([]MovementRecord, 0, len(records))
	for _, rec := range records {
		movements = append(movements, movementFromRecord(rec))
	}
	return movements, nil
}

// ListMovements returns movements expanded with product and variant context,
// newest first. The store filter language only has equality conjunctions, so
// a SKU filter fans out into one movement query per matching variant and
// merges the results.
func (r *Repository) ListMovements(ctx context.Context, filter MovementFilter) ([]MovementView, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}

	baseClauses := []pocketbase.Clause{}
	if filter.Type != "" {
		baseClauses = append(baseClauses, pocketbase.Eq("movement_type", string(filter.Type)))
	}

	if filter.SKU == "" {
		records, err := r.store.Find(ctx, collectionMovements, pocketbase.Query{
			Clauses: baseClauses,
			Expand:  []string{"variant", "variant.product"},
			Sort:    "-created",
			PerPage: limit,
		})
		if err != nil {
			return nil, err
		}
		views := make([]MovementView, 0, len(records))
		for _, rec := range records {
			view := movementViewFromRecord(rec)
			if filter.Size != "" && view.Size != filter.Size {
				continue
			}
			views = append(views, view)
		}
		return views, nil
	}

	product, err := r.FindProductBySKU(ctx, filter.SKU)
	if err != nil {
		if errors.Is(err, ErrProductNotFound) {
			return []MovementView{}, nil
		}
		return nil, err
	}
	variantClauses := []pocketbase.Clause{pocketbase.Eq("product", product.ID)}
	if filter.Size != "" {
		variantClauses = append(variantClauses, pocketbase.Eq("size", filter.Size))
	}
	variantRecords, err := r.store.Find(ctx, collectionVariants, pocketbase.Query{Clauses: variantClauses})
	if err != nil {
		return nil, err
	}

	var (
		mu    sync.Mutex
		views []MovementView
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(movementFanout)
	for _, vrec := range variantRecords {
		variant := variantFromRecord(vrec)
		g.Go(func() error {
			clauses := append([]pocketbase.Clause{pocketbase.Eq("variant", variant.ID)}, baseClauses...)
			records, err := r.store.Find(gctx, collectionMovements, pocketbase.Query{
				Clauses: clauses,
				Sort:    "-created",
				PerPage: limit,
			})
			if err != nil {
				return err
			}
			mu.Lock()
			for _, rec := range records {
				view := movementViewFromRecord(rec)
				view.SKU = product.SKU
				view.Model = product.Name
				view.Size = variant.Size
				views = append(views, view)
			}
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.SliceStable(views, func(i, j int) bool {
		return views[i].Created > views[j].Created
	})
	if len(views) > limit {
		views = views[:limit]
	}
	return views, nil
}

func productFromRecord(rec pocketbase.Record) Product {
	return Product{
		ID:     rec.ID,
		SKU:    rec.String("sku"),
		Name:   rec.String("name"),
		Color:  rec.String("color"),
		Gender: rec.String("gender"),
		Cost:   rec.Float("cost"),
		Price:  rec.Float("price"),
		Photo:  rec.String("photo"),
	}
}

func variantFromRecord(rec pocketbase.Record) Variant {
	return Variant{
		ID:        rec.ID,
		ProductID: rec.String("product"),
		Size:      rec.String("size"),
	}
}

func inventoryFromRecord(rec pocketbase.Record) InventoryRecord {
	return InventoryRecord{
		ID:        rec.ID,
		VariantID: rec.String("variant"),
		Quantity:  rec.Int("quantity"),
		Reserved:  rec.Int("reserved"),
	}
}

func movementFromRecord(rec pocketbase.Record) MovementRecord {
	return MovementRecord{
		ID:        rec.ID,
		VariantID: rec.String("variant"),
		Type:      MovementType(rec.String("movement_type")),
		Quantity:  rec.Int("quantity"),
		Reason:    rec.String("reason"),
		Created:   rec.Created,
	}
}

func movementViewFromRecord(rec pocketbase.Record) MovementView {
	view := MovementView{
		ID:       rec.ID,
		Type:     MovementType(rec.String("movement_type")),
		Quantity: rec.Int("quantity"),
		Reason:   rec.String("reason"),
		Created:  rec.Created,
	}
	if vrec, ok := rec.Expand("variant"); ok {
		view.Size = vrec.String("size")
		if prec, ok := vrec.Expand("product"); ok {
			view.SKU = prec.String("sku")
			view.Model = prec.String("name")
		}
	}
	return view
}
