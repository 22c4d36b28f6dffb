package inventory

import (
	"errors"
	"fmt"
)

// MovementType enumerates the audited stock movements. The quantity on a
// movement is always a positive magnitude; direction lives in the type.
type MovementType string

const (
	// MovementAddStock records an inbound quantity.
	MovementAddStock MovementType = "ADD_STOCK"
	// MovementSale records an outbound sale.
	MovementSale MovementType = "SALE"
)

// Product is the catalog entry keyed by SKU. Immutable in this engine.
type Product struct {
	ID     string
	SKU    string
	Name   string
	Color  string
	Gender string
	Cost   float64
	Price  float64
	Photo  string
}

// Variant is a specific size of a product, created lazily on first stocking.
type Variant struct {
	ID        string
	ProductID string
	Size      string
}

// InventoryRecord holds the mutable on-hand quantity for one variant.
// Reserved is carried for a future reservation workflow and never mutated here.
type InventoryRecord struct {
	ID        string
	VariantID string
	Quantity  int
	Reserved  int
}

// MovementRecord is one immutable audit entry. Never updated or deleted.
type MovementRecord struct {
	ID        string
	VariantID string
	Type      MovementType
	Quantity  int
	Reason    string
	Created   string
}

// InventoryJoin is an inventory record resolved to its variant and product.
// Either join target may be absent; dangling records stay visible.
type InventoryJoin struct {
	Inventory InventoryRecord
	Variant   *Variant
	Product   *Product
}

// Row is one flattened line of the catalog join view.
type Row struct {
	SKU      string  `json:"sku"`
	Model    string  `json:"model"`
	Color    string  `json:"color"`
	Gender   string  `json:"gender"`
	Cost     float64 `json:"cost"`
	Price    float64 `json:"price"`
	Size     string  `json:"size"`
	Quantity int     `json:"quantity"`
	Reserved int     `json:"reserved"`
	Image    string  `json:"image,omitempty"`
}

// ListFilters carries the raw, possibly misspelled, query input.
type ListFilters struct {
	Model  string
	Color  string
	Size   string
	Gender string
}

// AppliedFilters echoes the resolved values actually used for filtering.
// A fuzzy filter that failed resolution is reported as null.
type AppliedFilters struct {
	Model  *string `json:"model"`
	Color  *string `json:"color"`
	Size   *string `json:"size"`
	Gender *string `json:"gender"`
}

// ListResult is the inventory listing response.
type ListResult struct {
	Filters AppliedFilters `json:"filters_applied"`
	Items   []Row          `json:"items"`
}

// MutationInput describes an add or sell request.
type MutationInput struct {
	SKU            string
	Size           string
	Quantity       int
	Reason         string
	IdempotencyKey string
}

// AddResult reports a completed stock addition.
type AddResult struct {
	SKU           string `json:"sku"`
	Size          string `json:"size"`
	QuantityAdded int    `json:"quantity_added"`
	NewQuantity   int    `json:"new_quantity"`
}

// SellResult reports a completed sale.
type SellResult struct {
	SKU          string `json:"sku"`
	Size         string `json:"size"`
	QuantitySold int    `json:"quantity_sold"`
	NewQuantity  int    `json:"new_quantity"`
}

// MovementFilter narrows the movement listing.
type MovementFilter struct {
	SKU   string
	Size  string
	Type  MovementType
	Limit int
}

// MovementView is a movement expanded with its product and variant context.
type MovementView struct {
	ID       string       `json:"id"`
	SKU      string       `json:"sku"`
	Model    string       `json:"model"`
	Size     string       `json:"size"`
	Type     MovementType `json:"movement_type"`
	Quantity int          `json:"quantity"`
	Reason   string       `json:"reason"`
	Created  string       `json:"created"`
}

// ModelSummary aggregates one model's observed colors and genders.
type ModelSummary struct {
	Name    string   `json:"name"`
	Colors  []string `json:"colors"`
	Genders []string `json:"genders"`
}

// ErrInvalidQuantity rejects non-positive mutation quantities.
var ErrInvalidQuantity = errors.New("inventory: quantity must be positive")

// ErrProductNotFound indicates an unknown SKU.
var ErrProductNotFound = errors.New("inventory: product not found")

// ErrVariantNotFound indicates a missing (product, size) variant.
var ErrVariantNotFound = errors.New("inventory: variant not found")

// InsufficientStockError rejects a sale that would drive quantity negative.
type InsufficientStockError struct {
	SKU       string
	Size      string
	Available int
	Requested int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("inventory: insufficient stock for %s size %s: have %d, want %d", e.SKU, e.Size, e.Available, e.Requested)
}

// ConsistencyError is fatal: a quantity write committed but its paired
// movement append did not. It must be surfaced loudly, never masked.
type ConsistencyError struct {
	VariantID string
	Type      MovementType
	Quantity  int
	Err       error
}

func (e *ConsistencyError) Error() string {
	return fmt.Sprintf("inventory: movement append failed after quantity update for variant %s (%s %d): %v", e.VariantID, e.Type, e.Quantity, e.Err)
}

func (e *ConsistencyError) Unwrap() error {
	return e.Err
}
