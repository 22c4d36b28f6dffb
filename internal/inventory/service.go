package inventory

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strings"

	"github.com/soletrack/soletrack/internal/observability"
	"github.com/soletrack/soletrack/internal/shared"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	ListInventoryJoined(ctx context.Context) ([]InventoryJoin, error)
	ListProducts(ctx context.Context) ([]Product, error)
	FindProductBySKU(ctx context.Context, sku string) (Product, error)
	FindVariant(ctx context.Context, productID, size string) (Variant, error)
	CreateVariant(ctx context.Context, productID, size string) (Variant, error)
	GetOrCreateInventory(ctx context.Context, variantID string) (InventoryRecord, error)
	UpdateQuantity(ctx context.Context, recordID string, quantity int) error
	AppendMovement(ctx context.Context, variantID string, movementType MovementType, quantity int, reason string) (MovementRecord, error)
	ListMovements(ctx context.Context, filter MovementFilter) ([]MovementView, error)
	ImageURL(productID, photo string) string
}

// Default movement reasons when the caller supplies none.
const (
	reasonAddStock = "API add_stock"
	reasonSale     = "API sale"
)

const idempotencyModule = "inventory"

// Service coordinates inventory queries and stock mutations.
type Service struct {
	repo        RepositoryPort
	locks       *shared.KeyedMutex
	idempotency *shared.IdempotencyStore
	metrics     *observability.EngineMetrics
	logger      *slog.Logger
}

// NewService builds Service. idempotency and metrics may be nil.
func NewService(repo RepositoryPort, locks *shared.KeyedMutex, idempotency *shared.IdempotencyStore, metrics *observability.EngineMetrics, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if locks == nil {
		locks = shared.NewKeyedMutex()
	}
	return &Service{repo: repo, locks: locks, idempotency: idempotency, metrics: metrics, logger: logger}
}

// ListInventory builds the catalog join view once, resolves the fuzzy model
// and color filters against candidates collected from that same pass, and
// returns the matching rows. A fuzzy filter that resolves to nothing is
// dropped rather than excluding every row. Purely a read.
func (s *Service) ListInventory(ctx context.Context, filters ListFilters) (ListResult, error) {
	joins, err := s.repo.ListInventoryJoined(ctx)
	if err != nil {
		return ListResult{}, err
	}
	view := buildJoinView(joins, s.repo.ImageURL)
	if view.Dangling > 0 {
		s.logger.Warn("inventory records with missing join targets",
			slog.Int("count", view.Dangling))
	}

	applied := AppliedFilters{}
	if filters.Model != "" {
		if value, score, ok := ResolveFilter(filters.Model, view.ModelChoices); ok {
			applied.Model = &value
			s.metrics.ObserveMatchScore("model", score)
		} else {
			s.logger.Info("model filter dropped, no match above threshold",
				slog.String("query", filters.Model), slog.Int("best_score", score))
		}
	}
	if filters.Color != "" {
		if value, score, ok := ResolveFilter(filters.Color, view.ColorChoices); ok {
			applied.Color = &value
			s.metrics.ObserveMatchScore("color", score)
		} else {
			s.logger.Info("color filter dropped, no match above threshold",
				slog.String("query", filters.Color), slog.Int("best_score", score))
		}
	}
	if filters.Size != "" {
		applied.Size = &filters.Size
	}
	if filters.Gender != "" {
		applied.Gender = &filters.Gender
	}

	items := make([]Row, 0, len(view.Rows))
	for _, row := range view.Rows {
		if applied.Model != nil && row.Model != *applied.Model {
			continue
		}
		if applied.Color != nil && row.Color != *applied.Color {
			continue
		}
		if applied.Size != nil && row.Size != *applied.Size {
			continue
		}
		if applied.Gender != nil && !strings.EqualFold(row.Gender, *applied.Gender) {
			continue
		}
		items = append(items, row)
	}
	return ListResult{Filters: applied, Items: items}, nil
}

// AddStock increments the on-hand quantity for (sku, size), creating the
// variant and its inventory record lazily, and appends exactly one ADD_STOCK
// movement.
func (s *Service) AddStock(ctx context.Context, input MutationInput) (AddResult, error) {
	if input.Quantity <= 0 {
		s.metrics.ObserveMutation(string(MovementAddStock), observability.OutcomeRejected)
		return AddResult{}, ErrInvalidQuantity
	}
	product, err := s.repo.FindProductBySKU(ctx, input.SKU)
	if err != nil {
		s.metrics.ObserveMutation(string(MovementAddStock), observability.OutcomeRejected)
		return AddResult{}, err
	}
	if err := s.claimKey(ctx, input.IdempotencyKey); err != nil {
		return AddResult{}, err
	}

	unlock := s.locks.Lock(variantKey(product.ID, input.Size))
	defer unlock()

	variant, err := s.repo.FindVariant(ctx, product.ID, input.Size)
	if errors.Is(err, ErrVariantNotFound) {
		variant, err = s.repo.CreateVariant(ctx, product.ID, input.Size)
	}
	if err != nil {
		s.failMutation(ctx, MovementAddStock, input.IdempotencyKey)
		return AddResult{}, err
	}

	record, err := s.repo.GetOrCreateInventory(ctx, variant.ID)
	if err != nil {
		s.failMutation(ctx, MovementAddStock, input.IdempotencyKey)
		return AddResult{}, err
	}
	newQuantity := record.Quantity + input.Quantity
	if err := s.repo.UpdateQuantity(ctx, record.ID, newQuantity); err != nil {
		s.failMutation(ctx, MovementAddStock, input.IdempotencyKey)
		return AddResult{}, err
	}
	if err := s.appendMovement(ctx, variant.ID, MovementAddStock, input.Quantity, input.Reason, reasonAddStock); err != nil {
		return AddResult{}, err
	}

	s.metrics.ObserveMutation(string(MovementAddStock), observability.OutcomeApplied)
	s.logger.Info("stock added",
		slog.String("sku", input.SKU),
		slog.String("size", input.Size),
		slog.Int("quantity", input.Quantity),
		slog.Int("new_quantity", newQuantity))
	return AddResult{SKU: input.SKU, Size: input.Size, QuantityAdded: input.Quantity, NewQuantity: newQuantity}, nil
}

// SellStock decrements the on-hand quantity for (sku, size) and appends
// exactly one SALE movement. Unlike AddStock it never creates a variant, and
// a sale that would drive quantity negative fails instead of committing.
func (s *Service) SellStock(ctx context.Context, input MutationInput) (SellResult, error) {
	if input.Quantity <= 0 {
		s.metrics.ObserveMutation(string(MovementSale), observability.OutcomeRejected)
		return SellResult{}, ErrInvalidQuantity
	}
	product, err := s.repo.FindProductBySKU(ctx, input.SKU)
	if err != nil {
		s.metrics.ObserveMutation(string(MovementSale), observability.OutcomeRejected)
		return SellResult{}, err
	}
	if err := s.claimKey(ctx, input.IdempotencyKey); err != nil {
		return SellResult{}, err
	}

	unlock := s.locks.Lock(variantKey(product.ID, input.Size))
	defer unlock()

	variant, err := s.repo.FindVariant(ctx, product.ID, input.Size)
	if err != nil {
		s.failMutation(ctx, MovementSale, input.IdempotencyKey)
		return SellResult{}, err
	}
	record, err := s.repo.GetOrCreateInventory(ctx, variant.ID)
	if err != nil {
		s.failMutation(ctx, MovementSale, input.IdempotencyKey)
		return SellResult{}, err
	}
	if record.Quantity < input.Quantity {
		s.failMutation(ctx, MovementSale, input.IdempotencyKey)
		return SellResult{}, &InsufficientStockError{
			SKU:       input.SKU,
			Size:      input.Size,
			Available: record.Quantity,
			Requested: input.Quantity,
		}
	}
	newQuantity := record.Quantity - input.Quantity
	if err := s.repo.UpdateQuantity(ctx, record.ID, newQuantity); err != nil {
		s.failMutation(ctx, MovementSale, input.IdempotencyKey)
		return SellResult{}, err
	}
	if err := s.appendMovement(ctx, variant.ID, MovementSale, input.Quantity, input.Reason, reasonSale); err != nil {
		return SellResult{}, err
	}

	s.metrics.ObserveMutation(string(MovementSale), observability.OutcomeApplied)
	s.logger.Info("stock sold",
		slog.String("sku", input.SKU),
		slog.String("size", input.Size),
		slog.Int("quantity", input.Quantity),
		slog.Int("new_quantity", newQuantity))
	return SellResult{SKU: input.SKU, Size: input.Size, QuantitySold: input.Quantity, NewQuantity: newQuantity}, nil
}

// ListMovements lists the audit trail, filterable by SKU, size and type.
func (s *Service) ListMovements(ctx context.Context, filter MovementFilter) ([]MovementView, error) {
	return s.repo.ListMovements(ctx, filter)
}

// ListModels aggregates the catalog into distinct models with their observed
// colors and genders, all sorted.
func (s *Service) ListModels(ctx context.Context) ([]ModelSummary, error) {
	products, err := s.repo.ListProducts(ctx)
	if err != nil {
		return nil, err
	}
	byName := map[string]*ModelSummary{}
	for _, p := range products {
		if p.Name == "" {
			continue
		}
		summary, ok := byName[p.Name]
		if !ok {
			summary = &ModelSummary{Name: p.Name}
			byName[p.Name] = summary
		}
		if p.Color != "" && !contains(summary.Colors, p.Color) {
			summary.Colors = append(summary.Colors, p.Color)
		}
		if p.Gender != "" && !contains(summary.Genders, p.Gender) {
			summary.Genders = append(summary.Genders, p.Gender)
		}
	}
	models := make([]ModelSummary, 0, len(byName))
	for _, summary := range byName {
		sort.Strings(summary.Colors)
		sort.Strings(summary.Genders)
		models = append(models, *summary)
	}
	sort.Slice(models, func(i, j int) bool { return models[i].Name < models[j].Name })
	return models, nil
}

// appendMovement writes the audit entry paired with a committed quantity
// update. A failure here is a ConsistencyError: the quantity write already
// happened and must not be silently unpaired. The idempotency key is kept so
// a blind retry cannot apply the quantity twice.
func (s *Service) appendMovement(ctx context.Context, variantID string, movementType MovementType, quantity int, reason, fallback string) error {
	if reason == "" {
		reason = fallback
	}
	if _, err := s.repo.AppendMovement(ctx, variantID, movementType, quantity, reason); err != nil {
		s.metrics.ObserveMutation(string(movementType), observability.OutcomeInconsistent)
		cerr := &ConsistencyError{VariantID: variantID, Type: movementType, Quantity: quantity, Err: err}
		s.logger.Error("movement append failed after quantity update",
			slog.String("variant_id", variantID),
			slog.String("movement_type", string(movementType)),
			slog.Int("quantity", quantity),
			slog.Any("error", err))
		return cerr
	}
	return nil
}

func (s *Service) claimKey(ctx context.Context, key string) error {
	if key == "" || s.idempotency == nil {
		return nil
	}
	return s.idempotency.CheckAndInsert(ctx, key, idempotencyModule)
}

// failMutation releases the idempotency key after a failure that left no
// partial state, so the caller may retry with the same key.
func (s *Service) failMutation(ctx context.Context, movementType MovementType, key string) {
	s.metrics.ObserveMutation(string(movementType), observability.OutcomeRejected)
	if key == "" || s.idempotency == nil {
		return
	}
	if err := s.idempotency.Delete(ctx, key, idempotencyModule); err != nil {
		s.logger.Warn("release idempotency key", slog.Any("error", err))
	}
}

func variantKey(productID, size string) string {
	return productID + "|" + size
}

func contains(values []string, v string) bool {
	for _, existing := range values {
		if existing == v {
			return true
		}
	}
	return false
}
