package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ordergate/internal/remote"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Status tracks the order lifecycle. Only pending is set by this service;
// later states are advanced by fulfillment processes.
type Status string

const (
	StatusPending    Status = "pending"
	StatusConfirmed  Status = "confirmed"
	StatusProcessing Status = "processing"
	StatusShipped    Status = "shipped"
	StatusDelivered  Status = "delivered"
	StatusCancelled  Status = "cancelled"
)

// LineItemRequest is one requested line of a new order.
type LineItemRequest struct {
	ItemRef  string
	Quantity int
}

// OrderLine is a validated, priced line. UnitPrice is the catalog price at
// validation time; later price changes never touch this order.
type OrderLine struct {
	ItemRef   string
	Quantity  int
	UnitPrice decimal.Decimal
}

// Subtotal returns quantity times the snapshotted unit price.
func (l OrderLine) Subtotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Order is the durable record created once per successful orchestration.
type Order struct {
	ID        string
	OwnerRef  string
	Total     decimal.Decimal
	Status    Status
	Lines     []OrderLine
	CreatedAt time.Time
}

// IdentityClient validates an owner reference against the identity service.
type IdentityClient interface {
	ValidateOwner(ctx context.Context, ownerRef string) remote.Outcome[remote.OwnerCheck]
}

// CatalogClient looks up items and inventory in the catalog service.
type CatalogClient interface {
	GetItemInfo(ctx context.Context, itemRef string) remote.Outcome[remote.ItemCheck]
	CheckAvailability(ctx context.Context, itemRef string, quantity int) remote.Outcome[remote.AvailabilityCheck]
}

// OrderStore persists orders. CreateOrder must be atomic across the order
// and all of its lines.
type OrderStore interface {
	CreateOrder(ctx context.Context, order Order) (Order, error)
	GetOrder(ctx context.Context, id string) (Order, error)
	ListOrders(ctx context.Context, ownerRef string) ([]Order, error)
}

// IdempotencyStore reserves creation keys so a replayed request returns the
// order the first request created instead of re-running validation. Abort
// hands a reservation back when the orchestration exits without committing.
type IdempotencyStore interface {
	Begin(ctx context.Context, key, orderID string) (existingID string, created bool, err error)
	Abort(ctx context.Context, key, orderID string) error
}

// EventPublisher receives committed orders for fan-out (websocket feed).
type EventPublisher interface {
	OrderCreated(order Order)
}

// ErrNoItems rejects an order with an empty item list.
var ErrNoItems = errors.New("order needs at least one item")

// ErrInvalidQuantity rejects a non-positive quantity.
var ErrInvalidQuantity = errors.New("quantity must be positive")

// ErrOwnerRequired signals a missing owner reference. The reference comes
// from the authenticated caller, so this is a wiring bug, not user input.
var ErrOwnerRequired = errors.New("owner reference required")

// ErrOrderNotFound signals an unknown or foreign order id.
var ErrOrderNotFound = errors.New("order not found")

// RejectionError is a definitive business-level rejection from a remote
// validation step. Nothing was persisted.
type RejectionError struct {
	Reason string
}

func (e *RejectionError) Error() string { return e.Reason }

// UnavailableError means a remote dependency could not be reached (retries
// exhausted or breaker open). Nothing was persisted.
type UnavailableError struct {
	Service string
	Err     error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("%s service unavailable: %v", e.Service, e.Err)
}

func (e *UnavailableError) Unwrap() error { return e.Err }

// OrderServiceDeps wires an OrderService. Identity, Catalog and Store are
// required; the rest default to sensible no-ops.
type OrderServiceDeps struct {
	Identity    IdentityClient
	Catalog     CatalogClient
	Store       OrderStore
	Idempotency IdempotencyStore
	Publisher   EventPublisher
	NewID       func() string
	Logf        func(format string, args ...any)
}

// OrderService orchestrates owner validation, item validation and the
// atomic local write for order creation.
type OrderService struct {
	identity    IdentityClient
	catalog     CatalogClient
	store       OrderStore
	idempotency IdempotencyStore
	publisher   EventPublisher
	newID       func() string
	logf        func(format string, args ...any)
}

// NewOrderService constructs an OrderService.
func NewOrderService(deps OrderServiceDeps) *OrderService {
	newID := deps.NewID
	if newID == nil {
		newID = uuid.NewString
	}
	logf := deps.Logf
	if logf == nil {
		logf = func(string, ...any) {}
	}
	return &OrderService{
		identity:    deps.Identity,
		catalog:     deps.Catalog,
		store:       deps.Store,
		idempotency: deps.Idempotency,
		publisher:   deps.Publisher,
		newID:       newID,
		logf:        logf,
	}
}

// CreateOrder validates the owner and every line item against the remote
// services, snapshots prices, and commits one atomic write. On any rejection
// or remote unavailability nothing is persisted. idemKey is optional.
func (s *OrderService) CreateOrder(ctx context.Context, ownerRef string, items []LineItemRequest, idemKey string) (Order, error) {
	if ownerRef == "" {
		return Order{}, ErrOwnerRequired
	}
	if len(items) == 0 {
		return Order{}, ErrNoItems
	}
	for _, item := range items {
		if item.ItemRef == "" {
			return Order{}, &RejectionError{Reason: "item reference required"}
		}
		if item.Quantity <= 0 {
			return Order{}, fmt.Errorf("item %s: %w", item.ItemRef, ErrInvalidQuantity)
		}
	}

	orderID := s.newID()

	// The key is claimed before validation so concurrent duplicates collapse
	// into one run; any exit that does not commit hands the claim back, so a
	// retry after a rejection or an outage gets a fresh validation run.
	keyClaimed := false
	defer func() {
		if !keyClaimed {
			return
		}
		if err := s.idempotency.Abort(context.WithoutCancel(ctx), idemKey, orderID); err != nil {
			s.logf("order %s: release idempotency key %s: %v", orderID, idemKey, err)
		}
	}()

	if s.idempotency != nil && idemKey != "" {
		existingID, created, err := s.idempotency.Begin(ctx, idemKey, orderID)
		if err != nil {
			return Order{}, fmt.Errorf("idempotency: %w", err)
		}
		if !created {
			existing, err := s.store.GetOrder(ctx, existingID)
			if err != nil {
				return Order{}, err
			}
			// Keys are client-supplied; a replay only counts when it comes
			// from the owner who made the original request.
			if existing.OwnerRef != ownerRef {
				return Order{}, ErrOrderNotFound
			}
			s.logf("order %s: idempotency replay for key %s", existingID, idemKey)
			return existing, nil
		}
		keyClaimed = true
	}

	ownerOutcome := s.identity.ValidateOwner(ctx, ownerRef)
	switch ownerOutcome.Kind {
	case remote.Success:
	case remote.TerminalRejection:
		s.logf("order rejected: owner %s: %s", ownerRef, ownerOutcome.Reason)
		return Order{}, &RejectionError{Reason: rejectionReason(ownerOutcome.Reason, "owner not recognized")}
	default:
		return Order{}, &UnavailableError{Service: "identity", Err: outcomeErr(ownerOutcome.Kind, ownerOutcome.Err)}
	}

	// Each requested line is validated and priced independently, in request
	// order; duplicates are not deduplicated.
	lines := make([]OrderLine, 0, len(items))
	total := decimal.Zero
	for _, item := range items {
		infoOutcome := s.catalog.GetItemInfo(ctx, item.ItemRef)
		switch infoOutcome.Kind {
		case remote.Success:
		case remote.TerminalRejection:
			s.logf("order rejected: item %s: %s", item.ItemRef, infoOutcome.Reason)
			return Order{}, &RejectionError{Reason: rejectionReason(infoOutcome.Reason, "item "+item.ItemRef+" not found")}
		default:
			return Order{}, &UnavailableError{Service: "catalog", Err: outcomeErr(infoOutcome.Kind, infoOutcome.Err)}
		}

		price, err := decimal.NewFromString(infoOutcome.Payload.Item.Price)
		if err != nil {
			return Order{}, fmt.Errorf("catalog returned unparseable price %q for item %s: %w",
				infoOutcome.Payload.Item.Price, item.ItemRef, err)
		}

		availOutcome := s.catalog.CheckAvailability(ctx, item.ItemRef, item.Quantity)
		switch availOutcome.Kind {
		case remote.Success:
		case remote.TerminalRejection:
			s.logf("order rejected: item %s availability: %s", item.ItemRef, availOutcome.Reason)
			return Order{}, &RejectionError{Reason: rejectionReason(availOutcome.Reason, "insufficient inventory for item "+item.ItemRef)}
		default:
			return Order{}, &UnavailableError{Service: "catalog", Err: outcomeErr(availOutcome.Kind, availOutcome.Err)}
		}

		line := OrderLine{ItemRef: item.ItemRef, Quantity: item.Quantity, UnitPrice: price}
		lines = append(lines, line)
		total = total.Add(line.Subtotal())
	}

	// Cancellation before the commit leaves storage untouched.
	if err := ctx.Err(); err != nil {
		return Order{}, err
	}

	created, err := s.store.CreateOrder(ctx, Order{
		ID:       orderID,
		OwnerRef: ownerRef,
		Total:    total,
		Status:   StatusPending,
		Lines:    lines,
	})
	if err != nil {
		return Order{}, fmt.Errorf("create order: %w", err)
	}
	keyClaimed = false

	s.logf("order %s created for owner %s: total=%s lines=%d", created.ID, ownerRef, created.Total, len(created.Lines))
	if s.publisher != nil {
		s.publisher.OrderCreated(created)
	}
	return created, nil
}

// GetOrder returns the order if it exists and belongs to the owner.
func (s *OrderService) GetOrder(ctx context.Context, ownerRef, orderID string) (Order, error) {
	order, err := s.store.GetOrder(ctx, orderID)
	if err != nil {
		return Order{}, err
	}
	if order.OwnerRef != ownerRef {
		return Order{}, ErrOrderNotFound
	}
	return order, nil
}

// ListOrders returns the owner's orders, most recent first.
func (s *OrderService) ListOrders(ctx context.Context, ownerRef string) ([]Order, error) {
	if ownerRef == "" {
		return nil, ErrOwnerRequired
	}
	return s.store.ListOrders(ctx, ownerRef)
}

func rejectionReason(reason, fallback string) string {
	if reason != "" {
		return reason
	}
	return fallback
}

func outcomeErr(kind remote.Kind, err error) error {
	if err != nil {
		return err
	}
	return errors.New(kind.String())
}
