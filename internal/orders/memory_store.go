package orders

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// NewInMemoryOrderStore constructs an in-memory order store. Used when no
// database is configured, and as the storage-inspection point in tests.
func NewInMemoryOrderStore() *InMemoryOrderStore {
	return &InMemoryOrderStore{
		orders: make(map[string]Order),
		now:    time.Now,
	}
}

// InMemoryOrderStore keeps orders in a map, newest-first for listing.
type InMemoryOrderStore struct {
	mu     sync.Mutex
	orders map[string]Order
	seq    []string
	now    func() time.Time
}

func (s *InMemoryOrderStore) CreateOrder(ctx context.Context, order Order) (Order, error) {
	if err := ctx.Err(); err != nil {
		return Order{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.orders[order.ID]; ok {
		return Order{}, fmt.Errorf("order %s already exists", order.ID)
	}

	order.Lines = append([]OrderLine(nil), order.Lines...)
	order.CreatedAt = s.now()
	s.orders[order.ID] = order
	s.seq = append(s.seq, order.ID)
	return order, nil
}

func (s *InMemoryOrderStore) GetOrder(ctx context.Context, id string) (Order, error) {
	if err := ctx.Err(); err != nil {
		return Order{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	order, ok := s.orders[id]
	if !ok {
		return Order{}, ErrOrderNotFound
	}
	order.Lines = append([]OrderLine(nil), order.Lines...)
	return order, nil
}

func (s *InMemoryOrderStore) ListOrders(ctx context.Context, ownerRef string) ([]Order, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var result []Order
	for i := len(s.seq) - 1; i >= 0; i-- {
		order := s.orders[s.seq[i]]
		if order.OwnerRef != ownerRef {
			continue
		}
		order.Lines = append([]OrderLine(nil), order.Lines...)
		result = append(result, order)
	}
	return result, nil
}

// UpdateStatus advances the status of a stored order.
func (s *InMemoryOrderStore) UpdateStatus(ctx context.Context, id string, status Status) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	order, ok := s.orders[id]
	if !ok {
		return ErrOrderNotFound
	}
	order.Status = status
	s.orders[id] = order
	return nil
}

// Count reports the number of stored orders (for testing/inspection).
func (s *InMemoryOrderStore) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.orders)
}
