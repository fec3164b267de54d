package cart_test

import (
	"context"
	"errors"
	"sync"

	"github.com/nikolayk812/cartstore/internal/domain"
	"github.com/nikolayk812/cartstore/internal/port"
)

var errCatalogDown = errors.New("catalog is down")

// fakeCatalog serves products and stock from maps. Safe for concurrent use.
type fakeCatalog struct {
	mu         sync.Mutex
	products   map[int64]domain.Product
	stock      map[int64]int
	productErr error
	stockErr   error

	productPanic string
	stockPanic   string

	productCalls int
	stockCalls   int
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{
		products: make(map[int64]domain.Product),
		stock:    make(map[int64]int),
	}
}

func (c *fakeCatalog) with(p domain.Product, stock int) *fakeCatalog {
	c.products[p.ID] = p
	c.stock[p.ID] = stock
	return c
}

func (c *fakeCatalog) GetProduct(_ context.Context, productID int64) (domain.Product, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.productCalls++
	if c.productPanic != "" {
		panic(c.productPanic)
	}
	if c.productErr != nil {
		return domain.Product{}, c.productErr
	}

	p, ok := c.products[productID]
	if !ok {
		return domain.Product{}, errors.New("product not found")
	}
	return p, nil
}

func (c *fakeCatalog) GetStock(_ context.Context, productID int64) (domain.Stock, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stockCalls++
	if c.stockPanic != "" {
		panic(c.stockPanic)
	}
	if c.stockErr != nil {
		return domain.Stock{}, c.stockErr
	}

	amount, ok := c.stock[productID]
	if !ok {
		return domain.Stock{}, errors.New("stock not found")
	}
	return domain.Stock{ID: productID, Amount: amount}, nil
}

// fakeNotifier records every notification.
type fakeNotifier struct {
	mu   sync.Mutex
	sent []domain.Notification
}

func (n *fakeNotifier) Notify(_ context.Context, notification domain.Notification) {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.sent = append(n.sent, notification)
}

func (n *fakeNotifier) notifications() []domain.Notification {
	n.mu.Lock()
	defer n.mu.Unlock()

	return append([]domain.Notification(nil), n.sent...)
}

// flakyRepository delegates to another repository unless an error is injected.
type flakyRepository struct {
	port.SnapshotRepository

	loadSnapshot domain.Snapshot
	loadErr      error
	saveErr      error
	saves        int
}

func (r *flakyRepository) Load(ctx context.Context, key string) (domain.Snapshot, error) {
	if r.loadErr != nil {
		return r.loadSnapshot, r.loadErr
	}
	return r.SnapshotRepository.Load(ctx, key)
}

func (r *flakyRepository) Save(ctx context.Context, key string, cart domain.Cart, expectedVersion int64) (int64, error) {
	r.saves++
	if r.saveErr != nil {
		return 0, r.saveErr
	}
	return r.SnapshotRepository.Save(ctx, key, cart, expectedVersion)
}
