// Package cart keeps the shopping cart of a single session in memory and mirrors every
// change into durable storage.
package cart

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/nikolayk812/cartstore/internal/domain"
	"github.com/nikolayk812/cartstore/internal/port"
	"golang.org/x/sync/errgroup"
)

// UpdateProductAmount is the request to set the quantity of a product in the cart.
type UpdateProductAmount struct {
	ProductID int64
	Amount    int
}

type listener struct {
	id int
	fn func(domain.Cart)
}

// Store is the single owner of a cart. AddProduct, RemoveProduct and
// UpdateProductAmount are the only ways to change it.
type Store struct {
	key      string
	repo     port.SnapshotRepository
	catalog  port.Catalog
	notifier port.Notifier
	logger   *slog.Logger

	// mu is held for a whole mutation, catalog lookups included
	mu sync.Mutex

	state     sync.RWMutex
	cart      domain.Cart
	version   int64
	listeners []listener
	nextID    int
}

// New hydrates a store from the snapshot saved under key. A missing or unreadable
// snapshot yields an empty cart; any other storage error is returned.
func New(ctx context.Context, key string, repo port.SnapshotRepository, catalog port.Catalog, notifier port.Notifier, logger *slog.Logger) (*Store, error) {
	if key == "" {
		return nil, fmt.Errorf("key is empty")
	}

	s := &Store{
		key:      key,
		repo:     repo,
		catalog:  catalog,
		notifier: notifier,
		logger:   logger.With("component", "cart", "key", key),
	}

	snapshot, err := repo.Load(ctx, key)
	switch {
	case err == nil:
		s.logger.InfoContext(ctx, "Cart hydrated", "products", snapshot.Cart.Len(), "version", snapshot.Version)
	case errors.Is(err, port.ErrSnapshotNotFound):
		s.logger.InfoContext(ctx, "No cart snapshot found, starting with an empty cart")
	case errors.Is(err, port.ErrSnapshotCorrupt):
		s.logger.WarnContext(ctx, "Cart snapshot is unreadable, starting with an empty cart", "version", snapshot.Version, "error", err)
		snapshot.Cart = domain.Cart{}
	default:
		return nil, fmt.Errorf("repo.Load: %w", err)
	}

	s.cart = snapshot.Cart
	s.version = snapshot.Version

	return s, nil
}

// Cart returns a copy of the current cart.
func (s *Store) Cart() domain.Cart {
	s.state.RLock()
	defer s.state.RUnlock()

	return s.cart.Clone()
}

// Version returns the version of the last saved snapshot, 0 if nothing was saved yet.
func (s *Store) Version() int64 {
	s.state.RLock()
	defer s.state.RUnlock()

	return s.version
}

// Snapshot returns a copy of the current cart together with its version.
func (s *Store) Snapshot() domain.Snapshot {
	s.state.RLock()
	defer s.state.RUnlock()

	return domain.Snapshot{Cart: s.cart.Clone(), Version: s.version}
}

// Subscribe registers fn to be called with the new cart after every committed change.
// Listeners run synchronously on the mutating goroutine, in subscription order, and
// must not call the mutating methods of the store.
func (s *Store) Subscribe(fn func(domain.Cart)) (unsubscribe func()) {
	s.state.Lock()
	defer s.state.Unlock()

	s.nextID++
	id := s.nextID
	s.listeners = append(s.listeners, listener{id: id, fn: fn})

	return func() {
		s.state.Lock()
		defer s.state.Unlock()

		s.listeners = slices.DeleteFunc(s.listeners, func(l listener) bool {
			return l.id == id
		})
	}
}

// AddProduct puts one more unit of the product into the cart, appending it with
// amount 1 when it is not there yet.
func (s *Store) AddProduct(ctx context.Context, productID int64) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer s.recoverAs(ctx, domain.NotificationAddFailed, MessageAddFailed, productID, &err)

	product, stock, err := s.lookup(ctx, productID)
	if err != nil {
		return s.fail(ctx, domain.NotificationAddFailed, MessageAddFailed, productID, fmt.Errorf("%w: %w", ErrLookupFailed, err))
	}

	next := s.Cart()

	if i := next.Index(productID); i < 0 {
		product.ID = productID
		product.Amount = 1
		next.Items = append(next.Items, product)
	} else {
		if next.Items[i].Amount >= stock.Amount {
			return s.fail(ctx, domain.NotificationStockExceeded, MessageStockExceeded, productID, ErrStockExceeded)
		}
		next.Items[i].Amount++
	}

	if err := s.commit(ctx, next); err != nil {
		return s.fail(ctx, domain.NotificationAddFailed, MessageAddFailed, productID, err)
	}

	return nil
}

// RemoveProduct drops the product from the cart. Removing a product that is not
// in the cart is reported as ErrProductNotInCart.
func (s *Store) RemoveProduct(ctx context.Context, productID int64) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer s.recoverAs(ctx, domain.NotificationRemoveFailed, MessageRemoveFailed, productID, &err)

	next := s.Cart()

	i := next.Index(productID)
	if i < 0 {
		return s.fail(ctx, domain.NotificationRemoveFailed, MessageRemoveFailed, productID, ErrProductNotInCart)
	}
	next.Items = slices.Delete(next.Items, i, i+1)

	if err := s.commit(ctx, next); err != nil {
		return s.fail(ctx, domain.NotificationRemoveFailed, MessageRemoveFailed, productID, err)
	}

	return nil
}

// UpdateProductAmount sets the quantity of a product already in the cart.
// Non-positive amounts and products missing from the cart are ignored without a
// notification.
func (s *Store) UpdateProductAmount(ctx context.Context, req UpdateProductAmount) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer s.recoverAs(ctx, domain.NotificationUpdateFailed, MessageUpdateFailed, req.ProductID, &err)

	stock, err := s.catalog.GetStock(ctx, req.ProductID)
	if err != nil {
		return s.fail(ctx, domain.NotificationUpdateFailed, MessageUpdateFailed, req.ProductID,
			fmt.Errorf("%w: catalog.GetStock: %w", ErrLookupFailed, err))
	}

	if req.Amount <= 0 {
		s.logger.DebugContext(ctx, "Ignoring non-positive amount", "product_id", req.ProductID, "amount", req.Amount)
		return nil
	}

	if req.Amount > stock.Amount {
		return s.fail(ctx, domain.NotificationStockExceeded, MessageStockExceeded, req.ProductID, ErrStockExceeded)
	}

	next := s.Cart()

	i := next.Index(req.ProductID)
	if i < 0 {
		s.logger.DebugContext(ctx, "Ignoring amount update for a product not in the cart", "product_id", req.ProductID)
		return nil
	}
	next.Items[i].Amount = req.Amount

	if err := s.commit(ctx, next); err != nil {
		return s.fail(ctx, domain.NotificationUpdateFailed, MessageUpdateFailed, req.ProductID, err)
	}

	return nil
}

// lookup fetches product details and stock concurrently; both must succeed.
func (s *Store) lookup(ctx context.Context, productID int64) (domain.Product, domain.Stock, error) {
	var (
		product domain.Product
		stock   domain.Stock
	)

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() (err error) {
		defer recoverInto(&err)

		p, err := s.catalog.GetProduct(gCtx, productID)
		if err != nil {
			return fmt.Errorf("catalog.GetProduct: %w", err)
		}
		product = p
		return nil
	})

	g.Go(func() (err error) {
		defer recoverInto(&err)

		st, err := s.catalog.GetStock(gCtx, productID)
		if err != nil {
			return fmt.Errorf("catalog.GetStock: %w", err)
		}
		stock = st
		return nil
	})

	if err := g.Wait(); err != nil {
		return domain.Product{}, domain.Stock{}, err
	}

	return product, stock, nil
}

// commit saves next and only then makes it the current cart.
func (s *Store) commit(ctx context.Context, next domain.Cart) error {
	version, err := s.repo.Save(ctx, s.key, next, s.Version())
	if err != nil {
		return fmt.Errorf("%w: repo.Save: %w", ErrPersistFailed, err)
	}

	s.state.Lock()
	s.cart = next
	s.version = version
	listeners := slices.Clone(s.listeners)
	s.state.Unlock()

	s.logger.DebugContext(ctx, "Cart saved", "products", next.Len(), "version", version)

	for _, l := range listeners {
		s.notifyListener(ctx, l, next.Clone())
	}

	return nil
}

// notifyListener runs after the commit, so a panicking listener must not turn
// the saved mutation into a failure.
func (s *Store) notifyListener(ctx context.Context, l listener, c domain.Cart) {
	defer func() {
		if rvr := recover(); rvr != nil {
			s.logger.ErrorContext(ctx, "Cart listener panicked", "listener", l.id, "panic", rvr)
		}
	}()

	l.fn(c)
}

func (s *Store) fail(ctx context.Context, kind domain.NotificationKind, message string, productID int64, err error) error {
	s.logger.WarnContext(ctx, "Cart operation failed", "kind", kind, "product_id", productID, "error", err)

	s.notifier.Notify(ctx, domain.Notification{
		Kind:      kind,
		Message:   message,
		ProductID: productID,
	})

	return err
}

func (s *Store) recoverAs(ctx context.Context, kind domain.NotificationKind, message string, productID int64, err *error) {
	if rvr := recover(); rvr != nil {
		*err = s.fail(ctx, kind, message, productID, fmt.Errorf("panic: %v", rvr))
	}
}

// recoverInto converts a panic of a lookup goroutine into its error.
func recoverInto(err *error) {
	if rvr := recover(); rvr != nil {
		*err = fmt.Errorf("panic: %v", rvr)
	}
}
