package cart

import "errors"

var (
	ErrStockExceeded    = errors.New("requested quantity exceeds available stock")
	ErrProductNotInCart = errors.New("product is not in the cart")
	ErrLookupFailed     = errors.New("catalog lookup failed")
	ErrPersistFailed    = errors.New("cart snapshot could not be saved")
)

// User-facing messages delivered through the notifier.
const (
	MessageStockExceeded = "Requested quantity exceeds available stock"
	MessageAddFailed     = "Failed to add product"
	MessageRemoveFailed  = "Failed to remove product"
	MessageUpdateFailed  = "Failed to update product quantity"
)
