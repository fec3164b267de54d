package domain

type NotificationKind string

const (
	NotificationStockExceeded NotificationKind = "stock_exceeded"
	NotificationAddFailed     NotificationKind = "add_failed"
	NotificationRemoveFailed  NotificationKind = "remove_failed"
	NotificationUpdateFailed  NotificationKind = "update_failed"
)

// Notification is a user-facing message emitted by a failed cart operation.
type Notification struct {
	Kind      NotificationKind `json:"kind"`
	Message   string           `json:"message"`
	ProductID int64            `json:"product_id"`
}
