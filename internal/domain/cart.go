package domain

import (
	"slices"
)

type Cart struct {
	Items []Product `json:"items"`
}

type Product struct {
	ID     int64  `json:"id"`
	Title  string `json:"title"`
	Price  Money  `json:"price"`
	Image  string `json:"image"`
	Amount int    `json:"amount"`
}

type Stock struct {
	ID     int64 `json:"id"`
	Amount int   `json:"amount"`
}

// Snapshot is the persisted form of a cart. Version grows by one on every save.
type Snapshot struct {
	Cart    Cart
	Version int64
}

// Index returns the position of the product in the cart or -1.
func (c Cart) Index(productID int64) int {
	return slices.IndexFunc(c.Items, func(p Product) bool {
		return p.ID == productID
	})
}

func (c Cart) Clone() Cart {
	return Cart{Items: slices.Clone(c.Items)}
}

func (c Cart) Len() int {
	return len(c.Items)
}
