package repository

import (
	"encoding/json"
	"fmt"

	"github.com/nikolayk812/cartstore/internal/domain"
	"github.com/nikolayk812/cartstore/internal/port"
)

func encodeCart(cart domain.Cart) ([]byte, error) {
	if cart.Items == nil {
		cart.Items = []domain.Product{}
	}

	data, err := json.Marshal(cart)
	if err != nil {
		return nil, fmt.Errorf("json.Marshal: %w", err)
	}

	return data, nil
}

func decodeCart(data []byte) (domain.Cart, error) {
	var cart domain.Cart

	if err := json.Unmarshal(data, &cart); err != nil {
		return domain.Cart{}, fmt.Errorf("%w: %w", port.ErrSnapshotCorrupt, err)
	}

	seen := make(map[int64]struct{}, len(cart.Items))
	for _, p := range cart.Items {
		if p.Amount < 1 {
			return domain.Cart{}, fmt.Errorf("%w: product[%d] has amount %d", port.ErrSnapshotCorrupt, p.ID, p.Amount)
		}
		if _, ok := seen[p.ID]; ok {
			return domain.Cart{}, fmt.Errorf("%w: product[%d] is duplicated", port.ErrSnapshotCorrupt, p.ID)
		}
		seen[p.ID] = struct{}{}
	}

	return cart, nil
}
