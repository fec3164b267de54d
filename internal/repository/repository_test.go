package repository_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/nikolayk812/cartstore/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"golang.org/x/text/currency"
)

func startPostgres(ctx context.Context) (*postgres.PostgresContainer, string, error) {
	postgresContainer, err := postgres.Run(ctx, "postgres:17.6-alpine3.22",
		postgres.BasicWaitStrategies(),
		postgres.WithInitScripts(
			"../migrations/01_cart_snapshots.up.sql"),
	)
	if err != nil {
		return nil, "", fmt.Errorf("postgres.Run: %w", err)
	}

	connStr, err := postgresContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		return nil, "", fmt.Errorf("pc.ConnectionString: %w", err)
	}

	return postgresContainer, connStr, nil
}

func randomCart(n int) domain.Cart {
	items := make([]domain.Product, 0, n)
	for i := 0; i < n; i++ {
		p := randomProduct()
		p.ID = int64(i + 1)
		items = append(items, p)
	}

	return domain.Cart{Items: items}
}

func randomProduct() domain.Product {
	return domain.Product{
		ID:     gofakeit.Int64(),
		Title:  gofakeit.ProductName(),
		Price:  randomMoney(),
		Image:  gofakeit.URL(),
		Amount: gofakeit.IntRange(1, 10),
	}
}

func randomMoney() domain.Money {
	return domain.Money{
		Amount:   decimal.NewFromFloat(gofakeit.Price(1, 100)).Round(2),
		Currency: randomCurrency(),
	}
}

func randomCurrency() currency.Unit {
	var (
		result currency.Unit
		err    error
	)

	for {
		// tag is not a recognized currency
		result, err = currency.ParseISO(gofakeit.CurrencyShort())
		if err == nil {
			break
		}
	}

	return result
}

func assertCart(t *testing.T, expected, actual domain.Cart) {
	t.Helper()

	// Money compares itself through its Equal method
	diff := cmp.Diff(expected, actual, cmpopts.EquateEmpty())
	assert.Empty(t, diff)
}
