// Package testhelpers sets up a real Postgres for integration tests. Tests
// using it are skipped unless TEST_DATABASE_URL is set.
package testhelpers

import (
	"context"
	"os"
	"testing"
	"time"

	"bizledger/pkg/database"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap/zaptest"
)

// TestDB holds the database connection for testing
type TestDB struct {
	Pool *pgxpool.Pool
}

// SetupTestDB connects to TEST_DATABASE_URL, applies migrations and
// truncates the billing tables when the test ends.
func SetupTestDB(t *testing.T) *TestDB {
	t.Helper()

	connString := os.Getenv("TEST_DATABASE_URL")
	if connString == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := database.NewPool(ctx, connString, 20, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}
	if _, err := database.Migrate(ctx, pool, zaptest.NewLogger(t)); err != nil {
		pool.Close()
		t.Fatalf("Failed to migrate test database: %v", err)
	}

	t.Cleanup(func() {
		_, _ = pool.Exec(context.Background(),
			`TRUNCATE debt_payments, debts, customers, subscription_payments, stripe_events, businesses`)
		pool.Close()
	})
	return &TestDB{Pool: pool}
}

// SetupTestBusiness creates a business with no trial or subscription yet.
func SetupTestBusiness(t *testing.T, db *TestDB) uuid.UUID {
	t.Helper()

	businessID := uuid.New()
	_, err := db.Pool.Exec(context.Background(),
		`INSERT INTO businesses (id, name) VALUES ($1, $2)`, businessID, "Test Shop")
	if err != nil {
		t.Fatalf("Failed to create test business: %v", err)
	}
	return businessID
}

// SetupTestCustomer creates a customer with the given running debt total.
func SetupTestCustomer(t *testing.T, db *TestDB, businessID uuid.UUID, totalDebt float64) uuid.UUID {
	t.Helper()

	customerID := uuid.New()
	_, err := db.Pool.Exec(context.Background(),
		`INSERT INTO customers (id, business_id, name, total_debt) VALUES ($1, $2, $3, $4)`,
		customerID, businessID, "Test Customer", totalDebt)
	if err != nil {
		t.Fatalf("Failed to create test customer: %v", err)
	}
	return customerID
}
