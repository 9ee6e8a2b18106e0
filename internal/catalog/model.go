// Package catalog holds the purchasable credit packages and priced
// resources. Records are immutable once created; relations to the ledger
// are by identifier only.
package catalog

import (
	"errors"
	"time"
)

var (
	// ErrPackageNotFound indicates the credit package does not exist.
	ErrPackageNotFound = errors.New("credit package not found")

	// ErrResourceNotFound indicates the resource does not exist.
	ErrResourceNotFound = errors.New("resource not found")

	// ErrPackageExists indicates the package identifier is already taken.
	ErrPackageExists = errors.New("credit package already exists")

	// ErrUnsupportedCurrency indicates the currency code is outside the supported set.
	ErrUnsupportedCurrency = errors.New("unsupported currency")
)

// CreditPackage is a purchasable credit bundle priced in a minor currency unit.
type CreditPackage struct {
	ID         string
	Credits    int64
	UnitAmount int64
	Currency   string
	CreatedAt  time.Time
}

// Resource is a priced content item. Cost zero means freely accessible.
type Resource struct {
	ID          string
	Cost        int64
	Name        string
	Description string
	Title       string
	Content     string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
