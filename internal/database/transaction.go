package database

import (
	"context"

	"gorm.io/gorm"
)

// WithTransactionResult runs fn in a transaction and returns its result once
// the transaction has committed. Any error from fn rolls everything back.
func WithTransactionResult[T any](ctx context.Context, db Database, fn func(tx *gorm.DB) (T, error)) (T, error) {
	var result T
	err := db.Session(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		result, err = fn(tx)
		return err
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return result, nil
}
