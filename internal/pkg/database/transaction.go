package database

import (
	"context"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

type txKey struct{}

// Transaction executes fn within a database transaction; the ctx passed to fn
// carries the transaction for Conn. Nested calls reuse the outer transaction.
func (db *DB) Transaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := TransactionFromContext(ctx); ok {
		return fn(ctx)
	}

	return db.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := fn(ContextWithTransaction(ctx, tx)); err != nil {
			db.logger.WithContext(ctx).Debug("transaction rolled back", zap.Error(err))
			return err
		}
		return nil
	})
}

// ContextWithTransaction binds tx to ctx
func ContextWithTransaction(ctx context.Context, tx *gorm.DB) context.Context {
	return context.WithValue(ctx, txKey{}, tx)
}

// TransactionFromContext extracts the transaction bound to ctx
func TransactionFromContext(ctx context.Context) (*gorm.DB, bool) {
	tx, ok := ctx.Value(txKey{}).(*gorm.DB)
	return tx, ok
}
