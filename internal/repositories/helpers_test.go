package repositories_test

import (
	"context"

	contextutil "cleanmarket/internal/context"

	"gorm.io/gorm"
)

func contextWithTx(ctx context.Context, tx *gorm.DB) context.Context {
	return contextutil.WithTransaction(ctx, tx)
}
