package customers

import (
	"context"

	"github.com/google/uuid"

	"github.com/ngaotu/misa-crm-backend/internal/core"
)

const (
	assignTypeSQL = `UPDATE customer SET customer_type = $1
WHERE customer_id = ANY($2) AND is_deleted = false`

	bulkDeleteSQL = `UPDATE customer SET is_deleted = true
WHERE customer_id = ANY($1) AND is_deleted = false`
)

// Repository is the generic customer repository plus the bulk statements.
type Repository struct {
	*core.Repository[Customer]
}

// NewRepository creates a customer repository over db.
func NewRepository(db core.DBTX, codes *core.CodeGenerator) (*Repository, error) {
	base, err := core.NewRepository[Customer](db, codes)
	if err != nil {
		return nil, err
	}
	return &Repository{Repository: base}, nil
}

// AssignCustomerType sets the type of every non-deleted customer in ids and
// returns how many rows changed. A nil type clears it.
func (r *Repository) AssignCustomerType(ctx context.Context, ids []uuid.UUID, customerType *string) (int64, error) {
	tag, err := r.DB().Exec(ctx, assignTypeSQL, customerType, ids)
	if err != nil {
		return 0, core.FromStore("assign customer type", err)
	}
	return tag.RowsAffected(), nil
}

// BulkDelete soft-deletes every non-deleted customer in ids and returns how
// many rows changed.
func (r *Repository) BulkDelete(ctx context.Context, ids []uuid.UUID) (int64, error) {
	tag, err := r.DB().Exec(ctx, bulkDeleteSQL, ids)
	if err != nil {
		return 0, core.FromStore("bulk delete customers", err)
	}
	return tag.RowsAffected(), nil
}
