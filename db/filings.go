// ABOUTME: Tax filing payment status persistence
// ABOUTME: Transaction helpers let invoice payment update the filing atomically
package db

import (
	"context"
	"errors"

	"github.com/harperreed/taxdesk/kv"
	"github.com/harperreed/taxdesk/models"
)

// FilingRepository stores tax-filing:<userId>:<year>.
type FilingRepository struct {
	store kv.Store
}

// NewFilingRepository creates a new filing repository.
func NewFilingRepository(store kv.Store) *FilingRepository {
	return &FilingRepository{store: store}
}

func (r *FilingRepository) Get(ctx context.Context, userID string, year int) (*models.TaxFiling, error) {
	var f models.TaxFiling
	if err := getJSON(ctx, r.store, FilingKey(userID, year), &f); err != nil {
		return nil, err
	}
	return &f, nil
}

// GetFilingTx reads a filing inside a transaction, returning an empty record
// when none exists yet.
func GetFilingTx(tx kv.Txn, userID string, year int) (*models.TaxFiling, error) {
	var f models.TaxFiling
	err := getJSONTx(tx, FilingKey(userID, year), &f)
	if errors.Is(err, models.ErrNotFound) {
		return models.NewTaxFiling(userID, year), nil
	}
	if err != nil {
		return nil, err
	}
	return &f, nil
}

// PutFilingTx writes a filing inside a transaction.
func PutFilingTx(tx kv.Txn, f *models.TaxFiling) error {
	return putJSONTx(tx, FilingKey(f.UserID, f.Year), f)
}
