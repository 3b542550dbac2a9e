// ABOUTME: Invoice persistence with an atomic counter and per-user index
// ABOUTME: Numbering, the invoice record, and the index change in one transaction
package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/harperreed/taxdesk/kv"
	"github.com/harperreed/taxdesk/models"
)

// InvoiceRepository stores invoices under invoice:<number>.
type InvoiceRepository struct {
	store kv.Store
}

// NewInvoiceRepository creates a new invoice repository.
func NewInvoiceRepository(store kv.Store) *InvoiceRepository {
	return &InvoiceRepository{store: store}
}

// Create assigns the next invoice number and persists the invoice built from
// it together with the owner's index entry. build may run more than once if
// the store retries the transaction.
func (r *InvoiceRepository) Create(ctx context.Context, build func(number string) (*models.Invoice, error)) (*models.Invoice, error) {
	var created *models.Invoice
	err := r.store.Update(ctx, func(tx kv.Txn) error {
		n, err := kv.IncrementTx(tx, InvoiceCounterKey)
		if err != nil {
			return fmt.Errorf("failed to advance invoice counter: %w", err)
		}

		inv, err := build(models.FormatInvoiceNumber(n))
		if err != nil {
			return err
		}
		if err := PutInvoiceTx(tx, inv); err != nil {
			return err
		}
		if err := appendUserInvoiceTx(tx, inv.UserID, inv.InvoiceNumber); err != nil {
			return err
		}
		created = inv
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// Get retrieves an invoice by number.
func (r *InvoiceRepository) Get(ctx context.Context, number string) (*models.Invoice, error) {
	var inv models.Invoice
	if err := getJSON(ctx, r.store, InvoiceKey(number), &inv); err != nil {
		return nil, err
	}
	return &inv, nil
}

// Update applies fn to the stored invoice inside a transaction. fn receives
// the transaction so related records can change atomically with the invoice;
// the invoice is rewritten only when fn reports a change.
func (r *InvoiceRepository) Update(ctx context.Context, number string, fn func(tx kv.Txn, inv *models.Invoice) (bool, error)) (*models.Invoice, error) {
	var result *models.Invoice
	err := r.store.Update(ctx, func(tx kv.Txn) error {
		inv, err := GetInvoiceTx(tx, number)
		if err != nil {
			return err
		}
		changed, err := fn(tx, inv)
		if err != nil {
			return err
		}
		if changed {
			if err := PutInvoiceTx(tx, inv); err != nil {
				return err
			}
		}
		result = inv
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ListForUser resolves the owner's index. Numbers that no longer resolve are skipped.
func (r *InvoiceRepository) ListForUser(ctx context.Context, userID string) ([]*models.Invoice, error) {
	numbers, err := r.userInvoiceNumbers(ctx, userID)
	if err != nil {
		return nil, err
	}

	invoices := make([]*models.Invoice, 0, len(numbers))
	for _, n := range numbers {
		inv, err := r.Get(ctx, n)
		if errors.Is(err, models.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		invoices = append(invoices, inv)
	}
	sortNewestFirst(invoices)
	return invoices, nil
}

// ListAll scans every invoice, newest first.
func (r *InvoiceRepository) ListAll(ctx context.Context) ([]*models.Invoice, error) {
	entries, err := r.store.Scan(ctx, InvoicePrefix)
	if err != nil {
		return nil, fmt.Errorf("failed to scan invoices: %w", err)
	}

	invoices := make([]*models.Invoice, 0, len(entries))
	for _, e := range entries {
		if e.Key == InvoiceCounterKey {
			continue
		}
		var inv models.Invoice
		if err := json.Unmarshal(e.Value, &inv); err != nil {
			return nil, fmt.Errorf("failed to decode %s: %w", e.Key, err)
		}
		invoices = append(invoices, &inv)
	}
	sortNewestFirst(invoices)
	return invoices, nil
}

func (r *InvoiceRepository) userInvoiceNumbers(ctx context.Context, userID string) ([]string, error) {
	var numbers []string
	err := getJSON(ctx, r.store, UserInvoicesKey(userID), &numbers)
	if errors.Is(err, models.ErrNotFound) {
		return nil, nil
	}
	return numbers, err
}

// GetInvoiceTx reads an invoice inside a transaction.
func GetInvoiceTx(tx kv.Txn, number string) (*models.Invoice, error) {
	var inv models.Invoice
	if err := getJSONTx(tx, InvoiceKey(number), &inv); err != nil {
		return nil, err
	}
	return &inv, nil
}

// PutInvoiceTx writes an invoice inside a transaction.
func PutInvoiceTx(tx kv.Txn, inv *models.Invoice) error {
	return putJSONTx(tx, InvoiceKey(inv.InvoiceNumber), inv)
}

func appendUserInvoiceTx(tx kv.Txn, userID, number string) error {
	var numbers []string
	err := getJSONTx(tx, UserInvoicesKey(userID), &numbers)
	if err != nil && !errors.Is(err, models.ErrNotFound) {
		return err
	}
	for _, n := range numbers {
		if n == number {
			return nil
		}
	}
	return putJSONTx(tx, UserInvoicesKey(userID), append(numbers, number))
}

func sortNewestFirst(invoices []*models.Invoice) {
	sort.SliceStable(invoices, func(i, j int) bool {
		a, b := invoices[i], invoices[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.InvoiceNumber > b.InvoiceNumber
	})
}
