package customers

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ngaotu/misa-crm-backend/internal/clock"
	"github.com/ngaotu/misa-crm-backend/internal/core"
)

// memStore is an in-memory Store with the same observable behaviour as the
// PostgreSQL repository.
type memStore struct {
	rows      []Customer
	codes     *core.CodeGenerator
	insertErr error
}

func newMemStore() *memStore {
	clk := clock.NewMockClock(time.Date(2024, 11, 15, 9, 0, 0, 0, time.UTC))
	return &memStore{codes: core.NewCodeGenerator(clk)}
}

func (m *memStore) Descriptor() *core.Descriptor {
	return core.MustDescribe[Customer]()
}

func (m *memStore) find(id uuid.UUID) int {
	for i := range m.rows {
		if m.rows[i].CustomerID == id {
			return i
		}
	}
	return -1
}

func (m *memStore) GetAll(context.Context) ([]Customer, error) {
	out := []Customer{}
	for _, c := range m.rows {
		if !c.IsDeleted {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *memStore) GetByID(_ context.Context, id uuid.UUID) (*Customer, error) {
	i := m.find(id)
	if i < 0 {
		return nil, core.NotFound("Entity with Id " + id.String() + " not found.")
	}
	c := m.rows[i]
	return &c, nil
}

func (m *memStore) GetByIDs(_ context.Context, ids []uuid.UUID) ([]Customer, error) {
	out := []Customer{}
	for _, id := range ids {
		if i := m.find(id); i >= 0 && !m.rows[i].IsDeleted {
			out = append(out, m.rows[i])
		}
	}
	return out, nil
}

func (m *memStore) Insert(ctx context.Context, rec *Customer) (int64, error) {
	if m.insertErr != nil {
		return 0, m.insertErr
	}
	if strings.TrimSpace(rec.CustomerCode) == "" {
		code, err := m.GenerateCode(ctx)
		if err != nil {
			return 0, err
		}
		rec.CustomerCode = code
	}
	rec.CustomerID = uuid.New()
	m.rows = append(m.rows, *rec)
	return 1, nil
}

func (m *memStore) Update(_ context.Context, id uuid.UUID, rec *Customer) (int64, error) {
	i := m.find(id)
	if i < 0 {
		return 0, nil
	}
	updated := *rec
	updated.CustomerID = id
	updated.CustomerCode = m.rows[i].CustomerCode
	m.rows[i] = updated
	return 1, nil
}

func (m *memStore) Delete(_ context.Context, id uuid.UUID) (int64, error) {
	i := m.find(id)
	if i < 0 {
		return 0, nil
	}
	m.rows[i].IsDeleted = true
	return 1, nil
}

func (m *memStore) ExistsByProperty(_ context.Context, field string, value any, excludeID *uuid.UUID) (bool, error) {
	for _, c := range m.rows {
		if excludeID != nil && c.CustomerID == *excludeID {
			continue
		}
		var got *string
		switch field {
		case "CustomerEmail":
			got = c.CustomerEmail
		case "CustomerPhone":
			got = c.CustomerPhone
		case "CustomerCode":
			got = &c.CustomerCode
		default:
			return false, nil
		}
		if got != nil && *got == value {
			return true, nil
		}
	}
	return false, nil
}

func (m *memStore) GenerateCode(ctx context.Context) (string, error) {
	return m.codes.Generate(ctx, m, *m.Descriptor().Code)
}

func (m *memStore) MaxCode(_ context.Context, pattern string) (string, bool, error) {
	prefix := strings.TrimSuffix(pattern, "%")
	best, found := "", false
	for _, c := range m.rows {
		if strings.HasPrefix(c.CustomerCode, prefix) && c.CustomerCode > best {
			best, found = c.CustomerCode, true
		}
	}
	return best, found, nil
}

func (m *memStore) Page(ctx context.Context, req core.PagedRequest) (core.PagedResult[Customer], error) {
	req = req.Normalize(m.Descriptor())
	all, _ := m.GetAll(ctx)
	result := core.PagedResult[Customer]{Items: []Customer{}, TotalRecords: int64(len(all)), CurrentPage: req.Page, PageSize: req.PageSize}
	start := req.Offset()
	for i := start; i < len(all) && i < start+req.PageSize; i++ {
		result.Items = append(result.Items, all[i])
	}
	return result, nil
}

func (m *memStore) AssignCustomerType(_ context.Context, ids []uuid.UUID, customerType *string) (int64, error) {
	var n int64
	for _, id := range ids {
		if i := m.find(id); i >= 0 && !m.rows[i].IsDeleted {
			m.rows[i].CustomerType = customerType
			n++
		}
	}
	return n, nil
}

func (m *memStore) BulkDelete(_ context.Context, ids []uuid.UUID) (int64, error) {
	var n int64
	for _, id := range ids {
		if i := m.find(id); i >= 0 && !m.rows[i].IsDeleted {
			m.rows[i].IsDeleted = true
			n++
		}
	}
	return n, nil
}
