package customers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/ngaotu/misa-crm-backend/internal/core"
)

// CSV column headers shared by import and export.
const (
	ColCode                 = "Mã khách hàng"
	ColFullName             = "Họ và tên"
	ColEmail                = "Email"
	ColPhone                = "Số điện thoại"
	ColType                 = "Loại khách hàng"
	ColAddress              = "Địa chỉ"
	ColTaxCode              = "Mã số thuế"
	ColLastPurchaseDate     = "Ngày mua gần nhất"
	ColPurchasedItems       = "Hàng hóa đã mua"
	ColLatestPurchasedItems = "Hàng hóa mua gần nhất"
)

// ImportRow is one data row as read from the file, before cleaning.
type ImportRow struct {
	RowNumber            int        `json:"rowNumber"`
	Code                 *string    `json:"code,omitempty"`
	FullName             *string    `json:"fullName"`
	Phone                *string    `json:"phone"`
	Email                *string    `json:"email"`
	Address              *string    `json:"address"`
	CustomerType         *string    `json:"customerType"`
	TaxCode              *string    `json:"taxCode"`
	LastPurchaseDate     *time.Time `json:"lastPurchaseDate"`
	PurchasedItems       *string    `json:"purchasedItems"`
	LatestPurchasedItems *string    `json:"latestPurchasedItems"`
}

// ImportError reports why one row was not stored.
type ImportError struct {
	RowNumber    int       `json:"rowNumber"`
	ErrorMessage string    `json:"errorMessage"`
	OriginalRow  ImportRow `json:"originalRow"`
}

// ImportResult tallies an import. SuccessCount + ErrorCount == TotalRows.
type ImportResult struct {
	TotalRows    int           `json:"totalRows"`
	SuccessCount int           `json:"successCount"`
	ErrorCount   int           `json:"errorCount"`
	Errors       []ImportError `json:"errors"`
}

// Summary is the one-line outcome shown to the user.
func (r *ImportResult) Summary() string {
	return fmt.Sprintf("Thành công: %d/%d. Lỗi: %d bản ghi.", r.SuccessCount, r.TotalRows, r.ErrorCount)
}

// MarshalJSON includes the summary alongside the counts.
func (r *ImportResult) MarshalJSON() ([]byte, error) {
	type plain ImportResult
	return json.Marshal(struct {
		*plain
		Summary string `json:"summary"`
	}{(*plain)(r), r.Summary()})
}

func (r *ImportResult) fail(row ImportRow, msg string) {
	r.ErrorCount++
	r.Errors = append(r.Errors, ImportError{RowNumber: row.RowNumber, ErrorMessage: msg, OriginalRow: row})
}

// ImportCSV reads customers from r and inserts each data row on its own.
// A failing row is recorded and the import moves on; the file as a whole
// only fails when it cannot be read or ctx ends, in which case the partial
// result is returned with the error. fileName is used for logging only.
func (s *Service) ImportCSV(ctx context.Context, r io.Reader, fileName string) (*ImportResult, error) {
	if s.limiter != nil {
		if err := s.limiter.Acquire(ctx); err != nil {
			return nil, err
		}
		defer s.limiter.Release()
	}

	start := time.Now()
	defer func() { importDuration.Observe(time.Since(start).Seconds()) }()

	result := &ImportResult{Errors: []ImportError{}}
	reader := core.NewCSVReader(r)

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return result, nil
	}
	if err != nil {
		return result, fmt.Errorf("invalid csv header: %w", err)
	}
	idx := core.MakeHeaderIndex(header)

	rowNumber := 1
	for {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return result, fmt.Errorf("invalid csv at row %d: %w", rowNumber+1, err)
		}

		rowNumber++
		result.TotalRows++

		row := readRow(idx, record, rowNumber)
		if msg := s.importRow(ctx, row); msg != "" {
			result.fail(row, msg)
			importRowsTotal.WithLabelValues("error").Inc()
			s.logger.DebugContext(ctx, "import row rejected", "row", rowNumber, "reason", msg)
			continue
		}
		result.SuccessCount++
		importRowsTotal.WithLabelValues("success").Inc()
	}

	s.logger.InfoContext(ctx, "import finished",
		"file", fileName,
		"total", result.TotalRows,
		"success", result.SuccessCount,
		"errors", result.ErrorCount,
		"duration", time.Since(start),
	)
	core.LogAudit(ctx, s.logger, core.AuditEntry{
		Action:       core.ActionImport,
		Collection:   "customer",
		RowsAffected: int64(result.SuccessCount),
		Detail:       fileName + ": " + result.Summary(),
	})
	return result, nil
}

// importRow stores one row and returns "" or the reason it was rejected.
func (s *Service) importRow(ctx context.Context, row ImportRow) string {
	if !IsValidType(row.CustomerType) {
		return InvalidTypeMessage
	}

	rec := row.toCustomer()
	if _, err := s.Insert(ctx, rec); err != nil {
		switch core.KindOf(err) {
		case core.KindValidation, core.KindConflict:
			return err.Error()
		default:
			s.logger.ErrorContext(ctx, "import row failed", "row", row.RowNumber, "error", err)
			return "Lỗi hệ thống: " + err.Error()
		}
	}
	return ""
}

func readRow(idx core.HeaderIndex, record []string, rowNumber int) ImportRow {
	return ImportRow{
		RowNumber:            rowNumber,
		Code:                 idx.Get(record, ColCode),
		FullName:             idx.Get(record, ColFullName),
		Phone:                idx.Get(record, ColPhone),
		Email:                idx.Get(record, ColEmail),
		Address:              idx.Get(record, ColAddress),
		CustomerType:         idx.Get(record, ColType),
		TaxCode:              idx.Get(record, ColTaxCode),
		LastPurchaseDate:     core.ParseDate(idx.Get(record, ColLastPurchaseDate)),
		PurchasedItems:       idx.Get(record, ColPurchasedItems),
		LatestPurchasedItems: idx.Get(record, ColLatestPurchasedItems),
	}
}

// toCustomer builds the record to insert. The file's code column is never
// copied; every imported customer gets a generated code.
func (row ImportRow) toCustomer() *Customer {
	var fullName string
	if row.FullName != nil {
		fullName = strings.TrimSpace(*row.FullName)
	}
	return &Customer{
		CustomerFullName:              fullName,
		CustomerPhone:                 core.CleanString(row.Phone),
		CustomerEmail:                 core.CleanString(row.Email),
		CustomerShippingAddr:          core.CleanString(row.Address),
		CustomerType:                  core.CleanString(row.CustomerType),
		CustomerTaxCode:               core.CleanString(row.TaxCode),
		CustomerLastPurchaseDate:      row.LastPurchaseDate,
		CustomerPurchasedItems:        core.CleanString(row.PurchasedItems),
		CustomerLastestPurchasedItems: core.CleanString(row.LatestPurchasedItems),
	}
}
