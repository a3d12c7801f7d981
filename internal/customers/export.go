package customers

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/ngaotu/misa-crm-backend/internal/core"
)

// ExportHeader is the fixed column order of exported files.
var ExportHeader = []string{
	ColCode,
	ColFullName,
	ColEmail,
	ColPhone,
	ColType,
	ColAddress,
	ColTaxCode,
	ColLastPurchaseDate,
	ColPurchasedItems,
	ColLatestPurchasedItems,
}

// ExportFileName names an export produced at now.
func ExportFileName(now time.Time) string {
	return fmt.Sprintf("MISA_CRM_Customers_%s.csv", now.Format("20060102_150405"))
}

// ExportFileName names an export produced now by the service's clock.
func (s *Service) ExportFileName() string {
	return ExportFileName(s.clock.Now())
}

// ExportCSV writes the non-deleted customers among ids to w as a BOM-prefixed
// CSV file. Unknown and deleted ids are skipped.
func (s *Service) ExportCSV(ctx context.Context, ids []uuid.UUID, w io.Writer) error {
	list, err := s.store.GetByIDs(ctx, ids)
	if err != nil {
		return err
	}
	return WriteCSV(w, list)
}

// WriteCSV renders customers in export format.
func WriteCSV(w io.Writer, list []Customer) error {
	cw, err := core.NewCSVWriter(w)
	if err != nil {
		return fmt.Errorf("write bom: %w", err)
	}
	if err := cw.Write(ExportHeader); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for i := range list {
		if err := cw.Write(exportRow(&list[i])); err != nil {
			return fmt.Errorf("write row %d: %w", i+1, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func exportRow(c *Customer) []string {
	return []string{
		c.CustomerCode,
		c.CustomerFullName,
		deref(c.CustomerEmail),
		keepAsText(c.CustomerPhone),
		deref(c.CustomerType),
		deref(c.CustomerShippingAddr),
		keepAsText(c.CustomerTaxCode),
		core.FormatDate(c.CustomerLastPurchaseDate),
		deref(c.CustomerPurchasedItems),
		deref(c.CustomerLastestPurchasedItems),
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// keepAsText prefixes a non-empty value with a comma so spreadsheet tools
// keep leading zeros. Import strips it again.
func keepAsText(s *string) string {
	if s == nil || *s == "" {
		return ""
	}
	return "," + *s
}
