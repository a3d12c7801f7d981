// Package customers holds the customer record type and the operations that
// only make sense for customers: bulk type assignment, bulk delete, CSV
// import and CSV export.
package customers

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ngaotu/misa-crm-backend/internal/core"
)

// CodePrefix starts every generated customer code.
const CodePrefix = "KH"

// Customer is one row of the customer collection.
type Customer struct {
	CustomerID                    uuid.UUID  `json:"customerId"`
	CustomerCode                  string     `json:"customerCode"`
	CustomerFullName              string     `json:"customerFullName"`
	CustomerTaxCode               *string    `json:"customerTaxCode"`
	CustomerEmail                 *string    `json:"customerEmail"`
	CustomerPhone                 *string    `json:"customerPhone"`
	CustomerType                  *string    `json:"customerType"`
	CustomerShippingAddr          *string    `json:"customerShippingAddr"`
	CustomerLastPurchaseDate      *time.Time `json:"customerLastPurchaseDate"`
	CustomerPurchasedItems        *string    `json:"customerPurchasedItems"`
	CustomerLastestPurchasedItems *string    `json:"customerLastestPurchasedItems"`
	IsDeleted                     bool       `json:"isDeleted"`
	CustomerAvatar                *string    `json:"customerAvatar"`
}

// Declare states the customer's storage and field rules.
func (Customer) Declare() core.Declaration {
	return core.Declaration{
		Collection: "customer",
		Key:        "CustomerID",
		Fields: []core.FieldRules{
			{Field: "CustomerCode", Rules: []core.Rule{
				core.GeneratedCode{Prefix: CodePrefix},
				core.MaxLength{Max: 20},
				core.Searchable{},
			}},
			{Field: "CustomerFullName", Rules: []core.Rule{
				core.Required{Message: "Tên khách hàng không được để trống"},
				core.MaxLength{Max: 128, Message: "Tên khách hàng không được vượt quá 128 ký tự"},
				core.Searchable{},
			}},
			{Field: "CustomerEmail", Rules: []core.Rule{
				core.EmailFormat{Message: "Email không đúng định dạng"},
				core.Unique{Message: "Email khách hàng đã tồn tại trong hệ thống"},
				core.Searchable{},
			}},
			{Field: "CustomerPhone", Rules: []core.Rule{
				core.PhoneDigits{Message: "Số điện thoại phải có 10-11 chữ số"},
				core.Unique{Message: "Số điện thoại khách hàng đã tồn tại trong hệ thống"},
				core.Searchable{},
			}},
			{Field: "CustomerShippingAddr", Rules: []core.Rule{
				core.MaxLength{Max: 255, Message: "Địa chỉ giao hàng không được vượt quá 255 ký tự"},
			}},
		},
	}
}

// AllowedTypes are the customer type codes accepted on import and bulk
// assignment, in display order.
var AllowedTypes = []string{"VIP", "NBH01", "LKHA"}

// InvalidTypeMessage is reported for a customer type outside AllowedTypes.
var InvalidTypeMessage = "Loại khách hàng không hợp lệ. Chỉ chấp nhận: " +
	strings.Join(AllowedTypes, ", ") + " hoặc để trống"

// IsValidType reports whether t is blank or, once trimmed, one of
// AllowedTypes. The comparison is case-sensitive.
func IsValidType(t *string) bool {
	if t == nil {
		return true
	}
	v := strings.TrimSpace(*t)
	if v == "" {
		return true
	}
	for _, allowed := range AllowedTypes {
		if v == allowed {
			return true
		}
	}
	return false
}
