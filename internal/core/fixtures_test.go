package core

import (
	"time"

	"github.com/google/uuid"
)

// contact is the record type most engine tests run against.
type contact struct {
	ContactID   uuid.UUID
	ContactCode string
	Name        string
	Email       *string
	Phone       *string
	Note        *string `db:"contact_note"`
	Birthday    *time.Time
	Secret      string `db:"-"`
	IsDeleted   bool

	internal int
}

func (contact) Declare() Declaration {
	return Declaration{
		Collection: "contact",
		Fields: []FieldRules{
			{Field: "ContactCode", Rules: []Rule{GeneratedCode{Prefix: "CT"}, MaxLength{Max: 20}}},
			{Field: "Name", Rules: []Rule{
				Required{Message: "Tên không được để trống"},
				MaxLength{Max: 10},
				Searchable{},
			}},
			{Field: "Email", Rules: []Rule{
				Unique{Message: "Email đã tồn tại"},
				EmailFormat{},
				Searchable{},
			}},
			{Field: "Phone", Rules: []Rule{
				PhoneDigits{Message: "Số điện thoại sai"},
				Unique{},
			}},
			{Field: "Note", Rules: []Rule{MaxLength{Max: 5, Message: "Ghi chú quá dài"}}},
		},
	}
}

// tag has no declaration, no code and no deletion flag.
type tag struct {
	TagId uuid.UUID
	Label string
}
