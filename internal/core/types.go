package core

import (
	"context"
	"reflect"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX is the interface for database operations.
// Satisfied by both *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
	SendBatch(context.Context, *pgx.Batch) pgx.BatchResults
}

// Rule is one declarative constraint attached to a field.
// The set of variants is closed; see the types below.
type Rule interface {
	rule()
}

// Required fails when the value is nil or blank after trimming.
type Required struct{ Message string }

// EmailFormat fails when a non-blank value is not a bare local@domain address.
type EmailFormat struct{ Message string }

// PhoneDigits fails unless a non-blank value holds 10 or 11 digits.
type PhoneDigits struct{ Message string }

// MaxLength fails when a non-blank value is longer than Max characters.
type MaxLength struct {
	Max     int
	Message string
}

// Unique marks a field whose value may appear on only one record.
type Unique struct{ Message string }

// GeneratedCode marks the field that receives PREFIX+yyyyMM+NNNNNN on insert.
type GeneratedCode struct{ Prefix string }

// Searchable includes the field in free-text paged search.
type Searchable struct{}

func (Required) rule()      {}
func (EmailFormat) rule()   {}
func (PhoneDigits) rule()   {}
func (MaxLength) rule()     {}
func (Unique) rule()        {}
func (GeneratedCode) rule() {}
func (Searchable) rule()    {}

// FieldRules attaches an optional column override and an ordered rule list
// to one struct field.
type FieldRules struct {
	Field  string
	Column string
	Rules  []Rule
}

// Declaration is what a record type states about itself. Every part is
// optional; anything left out is derived from the struct.
type Declaration struct {
	Collection string // defaults to the lower-cased type name
	Key        string // defaults to the first field ending in "Id"/"ID"
	DeleteFlag string // defaults to a bool field named IsDeleted
	Fields     []FieldRules
}

// Declarer is implemented by persisted record types.
type Declarer interface {
	Declare() Declaration
}

// Field is one persisted struct field.
type Field struct {
	Name   string
	Column string
	Index  []int
	Type   reflect.Type
	Rules  []Rule
}

// CodeField identifies the generated-code field of a type.
type CodeField struct {
	Field  string
	Column string
	Prefix string
}

// Descriptor is the derived, immutable metadata for one record type.
type Descriptor struct {
	Type       reflect.Type
	Collection string
	Fields     []Field
	Key        string
	Unique     []string
	Code       *CodeField
	DeleteFlag string
	Searchable []string

	byName map[string]int
}

// Field returns the named field.
func (d *Descriptor) Field(name string) (Field, bool) {
	i, ok := d.byName[name]
	if !ok {
		return Field{}, false
	}
	return d.Fields[i], true
}

// Column returns the column for a field name.
func (d *Descriptor) Column(name string) (string, bool) {
	f, ok := d.Field(name)
	return f.Column, ok
}

// KeyColumn returns the primary-key column.
func (d *Descriptor) KeyColumn() string {
	col, _ := d.Column(d.Key)
	return col
}

// DeleteColumn returns the deletion-flag column, or "" when the type has none.
func (d *Descriptor) DeleteColumn() string {
	if d.DeleteFlag == "" {
		return ""
	}
	col, _ := d.Column(d.DeleteFlag)
	return col
}

// Columns returns all columns in declaration order.
func (d *Descriptor) Columns() []string {
	cols := make([]string, len(d.Fields))
	for i, f := range d.Fields {
		cols[i] = f.Column
	}
	return cols
}

// DefaultSortField is the natural ordering key: the code field, else the key.
func (d *Descriptor) DefaultSortField() string {
	if d.Code != nil {
		return d.Code.Field
	}
	return d.Key
}

// ResolveField accepts either a field name or a column name (case-insensitive)
// and returns the field name.
func (d *Descriptor) ResolveField(nameOrColumn string) (string, bool) {
	if _, ok := d.byName[nameOrColumn]; ok {
		return nameOrColumn, true
	}
	for _, f := range d.Fields {
		if strings.EqualFold(f.Name, nameOrColumn) || strings.EqualFold(f.Column, nameOrColumn) {
			return f.Name, true
		}
	}
	return "", false
}

// fieldForConstraint finds the unique or code field a constraint guards, by
// matching the longest column name the constraint name ends with
// (ux_customer_email guards customer_email).
func (d *Descriptor) fieldForConstraint(constraint string) (Field, bool) {
	candidates := append([]string{}, d.Unique...)
	if d.Code != nil {
		candidates = append(candidates, d.Code.Field)
	}

	var best Field
	found := false
	for _, name := range candidates {
		f, ok := d.Field(name)
		if !ok {
			continue
		}
		if constraint != f.Column && !strings.HasSuffix(constraint, "_"+f.Column) {
			continue
		}
		if !found || len(f.Column) > len(best.Column) {
			best, found = f, true
		}
	}
	return best, found
}
