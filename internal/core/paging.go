package core

import (
	"fmt"
	"strings"
)

// Paging bounds.
const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

// Sort directions.
const (
	SortAsc  = "ASC"
	SortDesc = "DESC"
)

// PagedRequest is the input of a paged, sorted, searched listing.
type PagedRequest struct {
	Search        string `json:"search,omitempty"`
	Page          int    `json:"page"`
	PageSize      int    `json:"pageSize"`
	SortBy        string `json:"sortBy,omitempty"`
	SortDirection string `json:"sortDirection,omitempty"`
}

// Normalize applies defaults and bounds. SortBy is resolved to a field name of
// d (field or column spelling accepted); unknown names fall back to the
// type's natural key.
func (r PagedRequest) Normalize(d *Descriptor) PagedRequest {
	r.Search = strings.TrimSpace(r.Search)

	if r.Page < 1 {
		r.Page = 1
	}
	switch {
	case r.PageSize == 0:
		r.PageSize = DefaultPageSize
	case r.PageSize < 1:
		r.PageSize = 1
	case r.PageSize > MaxPageSize:
		r.PageSize = MaxPageSize
	}

	if field, ok := d.ResolveField(strings.TrimSpace(r.SortBy)); ok {
		r.SortBy = field
	} else {
		r.SortBy = d.DefaultSortField()
	}

	if strings.EqualFold(strings.TrimSpace(r.SortDirection), SortAsc) {
		r.SortDirection = SortAsc
	} else {
		r.SortDirection = SortDesc
	}
	return r
}

// Offset is the number of rows skipped before this page.
func (r PagedRequest) Offset() int {
	return (r.Page - 1) * r.PageSize
}

// PagedResult is one page of records plus the total matching count.
type PagedResult[T any] struct {
	Items        []T   `json:"items"`
	TotalRecords int64 `json:"totalRecords"`
	CurrentPage  int   `json:"currentPage"`
	PageSize     int   `json:"pageSize"`
}

// TotalPages is ceil(TotalRecords / PageSize).
func (p PagedResult[T]) TotalPages() int {
	if p.PageSize <= 0 {
		return 0
	}
	return int((p.TotalRecords + int64(p.PageSize) - 1) / int64(p.PageSize))
}

// HasPrevious reports whether a page precedes this one.
func (p PagedResult[T]) HasPrevious() bool {
	return p.CurrentPage > 1
}

// HasNext reports whether a page follows this one.
func (p PagedResult[T]) HasNext() bool {
	return p.CurrentPage < p.TotalPages()
}

// pageQueries builds the count and page statements for a normalized request.
// Both share one WHERE clause and argument list; the page statement appends
// LIMIT and OFFSET parameters.
func pageQueries(d *Descriptor, req PagedRequest) (countSQL, pageSQL string, countArgs, pageArgs []any) {
	wb := NewWhereBuilder()
	if col := d.DeleteColumn(); col != "" {
		wb.Add(col, false)
	}
	searchCols := make([]string, 0, len(d.Searchable))
	for _, name := range d.Searchable {
		col, _ := d.Column(name)
		searchCols = append(searchCols, col)
	}
	wb.AddSearch(req.Search, searchCols)
	where, args := wb.Build()

	table := quoteIdentifier(d.Collection)
	countSQL = "SELECT COUNT(*) FROM " + table + where

	sortCol, _ := d.Column(req.SortBy)
	order := quoteIdentifier(sortCol) + " " + req.SortDirection
	if req.SortBy != d.Key {
		order += ", " + quoteIdentifier(d.KeyColumn()) + " " + req.SortDirection
	}

	limitIdx := wb.NextArgIndex()
	pageSQL = fmt.Sprintf("SELECT %s FROM %s%s ORDER BY %s LIMIT $%d OFFSET $%d",
		strings.Join(quoteColumns(d.Columns()), ", "),
		table, where, order, limitIdx, limitIdx+1)

	pageArgs = append(append([]any{}, args...), req.PageSize, req.Offset())
	return countSQL, pageSQL, args, pageArgs
}

// WhereBuilder assembles a parameterized WHERE clause.
type WhereBuilder struct {
	conditions []string
	args       []any
	argIndex   int
}

// NewWhereBuilder returns an empty builder whose first placeholder is $1.
func NewWhereBuilder() *WhereBuilder {
	return &WhereBuilder{argIndex: 1}
}

// Add appends an equality condition on column.
func (wb *WhereBuilder) Add(column string, value any) {
	wb.conditions = append(wb.conditions, fmt.Sprintf("%s = $%d", quoteIdentifier(column), wb.argIndex))
	wb.args = append(wb.args, value)
	wb.argIndex++
}

// AddSearch appends a case-insensitive substring match of term against any
// of columns. A blank term or empty column list adds nothing.
func (wb *WhereBuilder) AddSearch(term string, columns []string) {
	term = strings.TrimSpace(term)
	if term == "" || len(columns) == 0 {
		return
	}
	ors := make([]string, len(columns))
	for i, col := range columns {
		ors[i] = fmt.Sprintf("CAST(%s AS TEXT) ILIKE $%d", quoteIdentifier(col), wb.argIndex)
	}
	wb.conditions = append(wb.conditions, "("+strings.Join(ors, " OR ")+")")
	wb.args = append(wb.args, "%"+escapeLike(term)+"%")
	wb.argIndex++
}

// NextArgIndex returns the number of the next placeholder.
func (wb *WhereBuilder) NextArgIndex() int {
	return wb.argIndex
}

// Build returns " WHERE ..." (or "") and the arguments in placeholder order.
func (wb *WhereBuilder) Build() (string, []any) {
	if len(wb.conditions) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(wb.conditions, " AND "), wb.args
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// escapeLike escapes LIKE wildcards so the search term matches literally.
func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
