package core

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Repository is the metadata-driven store for one record type.
// Every statement is derived from T's Descriptor.
type Repository[T any] struct {
	db    DBTX
	desc  *Descriptor
	codes *CodeGenerator
}

// NewRepository creates a repository for T. codes may be nil when T has no
// generated code field.
func NewRepository[T any](db DBTX, codes *CodeGenerator) (*Repository[T], error) {
	d, err := Describe[T]()
	if err != nil {
		return nil, err
	}
	if codes == nil {
		codes = NewCodeGenerator(nil)
	}
	return &Repository[T]{db: db, desc: d, codes: codes}, nil
}

// Descriptor returns the metadata the repository was built from.
func (r *Repository[T]) Descriptor() *Descriptor {
	return r.desc
}

// DB returns the underlying connection, for type-specific statements.
func (r *Repository[T]) DB() DBTX {
	return r.db
}

func (r *Repository[T]) table() string {
	return quoteIdentifier(r.desc.Collection)
}

func (r *Repository[T]) selectList() string {
	return strings.Join(quoteColumns(r.desc.Columns()), ", ")
}

// GetAll returns every record that is not flagged deleted.
func (r *Repository[T]) GetAll(ctx context.Context) ([]T, error) {
	query := fmt.Sprintf("SELECT %s FROM %s", r.selectList(), r.table())
	if col := r.desc.DeleteColumn(); col != "" {
		query += fmt.Sprintf(" WHERE %s = false", quoteIdentifier(col))
	}
	sortCol, _ := r.desc.Column(r.desc.DefaultSortField())
	query += fmt.Sprintf(" ORDER BY %s DESC", quoteIdentifier(sortCol))

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, FromStore("get all "+r.desc.Collection, err)
	}
	return r.collect(rows)
}

// GetByID returns the record with id, deleted or not.
func (r *Repository[T]) GetByID(ctx context.Context, id uuid.UUID) (*T, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s = $1",
		r.selectList(), r.table(), quoteIdentifier(r.desc.KeyColumn()))

	rec, err := r.scanOne(r.db.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, NotFound(fmt.Sprintf("Entity with Id %s not found.", id))
	}
	if err != nil {
		return nil, FromStore("get "+r.desc.Collection, err)
	}
	return rec, nil
}

// GetByIDs returns the non-deleted records among ids.
func (r *Repository[T]) GetByIDs(ctx context.Context, ids []uuid.UUID) ([]T, error) {
	if len(ids) == 0 {
		return []T{}, nil
	}
	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s = ANY($1)",
		r.selectList(), r.table(), quoteIdentifier(r.desc.KeyColumn()))
	if col := r.desc.DeleteColumn(); col != "" {
		query += fmt.Sprintf(" AND %s = false", quoteIdentifier(col))
	}
	sortCol, _ := r.desc.Column(r.desc.DefaultSortField())
	query += fmt.Sprintf(" ORDER BY %s DESC", quoteIdentifier(sortCol))

	rows, err := r.db.Query(ctx, query, ids)
	if err != nil {
		return nil, FromStore("get "+r.desc.Collection+" by ids", err)
	}
	return r.collect(rows)
}

// Insert stores rec under a fresh key, generating its code first when the
// type has one and it is blank. The key and code are written back onto rec.
func (r *Repository[T]) Insert(ctx context.Context, rec *T) (int64, error) {
	v := reflect.ValueOf(rec).Elem()

	if code := r.desc.Code; code != nil {
		f, _ := r.desc.Field(code.Field)
		fv := v.FieldByIndex(f.Index)
		if strings.TrimSpace(fv.String()) == "" {
			generated, err := r.GenerateCode(ctx)
			if err != nil {
				return 0, err
			}
			fv.SetString(generated)
		}
	}

	keyField, _ := r.desc.Field(r.desc.Key)
	v.FieldByIndex(keyField.Index).Set(reflect.ValueOf(uuid.New()))

	cols := r.desc.Columns()
	placeholders := make([]string, len(cols))
	args := make([]any, len(cols))
	for i, f := range r.desc.Fields {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = v.FieldByIndex(f.Index).Interface()
	}

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		r.table(), strings.Join(quoteColumns(cols), ", "), strings.Join(placeholders, ", "))

	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return 0, r.storeError("insert "+r.desc.Collection, err)
	}
	return tag.RowsAffected(), nil
}

// Update writes every field of rec except the key and the generated code to
// the row with id. It returns 0 when no row matched.
func (r *Repository[T]) Update(ctx context.Context, id uuid.UUID, rec *T) (int64, error) {
	v := reflect.ValueOf(rec).Elem()

	var sets []string
	var args []any
	for _, f := range r.desc.Fields {
		if f.Name == r.desc.Key || (r.desc.Code != nil && f.Name == r.desc.Code.Field) {
			continue
		}
		args = append(args, v.FieldByIndex(f.Index).Interface())
		sets = append(sets, fmt.Sprintf("%s = $%d", quoteIdentifier(f.Column), len(args)))
	}
	args = append(args, id)

	query := fmt.Sprintf("UPDATE %s SET %s WHERE %s = $%d",
		r.table(), strings.Join(sets, ", "), quoteIdentifier(r.desc.KeyColumn()), len(args))

	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return 0, r.storeError("update "+r.desc.Collection, err)
	}
	return tag.RowsAffected(), nil
}

// Delete soft-deletes the row with id when the type has a deletion flag,
// and removes it otherwise. It returns 0 when no row matched.
func (r *Repository[T]) Delete(ctx context.Context, id uuid.UUID) (int64, error) {
	if r.desc.DeleteFlag == "" {
		query := fmt.Sprintf("DELETE FROM %s WHERE %s = $1", r.table(), quoteIdentifier(r.desc.KeyColumn()))
		tag, err := r.db.Exec(ctx, query, id)
		if err != nil {
			return 0, FromStore("delete "+r.desc.Collection, err)
		}
		return tag.RowsAffected(), nil
	}

	rec, err := r.GetByID(ctx, id)
	if IsKind(err, KindNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	flag, _ := r.desc.Field(r.desc.DeleteFlag)
	reflect.ValueOf(rec).Elem().FieldByIndex(flag.Index).SetBool(true)
	return r.Update(ctx, id, rec)
}

// ExistsByProperty reports whether any row other than excludeID holds value
// in field. Unknown fields report false.
func (r *Repository[T]) ExistsByProperty(ctx context.Context, field string, value any, excludeID *uuid.UUID) (bool, error) {
	col, ok := r.desc.Column(field)
	if !ok {
		return false, nil
	}

	query := fmt.Sprintf("SELECT EXISTS (SELECT 1 FROM %s WHERE %s = $1", r.table(), quoteIdentifier(col))
	args := []any{value}
	if excludeID != nil {
		query += fmt.Sprintf(" AND %s <> $2", quoteIdentifier(r.desc.KeyColumn()))
		args = append(args, *excludeID)
	}
	query += ")"

	var exists bool
	if err := r.db.QueryRow(ctx, query, args...).Scan(&exists); err != nil {
		return false, FromStore("check "+r.desc.Collection+"."+field, err)
	}
	return exists, nil
}

// GenerateCode returns the next code for T.
func (r *Repository[T]) GenerateCode(ctx context.Context) (string, error) {
	if r.desc.Code == nil {
		return "", fmt.Errorf("%s has no generated code field", r.desc.Collection)
	}
	return r.codes.Generate(ctx, r, *r.desc.Code)
}

// MaxCode returns the greatest code matching pattern.
func (r *Repository[T]) MaxCode(ctx context.Context, pattern string) (string, bool, error) {
	if r.desc.Code == nil {
		return "", false, nil
	}
	col := quoteIdentifier(r.desc.Code.Column)
	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s LIKE $1 ORDER BY %s DESC LIMIT 1",
		col, r.table(), col, col)

	var code string
	err := r.db.QueryRow(ctx, query, pattern).Scan(&code)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, FromStore("max code "+r.desc.Collection, err)
	}
	return code, true, nil
}

// Page runs a paged, sorted, searched listing. The count and the page are
// sent as one batch and share the same filter.
func (r *Repository[T]) Page(ctx context.Context, req PagedRequest) (PagedResult[T], error) {
	req = req.Normalize(r.desc)
	countSQL, pageSQL, countArgs, pageArgs := pageQueries(r.desc, req)

	result := PagedResult[T]{
		Items:       []T{},
		CurrentPage: req.Page,
		PageSize:    req.PageSize,
	}

	batch := &pgx.Batch{}
	batch.Queue(countSQL, countArgs...)
	batch.Queue(pageSQL, pageArgs...)

	br := r.db.SendBatch(ctx, batch)
	defer br.Close()

	if err := br.QueryRow().Scan(&result.TotalRecords); err != nil {
		return result, FromStore("count "+r.desc.Collection, err)
	}

	rows, err := br.Query()
	if err != nil {
		return result, FromStore("page "+r.desc.Collection, err)
	}
	items, err := r.collect(rows)
	if err != nil {
		return result, err
	}
	result.Items = items
	return result, nil
}

// storeError classifies err like FromStore. A unique violation on a column of
// T reports that field with its declared Unique message.
func (r *Repository[T]) storeError(op string, err error) error {
	err = FromStore(op, err)

	var e *Error
	var pgErr *pgconn.PgError
	if !errors.As(err, &e) || e.Kind != KindConflict || !errors.As(err, &pgErr) {
		return err
	}
	if f, ok := r.desc.fieldForConstraint(pgErr.ConstraintName); ok {
		e.Field = f.Name
		e.Message = messageOr(uniqueMessage(f), fmt.Sprintf(defaultUniqueMsg, f.Name))
	}
	return err
}

// scanTargets returns pointers to every field of v in column order.
func (r *Repository[T]) scanTargets(v reflect.Value) []any {
	dest := make([]any, len(r.desc.Fields))
	for i, f := range r.desc.Fields {
		dest[i] = v.FieldByIndex(f.Index).Addr().Interface()
	}
	return dest
}

func (r *Repository[T]) scanOne(row pgx.Row) (*T, error) {
	rec := new(T)
	if err := row.Scan(r.scanTargets(reflect.ValueOf(rec).Elem())...); err != nil {
		return nil, err
	}
	return rec, nil
}

func (r *Repository[T]) collect(rows pgx.Rows) ([]T, error) {
	defer rows.Close()

	items := []T{}
	for rows.Next() {
		var rec T
		if err := rows.Scan(r.scanTargets(reflect.ValueOf(&rec).Elem())...); err != nil {
			return nil, fmt.Errorf("scan %s: %w", r.desc.Collection, err)
		}
		items = append(items, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, FromStore("read "+r.desc.Collection, err)
	}
	return items, nil
}
