package core

// registry.go derives and caches one Descriptor per record type.
//
// Struct shape supplies the field list and default column names; the type's
// Declaration (if it implements Declarer) supplies rules and overrides.
// Descriptors are built on first use and kept for the life of the process.

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// ErrMalformedDeclaration is returned when a type's declaration cannot be
// turned into a usable descriptor.
var ErrMalformedDeclaration = errors.New("malformed record declaration")

var (
	registry   = make(map[reflect.Type]*Descriptor)
	registryMu sync.RWMutex

	uuidType   = reflect.TypeOf(uuid.UUID{})
	prefixExpr = regexp.MustCompile(`^[A-Z0-9]+$`)
)

// Describe returns the descriptor for T, building it on first use.
func Describe[T any]() (*Descriptor, error) {
	return DescribeType(reflect.TypeOf((*T)(nil)).Elem())
}

// MustDescribe is Describe for package-level initialisation; it panics on a
// malformed declaration.
func MustDescribe[T any]() *Descriptor {
	d, err := Describe[T]()
	if err != nil {
		panic(err)
	}
	return d
}

// DescribeType returns the descriptor for t (a struct or pointer to struct).
func DescribeType(t reflect.Type) (*Descriptor, error) {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}

	registryMu.RLock()
	d, ok := registry[t]
	registryMu.RUnlock()
	if ok {
		return d, nil
	}

	// Built outside the lock; a concurrent first use may build twice, and
	// whichever lands first is kept.
	d, err := buildDescriptor(t)
	if err != nil {
		return nil, err
	}

	registryMu.Lock()
	defer registryMu.Unlock()
	if existing, ok := registry[t]; ok {
		return existing, nil
	}
	registry[t] = d
	return d, nil
}

func buildDescriptor(t reflect.Type) (*Descriptor, error) {
	if t.Kind() != reflect.Struct {
		return nil, fmt.Errorf("%w: %s is not a struct", ErrMalformedDeclaration, t)
	}

	var decl Declaration
	if dec, ok := reflect.New(t).Interface().(Declarer); ok {
		decl = dec.Declare()
	}

	d := &Descriptor{
		Type:       t,
		Collection: decl.Collection,
		byName:     make(map[string]int),
	}
	if d.Collection == "" {
		d.Collection = strings.ToLower(t.Name())
	}

	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if !sf.IsExported() {
			continue
		}
		column := toSnakeCase(sf.Name)
		if tag, ok := sf.Tag.Lookup("db"); ok {
			name, _, _ := strings.Cut(tag, ",")
			if name == "-" {
				continue
			}
			if name != "" {
				column = name
			}
		}
		d.byName[sf.Name] = len(d.Fields)
		d.Fields = append(d.Fields, Field{
			Name:   sf.Name,
			Column: column,
			Index:  sf.Index,
			Type:   sf.Type,
		})
	}

	for _, fr := range decl.Fields {
		i, ok := d.byName[fr.Field]
		if !ok {
			return nil, fmt.Errorf("%w: %s has no field %q", ErrMalformedDeclaration, t.Name(), fr.Field)
		}
		if fr.Column != "" {
			d.Fields[i].Column = fr.Column
		}
		d.Fields[i].Rules = append(d.Fields[i].Rules, fr.Rules...)
	}

	if err := resolveKey(d, decl.Key); err != nil {
		return nil, err
	}
	if err := resolveDeleteFlag(d, decl.DeleteFlag); err != nil {
		return nil, err
	}
	if err := collectRules(d); err != nil {
		return nil, err
	}

	return d, nil
}

func resolveKey(d *Descriptor, declared string) error {
	key := declared
	if key == "" {
		for _, f := range d.Fields {
			if strings.HasSuffix(f.Name, "Id") || strings.HasSuffix(f.Name, "ID") {
				key = f.Name
				break
			}
		}
	}
	if key == "" {
		return fmt.Errorf("%w: %s has no primary key field", ErrMalformedDeclaration, d.Type.Name())
	}
	f, ok := d.Field(key)
	if !ok {
		return fmt.Errorf("%w: %s key %q is not a field", ErrMalformedDeclaration, d.Type.Name(), key)
	}
	if f.Type != uuidType {
		return fmt.Errorf("%w: %s key %q must be uuid.UUID, got %s", ErrMalformedDeclaration, d.Type.Name(), key, f.Type)
	}
	d.Key = key
	return nil
}

func resolveDeleteFlag(d *Descriptor, declared string) error {
	if declared != "" {
		f, ok := d.Field(declared)
		if !ok || f.Type.Kind() != reflect.Bool {
			return fmt.Errorf("%w: %s delete flag %q must be a bool field", ErrMalformedDeclaration, d.Type.Name(), declared)
		}
		d.DeleteFlag = declared
		return nil
	}
	if f, ok := d.Field("IsDeleted"); ok && f.Type.Kind() == reflect.Bool {
		d.DeleteFlag = f.Name
	}
	return nil
}

func collectRules(d *Descriptor) error {
	for _, f := range d.Fields {
		for _, r := range f.Rules {
			switch r := r.(type) {
			case Unique:
				d.Unique = append(d.Unique, f.Name)
			case Searchable:
				d.Searchable = append(d.Searchable, f.Name)
			case MaxLength:
				if r.Max <= 0 {
					return fmt.Errorf("%w: %s.%s max length must be positive", ErrMalformedDeclaration, d.Type.Name(), f.Name)
				}
			case GeneratedCode:
				if d.Code != nil {
					return fmt.Errorf("%w: %s declares more than one generated code field", ErrMalformedDeclaration, d.Type.Name())
				}
				if !prefixExpr.MatchString(r.Prefix) {
					return fmt.Errorf("%w: %s.%s code prefix %q must match [A-Z0-9]+", ErrMalformedDeclaration, d.Type.Name(), f.Name, r.Prefix)
				}
				if f.Type.Kind() != reflect.String {
					return fmt.Errorf("%w: %s.%s generated code must be a string field", ErrMalformedDeclaration, d.Type.Name(), f.Name)
				}
				d.Code = &CodeField{Field: f.Name, Column: f.Column, Prefix: r.Prefix}
			}
		}
	}
	return nil
}

// Registered returns every descriptor built so far, sorted by collection.
func Registered() []*Descriptor {
	registryMu.RLock()
	defer registryMu.RUnlock()

	result := make([]*Descriptor, 0, len(registry))
	for _, d := range registry {
		result = append(result, d)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Collection < result[j].Collection
	})
	return result
}

// Count returns the number of cached descriptors.
func Count() int {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return len(registry)
}

// Clear drops all cached descriptors.
// Primarily useful for testing.
func Clear() {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry = make(map[reflect.Type]*Descriptor)
}
