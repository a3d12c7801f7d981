package core

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// ExistenceChecker answers whether another record already holds a value.
type ExistenceChecker interface {
	ExistsByProperty(ctx context.Context, field string, value any, excludeID *uuid.UUID) (bool, error)
}

// CheckDuplicates asks checker about every Unique field of rec that holds a
// value and returns a KindConflict *Error for the first one already taken.
//
// excludeID is the record being updated. When nil, a non-zero key already set
// on rec is excluded instead.
//
// The check and the write that follows are separate statements; a concurrent
// writer can slip in between. The store's unique indexes catch that case.
func CheckDuplicates(ctx context.Context, d *Descriptor, checker ExistenceChecker, rec any, excludeID *uuid.UUID) error {
	v, err := recordValue(d, rec)
	if err != nil {
		return System(err)
	}

	if excludeID == nil {
		keyField, _ := d.Field(d.Key)
		if key, ok := fieldInterface(v, keyField).(uuid.UUID); ok && key != uuid.Nil {
			excludeID = &key
		}
	}

	for _, name := range d.Unique {
		f, _ := d.Field(name)
		value := fieldInterface(v, f)
		if isBlank(value) {
			continue
		}

		exists, err := checker.ExistsByProperty(ctx, name, value, excludeID)
		if err != nil {
			return err
		}
		if exists {
			return Conflict(name, messageOr(uniqueMessage(f), fmt.Sprintf(defaultUniqueMsg, name)))
		}
	}
	return nil
}

func uniqueMessage(f Field) string {
	for _, r := range f.Rules {
		if u, ok := r.(Unique); ok {
			return u.Message
		}
	}
	return ""
}
