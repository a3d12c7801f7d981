package core

import (
	"context"
	"fmt"
	"strconv"

	"github.com/ngaotu/misa-crm-backend/internal/clock"
)

// sequenceWidth is the zero-padded width of the trailing sequence.
const sequenceWidth = 6

// MaxCodeFinder returns the greatest code matching a LIKE pattern.
// found is false when nothing matches.
type MaxCodeFinder interface {
	MaxCode(ctx context.Context, pattern string) (code string, found bool, err error)
}

// CodeGenerator produces PREFIX + yyyyMM + NNNNNN codes.
//
// The next sequence is read from the store and incremented without locking;
// two inserts racing in the same month can compute the same code. The store's
// unique index on the code column turns that into a conflict.
type CodeGenerator struct {
	clock clock.Clock
}

// NewCodeGenerator creates a generator reading the month from clk.
func NewCodeGenerator(clk clock.Clock) *CodeGenerator {
	if clk == nil {
		clk = clock.NewRealClock()
	}
	return &CodeGenerator{clock: clk}
}

// Generate returns the next code for the given code field.
func (g *CodeGenerator) Generate(ctx context.Context, finder MaxCodeFinder, code CodeField) (string, error) {
	yearMonth := g.clock.Now().Format("200601")

	next, err := g.NextSequence(ctx, finder, code.Prefix, yearMonth)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s%s%0*d", code.Prefix, yearMonth, sequenceWidth, next), nil
}

// NextSequence returns the sequence number following the highest existing
// code for prefix+yearMonth, or 1 when there is none or it cannot be parsed.
func (g *CodeGenerator) NextSequence(ctx context.Context, finder MaxCodeFinder, prefix, yearMonth string) (int, error) {
	stem := prefix + yearMonth
	latest, found, err := finder.MaxCode(ctx, stem+"%")
	if err != nil {
		return 0, fmt.Errorf("find latest %s code: %w", stem, err)
	}
	if !found || len(latest) < len(stem)+sequenceWidth {
		return 1, nil
	}

	n, err := strconv.Atoi(latest[len(latest)-sequenceWidth:])
	if err != nil {
		return 1, nil
	}
	return n + 1, nil
}
