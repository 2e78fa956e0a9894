package importer

import (
	"fmt"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/verenigingen/eboekhouden-sync/pkg/eboekhouden"
)

// Filter selects mutations with an expr-lang boolean expression, e.g.
//
//	Type in [3, 4] && Date >= "2024-01-01"
//	RelationID == 1201 || Description contains "contributie"
type Filter struct {
	source  string
	program *vm.Program
}

func filterEnv(m *eboekhouden.Mutation) map[string]interface{} {
	amount := m.Amount
	if amount.IsZero() {
		amount = m.RowTotal()
	}
	f, _ := amount.Float64()

	return map[string]interface{}{
		"ID":            int(m.ID),
		"Type":          int(m.Type),
		"Date":          m.Date,
		"Amount":        f,
		"LedgerID":      int(m.LedgerID),
		"RelationID":    int(m.RelationID),
		"Description":   m.Description,
		"InvoiceNumber": m.InvoiceNumber,
	}
}

// NewFilter compiles a filter expression. An empty expression returns nil,
// which matches every mutation.
func NewFilter(source string) (*Filter, error) {
	if source == "" {
		return nil, nil
	}

	program, err := expr.Compile(source,
		expr.Env(filterEnv(&eboekhouden.Mutation{})),
		expr.AsBool(),
	)
	if err != nil {
		return nil, fmt.Errorf("invalid import filter %q: %w", source, err)
	}

	return &Filter{source: source, program: program}, nil
}

// Match reports whether the mutation passes the filter.
func (f *Filter) Match(m *eboekhouden.Mutation) (bool, error) {
	if f == nil {
		return true, nil
	}

	out, err := expr.Run(f.program, filterEnv(m))
	if err != nil {
		return false, fmt.Errorf("failed to evaluate filter on mutation %d: %w", m.ID, err)
	}

	ok, _ := out.(bool)
	return ok, nil
}

func (f *Filter) String() string {
	if f == nil {
		return ""
	}
	return f.source
}
