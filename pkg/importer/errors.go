package importer

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/verenigingen/eboekhouden-sync/pkg/erp"
)

var (
	// ErrUnsupportedType is returned for mutation types outside 0..7.
	ErrUnsupportedType = errors.New("unsupported mutation type")

	// ErrNoRows is returned when a mutation needs rows but has none.
	ErrNoRows = errors.New("mutation has no rows")

	// ErrPartyRequired is returned when a receivable or payable line has
	// neither a relation nor a configured default party.
	ErrPartyRequired = errors.New("party required")

	// ErrAccountType is wrapped by AccountTypeError.
	ErrAccountType = errors.New("unexpected account type")
)

// AccountTypeError reports a ledger mapped to an account of the wrong type
// for its role in the mutation.
type AccountTypeError struct {
	LedgerID int64
	Account  string
	Role     string
	Got      erp.AccountType
	Want     []erp.AccountType
}

func (e *AccountTypeError) Error() string {
	want := make([]string, len(e.Want))
	for i, w := range e.Want {
		want[i] = string(w)
	}
	got := string(e.Got)
	if got == "" {
		got = "unspecified"
	}
	return fmt.Sprintf("%s ledger %d (%s) is %s, expected %s",
		e.Role, e.LedgerID, e.Account, got, strings.Join(want, " or "))
}

func (e *AccountTypeError) Unwrap() error {
	return ErrAccountType
}

// UnbalancedError is returned when a journal cannot be balanced within the
// rounding tolerance, or no account is configured to absorb the difference.
type UnbalancedError struct {
	MutationID int64
	Difference decimal.Decimal
	Tolerance  decimal.Decimal
	Reason     string
}

func (e *UnbalancedError) Error() string {
	msg := fmt.Sprintf("mutation %d is unbalanced by %s", e.MutationID, e.Difference.StringFixed(2))
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}
