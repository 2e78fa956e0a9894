// Package mapping maps e-Boekhouden ledgers and VAT codes to ERP accounts.
package mapping

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/verenigingen/eboekhouden-sync/pkg/erp"
)

var (
	// ErrLedgerNotMapped is returned when a ledger ID has no account mapping.
	ErrLedgerNotMapped = errors.New("ledger not mapped")

	// ErrVatCodeNotMapped is returned when a VAT code has no tax account.
	ErrVatCodeNotMapped = errors.New("vat code not mapped")
)

// MappingError identifies the ledger whose mapping is missing.
type MappingError struct {
	LedgerID int64
	Context  string
}

func (e *MappingError) Error() string {
	if e.Context != "" {
		return fmt.Sprintf("ledger %d (%s) has no account mapping", e.LedgerID, e.Context)
	}
	return fmt.Sprintf("ledger %d has no account mapping", e.LedgerID)
}

func (e *MappingError) Unwrap() error {
	return ErrLedgerNotMapped
}

// LedgerMapping maps one e-Boekhouden ledger to an ERP account.
type LedgerMapping struct {
	LedgerID    int64           `yaml:"ledger_id"`
	Code        string          `yaml:"code,omitempty"`
	Description string          `yaml:"description,omitempty"`
	Account     string          `yaml:"account"`
	AccountType erp.AccountType `yaml:"account_type,omitempty"`
	RootType    erp.RootType    `yaml:"root_type"`
}

// VatMapping maps an e-Boekhouden VAT code to a tax account.
type VatMapping struct {
	Code    string          `yaml:"code"`
	Account string          `yaml:"account"`
	Rate    decimal.Decimal `yaml:"rate"`
}

// File is the YAML mapping file layout.
type File struct {
	Ledgers  []LedgerMapping `yaml:"ledgers"`
	VatCodes []VatMapping    `yaml:"vat_codes"`
}

// noVatCodes carry no tax line.
var noVatCodes = map[string]bool{
	"":         true,
	"GEEN":     true,
	"GEEN_BTW": true,
	"VRIJ":     true,
}

// LoadFile reads a YAML mapping file.
func LoadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read mapping file: %w", err)
	}

	var file File
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := file.Validate(); err != nil {
		return nil, fmt.Errorf("invalid mapping file %s: %w", path, err)
	}

	return &file, nil
}

// Validate checks for duplicate ledgers and incomplete entries.
func (f *File) Validate() error {
	seen := make(map[int64]bool, len(f.Ledgers))
	for _, l := range f.Ledgers {
		if l.LedgerID == 0 {
			return fmt.Errorf("ledger mapping for %q has no ledger_id", l.Account)
		}
		if seen[l.LedgerID] {
			return fmt.Errorf("ledger %d is mapped more than once", l.LedgerID)
		}
		seen[l.LedgerID] = true

		if l.Account == "" {
			return fmt.Errorf("ledger %d has no account", l.LedgerID)
		}
		if !l.RootType.Valid() {
			return fmt.Errorf("ledger %d has invalid root_type %q", l.LedgerID, l.RootType)
		}
	}

	for _, v := range f.VatCodes {
		if v.Code == "" || v.Account == "" {
			return fmt.Errorf("vat code mapping needs code and account")
		}
	}

	return nil
}

// Marshal renders the file as YAML.
func (f *File) Marshal() ([]byte, error) {
	return yaml.Marshal(f)
}

// Mapper resolves ledger IDs and VAT codes to ERP accounts.
type Mapper struct {
	ledgers  map[int64]LedgerMapping
	accounts map[string]LedgerMapping
	vatCodes map[string]VatMapping
}

// New creates a Mapper from ledger and VAT mappings.
func New(ledgers []LedgerMapping, vatCodes []VatMapping) *Mapper {
	m := &Mapper{
		ledgers:  make(map[int64]LedgerMapping, len(ledgers)),
		accounts: make(map[string]LedgerMapping, len(ledgers)),
		vatCodes: make(map[string]VatMapping, len(vatCodes)),
	}

	for _, l := range ledgers {
		m.ledgers[l.LedgerID] = l
		m.accounts[l.Account] = l
	}
	for _, v := range vatCodes {
		m.vatCodes[strings.ToUpper(v.Code)] = v
	}

	return m
}

// Account returns the mapping of a ledger.
// A missing mapping is an error; there is no default account.
func (m *Mapper) Account(ledgerID int64) (LedgerMapping, error) {
	mapping, ok := m.ledgers[ledgerID]
	if !ok {
		return LedgerMapping{}, &MappingError{LedgerID: ledgerID}
	}
	return mapping, nil
}

// VatAccount returns the tax mapping of a VAT code.
// It returns nil without error for codes that carry no VAT.
func (m *Mapper) VatAccount(code string) (*VatMapping, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if noVatCodes[code] {
		return nil, nil
	}

	mapping, ok := m.vatCodes[code]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrVatCodeNotMapped, code)
	}
	return &mapping, nil
}

// RootTypeOf returns the root type of a mapped account name.
func (m *Mapper) RootTypeOf(account string) (erp.RootType, bool) {
	mapping, ok := m.accounts[account]
	if !ok {
		return "", false
	}
	return mapping.RootType, true
}

// HasMapping checks if a ledger is mapped.
func (m *Mapper) HasMapping(ledgerID int64) bool {
	_, ok := m.ledgers[ledgerID]
	return ok
}

// Ledgers returns all ledger mappings ordered by code.
func (m *Mapper) Ledgers() []LedgerMapping {
	result := make([]LedgerMapping, 0, len(m.ledgers))
	for _, l := range m.ledgers {
		result = append(result, l)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Code != result[j].Code {
			return result[i].Code < result[j].Code
		}
		return result[i].LedgerID < result[j].LedgerID
	})
	return result
}

// VatCodes returns all VAT mappings ordered by code.
func (m *Mapper) VatCodes() []VatMapping {
	result := make([]VatMapping, 0, len(m.vatCodes))
	for _, v := range m.vatCodes {
		result = append(result, v)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Code < result[j].Code })
	return result
}
