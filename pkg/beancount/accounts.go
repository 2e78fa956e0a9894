package beancount

import (
	"fmt"
	"sort"
	"strings"
	"unicode"

	"github.com/verenigingen/eboekhouden-sync/pkg/erp"
	"github.com/verenigingen/eboekhouden-sync/pkg/mapping"
)

var rootPrefixes = map[erp.RootType]string{
	erp.RootAsset:     "Assets",
	erp.RootLiability: "Liabilities",
	erp.RootEquity:    "Equity",
	erp.RootIncome:    "Income",
	erp.RootExpense:   "Expenses",
}

// AccountNamer translates ERP account names to Beancount account names.
type AccountNamer struct {
	roots map[string]erp.RootType
	used  map[string]bool
}

// NewAccountNamer creates an AccountNamer with no accounts.
func NewAccountNamer() *AccountNamer {
	return &AccountNamer{
		roots: make(map[string]erp.RootType),
		used:  make(map[string]bool),
	}
}

// Add registers the root type of an ERP account. The first registration wins.
func (n *AccountNamer) Add(account string, root erp.RootType) {
	if account == "" {
		return
	}
	if _, ok := n.roots[account]; !ok {
		n.roots[account] = root
	}
}

// Name returns the Beancount name of an ERP account,
// e.g. "1100 - Bank" with root Asset becomes "Assets:1100-Bank".
func (n *AccountNamer) Name(account string) (string, error) {
	root, ok := n.roots[account]
	if !ok {
		return "", fmt.Errorf("account %q has no root type; add it to the ledger mapping", account)
	}
	prefix, ok := rootPrefixes[root]
	if !ok {
		return "", fmt.Errorf("account %q has invalid root type %q", account, root)
	}

	name := prefix + ":" + sanitizeComponent(account)
	n.used[name] = true
	return name, nil
}

// Used returns the Beancount accounts returned by Name, sorted.
func (n *AccountNamer) Used() []string {
	names := make([]string, 0, len(n.used))
	for name := range n.used {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// sanitizeComponent makes an account component: ASCII letters, digits and
// dashes, starting with a capital letter or digit.
func sanitizeComponent(s string) string {
	var sb strings.Builder
	dash := false
	for _, r := range s {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			sb.WriteRune(r)
			dash = false
			continue
		}
		if !dash && sb.Len() > 0 {
			sb.WriteRune('-')
			dash = true
		}
	}

	out := strings.TrimRight(sb.String(), "-")
	if out == "" {
		return "Unknown"
	}
	runes := []rune(out)
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}

// NamerFromMapper registers every mapped ledger and VAT account.
// Extra accounts (round-off, opening difference) are added with the given roots.
func NamerFromMapper(m *mapping.Mapper, extra map[string]erp.RootType) *AccountNamer {
	n := NewAccountNamer()
	for _, l := range m.Ledgers() {
		n.Add(l.Account, l.RootType)
	}
	for _, v := range m.VatCodes() {
		root, ok := m.RootTypeOf(v.Account)
		if !ok {
			root = erp.RootLiability
		}
		n.Add(v.Account, root)
	}
	for account, root := range extra {
		if mapped, ok := m.RootTypeOf(account); ok {
			root = mapped
		}
		n.Add(account, root)
	}
	return n
}
