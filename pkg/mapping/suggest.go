package mapping

import (
	"strconv"
	"strings"

	"github.com/verenigingen/eboekhouden-sync/pkg/eboekhouden"
	"github.com/verenigingen/eboekhouden-sync/pkg/erp"
)

// keywordRule overrides the code-range guess when the ledger description
// contains one of the keywords.
type keywordRule struct {
	Keywords    []string
	AccountType erp.AccountType
	RootType    erp.RootType
	BalanceOnly bool // only for codes below 4000, so "bankkosten" stays an expense
}

// Order matters: the first matching rule wins.
var keywordRules = []keywordRule{
	{Keywords: []string{"debiteuren", "debiteur", "te ontvangen facturen"}, AccountType: erp.AccountReceivable, BalanceOnly: true, RootType: erp.RootAsset},
	{Keywords: []string{"crediteuren", "crediteur", "te betalen facturen"}, AccountType: erp.AccountPayable, BalanceOnly: true, RootType: erp.RootLiability},
	{Keywords: []string{"btw", "omzetbelasting", "voorbelasting"}, AccountType: erp.AccountTax, BalanceOnly: true, RootType: erp.RootLiability},
	{Keywords: []string{"kruisposten", "tussenrekening", "vraagposten"}, AccountType: erp.AccountTemporary, BalanceOnly: true, RootType: erp.RootAsset},
	{Keywords: []string{"kas"}, AccountType: erp.AccountCash, BalanceOnly: true, RootType: erp.RootAsset},
	{Keywords: []string{"bank", "rabobank", " ing ", "abn", "triodos", "bunq", "spaarrekening", "mollie", "paypal"}, AccountType: erp.AccountBank, BalanceOnly: true, RootType: erp.RootAsset},
	{Keywords: []string{"eigen vermogen", "algemene reserve", "bestemmingsreserve", "kapitaal", "resultaat"}, AccountType: erp.AccountEquity, BalanceOnly: true, RootType: erp.RootEquity},
	{Keywords: []string{"afrondingsverschil", "afronding", "betalingsverschil"}, AccountType: erp.AccountRoundOff, RootType: erp.RootExpense},
	{Keywords: []string{"contributie", "donatie", "subsidie", "omzet", "opbrengst", "rente ontvangen"}, AccountType: erp.AccountIncome, RootType: erp.RootIncome},
}

// Suggestion is a proposed mapping for an unmapped ledger.
type Suggestion struct {
	Mapping LedgerMapping
	Reason  string
}

// Suggest proposes an account type and root type for a ledger using the
// Dutch decimal chart-of-accounts layout and description keywords.
// The account name is derived as "<code> - <description>".
func Suggest(ledger eboekhouden.Ledger) Suggestion {
	description := strings.ToLower(" " + ledger.Description + " ")

	mapping := LedgerMapping{
		LedgerID:    ledger.ID,
		Code:        ledger.Code,
		Description: ledger.Description,
		Account:     accountName(ledger),
	}

	code, numeric := normalizeCode(ledger.Code)
	for _, rule := range keywordRules {
		if rule.BalanceOnly && numeric && code >= 4000 {
			continue
		}
		for _, kw := range rule.Keywords {
			if strings.Contains(description, kw) {
				mapping.AccountType = rule.AccountType
				mapping.RootType = rule.RootType
				return Suggestion{Mapping: mapping, Reason: "description contains " + strconv.Quote(strings.TrimSpace(kw))}
			}
		}
	}

	if !numeric {
		mapping.RootType = erp.RootAsset
		return Suggestion{Mapping: mapping, Reason: "non-numeric code, review manually"}
	}

	accountType, rootType, reason := byCode(code, description)
	mapping.AccountType = accountType
	mapping.RootType = rootType
	return Suggestion{Mapping: mapping, Reason: reason}
}

// normalizeCode parses a ledger code. Codes shorter than four digits are
// scaled up so "13" and "1300" land in the same range.
func normalizeCode(code string) (int, bool) {
	raw := strings.TrimSpace(code)
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, false
	}
	for i := len(raw); i < 4; i++ {
		n *= 10
	}
	return n, true
}

// byCode guesses from the normalized ledger code.
func byCode(n int, description string) (erp.AccountType, erp.RootType, string) {
	switch {
	case n < 1000:
		return erp.AccountFixedAsset, erp.RootAsset, "code range 0xxx (fixed assets)"
	case n < 1100:
		return erp.AccountCash, erp.RootAsset, "code range 10xx (cash)"
	case n < 1300:
		return erp.AccountBank, erp.RootAsset, "code range 11xx-12xx (bank)"
	case n < 1400:
		return erp.AccountReceivable, erp.RootAsset, "code range 13xx (receivables)"
	case n < 1500:
		return erp.AccountCurrentAsset, erp.RootAsset, "code range 14xx (current assets)"
	case n < 1600:
		return erp.AccountTax, erp.RootLiability, "code range 15xx (VAT)"
	case n < 1700:
		return erp.AccountPayable, erp.RootLiability, "code range 16xx (payables)"
	case n < 2000:
		return erp.AccountCurrentLiability, erp.RootLiability, "code range 17xx-19xx (current liabilities)"
	case n < 4000:
		if strings.Contains(description, "voorraad") {
			return erp.AccountCurrentAsset, erp.RootAsset, "code range 2xxx-3xxx with stock description"
		}
		return erp.AccountEquity, erp.RootEquity, "code range 2xxx-3xxx (equity and provisions)"
	case n < 8000:
		return erp.AccountExpense, erp.RootExpense, "code range 4xxx-7xxx (expenses)"
	case n < 9000:
		return erp.AccountIncome, erp.RootIncome, "code range 8xxx (revenue)"
	default:
		return erp.AccountExpense, erp.RootExpense, "code range 9xxx (other results)"
	}
}

func accountName(ledger eboekhouden.Ledger) string {
	description := strings.TrimSpace(ledger.Description)
	code := strings.TrimSpace(ledger.Code)
	switch {
	case code == "":
		return description
	case description == "":
		return code
	default:
		return code + " - " + description
	}
}

// SuggestAll proposes mappings for every ledger not yet mapped by m.
func SuggestAll(ledgers []eboekhouden.Ledger, m *Mapper) []Suggestion {
	var suggestions []Suggestion
	for _, l := range ledgers {
		if m != nil && m.HasMapping(l.ID) {
			continue
		}
		suggestions = append(suggestions, Suggest(l))
	}
	return suggestions
}
