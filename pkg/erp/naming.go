package erp

import (
	"fmt"
	"strings"
)

// Naming series prefixes per document type.
const (
	SeriesJournalEntry    = "ACC-JV-"
	SeriesPaymentEntry    = "ACC-PAY-"
	SeriesSalesInvoice    = "ACC-SINV-"
	SeriesPurchaseInvoice = "ACC-PINV-"
)

// SeriesFor returns the naming series prefix of a document type.
func SeriesFor(doc DocType) string {
	switch doc {
	case DocPaymentEntry:
		return SeriesPaymentEntry
	case DocSalesInvoice:
		return SeriesSalesInvoice
	case DocPurchaseInvoice:
		return SeriesPurchaseInvoice
	default:
		return SeriesJournalEntry
	}
}

// SeriesKey is the counter key for a series within a posting year,
// e.g. "ACC-JV-2024-".
func SeriesKey(doc DocType, postingDate string) (string, error) {
	if len(postingDate) < 4 || strings.Trim(postingDate[:4], "0123456789") != "" {
		return "", fmt.Errorf("invalid posting date %q", postingDate)
	}
	return fmt.Sprintf("%s%s-", SeriesFor(doc), postingDate[:4]), nil
}

// FormatName renders the n-th document name of a series key.
func FormatName(key string, n int64) string {
	return fmt.Sprintf("%s%05d", key, n)
}
