package importer

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verenigingen/eboekhouden-sync/pkg/db"
	"github.com/verenigingen/eboekhouden-sync/pkg/eboekhouden"
	"github.com/verenigingen/eboekhouden-sync/pkg/erp"
	"github.com/verenigingen/eboekhouden-sync/pkg/mapping"
)

const (
	ledgerBank      = 10
	ledgerCash      = 11
	ledgerDebtors   = 13
	ledgerVat       = 15
	ledgerCreditors = 16
	ledgerEquity    = 20
	ledgerPrinting  = 40
	ledgerDues      = 80
)

var testLedgers = []mapping.LedgerMapping{
	{LedgerID: ledgerBank, Code: "1100", Account: "1100 - Bank", AccountType: erp.AccountBank, RootType: erp.RootAsset},
	{LedgerID: ledgerCash, Code: "1000", Account: "1000 - Kas", AccountType: erp.AccountCash, RootType: erp.RootAsset},
	{LedgerID: ledgerDebtors, Code: "1300", Account: "1300 - Debiteuren", AccountType: erp.AccountReceivable, RootType: erp.RootAsset},
	{LedgerID: ledgerVat, Code: "1500", Account: "1500 - BTW", AccountType: erp.AccountTax, RootType: erp.RootLiability},
	{LedgerID: ledgerCreditors, Code: "1600", Account: "1600 - Crediteuren", AccountType: erp.AccountPayable, RootType: erp.RootLiability},
	{LedgerID: ledgerEquity, Code: "2000", Account: "2000 - Eigen vermogen", AccountType: erp.AccountEquity, RootType: erp.RootEquity},
	{LedgerID: ledgerPrinting, Code: "4000", Account: "4000 - Drukwerk", AccountType: erp.AccountExpense, RootType: erp.RootExpense},
	{LedgerID: ledgerDues, Code: "8000", Account: "8000 - Contributie", AccountType: erp.AccountIncome, RootType: erp.RootIncome},
}

var testVat = []mapping.VatMapping{
	{Code: "HOOG_VERK_21", Account: "1500 - BTW", Rate: decimal.NewFromInt(21)},
	{Code: "HOOG_INK_21", Account: "1510 - Voorbelasting", Rate: decimal.NewFromInt(21)},
}

type fakeParties map[int64]string

func (f fakeParties) Resolve(_ context.Context, relationID int64, _ erp.PartyType) (string, error) {
	name, ok := f[relationID]
	if !ok {
		return "", fmt.Errorf("relation %d not found", relationID)
	}
	return name, nil
}

type fakeFetcher map[int64]eboekhouden.Mutation

func (f fakeFetcher) GetMutation(_ context.Context, id int64) (*eboekhouden.Mutation, error) {
	m, ok := f[id]
	if !ok {
		return nil, fmt.Errorf("mutation %d not found", id)
	}
	return &m, nil
}

var testParties = fakeParties{1: "Jansen", 2: "Drukkerij De Pers"}

func testOptions() Options {
	return Options{
		OpeningDifferenceAccount: "9999 - Openingsverschil",
		RoundOffAccount:          "8990 - Afrondingsverschillen",
		RoundingTolerance:        DefaultRoundingTolerance,
	}
}

func newTestImporter(t *testing.T, conn *db.Connection, opts Options, ledgers ...mapping.LedgerMapping) *Importer {
	t.Helper()

	if conn == nil {
		var err error
		conn, err = db.Open(filepath.Join(t.TempDir(), "import.db"))
		require.NoError(t, err)
		t.Cleanup(func() { _ = conn.Close() })
	}

	mapper := mapping.New(append(append([]mapping.LedgerMapping{}, testLedgers...), ledgers...), testVat)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(conn, mapper, testParties, nil, opts, logger)
}

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func row(ledgerID int64, amount string) eboekhouden.MutationRow {
	return eboekhouden.MutationRow{LedgerID: ledgerID, Amount: d(amount)}
}

func journals(t *testing.T, im *Importer) []erp.JournalEntry {
	t.Helper()
	entries, err := im.docs.ListJournals(context.Background(), db.DateRange{})
	require.NoError(t, err)
	return entries
}

func TestSortMutations(t *testing.T) {
	mutations := []eboekhouden.Mutation{
		{ID: 5, Date: "2024-01-02", Type: eboekhouden.MutationSalesInvoice},
		{ID: 4, Date: "2024-01-01", Type: eboekhouden.MutationMemorial},
		{ID: 3, Date: "2024-01-01", Type: eboekhouden.MutationCustomerPayment},
		{ID: 2, Date: "2024-01-01", Type: eboekhouden.MutationSalesInvoice},
		{ID: 1, Date: "2024-01-01", Type: eboekhouden.MutationPurchaseInvoice},
		{ID: 6, Date: "2024-01-01", Type: eboekhouden.MutationOpeningBalance},
		{ID: 7, Date: "2024-01-01", Type: eboekhouden.MutationMoneySent},
	}

	SortMutations(mutations)

	var ids []int64
	for _, m := range mutations {
		ids = append(ids, m.ID)
	}
	assert.Equal(t, []int64{6, 1, 2, 3, 7, 4, 5}, ids)
}

func TestOpeningBalance(t *testing.T) {
	im := newTestImporter(t, nil, testOptions())

	result, err := im.ImportOne(context.Background(), eboekhouden.Mutation{
		ID:   1,
		Type: eboekhouden.MutationOpeningBalance,
		Date: "2024-01-01",
		Rows: []eboekhouden.MutationRow{
			row(ledgerBank, "1000"),
			row(ledgerEquity, "-900"),
			row(ledgerDebtors, "50"), // no relation: arrives as an invoice
		},
	})
	require.NoError(t, err)
	require.Equal(t, db.StatusImported, result.Status, result.Message)
	assert.Equal(t, "ACC-JV-2024-00001", result.DocName)

	entries := journals(t, im)
	require.Len(t, entries, 1)
	je := entries[0]
	assert.Equal(t, erp.VoucherOpening, je.VoucherType)
	assert.True(t, je.IsOpening)
	assert.Equal(t, "Opening balance 2024-01-01", je.Title)
	require.Len(t, je.Lines, 3)
	assert.Equal(t, "9999 - Openingsverschil", je.Lines[2].Account)
	assert.Equal(t, "100.00", je.Lines[2].Credit.StringFixed(2))
	assert.Equal(t, "1000.00", je.TotalDebit().StringFixed(2))
	assert.Equal(t, "1000.00", je.TotalCredit().StringFixed(2))
}

func TestOpeningBalanceWithoutDifferenceAccount(t *testing.T) {
	opts := testOptions()
	opts.OpeningDifferenceAccount = ""
	im := newTestImporter(t, nil, opts)

	result, err := im.ImportOne(context.Background(), eboekhouden.Mutation{
		ID:   1,
		Type: eboekhouden.MutationOpeningBalance,
		Date: "2024-01-01",
		Rows: []eboekhouden.MutationRow{row(ledgerBank, "1000"), row(ledgerEquity, "-900")},
	})
	require.NoError(t, err)
	assert.Equal(t, db.StatusFailed, result.Status)
	assert.Contains(t, result.Message, "no opening difference account configured")
}

func TestSalesInvoiceInclusiveVat(t *testing.T) {
	im := newTestImporter(t, nil, testOptions())

	result, err := im.ImportOne(context.Background(), eboekhouden.Mutation{
		ID:            10,
		Type:          eboekhouden.MutationSalesInvoice,
		Date:          "2024-03-01",
		LedgerID:      ledgerDebtors,
		RelationID:    1,
		InvoiceNumber: "F2024-001",
		TermOfPayment: 14,
		InExVat:       eboekhouden.InclusiveVat,
		Amount:        d("121"),
		Rows: []eboekhouden.MutationRow{
			{LedgerID: ledgerDues, Amount: d("121"), VatAmount: d("21"), VatCode: "HOOG_VERK_21", Description: "Contributie 2024"},
		},
	})
	require.NoError(t, err)
	require.Equal(t, db.StatusImported, result.Status, result.Message)
	assert.Equal(t, erp.DocSalesInvoice, result.DocType)
	assert.Equal(t, "ACC-SINV-2024-00001", result.DocName)

	inv, err := im.docs.FindInvoice(context.Background(), nil, erp.InvoiceSales, "Jansen", "F2024-001", false)
	require.NoError(t, err)
	require.NotNil(t, inv)
	assert.Equal(t, "1300 - Debiteuren", inv.PartyAccount)
	assert.Equal(t, "2024-03-15", inv.DueDate)
	require.Len(t, inv.Items, 1)
	assert.Equal(t, "100.00", inv.Items[0].Amount.StringFixed(2))
	require.Len(t, inv.Taxes, 1)
	assert.Equal(t, "1500 - BTW", inv.Taxes[0].Account)
	assert.Equal(t, "21.00", inv.Taxes[0].Amount.StringFixed(2))
	assert.Equal(t, "121.00", inv.GrandTotal.StringFixed(2))
	assert.Equal(t, "121.00", inv.Outstanding.StringFixed(2))
	assert.False(t, inv.IsReturn)
}

func TestPurchaseCreditNote(t *testing.T) {
	im := newTestImporter(t, nil, testOptions())

	result, err := im.ImportOne(context.Background(), eboekhouden.Mutation{
		ID:            11,
		Type:          eboekhouden.MutationPurchaseInvoice,
		Date:          "2024-03-05",
		LedgerID:      ledgerCreditors,
		RelationID:    2,
		InvoiceNumber: "CN-7",
		InExVat:       eboekhouden.ExclusiveVat,
		Rows: []eboekhouden.MutationRow{
			{LedgerID: ledgerPrinting, Amount: d("-50"), VatAmount: d("-10.50"), VatCode: "hoog_ink_21"},
		},
	})
	require.NoError(t, err)
	require.Equal(t, db.StatusImported, result.Status, result.Message)
	assert.Equal(t, erp.DocPurchaseInvoice, result.DocType)

	inv, err := im.docs.FindInvoice(context.Background(), nil, erp.InvoicePurchase, "Drukkerij De Pers", "CN-7", true)
	require.NoError(t, err)
	require.NotNil(t, inv)
	assert.True(t, inv.IsReturn)
	assert.Equal(t, "50.00", inv.Items[0].Amount.StringFixed(2))
	assert.Equal(t, "1510 - Voorbelasting", inv.Taxes[0].Account)
	assert.Equal(t, "60.50", inv.GrandTotal.StringFixed(2))
}

func TestInvoiceRequiresPartyAccount(t *testing.T) {
	im := newTestImporter(t, nil, testOptions())

	result, err := im.ImportOne(context.Background(), eboekhouden.Mutation{
		ID:         12,
		Type:       eboekhouden.MutationSalesInvoice,
		Date:       "2024-03-01",
		LedgerID:   ledgerBank,
		RelationID: 1,
		Rows:       []eboekhouden.MutationRow{row(ledgerDues, "10")},
	})
	require.NoError(t, err)
	assert.Equal(t, db.StatusFailed, result.Status)
	assert.Contains(t, result.Message, "is Bank, expected Receivable")
}

func TestDuplicateInvoiceIsSkipped(t *testing.T) {
	im := newTestImporter(t, nil, testOptions())

	invoice := eboekhouden.Mutation{
		ID:            20,
		Type:          eboekhouden.MutationSalesInvoice,
		Date:          "2024-04-01",
		LedgerID:      ledgerDebtors,
		RelationID:    1,
		InvoiceNumber: "F9",
		Rows:          []eboekhouden.MutationRow{row(ledgerDues, "25")},
	}
	copyOf := invoice
	copyOf.ID = 21

	summary, err := im.Import(context.Background(), []eboekhouden.Mutation{invoice, copyOf})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Imported)
	assert.Equal(t, 1, summary.Skipped)

	record, err := im.history.Get(context.Background(), 21)
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Equal(t, db.StatusSkipped, record.Status)
	assert.Contains(t, record.Message, "duplicate of ACC-SINV-2024-00001")
}

func paymentScenario() []eboekhouden.Mutation {
	return []eboekhouden.Mutation{
		{
			ID: 3, Type: eboekhouden.MutationCustomerPayment, Date: "2024-02-01",
			LedgerID: ledgerBank, RelationID: 1, InvoiceNumber: "F2; F1", Amount: d("170"),
			Rows: []eboekhouden.MutationRow{row(ledgerDebtors, "170")},
		},
		{
			ID: 2, Type: eboekhouden.MutationSalesInvoice, Date: "2024-01-20",
			LedgerID: ledgerDebtors, RelationID: 1, InvoiceNumber: "F2",
			Rows: []eboekhouden.MutationRow{row(ledgerDues, "50")},
		},
		{
			ID: 1, Type: eboekhouden.MutationSalesInvoice, Date: "2024-01-10",
			LedgerID: ledgerDebtors, RelationID: 1, InvoiceNumber: "F1",
			Rows: []eboekhouden.MutationRow{row(ledgerDues, "100")},
		},
	}
}

func TestPaymentAllocationAndOverpaymentCorrection(t *testing.T) {
	im := newTestImporter(t, nil, testOptions())
	ctx := context.Background()

	summary, err := im.Import(ctx, paymentScenario())
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Imported)
	assert.Equal(t, 1, summary.Overpayments)
	assert.Equal(t, 2, summary.ByType[eboekhouden.MutationSalesInvoice])
	assert.Equal(t, 1, summary.ByType[eboekhouden.MutationCustomerPayment])
	assert.NotEmpty(t, summary.RunID)

	payments, err := im.docs.ListPayments(ctx, db.DateRange{})
	require.NoError(t, err)
	require.Len(t, payments, 1)
	pe := payments[0]
	assert.Equal(t, erp.PaymentReceive, pe.PaymentType)
	assert.Equal(t, "1300 - Debiteuren", pe.PaidFrom)
	assert.Equal(t, "1100 - Bank", pe.PaidTo)
	require.Len(t, pe.References, 2)
	assert.Equal(t, "F1", pe.References[0].BillNo)
	assert.Equal(t, "100.00", pe.References[0].AllocatedAmount.StringFixed(2))
	assert.Equal(t, "F2", pe.References[1].BillNo)
	assert.Equal(t, "50.00", pe.References[1].AllocatedAmount.StringFixed(2))
	assert.Equal(t, "20.00", pe.UnallocatedAmount.StringFixed(2))

	invoices, err := im.docs.ListInvoices(ctx, db.DateRange{})
	require.NoError(t, err)
	for _, inv := range invoices {
		assert.True(t, inv.Outstanding.IsZero(), inv.BillNo)
	}

	// the association refunds the overpaid 20.00
	result, err := im.ImportOne(ctx, eboekhouden.Mutation{
		ID: 4, Type: eboekhouden.MutationMemorial, Date: "2024-02-10",
		LedgerID: ledgerBank, RelationID: 1, Description: "Terugbetaling overbetaling",
		Rows: []eboekhouden.MutationRow{row(ledgerDebtors, "20")},
	})
	require.NoError(t, err)
	require.Equal(t, db.StatusImported, result.Status, result.Message)
	assert.Contains(t, result.Message, "consumed 20.00 from 1 payment(s)")

	entries := journals(t, im)
	require.Len(t, entries, 1)
	assert.Equal(t, "Overpayment correction: Terugbetaling overbetaling", entries[0].Title)
	assert.Equal(t, "Jansen", entries[0].Lines[0].Party)

	open, err := im.docs.OpenPayments(ctx, nil, erp.PartyCustomer, "Jansen")
	require.NoError(t, err)
	assert.Empty(t, open)
}

func TestRefundReversesPaymentDirection(t *testing.T) {
	im := newTestImporter(t, nil, testOptions())

	result, err := im.ImportOne(context.Background(), eboekhouden.Mutation{
		ID: 30, Type: eboekhouden.MutationCustomerPayment, Date: "2024-05-01",
		LedgerID: ledgerBank, RelationID: 1, Amount: d("-20"),
		Rows: []eboekhouden.MutationRow{row(ledgerDebtors, "-20")},
	})
	require.NoError(t, err)
	require.Equal(t, db.StatusImported, result.Status, result.Message)
	assert.False(t, result.Overpayment)

	payments, err := im.docs.ListPayments(context.Background(), db.DateRange{})
	require.NoError(t, err)
	require.Len(t, payments, 1)
	assert.Equal(t, erp.PaymentPay, payments[0].PaymentType)
	assert.Equal(t, "1100 - Bank", payments[0].PaidFrom)
	assert.Equal(t, "20.00", payments[0].PaidAmount.StringFixed(2))
}

func TestSupplierPaymentRequiresBank(t *testing.T) {
	im := newTestImporter(t, nil, testOptions())

	result, err := im.ImportOne(context.Background(), eboekhouden.Mutation{
		ID: 31, Type: eboekhouden.MutationSupplierPayment, Date: "2024-05-01",
		LedgerID: ledgerPrinting, RelationID: 2, Amount: d("20"),
		Rows: []eboekhouden.MutationRow{row(ledgerCreditors, "20")},
	})
	require.NoError(t, err)
	assert.Equal(t, db.StatusFailed, result.Status)
	assert.Contains(t, result.Message, "expected Bank or Cash")
}

func TestMoneyReceivedRoundingDifference(t *testing.T) {
	im := newTestImporter(t, nil, testOptions())

	result, err := im.ImportOne(context.Background(), eboekhouden.Mutation{
		ID: 40, Type: eboekhouden.MutationMoneyReceived, Date: "2024-06-01",
		LedgerID: ledgerBank, Amount: d("100.02"), Description: "Donatie",
		Rows: []eboekhouden.MutationRow{row(ledgerDues, "100")},
	})
	require.NoError(t, err)
	require.Equal(t, db.StatusImported, result.Status, result.Message)

	je := journals(t, im)[0]
	assert.Equal(t, erp.VoucherBank, je.VoucherType)
	require.Len(t, je.Lines, 3)
	assert.Equal(t, "100.02", je.Lines[0].Debit.StringFixed(2))
	assert.Equal(t, "100.00", je.Lines[1].Credit.StringFixed(2))
	assert.Equal(t, "8990 - Afrondingsverschillen", je.Lines[2].Account)
	assert.Equal(t, "0.02", je.Lines[2].Credit.StringFixed(2))
}

func TestMoneySentBeyondTolerance(t *testing.T) {
	im := newTestImporter(t, nil, testOptions())

	result, err := im.ImportOne(context.Background(), eboekhouden.Mutation{
		ID: 41, Type: eboekhouden.MutationMoneySent, Date: "2024-06-01",
		LedgerID: ledgerCash, Amount: d("110"),
		Rows: []eboekhouden.MutationRow{row(ledgerPrinting, "100")},
	})
	require.NoError(t, err)
	assert.Equal(t, db.StatusFailed, result.Status)
	assert.Contains(t, result.Message, "unbalanced by -10.00")
	assert.Contains(t, result.Message, "exceeds rounding tolerance 0.05")
}

func TestMoneySentCashEntry(t *testing.T) {
	im := newTestImporter(t, nil, testOptions())

	result, err := im.ImportOne(context.Background(), eboekhouden.Mutation{
		ID: 42, Type: eboekhouden.MutationMoneySent, Date: "2024-06-02",
		LedgerID: ledgerCash, InExVat: eboekhouden.InclusiveVat,
		Rows: []eboekhouden.MutationRow{
			{LedgerID: ledgerPrinting, Amount: d("12.10"), VatAmount: d("2.10"), VatCode: "HOOG_INK_21"},
		},
	})
	require.NoError(t, err)
	require.Equal(t, db.StatusImported, result.Status, result.Message)

	je := journals(t, im)[0]
	assert.Equal(t, erp.VoucherCash, je.VoucherType)
	require.Len(t, je.Lines, 3)
	assert.Equal(t, "12.10", je.Lines[0].Credit.StringFixed(2))
	assert.Equal(t, "10.00", je.Lines[1].Debit.StringFixed(2))
	assert.Equal(t, "1510 - Voorbelasting", je.Lines[2].Account)
	assert.Equal(t, "2.10", je.Lines[2].Debit.StringFixed(2))
}

func TestPartyRequired(t *testing.T) {
	mutation := eboekhouden.Mutation{
		ID: 50, Type: eboekhouden.MutationMoneyReceived, Date: "2024-07-01",
		LedgerID: ledgerBank, Amount: d("30"),
		Rows: []eboekhouden.MutationRow{row(ledgerDebtors, "30")},
	}

	im := newTestImporter(t, nil, testOptions())
	result, err := im.ImportOne(context.Background(), mutation)
	require.NoError(t, err)
	assert.Equal(t, db.StatusFailed, result.Status)
	assert.Contains(t, result.Message, ErrPartyRequired.Error())

	opts := testOptions()
	opts.DefaultCustomer = "Diverse debiteuren"
	im = newTestImporter(t, nil, opts)
	result, err = im.ImportOne(context.Background(), mutation)
	require.NoError(t, err)
	require.Equal(t, db.StatusImported, result.Status, result.Message)
	assert.Equal(t, "Diverse debiteuren", journals(t, im)[0].Lines[1].Party)
}

func TestReimportIsIdempotent(t *testing.T) {
	im := newTestImporter(t, nil, testOptions())
	ctx := context.Background()

	_, err := im.Import(ctx, paymentScenario())
	require.NoError(t, err)

	summary, err := im.Import(ctx, paymentScenario())
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Imported)
	assert.Equal(t, 3, summary.AlreadyImported)

	invoices, err := im.docs.ListInvoices(ctx, db.DateRange{})
	require.NoError(t, err)
	assert.Len(t, invoices, 2)

	last, err := im.history.GetMetadata(ctx, db.MetaLastImportDate)
	require.NoError(t, err)
	assert.Equal(t, "2024-02-01", last)
}

func TestFailedMutationIsRetried(t *testing.T) {
	mutation := eboekhouden.Mutation{
		ID: 60, Type: eboekhouden.MutationMemorial, Date: "2024-08-01", LedgerID: ledgerBank,
		Rows: []eboekhouden.MutationRow{row(99, "10")},
	}

	im := newTestImporter(t, nil, testOptions())
	result, err := im.ImportOne(context.Background(), mutation)
	require.NoError(t, err)
	assert.Equal(t, db.StatusFailed, result.Status)
	assert.Equal(t, "ledger 99 (row 1) has no account mapping", result.Message)

	fixed := newTestImporter(t, im.conn, testOptions(), mapping.LedgerMapping{
		LedgerID: 99, Account: "4999 - Overige kosten", AccountType: erp.AccountExpense, RootType: erp.RootExpense,
	})
	result, err = fixed.ImportOne(context.Background(), mutation)
	require.NoError(t, err)
	require.Equal(t, db.StatusImported, result.Status, result.Message)

	record, err := fixed.history.Get(context.Background(), 60)
	require.NoError(t, err)
	assert.Equal(t, 2, record.Attempts)
}

func TestZeroMutationIsSkipped(t *testing.T) {
	im := newTestImporter(t, nil, testOptions())

	result, err := im.ImportOne(context.Background(), eboekhouden.Mutation{
		ID: 70, Type: eboekhouden.MutationMemorial, Date: "2024-09-01",
		Rows: []eboekhouden.MutationRow{row(ledgerDues, "0")},
	})
	require.NoError(t, err)
	assert.Equal(t, db.StatusSkipped, result.Status)
	assert.Equal(t, "zero amount", result.Message)
}

func TestUnsupportedType(t *testing.T) {
	im := newTestImporter(t, nil, testOptions())

	result, err := im.ImportOne(context.Background(), eboekhouden.Mutation{
		ID: 80, Type: 9, Date: "2024-09-01", Amount: d("1"),
	})
	require.NoError(t, err)
	assert.Equal(t, db.StatusFailed, result.Status)
	assert.Contains(t, result.Message, ErrUnsupportedType.Error())
}

func TestStrictModeAborts(t *testing.T) {
	opts := testOptions()
	opts.Strict = true
	im := newTestImporter(t, nil, opts)

	summary, err := im.Import(context.Background(), []eboekhouden.Mutation{
		{ID: 1, Type: eboekhouden.MutationMemorial, Date: "2024-01-01", LedgerID: ledgerBank, Rows: []eboekhouden.MutationRow{row(99, "5")}},
		{ID: 2, Type: eboekhouden.MutationMemorial, Date: "2024-01-02", LedgerID: ledgerBank, Rows: []eboekhouden.MutationRow{row(ledgerDues, "-5")}},
	})
	require.Error(t, err)
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, 0, summary.Imported)
	require.Len(t, summary.Failures, 1)
	assert.Equal(t, int64(1), summary.Failures[0].MutationID)
}

func TestImportFilter(t *testing.T) {
	filter, err := NewFilter(`Type == 5 && Amount > 10`)
	require.NoError(t, err)

	opts := testOptions()
	opts.Filter = filter
	im := newTestImporter(t, nil, opts)

	summary, err := im.Import(context.Background(), []eboekhouden.Mutation{
		{ID: 1, Type: eboekhouden.MutationMoneyReceived, Date: "2024-01-01", LedgerID: ledgerBank, Amount: d("50"), Rows: []eboekhouden.MutationRow{row(ledgerDues, "50")}},
		{ID: 2, Type: eboekhouden.MutationMoneyReceived, Date: "2024-01-01", LedgerID: ledgerBank, Amount: d("5"), Rows: []eboekhouden.MutationRow{row(ledgerDues, "5")}},
		{ID: 3, Type: eboekhouden.MutationSalesInvoice, Date: "2024-01-01", LedgerID: ledgerDebtors, RelationID: 1, Rows: []eboekhouden.MutationRow{row(ledgerDues, "50")}},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Imported)
	assert.Equal(t, 2, summary.Filtered)

	record, err := im.history.Get(context.Background(), 2)
	require.NoError(t, err)
	assert.Nil(t, record)
}

func TestNewFilter(t *testing.T) {
	f, err := NewFilter("")
	require.NoError(t, err)
	assert.Nil(t, f)

	ok, err := f.Match(&eboekhouden.Mutation{ID: 1})
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = NewFilter(`Amount +`)
	assert.Error(t, err)

	_, err = NewFilter(`Description`)
	assert.Error(t, err, "non-boolean expressions are rejected")

	f, err = NewFilter(`Description contains "contributie" || RelationID == 7`)
	require.NoError(t, err)
	ok, err = f.Match(&eboekhouden.Mutation{RelationID: 7})
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestFetchesMissingRows(t *testing.T) {
	fetcher := fakeFetcher{
		90: {
			ID: 90, Type: eboekhouden.MutationMoneyReceived, Date: "2024-10-01", LedgerID: ledgerBank, Amount: d("15"),
			Rows: []eboekhouden.MutationRow{row(ledgerDues, "15")},
		},
		91: {
			ID: 91, Type: eboekhouden.MutationMemorial, Date: "2024-10-02", LedgerID: ledgerBank,
			Rows: []eboekhouden.MutationRow{row(ledgerDues, "-40")},
		},
		92: {
			ID: 92, Type: eboekhouden.MutationMemorial, Date: "2024-10-03", LedgerID: ledgerBank,
			Rows: []eboekhouden.MutationRow{row(ledgerDues, "0")},
		},
	}

	tests := []struct {
		name      string
		listed    eboekhouden.Mutation
		status    db.Status
		message   string
		bankDebit string
	}{
		{
			name:      "listed with amount",
			listed:    eboekhouden.Mutation{ID: 90, Type: eboekhouden.MutationMoneyReceived, Date: "2024-10-01", LedgerID: ledgerBank, Amount: d("15")},
			status:    db.StatusImported,
			bankDebit: "15.00",
		},
		{
			name:      "listed without amount",
			listed:    eboekhouden.Mutation{ID: 91, Type: eboekhouden.MutationMemorial, Date: "2024-10-02", LedgerID: ledgerBank},
			status:    db.StatusImported,
			bankDebit: "40.00",
		},
		{
			name:    "rows are zero too",
			listed:  eboekhouden.Mutation{ID: 92, Type: eboekhouden.MutationMemorial, Date: "2024-10-03", LedgerID: ledgerBank},
			status:  db.StatusSkipped,
			message: "zero amount",
		},
		{
			name:    "detail unavailable",
			listed:  eboekhouden.Mutation{ID: 93, Type: eboekhouden.MutationMemorial, Date: "2024-10-04", LedgerID: ledgerBank},
			status:  db.StatusFailed,
			message: "mutation 93 not found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conn, err := db.Open(filepath.Join(t.TempDir(), "import.db"))
			require.NoError(t, err)
			t.Cleanup(func() { _ = conn.Close() })

			im := New(conn, mapping.New(testLedgers, testVat), testParties, fetcher, testOptions(),
				slog.New(slog.NewTextHandler(io.Discard, nil)))

			result, err := im.ImportOne(context.Background(), tt.listed)
			require.NoError(t, err)
			assert.Equal(t, tt.status, result.Status, result.Message)
			if tt.message != "" {
				assert.Contains(t, result.Message, tt.message)
			}
			if tt.bankDebit != "" {
				entries := journals(t, im)
				require.Len(t, entries, 1)
				var debit string
				for _, l := range entries[0].Lines {
					if l.Account == "1100 - Bank" {
						debit = l.Debit.StringFixed(2)
					}
				}
				assert.Equal(t, tt.bankDebit, debit)
			}
		})
	}
}

func TestSplitInvoiceNumbers(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"", nil},
		{"F1", []string{"F1"}},
		{"F1, F2;F3", []string{"F1", "F2", "F3"}},
		{" F1 ;; F1 ", []string{"F1"}},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, splitInvoiceNumbers(tt.in))
		})
	}
}

func TestZeroToleranceRequiresExactBalance(t *testing.T) {
	opts := testOptions()
	opts.RoundingTolerance = decimal.Zero
	im := newTestImporter(t, nil, opts)

	result, err := im.ImportOne(context.Background(), eboekhouden.Mutation{
		ID: 43, Type: eboekhouden.MutationMoneyReceived, Date: "2024-06-03",
		LedgerID: ledgerBank, Amount: d("100.03"),
		Rows: []eboekhouden.MutationRow{row(ledgerDues, "100")},
	})
	require.NoError(t, err)
	assert.Equal(t, db.StatusFailed, result.Status)
	assert.Contains(t, result.Message, "unbalanced by 0.03")
	assert.Empty(t, journals(t, im))
}

func TestOverpaymentCorrectionOnPartyAccountsOnly(t *testing.T) {
	im := newTestImporter(t, nil, testOptions())
	ctx := context.Background()

	_, err := im.Import(ctx, paymentScenario())
	require.NoError(t, err)

	// the customer's advance is set off against an open supplier balance
	result, err := im.ImportOne(ctx, eboekhouden.Mutation{
		ID: 5, Type: eboekhouden.MutationMemorial, Date: "2024-02-15",
		RelationID: 1, Description: "Verrekening",
		Rows: []eboekhouden.MutationRow{row(ledgerDebtors, "15"), row(ledgerCreditors, "-15")},
	})
	require.NoError(t, err)
	require.Equal(t, db.StatusImported, result.Status, result.Message)
	assert.Contains(t, result.Message, "consumed 15.00 from 1 payment(s)")

	entries := journals(t, im)
	require.Len(t, entries, 1)
	assert.True(t, strings.HasPrefix(entries[0].Title, "Overpayment correction: "), entries[0].Title)
	for _, l := range entries[0].Lines {
		assert.Equal(t, "Jansen", l.Party)
	}

	open, err := im.docs.OpenPayments(ctx, nil, erp.PartyCustomer, "Jansen")
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, "5.00", open[0].UnallocatedAmount.StringFixed(2))
}

func TestMemorialWithRelationIsNotACorrection(t *testing.T) {
	im := newTestImporter(t, nil, testOptions())
	ctx := context.Background()

	_, err := im.Import(ctx, paymentScenario())
	require.NoError(t, err)

	result, err := im.ImportOne(ctx, eboekhouden.Mutation{
		ID: 6, Type: eboekhouden.MutationMemorial, Date: "2024-02-15",
		RelationID: 1, Description: "Correctie contributie",
		Rows: []eboekhouden.MutationRow{row(ledgerDebtors, "10"), row(ledgerDues, "-10")},
	})
	require.NoError(t, err)
	require.Equal(t, db.StatusImported, result.Status, result.Message)
	assert.NotContains(t, result.Message, "consumed")

	entries := journals(t, im)
	require.Len(t, entries, 1)
	assert.False(t, strings.HasPrefix(entries[0].Title, "Overpayment correction"), entries[0].Title)

	open, err := im.docs.OpenPayments(ctx, nil, erp.PartyCustomer, "Jansen")
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, "20.00", open[0].UnallocatedAmount.StringFixed(2))
}

func TestDatabaseFailureStopsImport(t *testing.T) {
	im := newTestImporter(t, nil, testOptions())
	ctx := context.Background()

	_, err := im.conn.GetDB().Exec(`DROP TABLE journal_entries`)
	require.NoError(t, err)

	summary, err := im.Import(ctx, []eboekhouden.Mutation{{
		ID: 44, Type: eboekhouden.MutationMoneyReceived, Date: "2024-06-04",
		LedgerID: ledgerBank, Amount: d("10"),
		Rows: []eboekhouden.MutationRow{row(ledgerDues, "10")},
	}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "journal_entries")
	assert.Equal(t, 0, summary.Failed)

	record, err := im.history.Get(ctx, 44)
	require.NoError(t, err)
	assert.Nil(t, record)
}

func TestDuplicateInvoiceAfterCreditNote(t *testing.T) {
	im := newTestImporter(t, nil, testOptions())

	invoice := func(id int64, date, amount string) eboekhouden.Mutation {
		return eboekhouden.Mutation{
			ID: id, Type: eboekhouden.MutationSalesInvoice, Date: date,
			LedgerID: ledgerDebtors, RelationID: 1, InvoiceNumber: "F9",
			Rows: []eboekhouden.MutationRow{row(ledgerDues, amount)},
		}
	}

	summary, err := im.Import(context.Background(), []eboekhouden.Mutation{
		invoice(22, "2024-04-01", "-25"),
		invoice(23, "2024-04-02", "25"),
		invoice(24, "2024-04-03", "25"),
	})
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Imported)
	assert.Equal(t, 1, summary.Skipped)

	record, err := im.history.Get(context.Background(), 24)
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Equal(t, db.StatusSkipped, record.Status)
	assert.Contains(t, record.Message, "duplicate of ACC-SINV-2024-00002")
}
