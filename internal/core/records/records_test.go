package records

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/JonMunkholm/tabmap/internal/core"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestRegisteredTypes(t *testing.T) {
	for _, key := range []string{"sfdc_customers", "sfdc_price_book", "ns_invoices", "ns_so_lines", "anrok_transactions"} {
		t.Run(key, func(t *testing.T) {
			def, ok := core.Get(key)
			require.True(t, ok, "type %s not registered", key)
			require.NoError(t, def.Validate())
			assert.NotEmpty(t, def.Info().ExportHeaders)
		})
	}

	assert.Equal(t, []string{"Anrok", "NS", "SFDC"}, core.Groups())
}

func TestLabels(t *testing.T) {
	assert.Equal(t, "Account ID (18)", core.LabelOf[Customer]("AccountID"))
	assert.Equal(t, "Document Number", core.LabelOf[Invoice]("Number"))
	assert.Equal(t, "Document Number", core.LabelOf[SalesOrderLine]("OrderNumber"))

	notes, err := core.ColumnOf[Customer]("Notes")
	require.NoError(t, err)
	assert.False(t, notes.Exported())
}

func workbook(t *testing.T, rows [][]any) []byte {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(core.DefaultSheet, cell, &row))
	}
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

func TestImportCustomers(t *testing.T) {
	data := workbook(t, [][]any{
		{"Account Name", "Account ID (18)", "Active", "Tier", "Last Activity", "Notes"},
		{"Acme", "001A000001", "Yes", "Gold", time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), "key account"},
		{"Globex", "001A000002", "no", "", "3/15/24", ""},
	})

	got := core.Import[Customer](context.Background(), "customers.xlsx", bytes.NewReader(data))
	require.Len(t, got, 2)

	assert.Equal(t, "001A000001", got[0].AccountID)
	assert.True(t, got[0].Active)
	assert.Equal(t, core.Char('G'), got[0].Tier)
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), got[0].LastActivity)
	require.NotNil(t, got[0].Notes)
	assert.Equal(t, "key account", *got[0].Notes)

	assert.False(t, got[1].Active)
	assert.Equal(t, time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC), got[1].LastActivity)
	assert.Nil(t, got[1].Notes)
}

func TestInvoiceRoundTrip(t *testing.T) {
	b, ok := core.BindingFor[Invoice]()
	require.True(t, ok)

	due := time.Date(2024, 2, 14, 0, 0, 0, 0, time.UTC)
	wb, err := b.BuildJSON([]byte(`[{
		"id": "5f0c8b8e-2f4e-4a8a-9d3c-7d1f0a6b9e21",
		"number": "INV-1001",
		"customer": "Acme",
		"issueDate": "2024-01-15",
		"dueDate": "2024-02-14T00:00:00Z",
		"total": 1250.75,
		"taxRate": 0.08,
		"lineCount": 3,
		"paid": true,
		"memo": "net 30",
		"internalRef": "ignored on export"
	}]`))
	require.NoError(t, err)
	defer wb.Close()

	data, err := wb.Bytes()
	require.NoError(t, err)

	res, err := core.Read(context.Background(), b, "invoices.xlsx", bytes.NewReader(data))
	require.NoError(t, err)
	require.Len(t, res.Records, 1)
	assert.Empty(t, res.FieldErrors)
	assert.Equal(t, []string{"Internal ID"}, res.Missing)

	inv := res.Records[0]
	assert.Equal(t, uuid.MustParse("5f0c8b8e-2f4e-4a8a-9d3c-7d1f0a6b9e21"), inv.ID)
	assert.Equal(t, "INV-1001", inv.Number)
	assert.True(t, inv.IssueDate.Valid)
	assert.Equal(t, time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC), inv.IssueDate.Time)
	require.NotNil(t, inv.DueDate)
	assert.Equal(t, due, *inv.DueDate)
	assert.True(t, inv.Total.Valid)
	assert.Equal(t, 0.08, inv.TaxRate)
	assert.Equal(t, 3, inv.LineCount)
	assert.True(t, inv.Paid)
	assert.Equal(t, "net 30", inv.Memo.String)
	assert.Empty(t, inv.InternalRef)

	total, err := inv.Total.Float64Value()
	require.NoError(t, err)
	assert.InDelta(t, 1250.75, total.Float64, 1e-9)
}

func TestSalesOrderLineTemplate(t *testing.T) {
	def, ok := core.Get("ns_so_lines")
	require.True(t, ok)

	wb, err := def.Template()
	require.NoError(t, err)
	defer wb.Close()

	assert.Equal(t, []string{"Document Number", "Line", "Item", "Quantity", "Item Rate", "Amount", "Ship Date"}, wb.Headers())
	assert.Zero(t, wb.Rows())
}

func TestImportAnrokTransactions(t *testing.T) {
	data := workbook(t, [][]any{
		{"Transaction ID", "Customer name", "Invoice date", "Sales amount", "Tax amount", "Void", "Return IDs"},
		{"TX-1", "Acme", "2024-05-01", 100, "8.25", "false", "R-9"},
		{"TX-2", "", "", "", "", "TRUE", ""},
	})

	got := core.Import[AnrokTransaction](context.Background(), "anrok.xlsx", bytes.NewReader(data))
	require.Len(t, got, 2)

	tx := got[0]
	assert.Equal(t, "TX-1", tx.TransactionID)
	assert.Equal(t, "Acme", tx.CustomerName.String)
	assert.True(t, tx.CustomerName.Valid)
	assert.Equal(t, time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC), tx.InvoiceDate.Time)
	assert.False(t, tx.TaxDate.Valid)
	assert.True(t, tx.SalesAmount.Valid)
	assert.True(t, tx.TaxAmount.Valid)
	assert.False(t, tx.Void)
	assert.Equal(t, "R-9", tx.ReturnIDs.String)

	assert.False(t, got[1].CustomerName.Valid)
	assert.False(t, got[1].SalesAmount.Valid)
	assert.True(t, got[1].Void)
}
