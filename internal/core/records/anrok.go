package records

import (
	"github.com/JonMunkholm/tabmap/internal/core"
	"github.com/jackc/pgx/v5/pgtype"
)

// AnrokTransaction is one row of an Anrok sales tax transaction report.
// Every column is optional in the report, so text columns are nullable.
type AnrokTransaction struct {
	TransactionID string         `json:"transactionId"`
	CustomerID    pgtype.Text    `json:"customerId"`
	CustomerName  pgtype.Text    `json:"customerName"`
	InvoiceDate   pgtype.Date    `json:"invoiceDate"`
	TaxDate       pgtype.Date    `json:"taxDate"`
	Currency      pgtype.Text    `json:"currency"`
	SalesAmount   pgtype.Numeric `json:"salesAmount"`
	TaxAmount     pgtype.Numeric `json:"taxAmount"`
	InvoiceAmount pgtype.Numeric `json:"invoiceAmount"`
	Void          bool           `json:"void"`
	CountryCode   pgtype.Text    `json:"countryCode"`
	Jurisdictions pgtype.Text    `json:"jurisdictions"`
	ReturnIDs     pgtype.Text    `json:"returnIds"`
}

func init() {
	registerAnrokTransactions()
}

func registerAnrokTransactions() {
	core.Register(core.Bind[AnrokTransaction]("anrok_transactions", "Transactions").
		Group("Anrok").
		Column("TransactionID", "Transaction ID", 1, func(t *AnrokTransaction) any { return &t.TransactionID }).
		Column("CustomerID", "Customer ID", 2, func(t *AnrokTransaction) any { return &t.CustomerID }).
		Column("CustomerName", "Customer name", 3, func(t *AnrokTransaction) any { return &t.CustomerName }).
		Column("InvoiceDate", "Invoice date", 4, func(t *AnrokTransaction) any { return &t.InvoiceDate }).
		Column("TaxDate", "Tax date", 5, func(t *AnrokTransaction) any { return &t.TaxDate }).
		Column("Currency", "Transaction currency", 6, func(t *AnrokTransaction) any { return &t.Currency }).
		Column("SalesAmount", "Sales amount", 7, func(t *AnrokTransaction) any { return &t.SalesAmount }).
		Column("TaxAmount", "Tax amount", 8, func(t *AnrokTransaction) any { return &t.TaxAmount }).
		Column("InvoiceAmount", "Invoice amount", 9, func(t *AnrokTransaction) any { return &t.InvoiceAmount }).
		Column("Void", "Void", 10, func(t *AnrokTransaction) any { return &t.Void }).
		Column("CountryCode", "Customer country code", 11, func(t *AnrokTransaction) any { return &t.CountryCode }).
		Column("Jurisdictions", "Jurisdictions", 12, func(t *AnrokTransaction) any { return &t.Jurisdictions }).
		Column("ReturnIDs", "Return IDs", 0, func(t *AnrokTransaction) any { return &t.ReturnIDs }))
}
