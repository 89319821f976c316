package records

import (
	"time"

	"github.com/JonMunkholm/tabmap/internal/core"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

// Invoice is one NetSuite invoice header.
type Invoice struct {
	ID          uuid.UUID      `json:"id"`
	Number      string         `json:"number"`
	Customer    string         `json:"customer"`
	IssueDate   pgtype.Date    `json:"issueDate"`
	DueDate     *time.Time     `json:"dueDate,omitempty"`
	Total       pgtype.Numeric `json:"total"`
	TaxRate     float64        `json:"taxRate"`
	LineCount   int            `json:"lineCount"`
	Paid        bool           `json:"paid"`
	Memo        pgtype.Text    `json:"memo"`
	InternalRef string         `json:"internalRef"`
}

// SalesOrderLine is one line of a NetSuite sales order.
type SalesOrderLine struct {
	OrderNumber string         `json:"orderNumber"`
	Line        uint16         `json:"line"`
	Item        string         `json:"item"`
	Quantity    int64          `json:"quantity"`
	Rate        pgtype.Numeric `json:"rate"`
	Amount      pgtype.Numeric `json:"amount"`
	ShipDate    pgtype.Date    `json:"shipDate"`
}

func init() {
	registerNsInvoices()
	registerNsSalesOrderLines()
}

func registerNsInvoices() {
	core.Register(core.Bind[Invoice]("ns_invoices", "Invoices").
		Group("NS").
		Column("ID", "Invoice ID", 1, func(i *Invoice) any { return &i.ID }).
		Column("Number", "Document Number", 2, func(i *Invoice) any { return &i.Number }).
		Column("Customer", "Customer", 3, func(i *Invoice) any { return &i.Customer }).
		Column("IssueDate", "Date", 4, func(i *Invoice) any { return &i.IssueDate }).
		Column("DueDate", "Due Date", 5, func(i *Invoice) any { return &i.DueDate }).
		Column("Total", "Amount (Total)", 6, func(i *Invoice) any { return &i.Total }).
		Column("TaxRate", "Tax Rate", 7, func(i *Invoice) any { return &i.TaxRate }).
		Column("LineCount", "Lines", 8, func(i *Invoice) any { return &i.LineCount }).
		Column("Paid", "Paid In Full", 9, func(i *Invoice) any { return &i.Paid }).
		Column("Memo", "Memo", 10, func(i *Invoice) any { return &i.Memo }).
		Column("InternalRef", "Internal ID", 0, func(i *Invoice) any { return &i.InternalRef }))
}

func registerNsSalesOrderLines() {
	core.Register(core.Bind[SalesOrderLine]("ns_so_lines", "Sales Order Lines").
		Group("NS").
		Column("OrderNumber", "Document Number", 1, func(l *SalesOrderLine) any { return &l.OrderNumber }).
		Column("Line", "Line", 2, func(l *SalesOrderLine) any { return &l.Line }).
		Column("Item", "Item", 3, func(l *SalesOrderLine) any { return &l.Item }).
		Column("Quantity", "Quantity", 4, func(l *SalesOrderLine) any { return &l.Quantity }).
		Column("Rate", "Item Rate", 5, func(l *SalesOrderLine) any { return &l.Rate }).
		Column("Amount", "Amount", 6, func(l *SalesOrderLine) any { return &l.Amount }).
		Column("ShipDate", "Ship Date", 7, func(l *SalesOrderLine) any { return &l.ShipDate }))
}
