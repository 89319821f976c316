package records

import (
	"time"

	"github.com/JonMunkholm/tabmap/internal/core"
	"github.com/jackc/pgx/v5/pgtype"
)

// Customer is one Salesforce account.
type Customer struct {
	AccountID    string    `json:"accountId"`
	AccountName  string    `json:"accountName"`
	Type         string    `json:"type"`
	LastActivity time.Time `json:"lastActivity"`
	Active       bool      `json:"active"`
	Tier         core.Char `json:"tier"`
	Notes        *string   `json:"notes,omitempty"`
}

// PriceBookEntry is one product line of a Salesforce price book.
type PriceBookEntry struct {
	PriceBookName string         `json:"priceBookName"`
	ProductName   string         `json:"productName"`
	ProductCode   string         `json:"productCode"`
	ListPrice     pgtype.Numeric `json:"listPrice"`
	MinQuantity   int32          `json:"minQuantity"`
	Discount      float64        `json:"discount"`
}

func init() {
	registerSfdcCustomers()
	registerSfdcPriceBook()
}

func registerSfdcCustomers() {
	core.Register(core.Bind[Customer]("sfdc_customers", "Customers").
		Group("SFDC").
		Column("AccountID", "Account ID (18)", 1, func(c *Customer) any { return &c.AccountID }).
		Column("AccountName", "Account Name", 2, func(c *Customer) any { return &c.AccountName }).
		Column("Type", "Type", 3, func(c *Customer) any { return &c.Type }).
		Column("LastActivity", "Last Activity", 4, func(c *Customer) any { return &c.LastActivity }).
		Column("Active", "Active", 5, func(c *Customer) any { return &c.Active }).
		Column("Tier", "Tier", 6, func(c *Customer) any { return &c.Tier }).
		Column("Notes", "Notes", 0, func(c *Customer) any { return &c.Notes }))
}

func registerSfdcPriceBook() {
	core.Register(core.Bind[PriceBookEntry]("sfdc_price_book", "Price Book").
		Group("SFDC").
		Column("PriceBookName", "Price Book Name", 1, func(p *PriceBookEntry) any { return &p.PriceBookName }).
		Column("ProductName", "Product Name", 2, func(p *PriceBookEntry) any { return &p.ProductName }).
		Column("ProductCode", "Product Code", 3, func(p *PriceBookEntry) any { return &p.ProductCode }).
		Column("ListPrice", "List Price", 4, func(p *PriceBookEntry) any { return &p.ListPrice }).
		Column("MinQuantity", "Min Quantity", 5, func(p *PriceBookEntry) any { return &p.MinQuantity }).
		Column("Discount", "Discount", 6, func(p *PriceBookEntry) any { return &p.Discount }))
}
