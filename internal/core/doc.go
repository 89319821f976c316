// Package core maps spreadsheet rows to typed records and back.
//
// This package holds all mapping logic independent of any transport. It is
// used by the HTTP server, the sheetconv CLI and tests without modification.
//
// # Bindings
//
// A record type declares its columns once, usually in an init function, and
// registers the binding with [Register]:
//
//	core.Register(core.Bind[Invoice]("invoices", "Invoices").
//	    Group("Billing").
//	    Column("Number", "Invoice No", 1, func(i *Invoice) any { return &i.Number }).
//	    Column("Total", "Total", 2, func(i *Invoice) any { return &i.Total }).
//	    Column("Memo", "Memo", 0, func(i *Invoice) any { return &i.Memo }))
//
// Header labels are the join key between sheet columns and fields, so a
// sheet may order its columns freely. A positive order puts the column in
// exports; order 0 makes it import-only.
//
// # Import
//
// [Import] and [ImportWith] read the first sheet of an .xls or .xlsx
// workbook. Every cell is normalized to text first (see cell.go), then
// coerced into its field (see convert.go). Failures yield an empty slice and
// a log entry; [Read] returns the error and an [ImportResult] instead.
//
// # Export
//
// [Build], [BuildRaw] and [Template] produce a single-sheet [Workbook] whose
// first row holds the header labels and stays frozen while scrolling. The
// workbook is delivered with [WriteResponse] or [WriteFile].
//
// # Error Handling
//
// Technical errors are mapped to user-friendly messages using [MapError].
// Each error category has a unique code for support reference:
//
//   - FILE001-FILE006: File errors (size, format, damaged workbooks)
//   - TYPE001-TYPE002: Unknown record types and fields
//   - IMP001-IMP004: Import errors (busy, cancelled, timeout, dates)
//   - EXP001-EXP003: Export errors (body, build, delivery)
package core
