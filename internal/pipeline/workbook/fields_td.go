package workbook

import (
	"github.com/wagid-sheikh/simplify-downloader/internal/clock"
)

// TDOrdersSpec is the TD Orders report's column map. Dedup key:
// order_number + order_date.
var TDOrdersSpec = ReportSpec{
	Name: "td_orders",
	Columns: []ColumnSpec{
		{Canonical: "order_number", Kind: FieldString, Headers: []string{"Order Number", "Order No", "Order #"}, Required: true, DedupKey: true},
		{Canonical: "order_date", Kind: FieldDate, Headers: []string{"Order Date"}, Required: true, DedupKey: true},
		{Canonical: "due_date", Kind: FieldDate, Headers: []string{"Due Date"}},
		{Canonical: "customer_name", Kind: FieldString, Headers: []string{"Customer Name"}},
		{Canonical: "customer_phone", Kind: FieldPhone, Headers: []string{"Customer Phone", "Mobile Number"}},
		{Canonical: "status", Kind: FieldString, Headers: []string{"Status", "Order Status"}},
		{Canonical: "total_amount", Kind: FieldNumeric, Headers: []string{"Total Amount", "Order Amount"}},
		{Canonical: "paid_amount", Kind: FieldNumeric, Headers: []string{"Paid Amount"}},
	},
}

// TDSalesSpec is the TD Sales & Delivery report's column map. Dedup key:
// order_number + payment_date.
var TDSalesSpec = ReportSpec{
	Name: "td_sales",
	Columns: []ColumnSpec{
		{Canonical: "order_number", Kind: FieldString, Headers: []string{"Order Number", "Order No"}, Required: true, DedupKey: true},
		{Canonical: "payment_date", Kind: FieldDate, Headers: []string{"Payment Date"}, Required: true, DedupKey: true},
		{Canonical: "payment_mode", Kind: FieldString, Headers: []string{"Payment Mode"}},
		{Canonical: "payment_amount", Kind: FieldNumeric, Headers: []string{"Payment Amount", "Amount"}},
	},
}

// DeriveTDOrderFields fills in order-specific derived fields per row,
// mutating row in place. It is a no-op for rows missing order_date.
//
// default_due_date = order_date + 3; due_date defaults to
// default_due_date when the source column was absent; due_days_delta =
// due_date - default_due_date; due_date_flag classifies that delta;
// complete_processing_by = default_due_date - 1.
func DeriveTDOrderFields(row Row) {
	orderDate, ok := row["order_date"].(clock.Date)
	if !ok {
		return
	}

	defaultDue := orderDate.AddDays(3)
	row["default_due_date"] = defaultDue

	dueDate, ok := row["due_date"].(clock.Date)
	if !ok {
		dueDate = defaultDue
		row["due_date"] = dueDate
	}

	deltaDays := dueDate.DaysSince(defaultDue)
	row["due_days_delta"] = deltaDays

	switch {
	case deltaDays == 0:
		row["due_date_flag"] = "Normal Delivery"
	case deltaDays > 0:
		row["due_date_flag"] = "Date Extended"
	default:
		row["due_date_flag"] = "Express Delivery"
	}

	row["complete_processing_by"] = defaultDue.AddDays(-1)
}
