package workbook

// UCOrdersSpec is the UC GST export's column map. Dedup key:
// order_number + invoice_date.
var UCOrdersSpec = ReportSpec{
	Name: "uc_orders",
	Columns: []ColumnSpec{
		{Canonical: "order_number", Kind: FieldString, Headers: []string{"Order Number", "Invoice Number"}, Required: true, DedupKey: true},
		{Canonical: "invoice_date", Kind: FieldDate, Headers: []string{"Invoice Date"}, Required: true, DedupKey: true},
		{Canonical: "customer_name", Kind: FieldString, Headers: []string{"Customer Name"}},
		{Canonical: "customer_phone", Kind: FieldPhone, Headers: []string{"Customer Phone", "Mobile"}},
		{Canonical: "taxable_amount", Kind: FieldNumeric, Headers: []string{"Taxable Amount", "Taxable Value"}},
		{Canonical: "cgst", Kind: FieldNumeric, Headers: []string{"CGST"}},
		{Canonical: "sgst", Kind: FieldNumeric, Headers: []string{"SGST"}},
		{Canonical: "total_amount", Kind: FieldNumeric, Headers: []string{"Total Amount", "Invoice Amount"}},
	},
}

// DeriveUCFields fills tax_amount = cgst + sgst, per row.
func DeriveUCFields(row Row) {
	cgst, _ := row["cgst"].(float64)
	sgst, _ := row["sgst"].(float64)
	row["tax_amount"] = cgst + sgst
}
