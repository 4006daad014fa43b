// Package exporter writes license listings and the local issuance history
// to CSV or XLSX for reporting outside the admin tool.
//
// Both formats share the same Table: a sheet name, a header row and string
// rows, so a listing exported as CSV and as XLSX carries identical cells.
//
//	table := exporter.LicenseTable(licenses)
//	path, err := exporter.WriteFile("exports/licenses", exporter.FormatXLSX, table)
package exporter
