// Package schema defines the records shared by the viaticos store, its HTTP
// API and the SDK. JSON field names follow the spreadsheet and front-end
// conventions (camelCase Spanish) so persisted snapshots stay compatible.
package schema

import "github.com/shopspring/decimal"

func init() {
	// Amounts travel as JSON numbers, not quoted strings.
	decimal.MarshalJSONWithoutQuotes = true
}

// DateLayout is the calendar-date layout used by trip and expense dates.
const DateLayout = "2006-01-02"
