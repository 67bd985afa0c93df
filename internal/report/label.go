package report

import (
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// FieldLabel returns the display label of a field name,
// e.g. "phone_number" becomes "Phone Number".
func FieldLabel(field string) string {
	return cases.Title(language.English).String(strings.ReplaceAll(strings.TrimSpace(field), "_", " "))
}

// Percent formats a percentage with one decimal.
func Percent(p float64) string {
	return strconv.FormatFloat(p, 'f', 1, 64) + "%"
}

// Cost formats a USD amount the way the summary banner shows it.
func Cost(usd float64) string {
	return "$" + strconv.FormatFloat(usd, 'f', 4, 64)
}
