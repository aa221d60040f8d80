package view

import (
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
	"invoicesync/pkg/models"
)

// Option is one choice of a filter control.
type Option struct {
	Value string `json:"value" yaml:"value"`
	Label string `json:"label" yaml:"label"`
}

// FilterOptions lists the choices offered for each criterion.
type FilterOptions struct {
	Years  []string `json:"years" yaml:"years"`
	Months []Option `json:"months" yaml:"months"`
	Stores []Option `json:"stores" yaml:"stores"`
}

// MonthOptions returns "All Months" followed by January through December.
func MonthOptions() []Option {
	months := make([]Option, 0, 13)
	months = append(months, Option{Value: "", Label: "All Months"})
	for m := time.January; m <= time.December; m++ {
		months = append(months, Option{Value: strconv.Itoa(int(m)), Label: m.String()})
	}
	return months
}

// Options collects the distinct years and stores present in the collection.
// Years are newest first. Stores are ordered case-insensitively; each value is the
// lowercased name, matching how Criteria.Store compares.
func Options(collection models.Collection) FilterOptions {
	years := map[int]bool{}
	labels := map[string]string{}

	for _, r := range collection {
		if r == nil {
			continue
		}
		if d, ok := r.ParsedDate(); ok {
			years[d.Year()] = true
		}
		if r.Store == "" {
			continue
		}
		value := strings.ToLower(r.Store)
		if current, ok := labels[value]; !ok || r.Store < current {
			labels[value] = r.Store
		}
	}

	opts := FilterOptions{
		Years:  make([]string, 0, len(years)),
		Months: MonthOptions(),
		Stores: make([]Option, 0, len(labels)),
	}

	yearList := make([]int, 0, len(years))
	for y := range years {
		yearList = append(yearList, y)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(yearList)))
	for _, y := range yearList {
		opts.Years = append(opts.Years, strconv.Itoa(y))
	}

	for value, label := range labels {
		opts.Stores = append(opts.Stores, Option{Value: value, Label: label})
	}
	col := collate.New(language.English, collate.IgnoreCase)
	sort.Slice(opts.Stores, func(i, j int) bool {
		if c := col.CompareString(opts.Stores[i].Value, opts.Stores[j].Value); c != 0 {
			return c < 0
		}
		return opts.Stores[i].Value < opts.Stores[j].Value
	})

	return opts
}

// Column is one displayed record attribute.
type Column struct {
	Field models.Field
	Label string
}

// Columns is the display order of record attributes. The store is shown as the group
// heading rather than a column.
var Columns = []Column{
	{Field: models.FieldDate, Label: ColumnLabel(models.FieldDate)},
	{Field: models.FieldInvoiceNumber, Label: ColumnLabel(models.FieldInvoiceNumber)},
	{Field: models.FieldAmount, Label: ColumnLabel(models.FieldAmount)},
	{Field: models.FieldGST, Label: ColumnLabel(models.FieldGST)},
	{Field: models.FieldPaid, Label: ColumnLabel(models.FieldPaid)},
	{Field: models.FieldComment, Label: ColumnLabel(models.FieldComment)},
}

// ColumnLabel turns a camelCase field name into a heading, e.g. "invoiceNumber"
// becomes "Invoice".
func ColumnLabel(f models.Field) string {
	if f == models.FieldInvoiceNumber {
		return "Invoice"
	}
	var b strings.Builder
	for i, r := range string(f) {
		switch {
		case i == 0:
			b.WriteRune(unicode.ToUpper(r))
		case unicode.IsUpper(r):
			b.WriteRune(' ')
			b.WriteRune(r)
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
