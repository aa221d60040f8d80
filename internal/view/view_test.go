package view

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"invoicesync/pkg/models"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func ids(records []*models.Record) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.ID
	}
	return out
}

func keys(c models.Collection) map[string]bool {
	out := map[string]bool{}
	for id := range c {
		out[id] = true
	}
	return out
}

func TestApplyFilters_Conjunction(t *testing.T) {
	collection := models.Collection{
		"mar": {ID: "mar", Store: "Acme", Date: "2024-03-01"},
		"may": {ID: "may", Store: "Acme", Date: "2024-05-01"},
	}

	got := ApplyFilters(collection, Criteria{Store: "acme", Month: "3"})
	assert.Equal(t, map[string]bool{"mar": true}, keys(got))
}

func TestApplyFilters(t *testing.T) {
	collection := models.Collection{
		"a": {ID: "a", Store: "Acme", Date: "2024-03-01"},
		"b": {ID: "b", Store: "ACME", Date: "2023-03-15"},
		"c": {ID: "c", Store: "Bolt", Date: "2024-11-30"},
		"d": {ID: "d", Store: "", Date: ""},
		"e": {ID: "e", Store: "Bolt", Date: "not a date"},
		"f": {ID: "f", Store: "Cafe", Date: "2024-03-02T10:00:00Z"},
	}

	tests := []struct {
		name     string
		criteria Criteria
		want     []string
	}{
		{name: "empty criteria keeps everything", criteria: Criteria{}, want: []string{"a", "b", "c", "d", "e", "f"}},
		{name: "store is case-insensitive", criteria: Criteria{Store: "acme"}, want: []string{"a", "b"}},
		{name: "exact date", criteria: Criteria{Date: "2024-03-01"}, want: []string{"a"}},
		{name: "year", criteria: Criteria{Year: "2024"}, want: []string{"a", "c", "f"}},
		{name: "zero padded month", criteria: Criteria{Month: "03"}, want: []string{"a", "b", "f"}},
		{name: "year and month", criteria: Criteria{Year: "2023", Month: "3"}, want: []string{"b"}},
		{name: "non numeric month matches nothing", criteria: Criteria{Month: "March"}, want: []string{}},
		{name: "unparseable dates fail year", criteria: Criteria{Store: "bolt", Year: "2024"}, want: []string{"c"}},
		{name: "uncategorized is not a store value", criteria: Criteria{Store: "uncategorized"}, want: []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ApplyFilters(collection, tt.criteria)
			want := map[string]bool{}
			for _, id := range tt.want {
				want[id] = true
			}
			assert.Equal(t, want, keys(got))

			// A record is kept iff every non-empty criterion holds independently.
			for id, r := range collection {
				independent := true
				for _, single := range []Criteria{
					{Store: tt.criteria.Store}, {Date: tt.criteria.Date},
					{Year: tt.criteria.Year}, {Month: tt.criteria.Month},
				} {
					if !single.IsEmpty() && !single.Matches(r) {
						independent = false
					}
				}
				_, kept := got[id]
				assert.Equal(t, independent, kept, "record %s", id)
			}
		})
	}
}

func TestApplyFilters_DoesNotModifyInput(t *testing.T) {
	collection := models.Collection{"a": {ID: "a", Store: "Acme"}, "b": {ID: "b", Store: "Bolt"}}
	ApplyFilters(collection, Criteria{Store: "acme"})
	assert.Len(t, collection, 2)
}

func TestCriteria_DefaultAndClear(t *testing.T) {
	c := DefaultCriteria(time.Date(2025, 7, 4, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, Criteria{Year: "2025"}, c)
	assert.False(t, c.IsEmpty())

	c.Store = "acme"
	c.Clear()
	assert.True(t, c.IsEmpty())
}

func TestGroupAndAggregate_ExactDecimalTotals(t *testing.T) {
	collection := models.Collection{
		"1": {ID: "1", Store: "Acme", Date: "2024-01-10", Amount: dec("10.50"), GST: dec("1.05")},
		"2": {ID: "2", Store: "Acme", Date: "2024-02-10", Amount: dec("5.00"), GST: dec("0.50")},
	}

	vm := GroupAndAggregate(collection)

	require.Len(t, vm.Groups, 1)
	g := vm.Groups[0]
	assert.Equal(t, "Acme", g.Name)
	assert.True(t, g.TotalAmount.Equal(dec("15.50")), "got %s", g.TotalAmount)
	assert.True(t, g.TotalGST.Equal(dec("1.55")), "got %s", g.TotalGST)
	assert.Equal(t, "15.50", g.TotalAmount.StringFixed(2))
	assert.Equal(t, []string{"2", "1"}, ids(g.Records))
}

func TestGroupAndAggregate_OrderingAndBuckets(t *testing.T) {
	collection := models.Collection{
		"z1": {ID: "z1", Store: "Zeta", Date: "2024-01-01", Amount: dec("1")},
		"b1": {ID: "b1", Store: "bolt", Date: "2024-01-01", Amount: dec("2")},
		"B1": {ID: "B1", Store: "Bolt", Date: "2024-06-01", Amount: dec("3")},
		"u1": {ID: "u1", Date: "", Amount: dec("4")},
		"u2": {ID: "u2", Date: "2023-12-31", Amount: dec("5")},
		"u3": {ID: "u3", Date: "garbage", Amount: dec("6")},
		"u4": {ID: "u4", Date: "2023-12-31", Amount: dec("7")},
	}

	vm := GroupAndAggregate(collection)

	names := make([]string, len(vm.Groups))
	for i, g := range vm.Groups {
		names[i] = g.Name
	}
	assert.Equal(t, []string{"Bolt", "Uncategorized", "Zeta", "bolt"}, names)

	u, ok := vm.Group(UncategorizedStore)
	require.True(t, ok)
	// Dated first, newest first; ties and undated ones by ID.
	assert.Equal(t, []string{"u2", "u4", "u1", "u3"}, ids(u.Records))
	assert.Equal(t, "22", u.TotalAmount.String())

	assert.Equal(t, 7, vm.Count)
	assert.Equal(t, "28", vm.GrandTotalAmount.String())

	_, ok = vm.Group("Nope")
	assert.False(t, ok)
}

func TestGroupAndAggregate_Deterministic(t *testing.T) {
	collection := models.Collection{}
	for _, id := range []string{"a", "b", "c", "d", "e", "f"} {
		collection[id] = &models.Record{ID: id, Store: "S", Date: "2024-01-01", Amount: dec("1.10")}
	}

	first := GroupAndAggregate(collection)
	for i := 0; i < 20; i++ {
		assert.Equal(t, first, GroupAndAggregate(collection))
	}
}

func TestGroupAndAggregate_Empty(t *testing.T) {
	vm := GroupAndAggregate(models.Collection{})
	assert.NotNil(t, vm.Groups)
	assert.Empty(t, vm.Groups)
	assert.True(t, vm.GrandTotalAmount.IsZero())
}

func TestBuild_EndToEnd(t *testing.T) {
	var raw models.RawCollection
	require.NoError(t, json.Unmarshal([]byte(
		`{"inv1": {"store":"X", "amount":"10", "gst":"1", "paid":false, "comment":[]}}`), &raw))

	vm := Build(raw.Decode(), Criteria{})

	require.Len(t, vm.Groups, 1)
	g := vm.Groups[0]
	assert.Equal(t, "X", g.Name)
	assert.True(t, g.TotalAmount.Equal(dec("10")))
	assert.True(t, g.TotalGST.Equal(dec("1")))
	require.Len(t, g.Records, 1)
	assert.False(t, g.Records[0].Paid)
	assert.Equal(t, "inv1", g.Records[0].ID)
}

func TestOptions(t *testing.T) {
	collection := models.Collection{
		"1": {Store: "bolt", Date: "2023-02-01"},
		"2": {Store: "Acme", Date: "2024-03-01"},
		"3": {Store: "acme", Date: "2022-03-01"},
		"4": {Store: "", Date: "garbage"},
		"5": {Store: "Zeta", Date: "2024-12-01"},
		"6": {Store: "Éclair"},
	}

	opts := Options(collection)

	assert.Equal(t, []string{"2024", "2023", "2022"}, opts.Years)
	assert.Equal(t, []Option{
		{Value: "acme", Label: "Acme"},
		{Value: "bolt", Label: "bolt"},
		{Value: "éclair", Label: "Éclair"},
		{Value: "zeta", Label: "Zeta"},
	}, opts.Stores)
	require.Len(t, opts.Months, 13)
	assert.Equal(t, Option{Value: "", Label: "All Months"}, opts.Months[0])
	assert.Equal(t, Option{Value: "3", Label: "March"}, opts.Months[3])
	assert.Equal(t, Option{Value: "12", Label: "December"}, opts.Months[12])
}

func TestColumns(t *testing.T) {
	labels := make([]string, len(Columns))
	for i, c := range Columns {
		labels[i] = c.Label
	}
	assert.Equal(t, []string{"Date", "Invoice", "Amount", "Gst", "Paid", "Comment"}, labels)
	assert.Equal(t, "Total Amount", ColumnLabel(models.Field("totalAmount")))
}
