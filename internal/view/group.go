package view

import (
	"sort"

	"github.com/shopspring/decimal"
	"invoicesync/pkg/models"
)

// UncategorizedStore is the group name for records without a store.
const UncategorizedStore = "Uncategorized"

// Group is one store's records and totals.
type Group struct {
	Name        string           `json:"name" yaml:"name"`
	Records     []*models.Record `json:"records" yaml:"records"`
	TotalAmount decimal.Decimal  `json:"totalAmount" yaml:"totalAmount"`
	TotalGST    decimal.Decimal  `json:"totalGst" yaml:"totalGst"`
}

// ViewModel is the grouped presentation of a filtered collection.
type ViewModel struct {
	Groups           []Group         `json:"groups" yaml:"groups"`
	GrandTotalAmount decimal.Decimal `json:"grandTotalAmount" yaml:"grandTotalAmount"`
	GrandTotalGST    decimal.Decimal `json:"grandTotalGst" yaml:"grandTotalGst"`
	Count            int             `json:"count" yaml:"count"`
}

// Group returns the group with the given name.
func (vm ViewModel) Group(name string) (Group, bool) {
	for _, g := range vm.Groups {
		if g.Name == name {
			return g, true
		}
	}
	return Group{}, false
}

// GroupAndAggregate partitions records by store and sums amounts per group.
// Groups are ordered by name; records within a group by date, newest first, with
// undated records last.
func GroupAndAggregate(filtered models.Collection) ViewModel {
	byName := map[string]*Group{}
	vm := ViewModel{
		Groups:           []Group{},
		GrandTotalAmount: decimal.Zero,
		GrandTotalGST:    decimal.Zero,
	}

	for _, r := range filtered {
		if r == nil {
			continue
		}
		name := r.Store
		if name == "" {
			name = UncategorizedStore
		}
		g, ok := byName[name]
		if !ok {
			g = &Group{Name: name, TotalAmount: decimal.Zero, TotalGST: decimal.Zero}
			byName[name] = g
		}
		g.Records = append(g.Records, r)
		g.TotalAmount = g.TotalAmount.Add(r.Amount)
		g.TotalGST = g.TotalGST.Add(r.GST)

		vm.GrandTotalAmount = vm.GrandTotalAmount.Add(r.Amount)
		vm.GrandTotalGST = vm.GrandTotalGST.Add(r.GST)
		vm.Count++
	}

	names := make([]string, 0, len(byName))
	for name := range byName {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		g := byName[name]
		sortNewestFirst(g.Records)
		vm.Groups = append(vm.Groups, *g)
	}
	return vm
}

// Build filters the collection and groups the result.
func Build(collection models.Collection, criteria Criteria) ViewModel {
	return GroupAndAggregate(ApplyFilters(collection, criteria))
}

func sortNewestFirst(records []*models.Record) {
	sort.SliceStable(records, func(i, j int) bool {
		di, iok := records[i].ParsedDate()
		dj, jok := records[j].ParsedDate()
		switch {
		case iok && !jok:
			return true
		case !iok && jok:
			return false
		case iok && jok && !di.Equal(dj):
			return di.After(dj)
		}
		return records[i].ID < records[j].ID
	})
}
