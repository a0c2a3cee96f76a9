package stock

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

// Bin is the ERPNext stock balance of one item in one warehouse
type Bin struct {
	Warehouse     string          `json:"warehouse"`
	ItemCode      string          `json:"item_code"`
	ActualQty     decimal.Decimal `json:"actual_qty"`
	ValuationRate decimal.Decimal `json:"valuation_rate"`
}

// WarehouseIssue reports a warehouse that could not take part in grouping
type WarehouseIssue struct {
	Warehouse string `json:"warehouse"`
	Reason    string `json:"reason"`
}

// ItemStock is the balance of an item at a location. Total counts physical
// warehouses only; ByRole also carries stock in transit.
type ItemStock struct {
	ItemCode string                   `json:"item_code"`
	Total    decimal.Decimal          `json:"total"`
	ByRole   map[Role]decimal.Decimal `json:"by_role"`
}

// LocationStock groups item balances by physical location
type LocationStock struct {
	Location string      `json:"location"`
	Items    []ItemStock `json:"items"`
}

type tokenizedBin struct {
	Bin
	code WarehouseCode
}

// tokenizeBins parses every bin warehouse once, collecting issues per
// warehouse. Spelling variants of an own warehouse ("Depósito - AC" next to
// "DEPOSITO - AC") are reported rather than merged.
func tokenizeBins(bins []Bin) ([]tokenizedBin, []WarehouseIssue) {
	parsed := make(map[string]WarehouseCode)
	failed := make(map[string]string)
	ownByLocation := make(map[string]string)

	names := make([]string, 0, len(bins))
	for _, b := range bins {
		if _, seen := parsed[b.Warehouse]; seen {
			continue
		}
		if _, seen := failed[b.Warehouse]; seen {
			continue
		}
		code, err := TokenizeWarehouseCode(b.Warehouse)
		if err != nil {
			failed[b.Warehouse] = err.Error()
			continue
		}
		parsed[b.Warehouse] = code
		names = append(names, b.Warehouse)
	}

	sort.Strings(names)
	for _, name := range names {
		code := parsed[name]
		if !code.IsOwn() {
			continue
		}
		if first, dup := ownByLocation[code.Location()]; dup {
			failed[name] = fmt.Sprintf("duplicates own warehouse %s", first)
			delete(parsed, name)
			continue
		}
		ownByLocation[code.Location()] = name
	}

	out := make([]tokenizedBin, 0, len(bins))
	for _, b := range bins {
		if code, ok := parsed[b.Warehouse]; ok {
			out = append(out, tokenizedBin{Bin: b, code: code})
		}
	}

	issues := make([]WarehouseIssue, 0, len(failed))
	for w, reason := range failed {
		issues = append(issues, WarehouseIssue{Warehouse: w, Reason: reason})
	}
	sort.Slice(issues, func(i, j int) bool { return issues[i].Warehouse < issues[j].Warehouse })
	return out, issues
}

// GroupBins aggregates bins per location and item, sorted by location then item.
func GroupBins(bins []Bin) ([]LocationStock, []WarehouseIssue) {
	tokenized, issues := tokenizeBins(bins)

	byLocation := make(map[string]map[string]*ItemStock)
	for _, b := range tokenized {
		loc := b.code.Location()
		items, ok := byLocation[loc]
		if !ok {
			items = make(map[string]*ItemStock)
			byLocation[loc] = items
		}
		is, ok := items[b.ItemCode]
		if !ok {
			is = &ItemStock{ItemCode: b.ItemCode, ByRole: make(map[Role]decimal.Decimal)}
			items[b.ItemCode] = is
		}
		is.ByRole[b.code.Role] = is.ByRole[b.code.Role].Add(b.ActualQty)
		if b.code.IsPhysical() {
			is.Total = is.Total.Add(b.ActualQty)
		}
	}

	locations := make([]LocationStock, 0, len(byLocation))
	for loc, items := range byLocation {
		ls := LocationStock{Location: loc, Items: make([]ItemStock, 0, len(items))}
		for _, is := range items {
			ls.Items = append(ls.Items, *is)
		}
		sort.Slice(ls.Items, func(i, j int) bool { return ls.Items[i].ItemCode < ls.Items[j].ItemCode })
		locations = append(locations, ls)
	}
	sort.Slice(locations, func(i, j int) bool { return locations[i].Location < locations[j].Location })

	return locations, issues
}
