package stock

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	ErrNegativeCount = errors.New("counted quantity cannot be negative")
	ErrMissingItem   = errors.New("count row has no item code")
)

// Count is one row of a physical count sheet
type Count struct {
	Location string          `json:"location"`
	ItemCode string          `json:"item_code"`
	Qty      decimal.Decimal `json:"qty"`
}

// Allocation is the stock change planned for one warehouse
type Allocation struct {
	Warehouse     string          `json:"warehouse"`
	Role          Role            `json:"role"`
	Current       decimal.Decimal `json:"current"`
	Target        decimal.Decimal `json:"target"`
	ValuationRate decimal.Decimal `json:"valuation_rate"`
}

// Changed reports whether applying the allocation moves stock
func (a Allocation) Changed() bool {
	return !a.Current.Equal(a.Target)
}

// ReconciliationLine is the plan for one item at one location
type ReconciliationLine struct {
	ItemCode    string          `json:"item_code"`
	Counted     decimal.Decimal `json:"counted"`
	System      decimal.Decimal `json:"system"`
	Difference  decimal.Decimal `json:"difference"`
	Allocations []Allocation    `json:"allocations"`
	Shortfall   decimal.Decimal `json:"shortfall"`
}

// ReconciliationGroup collects the lines of one location
type ReconciliationGroup struct {
	Location string               `json:"location"`
	Lines    []ReconciliationLine `json:"lines"`
}

type countKey struct {
	location string
	item     string
}

// GroupForReconciliation turns counts into per-warehouse targets.
//
// Stock held for third parties (CON) and consigned to customers (CSG) keeps
// its balance; the own warehouse absorbs the difference. When the count is
// below what belongs to others, CON and then CSG warehouses are reduced in
// name order and whatever cannot be covered is reported as Shortfall.
// Transit warehouses never take part. Duplicate count rows are summed.
func GroupForReconciliation(bins []Bin, counts []Count) ([]ReconciliationGroup, []WarehouseIssue, error) {
	tokenized, issues := tokenizeBins(bins)

	counted := make(map[countKey]decimal.Decimal)
	for i, c := range counts {
		loc, err := NormalizeLocation(c.Location)
		if err != nil {
			return nil, issues, fmt.Errorf("count row %d (%q): %w", i+1, c.Location, err)
		}
		item := strings.TrimSpace(c.ItemCode)
		if item == "" {
			return nil, issues, fmt.Errorf("count row %d: %w", i+1, ErrMissingItem)
		}
		if c.Qty.IsNegative() {
			return nil, issues, fmt.Errorf("count row %d (%s): %w", i+1, item, ErrNegativeCount)
		}
		k := countKey{loc, item}
		counted[k] = counted[k].Add(c.Qty)
	}

	ownWarehouse := make(map[string]string)
	byKey := make(map[countKey][]tokenizedBin)
	for _, b := range tokenized {
		if !b.code.IsPhysical() {
			continue
		}
		loc := b.code.Location()
		if b.code.IsOwn() {
			ownWarehouse[loc] = b.Warehouse
		}
		k := countKey{loc, b.ItemCode}
		byKey[k] = append(byKey[k], b)
	}

	keys := make([]countKey, 0, len(counted))
	for k := range counted {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].location != keys[j].location {
			return keys[i].location < keys[j].location
		}
		return keys[i].item < keys[j].item
	})

	var groups []ReconciliationGroup
	for _, k := range keys {
		line := planLine(k, counted[k], byKey[k], ownWarehouse)
		if n := len(groups); n == 0 || groups[n-1].Location != k.location {
			groups = append(groups, ReconciliationGroup{Location: k.location})
		}
		g := &groups[len(groups)-1]
		g.Lines = append(g.Lines, line)
	}
	return groups, issues, nil
}

func planLine(k countKey, qty decimal.Decimal, bins []tokenizedBin, ownWarehouse map[string]string) ReconciliationLine {
	own := Allocation{Warehouse: k.location, Role: RoleOwn}
	if name, ok := ownWarehouse[k.location]; ok {
		own.Warehouse = name
	}

	var others []Allocation
	ownFound := false
	for _, b := range bins {
		if b.code.IsOwn() {
			own.Warehouse = b.Warehouse
			own.Current = own.Current.Add(b.ActualQty)
			own.ValuationRate = b.ValuationRate
			ownFound = true
			continue
		}
		others = append(others, Allocation{
			Warehouse:     b.Warehouse,
			Role:          b.code.Role,
			Current:       b.ActualQty,
			Target:        b.ActualQty,
			ValuationRate: b.ValuationRate,
		})
	}
	if !ownFound {
		for _, b := range bins {
			if b.ValuationRate.IsPositive() {
				own.ValuationRate = b.ValuationRate
				break
			}
		}
	}

	sort.Slice(others, func(i, j int) bool {
		if others[i].Role != others[j].Role {
			return others[i].Role == RoleConsignment
		}
		return others[i].Warehouse < others[j].Warehouse
	})

	system := own.Current
	othersTotal := decimal.Zero
	for _, o := range others {
		system = system.Add(o.Current)
		othersTotal = othersTotal.Add(o.Current)
	}

	own.Target = qty.Sub(othersTotal)
	shortfall := decimal.Zero
	if own.Target.IsNegative() {
		need := own.Target.Neg()
		own.Target = decimal.Zero
		for i := range others {
			if !need.IsPositive() {
				break
			}
			if !others[i].Current.IsPositive() {
				continue
			}
			r := decimal.Min(others[i].Current, need)
			others[i].Target = others[i].Current.Sub(r)
			need = need.Sub(r)
		}
		shortfall = need
	}

	return ReconciliationLine{
		ItemCode:    k.item,
		Counted:     qty,
		System:      system,
		Difference:  qty.Sub(system),
		Allocations: append([]Allocation{own}, others...),
		Shortfall:   shortfall,
	}
}

// ReconciliationItem is a row of an ERPNext Stock Reconciliation
type ReconciliationItem struct {
	ItemCode      string          `json:"item_code"`
	Warehouse     string          `json:"warehouse"`
	Qty           decimal.Decimal `json:"qty"`
	ValuationRate decimal.Decimal `json:"valuation_rate"`
}

// StockReconciliation is the document created for one location
type StockReconciliation struct {
	Location    string               `json:"location"`
	Company     string               `json:"company"`
	PostingDate string               `json:"posting_date"`
	Items       []ReconciliationItem `json:"items"`
}

// ToStockReconciliations builds one document per location holding only the
// allocations that change stock. Locations without changes are skipped.
func ToStockReconciliations(company, postingDate string, groups []ReconciliationGroup) []StockReconciliation {
	var docs []StockReconciliation
	for _, g := range groups {
		doc := StockReconciliation{Location: g.Location, Company: company, PostingDate: postingDate}
		for _, l := range g.Lines {
			for _, a := range l.Allocations {
				if !a.Changed() {
					continue
				}
				doc.Items = append(doc.Items, ReconciliationItem{
					ItemCode:      l.ItemCode,
					Warehouse:     a.Warehouse,
					Qty:           a.Target,
					ValuationRate: a.ValuationRate,
				})
			}
		}
		if len(doc.Items) > 0 {
			docs = append(docs, doc)
		}
	}
	return docs
}

// Payload renders the ERPNext "Stock Reconciliation" document body
func (r StockReconciliation) Payload() map[string]any {
	items := make([]map[string]any, 0, len(r.Items))
	for _, it := range r.Items {
		row := map[string]any{
			"item_code": it.ItemCode,
			"warehouse": it.Warehouse,
			"qty":       it.Qty.InexactFloat64(),
		}
		if it.ValuationRate.IsPositive() {
			row["valuation_rate"] = it.ValuationRate.InexactFloat64()
		}
		items = append(items, row)
	}
	return map[string]any{
		"company":          r.Company,
		"posting_date":     r.PostingDate,
		"set_posting_time": 1,
		"purpose":          "Stock Reconciliation",
		"items":            items,
	}
}
