package core

import "github.com/shopspring/decimal"

// SpendingSummary is the derived total and count for one business unit.
type SpendingSummary struct {
	Base  string          `json:"base"`
	Total decimal.Decimal `json:"total"`
	Count int             `json:"count"`
}

// Overview is the aggregation of a record set: the grand total plus one
// summary per base, in the order each base first appears.
type Overview struct {
	TotalGeral decimal.Decimal   `json:"totalGeral"`
	Count      int               `json:"count"`
	Summaries  []SpendingSummary `json:"summaries"`
}

// Aggregate groups records by base in a single pass.
//
// Bases are compared as exact strings, so "PHB" and "phb" are distinct
// groups. Every record contributes regardless of due date or category.
func Aggregate(records []PurchaseRecord) Overview {
	ov := Overview{
		TotalGeral: decimal.Zero,
		Count:      len(records),
		Summaries:  []SpendingSummary{},
	}
	index := make(map[string]int)
	for _, r := range records {
		ov.TotalGeral = ov.TotalGeral.Add(r.Valor)

		i, ok := index[r.Base]
		if !ok {
			i = len(ov.Summaries)
			index[r.Base] = i
			ov.Summaries = append(ov.Summaries, SpendingSummary{Base: r.Base, Total: decimal.Zero})
		}
		ov.Summaries[i].Total = ov.Summaries[i].Total.Add(r.Valor)
		ov.Summaries[i].Count++
	}
	return ov
}
