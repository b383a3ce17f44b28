package core

import "strings"

// Taxonomy decides which categories count as savings rather than spending.
// A transaction in a reserve category is never an expense; it counts as
// invested only when its subcategory is also an investment subcategory.
type Taxonomy struct {
	ReserveCategories       []string
	InvestmentSubcategories []string
	// CaseInsensitive compares labels with strings.EqualFold after trimming.
	CaseInsensitive bool
}

// DefaultTaxonomy matches the labels used by the household ledger:
// category "Reserva", subcategory "Investimento", compared exactly.
func DefaultTaxonomy() Taxonomy {
	return Taxonomy{
		ReserveCategories:       []string{"Reserva"},
		InvestmentSubcategories: []string{"Investimento"},
	}
}

// IsReserve reports whether category is a reserve (savings) category.
func (t Taxonomy) IsReserve(category string) bool {
	return t.match(t.ReserveCategories, category)
}

// IsInvestment reports whether the pair marks an invested amount.
func (t Taxonomy) IsInvestment(category, subcategory string) bool {
	return t.IsReserve(category) && t.match(t.InvestmentSubcategories, subcategory)
}

func (t Taxonomy) match(labels []string, v string) bool {
	for _, l := range labels {
		if t.CaseInsensitive {
			if strings.EqualFold(strings.TrimSpace(l), strings.TrimSpace(v)) {
				return true
			}
			continue
		}
		if l == v {
			return true
		}
	}
	return false
}
