package core

import "fmt"

// Category is the classification tag of a purchase record.
type Category string

const (
	Locacao   Category = "LOCAÇÃO"
	Material  Category = "MATERIAL"
	Servico   Category = "SERVIÇO"
	HoraExtra Category = "HORA_EXTRA"
)

// LatestCategoryVersion is the newest category set revision.
const LatestCategoryVersion = 2

var categorySets = map[int][]Category{
	1: {Locacao, Material, Servico},
	2: {Locacao, Material, Servico, HoraExtra},
}

// CategorySet returns the closed set of categories for a revision.
func CategorySet(version int) ([]Category, error) {
	set, ok := categorySets[version]
	if !ok {
		return nil, fmt.Errorf("unknown category set version %d", version)
	}
	return append([]Category(nil), set...), nil
}

// IsKnownCategory reports whether c belongs to any revision of the category set.
func IsKnownCategory(c Category) bool {
	return ContainsCategory(categorySets[LatestCategoryVersion], c)
}

func ContainsCategory(set []Category, c Category) bool {
	for _, v := range set {
		if v == c {
			return true
		}
	}
	return false
}

// KnownBases lists the business-unit codes offered by the form.
// The list is advisory: records may carry any non-empty base.
var KnownBases = []string{
	"PHB", "THE", "TFF", "SLZ", "PMW", "BEL",
	"BVB", "TBT", "JPA", "REC", "SSA", "NAT", "FOR",
}

func IsKnownBase(base string) bool {
	for _, b := range KnownBases {
		if b == base {
			return true
		}
	}
	return false
}
