package worksheet

import (
	"errors"
	"fmt"
	"sort"
)

// ErrUnknownSlot is returned when a category/item code pair is not part of
// the control plan vocabulary.
var ErrUnknownSlot = errors.New("unknown category/item code")

// Category is a coarse grouping of item codes.
type Category string

const (
	CategoryProcessInfo   Category = "processInfo"
	CategoryDetector      Category = "detector"
	CategoryControlItem   Category = "controlItem"
	CategoryControlMethod Category = "controlMethod"
	CategoryReactionPlan  Category = "reactionPlan"
	CategoryProductScope  Category = "productScope"
)

// ItemCode identifies one attribute slot within a category.
// Codes are unique across all categories.
type ItemCode string

const (
	ItemProcessNo    ItemCode = "A1"
	ItemProcessName  ItemCode = "A2"
	ItemProcessDesc  ItemCode = "A3"
	ItemProcessLevel ItemCode = "A4"

	ItemDevice         ItemCode = "B1"
	ItemErrorProofing  ItemCode = "B2"
	ItemAutoInspection ItemCode = "B3"

	ItemScopeName     ItemCode = "C1"
	ItemFunction      ItemCode = "C2"
	ItemRequirement   ItemCode = "C3"
	ItemFailureEffect ItemCode = "C4"

	ItemProductChar   ItemCode = "D1"
	ItemProcessChar   ItemCode = "D2"
	ItemSpecialChar   ItemCode = "D3"
	ItemSpecification ItemCode = "D4"

	ItemEvaluationTechnique ItemCode = "E1"
	ItemSampleSize          ItemCode = "E2"
	ItemFrequency           ItemCode = "E3"
	ItemControlMethod       ItemCode = "E4"

	ItemReactionPlan ItemCode = "F1"
	ItemOwner        ItemCode = "F2"
)

// itemCategories is the closed vocabulary. Every valid Slot appears here.
var itemCategories = map[ItemCode]Category{
	ItemProcessNo:    CategoryProcessInfo,
	ItemProcessName:  CategoryProcessInfo,
	ItemProcessDesc:  CategoryProcessInfo,
	ItemProcessLevel: CategoryProcessInfo,

	ItemDevice:         CategoryDetector,
	ItemErrorProofing:  CategoryDetector,
	ItemAutoInspection: CategoryDetector,

	ItemScopeName:     CategoryProductScope,
	ItemFunction:      CategoryProductScope,
	ItemRequirement:   CategoryProductScope,
	ItemFailureEffect: CategoryProductScope,

	ItemProductChar:   CategoryControlItem,
	ItemProcessChar:   CategoryControlItem,
	ItemSpecialChar:   CategoryControlItem,
	ItemSpecification: CategoryControlItem,

	ItemEvaluationTechnique: CategoryControlMethod,
	ItemSampleSize:          CategoryControlMethod,
	ItemFrequency:           CategoryControlMethod,
	ItemControlMethod:       CategoryControlMethod,

	ItemReactionPlan: CategoryReactionPlan,
	ItemOwner:        CategoryReactionPlan,
}

// identityItems maps a category to the item code whose value carries the
// join key itself.
var identityItems = map[Category]ItemCode{
	CategoryProcessInfo:  ItemProcessNo,
	CategoryProductScope: ItemScopeName,
}

// Slot is a validated (category, item code) pair.
type Slot struct {
	Category Category
	Item     ItemCode
}

func (s Slot) String() string {
	return string(s.Category) + "/" + string(s.Item)
}

// Valid reports whether the slot belongs to the vocabulary.
func (s Slot) Valid() bool {
	c, ok := itemCategories[s.Item]
	return ok && c == s.Category
}

// IsIdentity reports whether the slot's value is the join key of its record.
func (s Slot) IsIdentity() bool {
	id, ok := identityItems[s.Category]
	return ok && id == s.Item
}

// ParseSlot validates a category/item code pair.
func ParseSlot(category, item string) (Slot, error) {
	s := Slot{Category: Category(category), Item: ItemCode(item)}
	if !s.Valid() {
		return Slot{}, fmt.Errorf("%w: %q/%q", ErrUnknownSlot, category, item)
	}
	return s, nil
}

// SlotFor returns the slot for an item code.
func SlotFor(item ItemCode) (Slot, bool) {
	c, ok := itemCategories[item]
	if !ok {
		return Slot{}, false
	}
	return Slot{Category: c, Item: item}, true
}

// IdentityItem returns the identity item code of a category, if it has one.
func IdentityItem(c Category) (ItemCode, bool) {
	id, ok := identityItems[c]
	return id, ok
}

// Slots returns every slot of the vocabulary ordered by item code.
func Slots() []Slot {
	out := make([]Slot, 0, len(itemCategories))
	for item, c := range itemCategories {
		out = append(out, Slot{Category: c, Item: item})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Item < out[j].Item })
	return out
}

// Categories returns all categories in a fixed order.
func Categories() []Category {
	return []Category{
		CategoryProcessInfo,
		CategoryDetector,
		CategoryControlItem,
		CategoryControlMethod,
		CategoryReactionPlan,
		CategoryProductScope,
	}
}

// ItemsOf returns the item codes of a category ordered by code.
func ItemsOf(c Category) []ItemCode {
	var items []ItemCode
	for item, cat := range itemCategories {
		if cat == c {
			items = append(items, item)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i] < items[j] })
	return items
}
