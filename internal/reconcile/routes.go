package reconcile

import "github.com/shs3647-lgtm/SDD-FMEA-sub003/internal/worksheet"

// target says where a routed value lands.
type target int

const (
	targetProcessIdentity target = iota // creates the process entity
	targetProcessName                   // set once
	targetProcessLevel                  // set once
	targetProcessDesc                   // appended to the description list
	targetSubRecord                     // field of a positional sub-record
	targetScopeIdentity                 // creates the product scope entity
	targetScopeList                     // appended to a product scope list
)

// route is one entry of the routing table. field indexes the sub-record's
// fields or the product scope's lists.
type route struct {
	target target
	field  int
}

// Product scope lists.
const (
	scopeFunctions = iota
	scopeRequirements
	scopeFailureEffects
)

// routes maps every vocabulary slot to its destination. It is the only
// place that interprets item codes; TestRoutesCoverVocabulary keeps it in
// step with the worksheet vocabulary.
var routes = map[worksheet.Slot]route{
	{Category: worksheet.CategoryProcessInfo, Item: worksheet.ItemProcessNo}:    {target: targetProcessIdentity},
	{Category: worksheet.CategoryProcessInfo, Item: worksheet.ItemProcessName}:  {target: targetProcessName},
	{Category: worksheet.CategoryProcessInfo, Item: worksheet.ItemProcessDesc}:  {target: targetProcessDesc},
	{Category: worksheet.CategoryProcessInfo, Item: worksheet.ItemProcessLevel}: {target: targetProcessLevel},

	{Category: worksheet.CategoryDetector, Item: worksheet.ItemDevice}:         {target: targetSubRecord, field: 0},
	{Category: worksheet.CategoryDetector, Item: worksheet.ItemErrorProofing}:  {target: targetSubRecord, field: 1},
	{Category: worksheet.CategoryDetector, Item: worksheet.ItemAutoInspection}: {target: targetSubRecord, field: 2},

	{Category: worksheet.CategoryControlItem, Item: worksheet.ItemProductChar}:   {target: targetSubRecord, field: 0},
	{Category: worksheet.CategoryControlItem, Item: worksheet.ItemProcessChar}:   {target: targetSubRecord, field: 1},
	{Category: worksheet.CategoryControlItem, Item: worksheet.ItemSpecialChar}:   {target: targetSubRecord, field: 2},
	{Category: worksheet.CategoryControlItem, Item: worksheet.ItemSpecification}: {target: targetSubRecord, field: 3},

	{Category: worksheet.CategoryControlMethod, Item: worksheet.ItemEvaluationTechnique}: {target: targetSubRecord, field: 0},
	{Category: worksheet.CategoryControlMethod, Item: worksheet.ItemSampleSize}:          {target: targetSubRecord, field: 1},
	{Category: worksheet.CategoryControlMethod, Item: worksheet.ItemFrequency}:           {target: targetSubRecord, field: 2},
	{Category: worksheet.CategoryControlMethod, Item: worksheet.ItemControlMethod}:       {target: targetSubRecord, field: 3},

	{Category: worksheet.CategoryReactionPlan, Item: worksheet.ItemReactionPlan}: {target: targetSubRecord, field: 0},
	{Category: worksheet.CategoryReactionPlan, Item: worksheet.ItemOwner}:        {target: targetSubRecord, field: 1},

	{Category: worksheet.CategoryProductScope, Item: worksheet.ItemScopeName}:     {target: targetScopeIdentity},
	{Category: worksheet.CategoryProductScope, Item: worksheet.ItemFunction}:      {target: targetScopeList, field: scopeFunctions},
	{Category: worksheet.CategoryProductScope, Item: worksheet.ItemRequirement}:   {target: targetScopeList, field: scopeRequirements},
	{Category: worksheet.CategoryProductScope, Item: worksheet.ItemFailureEffect}: {target: targetScopeList, field: scopeFailureEffects},
}

// subRecordWidth is the field count of each sub-record category, in the
// order the builder emits them.
var subRecordWidth = map[worksheet.Category]int{
	worksheet.CategoryDetector:      3,
	worksheet.CategoryControlItem:   4,
	worksheet.CategoryControlMethod: 4,
	worksheet.CategoryReactionPlan:  2,
}

// subRecordCategories lists the sub-record categories in table order.
var subRecordCategories = []worksheet.Category{
	worksheet.CategoryDetector,
	worksheet.CategoryControlItem,
	worksheet.CategoryControlMethod,
	worksheet.CategoryReactionPlan,
}

func routeFor(slot worksheet.Slot) (route, bool) {
	r, ok := routes[slot]
	return r, ok
}
