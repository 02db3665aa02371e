package worksheet

import (
	"fmt"
	"sort"
	"sync"
)

// SheetSpec describes one input sheet: which attribute slot its values fill
// and the names it may appear under in an export.
type SheetSpec struct {
	Slot    Slot
	Label   string   // Korean label used by the worksheet UI: "공정명"
	Aliases []string // Alternate names: "Process Name"
}

// Code returns the sheet's code name (its item code, e.g. "A2").
func (s SheetSpec) Code() string {
	return string(s.Slot.Item)
}

// Names returns every name the sheet is recognized by.
func (s SheetSpec) Names() []string {
	names := make([]string, 0, len(s.Aliases)+2)
	names = append(names, s.Code())
	if s.Label != "" {
		names = append(names, s.Label)
	}
	return append(names, s.Aliases...)
}

// Vocabulary is the set of sheets the ingestor accepts.
// Lookups are case-insensitive and width-insensitive.
type Vocabulary struct {
	mu     sync.RWMutex
	byName map[string]Slot
	specs  map[Slot]*SheetSpec
}

// NewVocabulary returns an empty vocabulary.
func NewVocabulary() *Vocabulary {
	return &Vocabulary{
		byName: make(map[string]Slot),
		specs:  make(map[Slot]*SheetSpec),
	}
}

// DefaultVocabulary returns a fresh vocabulary holding the built-in sheets.
// Each call returns an independent copy, so adding aliases to one does not
// affect another.
func DefaultVocabulary() *Vocabulary {
	v := NewVocabulary()
	for _, spec := range builtinSheets {
		v.Register(spec)
	}
	return v
}

// Register adds a sheet spec.
// Panics if the slot is invalid or any of its names is already registered.
func (v *Vocabulary) Register(spec SheetSpec) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if !spec.Slot.Valid() {
		panic(fmt.Sprintf("sheet registered with invalid slot: %s", spec.Slot))
	}
	if _, exists := v.specs[spec.Slot]; exists {
		panic(fmt.Sprintf("sheet already registered: %s", spec.Slot))
	}
	for _, name := range spec.Names() {
		key := Fold(name)
		if prev, exists := v.byName[key]; exists {
			panic(fmt.Sprintf("sheet name %q already registered for %s", name, prev))
		}
		v.byName[key] = spec.Slot
	}

	s := spec
	s.Aliases = append([]string(nil), spec.Aliases...)
	v.specs[spec.Slot] = &s
}

// AddAliases registers additional sheet names for an item code.
func (v *Vocabulary) AddAliases(item ItemCode, aliases ...string) error {
	slot, ok := SlotFor(item)
	if !ok {
		return fmt.Errorf("%w: item %q", ErrUnknownSlot, item)
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	spec, ok := v.specs[slot]
	if !ok {
		return fmt.Errorf("sheet not registered: %s", slot)
	}
	for _, alias := range aliases {
		key := Fold(alias)
		if key == "" {
			continue
		}
		if prev, exists := v.byName[key]; exists {
			if prev == slot {
				continue
			}
			return fmt.Errorf("sheet alias %q already used by %s", alias, prev)
		}
		v.byName[key] = slot
		spec.Aliases = append(spec.Aliases, alias)
	}
	return nil
}

// Lookup returns the sheet spec registered under name.
func (v *Vocabulary) Lookup(name string) (SheetSpec, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()

	slot, ok := v.byName[Fold(name)]
	if !ok {
		return SheetSpec{}, false
	}
	spec := *v.specs[slot]
	spec.Aliases = append([]string(nil), spec.Aliases...)
	return spec, true
}

// Specs returns all registered sheet specs ordered by code.
func (v *Vocabulary) Specs() []SheetSpec {
	v.mu.RLock()
	defer v.mu.RUnlock()

	out := make([]SheetSpec, 0, len(v.specs))
	for _, spec := range v.specs {
		out = append(out, *spec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Slot.Item < out[j].Slot.Item })
	return out
}

func sheet(item ItemCode, label string, aliases ...string) SheetSpec {
	slot, ok := SlotFor(item)
	if !ok {
		panic(fmt.Sprintf("builtin sheet with unknown item %q", item))
	}
	return SheetSpec{Slot: slot, Label: label, Aliases: aliases}
}

var builtinSheets = []SheetSpec{
	sheet(ItemProcessNo, "공정번호", "Process No", "Process Number"),
	sheet(ItemProcessName, "공정명", "Process Name"),
	sheet(ItemProcessDesc, "공정설명", "Process Description", "Process Desc"),
	sheet(ItemProcessLevel, "레벨", "Level", "Process Level"),

	sheet(ItemDevice, "검출장치", "Device", "Detector", "Machine/Device"),
	sheet(ItemErrorProofing, "에러프루프", "Error Proofing", "EP"),
	sheet(ItemAutoInspection, "자동검사", "Auto Inspection"),

	sheet(ItemScopeName, "구분", "Scope", "Product Scope"),
	sheet(ItemFunction, "제품기능", "Function", "Product Function"),
	sheet(ItemRequirement, "요구사항", "Requirement"),
	sheet(ItemFailureEffect, "고장영향", "Failure Effect"),

	sheet(ItemProductChar, "제품특성", "Product Characteristic"),
	sheet(ItemProcessChar, "공정특성", "Process Characteristic"),
	sheet(ItemSpecialChar, "특별특성", "Special Characteristic", "Special Char Class"),
	sheet(ItemSpecification, "규격", "Specification", "Spec/Tolerance"),

	sheet(ItemEvaluationTechnique, "평가방법", "Evaluation Technique", "Measurement Technique"),
	sheet(ItemSampleSize, "샘플크기", "Sample Size"),
	sheet(ItemFrequency, "주기", "Frequency"),
	sheet(ItemControlMethod, "관리방법", "Control Method"),

	sheet(ItemReactionPlan, "대응계획", "Reaction Plan"),
	sheet(ItemOwner, "책임자", "Owner"),
}
