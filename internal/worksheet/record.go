package worksheet

import (
	"encoding/json"
	"fmt"
)

// RawAttributeRecord is one attribute value taken from an input sheet.
//
// ProcessNo is the join key column. For productScope records it carries the
// scope name ("Your Plant", "Ship to Plant", "User") instead of a process
// number. Records are immutable once built; the (Category, ItemCode) pair is
// validated at construction and on JSON decode.
type RawAttributeRecord struct {
	ProcessNo   string   `json:"processNo,omitempty"`
	ProcessName string   `json:"processName,omitempty"`
	Category    Category `json:"category"`
	ItemCode    ItemCode `json:"itemCode"`
	Value       string   `json:"value"`
}

// NewRecord builds a record for a validated slot.
func NewRecord(processNo, processName string, slot Slot, value string) RawAttributeRecord {
	return RawAttributeRecord{
		ProcessNo:   processNo,
		ProcessName: processName,
		Category:    slot.Category,
		ItemCode:    slot.Item,
		Value:       value,
	}
}

// Slot returns the record's (category, item code) pair.
func (r RawAttributeRecord) Slot() Slot {
	return Slot{Category: r.Category, Item: r.ItemCode}
}

// Validate checks that the record's slot is part of the vocabulary.
func (r RawAttributeRecord) Validate() error {
	if !r.Slot().Valid() {
		return fmt.Errorf("%w: %q/%q", ErrUnknownSlot, r.Category, r.ItemCode)
	}
	return nil
}

// UnmarshalJSON decodes a record and rejects unknown slots.
func (r *RawAttributeRecord) UnmarshalJSON(data []byte) error {
	type plain RawAttributeRecord
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	rec := RawAttributeRecord(p)
	if err := rec.Validate(); err != nil {
		return err
	}
	*r = rec
	return nil
}

// ValidateAll validates every record, reporting the index of the first
// invalid one.
func ValidateAll(records []RawAttributeRecord) error {
	for i, rec := range records {
		if err := rec.Validate(); err != nil {
			return fmt.Errorf("record %d: %w", i, err)
		}
	}
	return nil
}
