package models

import "github.com/patrickwarner/adslotgate/internal/slot"

// Decision records the outcome for one slot element of a rendered page.
type Decision struct {
	Index     int           `json:"index"`
	Element   string        `json:"element"`
	ElementID string        `json:"element_id,omitempty"`
	SlotID    string        `json:"slot_id"`
	AdType    string        `json:"ad_type"`
	Placement string        `json:"placement,omitempty"`
	Eligible  bool          `json:"eligible"`
	Reason    slot.Reason   `json:"reason"`
	Sizes     slot.SizeList `json:"sizes"`
}
