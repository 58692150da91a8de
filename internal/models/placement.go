package models

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/patrickwarner/adslotgate/internal/slot"
)

// Placement is a stored preset for an ad slot. Publishers reference it from
// markup with placement="<id>" so that the slot id and sizes live in one
// place instead of being repeated on every page.
type Placement struct {
	// ID is the publisher-chosen key used in the placement attribute
	// (e.g. "detailpage-content2").
	ID string `json:"id"`
	// AdType is the backend identifier, normally "doubleclick".
	AdType string `json:"ad_type,omitempty"`
	// SlotID is the ad network slot path, e.g. "/4467/AS24_MOBILEWEBSITE_DE/detailpage_content2".
	SlotID string `json:"slot_id,omitempty"`
	// Sizes and SizeMapping hold the raw array literals exactly as they would
	// appear on the element. At most one should be set.
	Sizes       string `json:"sizes,omitempty"`
	SizeMapping string `json:"size_mapping,omitempty"`
	// Resolution gates, raw numeric strings.
	MinXResolution string    `json:"min_x_resolution,omitempty"`
	MaxXResolution string    `json:"max_x_resolution,omitempty"`
	MinYResolution string    `json:"min_y_resolution,omitempty"`
	MaxYResolution string    `json:"max_y_resolution,omitempty"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Fill returns d with every attribute that is absent or blank on the element
// taken from the placement. Sizes and size-mapping are treated as one
// setting: if the element declares either, even empty, neither is taken
// from the placement.
func (p Placement) Fill(d slot.Declaration) slot.Declaration {
	if d.Type == "" {
		d.Type = p.AdType
	}
	if d.SlotID == "" {
		d.SlotID = p.SlotID
	}
	if !d.Sizes.Set && !d.SizeMapping.Set {
		d.Sizes = preset(p.Sizes)
		d.SizeMapping = preset(p.SizeMapping)
	}
	fill := func(a *slot.Attr, v string) {
		if !a.Present() {
			*a = preset(v)
		}
	}
	fill(&d.MinXResolution, p.MinXResolution)
	fill(&d.MaxXResolution, p.MaxXResolution)
	fill(&d.MinYResolution, p.MinYResolution)
	fill(&d.MaxYResolution, p.MaxYResolution)
	return d
}

// ErrInvalidPlacement wraps every validation failure.
var ErrInvalidPlacement = errors.New("invalid placement")

// Validate checks that the stored literals would parse on an element.
func (p Placement) Validate() error {
	if strings.TrimSpace(p.ID) == "" {
		return fmt.Errorf("%w: id is required", ErrInvalidPlacement)
	}
	if p.Sizes != "" && p.SizeMapping != "" {
		return fmt.Errorf("%w: sizes and size_mapping are mutually exclusive", ErrInvalidPlacement)
	}
	if p.Sizes != "" {
		if _, err := slot.ParseSizes(p.Sizes); err != nil {
			return fmt.Errorf("%w: sizes: %v", ErrInvalidPlacement, err)
		}
	}
	if p.SizeMapping != "" {
		if _, err := slot.ParseSizeMapping(p.SizeMapping); err != nil {
			return fmt.Errorf("%w: size_mapping: %v", ErrInvalidPlacement, err)
		}
	}
	for name, v := range map[string]string{
		"min_x_resolution": p.MinXResolution,
		"max_x_resolution": p.MaxXResolution,
		"min_y_resolution": p.MinYResolution,
		"max_y_resolution": p.MaxYResolution,
	} {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, err := strconv.ParseFloat(v, 64); err != nil {
			return fmt.Errorf("%w: %s is not a number", ErrInvalidPlacement, name)
		}
	}
	return nil
}

func preset(v string) slot.Attr {
	return slot.Attr{Value: v, Set: v != ""}
}
