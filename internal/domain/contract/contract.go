package contract

import (
	"database/sql"
	"strings"
	"time"
)

// Known care presets supported by the agent.
const (
	PresetPregnancy    = "pregnancy"
	PresetStenocardia  = "stenocardia"
	PresetHeartFailure = "heartfailure"
	PresetFibrillation = "fibrillation"
	PresetHypertensia  = "hypertensia"

	// PresetOther is accepted from the settings form and never matches a catalog rule.
	PresetOther = "other"
)

// KnownPresets lists the scenarios reported by the status endpoint.
var KnownPresets = []string{
	PresetPregnancy,
	PresetStenocardia,
	PresetHeartFailure,
	PresetFibrillation,
	PresetHypertensia,
}

// IsKnownPreset reports whether p is one of KnownPresets.
func IsKnownPreset(p string) bool {
	for _, known := range KnownPresets {
		if known == p {
			return true
		}
	}
	return false
}

// Contract is a tracked patient-care channel.
// Corresponds to the 'contracts' table.
type Contract struct {
	ID        int64        // Assigned by the platform
	StartDate sql.NullTime // Week counting is undefined while NULL
	Presets   Presets
	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsActive reports whether the contract takes part in reconciliation.
func (c *Contract) IsActive() bool {
	return c != nil && c.StartDate.Valid
}

// Presets is an ordered set of preset tags: the primary preset plus optional
// info flags. Order is insertion order, duplicates are dropped.
type Presets []string

const presetSeparator = "|"

// NewPresets builds a tag set, trimming blanks and dropping duplicates.
func NewPresets(tags ...string) Presets {
	out := make(Presets, 0, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" || out.Has(tag) {
			continue
		}
		out = append(out, tag)
	}
	return out
}

// ParsePresets decodes the delimited "a|b" form used at the platform boundary.
func ParsePresets(s string) Presets {
	if strings.TrimSpace(s) == "" {
		return Presets{}
	}
	return NewPresets(strings.Split(s, presetSeparator)...)
}

// Has reports whether tag is part of the set.
func (p Presets) Has(tag string) bool {
	for _, t := range p {
		if t == tag {
			return true
		}
	}
	return false
}

// String encodes the set in the delimited boundary form.
func (p Presets) String() string {
	return strings.Join(p, presetSeparator)
}
