package contract

import (
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewPresets_DropsBlanksAndDuplicates(t *testing.T) {
	p := NewPresets(" pregnancy ", "", "diabetes", "pregnancy")

	assert.Equal(t, Presets{"pregnancy", "diabetes"}, p)
}

func TestParsePresets(t *testing.T) {
	tests := []struct {
		in   string
		want Presets
	}{
		{"", Presets{}},
		{"pregnancy", Presets{"pregnancy"}},
		{"pregnancy|diabetes", Presets{"pregnancy", "diabetes"}},
		{"pregnancy||pregnancy", Presets{"pregnancy"}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParsePresets(tt.in))
		})
	}
}

func TestPresets_String(t *testing.T) {
	assert.Equal(t, "pregnancy|diabetes", NewPresets("pregnancy", "diabetes").String())
	assert.Equal(t, "", Presets{}.String())
}

func TestIsKnownPreset(t *testing.T) {
	assert.True(t, IsKnownPreset(PresetHypertensia))
	assert.False(t, IsKnownPreset(PresetOther))
	assert.False(t, IsKnownPreset("diabetes"))
}

func TestContract_IsActive(t *testing.T) {
	var nilContract *Contract
	assert.False(t, nilContract.IsActive())
	assert.False(t, (&Contract{ID: 1}).IsActive())
	assert.True(t, (&Contract{ID: 1, StartDate: sql.NullTime{Time: time.Now(), Valid: true}}).IsActive())
}
