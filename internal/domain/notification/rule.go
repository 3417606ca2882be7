// internal/domain/notification/rule.go
package notification

import (
	"database/sql"
	"time"

	"week_notification_agent/internal/domain/contract"
)

// Rule is a week-indexed message for one care preset.
// Corresponds to the 'notifications' table.
type Rule struct {
	ID            int64
	Preset        string         // Fires only for contracts tagged with it
	WeekOffset    int            // Fires once elapsed weeks reach this value
	Text          string         // Message body
	InfoMaterials sql.NullString // Optional supplementary payload reference
}

// AppliesTo reports whether the rule belongs to one of the contract's presets.
func (r *Rule) AppliesTo(presets contract.Presets) bool {
	return presets.Has(r.Preset)
}

// IsDue reports whether the rule has been reached after elapsedWeeks calendar weeks.
// A negative distance (start date in the future) never reaches any rule.
func (r *Rule) IsDue(elapsedWeeks int) bool {
	if elapsedWeeks < 0 {
		return false
	}
	return elapsedWeeks >= r.WeekOffset
}

// Delivery records that a rule was delivered to a contract.
// Corresponds to the 'sent_notifications' table; (NotificationID, ContractID) is unique.
type Delivery struct {
	NotificationID int64
	ContractID     int64
	SentAt         time.Time
}
