package model

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Reminder is the persistent record. The core never deletes rows; a fired
// one-shot or a user deletion flips Active to false so an in-flight dispatch
// pass cannot resurrect it.
type Reminder struct {
	ID         string
	OwnerID    string
	ChannelID  string
	Message    string
	TriggerAt  time.Time
	Recurrence RecurrenceSpec
	CreatedAt  time.Time
	Active     bool
}

func (r Reminder) Validate() error {
	if strings.TrimSpace(r.ID) == "" {
		return errors.New("model: reminder id is required")
	}
	if strings.TrimSpace(r.OwnerID) == "" {
		return errors.New("model: reminder owner_id is required")
	}
	if strings.TrimSpace(r.ChannelID) == "" {
		return errors.New("model: reminder channel_id is required")
	}
	if strings.TrimSpace(r.Message) == "" {
		return errors.New("model: reminder message is required")
	}
	if r.TriggerAt.IsZero() {
		return errors.New("model: reminder trigger_at is required")
	}
	if r.CreatedAt.IsZero() {
		return errors.New("model: reminder created_at is required")
	}
	return r.Recurrence.Validate()
}

// FormatRemaining renders the time left until target, e.g. あと2日3時間.
func FormatRemaining(now, target time.Time) string {
	total := int(target.Sub(now).Seconds())
	if total < 0 {
		return "期限切れ"
	}

	days := total / 86400
	hours := (total % 86400) / 3600
	minutes := (total % 3600) / 60

	switch {
	case days > 0 && hours > 0:
		return fmt.Sprintf("あと%d日%d時間", days, hours)
	case days > 0:
		return fmt.Sprintf("あと%d日", days)
	case hours > 0 && minutes > 0:
		return fmt.Sprintf("あと%d時間%d分", hours, minutes)
	case hours > 0:
		return fmt.Sprintf("あと%d時間", hours)
	case minutes > 0:
		return fmt.Sprintf("あと%d分", minutes)
	default:
		return "まもなく"
	}
}
