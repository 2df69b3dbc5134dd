package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

const (
	DateLayout  = "2006-01-02"
	ClockLayout = "15:04"

	ModeVideo = "video"

	SlotStatusAvailable = "available"
	SlotStatusBooked    = "booked"
)

// SlotFixture is one bookable time inside a weekly rule. Modes is kept raw
// because older rows stored it as a comma separated string.
type SlotFixture struct {
	Time  string          `json:"time"`
	Fee   float64         `json:"fee"`
	Modes json.RawMessage `json:"modes,omitempty"`
}

// ModeList returns the consultation modes for the fixture, defaulting to
// video when the stored value cannot be read.
func (f SlotFixture) ModeList() []string {
	if len(f.Modes) == 0 {
		return []string{ModeVideo}
	}

	var list []string
	if err := json.Unmarshal(f.Modes, &list); err == nil {
		if modes := cleanModes(list); len(modes) > 0 {
			return modes
		}
		return []string{ModeVideo}
	}

	var raw string
	if err := json.Unmarshal(f.Modes, &raw); err == nil {
		raw = strings.TrimSpace(raw)
		if strings.HasPrefix(raw, "[") {
			if err := json.Unmarshal([]byte(raw), &list); err == nil {
				if modes := cleanModes(list); len(modes) > 0 {
					return modes
				}
			}
			return []string{ModeVideo}
		}
		if modes := cleanModes(strings.Split(raw, ",")); len(modes) > 0 {
			return modes
		}
	}

	return []string{ModeVideo}
}

func cleanModes(values []string) []string {
	out := make([]string, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	for _, v := range values {
		v = strings.ToLower(strings.TrimSpace(v))
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

type WeeklyRule struct {
	ID             int64         `json:"id"`
	DoctorID       UserID        `json:"doctor_id"`
	Weekday        int           `json:"weekday"` // 0=Sunday
	Enabled        bool          `json:"enabled"`
	SlotLengthMins int           `json:"slot_length_mins"`
	Fixtures       []SlotFixture `json:"fixtures"`
}

type ExplicitSlot struct {
	ID           int64    `json:"id"`
	DoctorID     UserID   `json:"doctor_id"`
	Date         string   `json:"date"`
	Time         string   `json:"time"`
	DurationMins int      `json:"duration_mins"`
	Fee          float64  `json:"fee"`
	Modes        []string `json:"modes"`
	Status       string   `json:"status"`
}

// GeneratedSlot is computed per query and never stored.
type GeneratedSlot struct {
	Date         string   `json:"date"`
	Time         string   `json:"time"`
	DurationMins int      `json:"duration_mins"`
	Fee          float64  `json:"fee"`
	Modes        []string `json:"modes"`
	Status       string   `json:"status"`
}

func (s GeneratedSlot) HasMode(mode string) bool {
	mode = strings.ToLower(strings.TrimSpace(mode))
	for _, m := range s.Modes {
		if m == mode {
			return true
		}
	}
	return false
}

func ParseDate(value string) (time.Time, error) {
	return time.ParseInLocation(DateLayout, strings.TrimSpace(value), time.UTC)
}

// NormalizeClock accepts "9:00", "09:00" and "09:00:00" and returns the
// zero padded "HH:MM" form.
func NormalizeClock(value string) (string, bool) {
	value = strings.TrimSpace(value)
	for _, layout := range []string{"15:04", "15:04:05"} {
		if t, err := time.Parse(layout, value); err == nil {
			return t.Format(ClockLayout), true
		}
	}
	return "", false
}

// SlotStart combines a slot date and clock into a UTC instant.
func SlotStart(date, clock string) (time.Time, error) {
	day, err := ParseDate(date)
	if err != nil {
		return time.Time{}, err
	}
	normalized, ok := NormalizeClock(clock)
	if !ok {
		return time.Time{}, fmt.Errorf("invalid slot time %q", clock)
	}
	t, err := time.Parse(ClockLayout, normalized)
	if err != nil {
		return time.Time{}, err
	}
	return day.Add(time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute), nil
}
