package services

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/saeid-a/ConsultBack/internal/models"
)

const (
	defaultSlotLengthMins = 30
	maxAvailabilityDays   = 92
)

type scheduleReader interface {
	ListWeeklyRules(ctx context.Context, doctorID models.UserID) ([]models.WeeklyRule, error)
	ListExplicitSlots(ctx context.Context, doctorID models.UserID, from string, to string) ([]models.ExplicitSlot, error)
}

// AvailabilityGenerator expands weekly rules into concrete slots. It does not
// look at bookings; SlotGuard does that.
type AvailabilityGenerator struct {
	schedules scheduleReader
}

func NewAvailabilityGenerator(schedules scheduleReader) *AvailabilityGenerator {
	return &AvailabilityGenerator{schedules: schedules}
}

// Generate returns the slots for doctorID on every day in [from, to]
// (inclusive, YYYY-MM-DD, UTC). Explicit slots are used only when the weekly
// rules produce nothing for the whole range.
func (g *AvailabilityGenerator) Generate(
	ctx context.Context,
	doctorID models.UserID,
	from string,
	to string,
) ([]models.GeneratedSlot, error) {
	if doctorID <= 0 {
		return nil, ErrInvalidInput
	}
	start, err := models.ParseDate(from)
	if err != nil {
		return nil, fmt.Errorf("%w: from must be YYYY-MM-DD", ErrInvalidInput)
	}
	end, err := models.ParseDate(to)
	if err != nil {
		return nil, fmt.Errorf("%w: to must be YYYY-MM-DD", ErrInvalidInput)
	}
	if end.Before(start) {
		return nil, fmt.Errorf("%w: to is before from", ErrInvalidInput)
	}
	if days := int(end.Sub(start).Hours()/24) + 1; days > maxAvailabilityDays {
		return nil, fmt.Errorf("%w: range exceeds %d days", ErrInvalidInput, maxAvailabilityDays)
	}

	rules, err := g.schedules.ListWeeklyRules(ctx, doctorID)
	if err != nil {
		return nil, err
	}
	byWeekday := make(map[int]models.WeeklyRule, len(rules))
	for _, rule := range rules {
		if _, ok := byWeekday[rule.Weekday]; !ok {
			byWeekday[rule.Weekday] = rule
		}
	}

	slots := make([]models.GeneratedSlot, 0)
	for day := start; !day.After(end); day = day.AddDate(0, 0, 1) {
		rule, ok := byWeekday[int(day.Weekday())]
		if !ok || !rule.Enabled {
			continue
		}
		slots = append(slots, slotsForDay(day.Format(models.DateLayout), rule)...)
	}

	if len(slots) == 0 {
		explicit, err := g.schedules.ListExplicitSlots(
			ctx,
			doctorID,
			start.Format(models.DateLayout),
			end.Format(models.DateLayout),
		)
		if err != nil {
			return nil, err
		}
		slots = explicitAvailable(explicit)
	}

	sort.SliceStable(slots, func(i, j int) bool {
		if slots[i].Date != slots[j].Date {
			return slots[i].Date < slots[j].Date
		}
		return slots[i].Time < slots[j].Time
	})
	return slots, nil
}

func slotsForDay(date string, rule models.WeeklyRule) []models.GeneratedSlot {
	length := rule.SlotLengthMins
	if length <= 0 {
		length = defaultSlotLengthMins
	}

	seen := make(map[string]struct{}, len(rule.Fixtures))
	out := make([]models.GeneratedSlot, 0, len(rule.Fixtures))
	for _, fixture := range rule.Fixtures {
		clock, ok := models.NormalizeClock(fixture.Time)
		if !ok {
			continue
		}
		if _, dup := seen[clock]; dup {
			continue
		}
		seen[clock] = struct{}{}

		out = append(out, models.GeneratedSlot{
			Date:         date,
			Time:         clock,
			DurationMins: length,
			Fee:          fixture.Fee,
			Modes:        fixture.ModeList(),
			Status:       models.SlotStatusAvailable,
		})
	}
	return out
}

func explicitAvailable(rows []models.ExplicitSlot) []models.GeneratedSlot {
	seen := make(map[string]struct{}, len(rows))
	out := make([]models.GeneratedSlot, 0, len(rows))
	for _, row := range rows {
		if !strings.EqualFold(strings.TrimSpace(row.Status), models.SlotStatusAvailable) {
			continue
		}
		clock, ok := models.NormalizeClock(row.Time)
		if !ok {
			continue
		}
		key := row.Date + " " + clock
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}

		duration := row.DurationMins
		if duration <= 0 {
			duration = defaultSlotLengthMins
		}
		modes := normalizeModes(row.Modes)

		out = append(out, models.GeneratedSlot{
			Date:         row.Date,
			Time:         clock,
			DurationMins: duration,
			Fee:          row.Fee,
			Modes:        modes,
			Status:       models.SlotStatusAvailable,
		})
	}
	return out
}

func normalizeModes(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.ToLower(strings.TrimSpace(v))
		if v != "" {
			out = append(out, v)
		}
	}
	if len(out) == 0 {
		return []string{models.ModeVideo}
	}
	return out
}
