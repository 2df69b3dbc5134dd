package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/saeid-a/ConsultBack/internal/models"
)

// ScheduleRepository reads the doctor-owned availability templates. Rules and
// explicit slots are edited elsewhere; this side only reads them.
type ScheduleRepository struct {
	db DBTX
}

func NewScheduleRepository(db DBTX) *ScheduleRepository {
	return &ScheduleRepository{db: db}
}

func (r *ScheduleRepository) ListWeeklyRules(ctx context.Context, doctorID models.UserID) ([]models.WeeklyRule, error) {
	query := `
		SELECT id, doctor_id, weekday, enabled, slot_length_mins, fixtures
		FROM weekly_rules
		WHERE doctor_id = $1
		ORDER BY weekday ASC, id ASC
	`
	rows, err := r.db.Query(ctx, query, doctorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	rules := make([]models.WeeklyRule, 0)
	for rows.Next() {
		var rule models.WeeklyRule
		var fixtures []byte
		if err := rows.Scan(
			&rule.ID,
			&rule.DoctorID,
			&rule.Weekday,
			&rule.Enabled,
			&rule.SlotLengthMins,
			&fixtures,
		); err != nil {
			return nil, err
		}
		if len(fixtures) > 0 {
			if err := json.Unmarshal(fixtures, &rule.Fixtures); err != nil {
				return nil, fmt.Errorf("decode fixtures for rule %d: %w", rule.ID, err)
			}
		}
		rules = append(rules, rule)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return rules, nil
}

// ListExplicitSlots returns every stored slot in [from, to] regardless of status.
func (r *ScheduleRepository) ListExplicitSlots(
	ctx context.Context,
	doctorID models.UserID,
	from string,
	to string,
) ([]models.ExplicitSlot, error) {
	query := `
		SELECT id, doctor_id, slot_date, slot_time, duration_mins, fee, modes, status
		FROM explicit_slots
		WHERE doctor_id = $1
		  AND slot_date BETWEEN $2::date AND $3::date
		ORDER BY slot_date ASC, slot_time ASC
	`
	rows, err := r.db.Query(ctx, query, doctorID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	slots := make([]models.ExplicitSlot, 0)
	for rows.Next() {
		var slot models.ExplicitSlot
		var date time.Time
		if err := rows.Scan(
			&slot.ID,
			&slot.DoctorID,
			&date,
			&slot.Time,
			&slot.DurationMins,
			&slot.Fee,
			&slot.Modes,
			&slot.Status,
		); err != nil {
			return nil, err
		}
		slot.Date = date.Format(models.DateLayout)
		slots = append(slots, slot)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return slots, nil
}
