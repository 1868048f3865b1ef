package job

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/fieldline/fieldline"
	"github.com/fieldline/fieldline/id"
)

// PayType says how an assigned user is paid for a job.
type PayType string

const (
	// PayTypeJob means a flat price for the whole job.
	PayTypeJob PayType = "job"
	// PayTypeHourly means the user bills by the hour.
	PayTypeHourly PayType = "hourly"
)

// Assignment links one user to a job with pay terms.
type Assignment struct {
	UserID     id.UserID `json:"user_id"`
	Role       string    `json:"role,omitempty"`
	Price      *float64  `json:"price,omitempty"`
	PayType    PayType   `json:"pay_type,omitempty"`
	HourlyRate *float64  `json:"hourly_rate,omitempty"`
}

// Validate checks one assignment.
func (a *Assignment) Validate() error {
	if a.UserID.IsNil() {
		return fieldline.NewValidationError("assigned_to.user_id", "required")
	}
	switch a.PayType {
	case PayTypeJob, PayTypeHourly, "":
	default:
		return fieldline.NewValidationError("assigned_to.pay_type", fmt.Sprintf("unknown pay type %q", a.PayType))
	}

	return nil
}

func (a *Assignment) clone() *Assignment {
	cp := *a
	if a.Price != nil {
		v := *a.Price
		cp.Price = &v
	}
	if a.HourlyRate != nil {
		v := *a.HourlyRate
		cp.HourlyRate = &v
	}

	return &cp
}

// Break is a planned pause inside a job window. Breaks reduce worked
// duration downstream; they play no part in conflict detection.
type Break struct {
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
	Reason    string    `json:"reason,omitempty"`
}

// Validate checks one break.
func (b *Break) Validate() error {
	if b.EndTime.Before(b.StartTime) {
		return fieldline.NewValidationError("breaks.end_time", "must not precede start time")
	}

	return nil
}

// NormalizeAssignments decodes the assigned_to column into canonical form.
// Three encodings exist in historical data:
//
//	"usr_..."                      bare user id
//	["usr_...", "usr_..."]         array of user ids
//	[{"user_id": "usr_...", ...}]  array of assignment objects (canonical)
//
// Bare and array-of-string forms carry no pay terms; they normalize to
// assignments with PayType "job" and no price. A missing pay_type on an
// object entry also normalizes to "job". Empty input, JSON null, and the
// empty array all mean unassigned and return nil.
func NormalizeAssignments(raw []byte) ([]Assignment, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}

	switch trimmed[0] {
	case '"':
		var userID string
		if err := json.Unmarshal(trimmed, &userID); err != nil {
			return nil, fmt.Errorf("job: normalize assignments: %w", err)
		}
		if userID == "" {
			return nil, nil
		}
		uid, err := id.ParseUserID(userID)
		if err != nil {
			return nil, fmt.Errorf("job: normalize assignments: %w", err)
		}

		return []Assignment{{UserID: uid, PayType: PayTypeJob}}, nil

	case '[':
		var objs []Assignment
		if err := json.Unmarshal(trimmed, &objs); err == nil {
			if len(objs) == 0 {
				return nil, nil
			}
			for i := range objs {
				if objs[i].PayType == "" {
					objs[i].PayType = PayTypeJob
				}
				if err := objs[i].Validate(); err != nil {
					return nil, fmt.Errorf("job: normalize assignments: %w", err)
				}
			}

			return objs, nil
		}

		var userIDs []string
		if err := json.Unmarshal(trimmed, &userIDs); err != nil {
			return nil, fmt.Errorf("job: normalize assignments: %w", err)
		}
		out := make([]Assignment, 0, len(userIDs))
		for _, s := range userIDs {
			uid, err := id.ParseUserID(s)
			if err != nil {
				return nil, fmt.Errorf("job: normalize assignments: %w", err)
			}
			out = append(out, Assignment{UserID: uid, PayType: PayTypeJob})
		}
		if len(out) == 0 {
			return nil, nil
		}

		return out, nil

	default:
		return nil, fmt.Errorf("job: normalize assignments: unsupported encoding %q", trimmed[0])
	}
}

// EncodeAssignments marshals assignments in the canonical array-of-objects
// form. Unassigned encodes as the empty array, never null, so the column
// stays NOT NULL across backends.
func EncodeAssignments(assignments []Assignment) ([]byte, error) {
	if len(assignments) == 0 {
		return []byte("[]"), nil
	}
	data, err := json.Marshal(assignments)
	if err != nil {
		return nil, fmt.Errorf("job: encode assignments: %w", err)
	}

	return data, nil
}
