package models

import (
	"errors"
	"fmt"
)

// LeadState is the explicit lifecycle state derived from the referral and
// contact fields. The stored representation stays the field tuple; this enum
// gives the update path and the scheduler one place to reason about it.
type LeadState int

const (
	// StateIntake is the default state after creation from any source.
	StateIntake LeadState = iota
	// StateReferralPending means staff marked the lead as a referral but the
	// payor has not yet authorized care.
	StateReferralPending
	// StateAuthorized means the payor confirmed funding; care has not begun.
	StateAuthorized
	// StateCareStarted is terminal for reminders: in-home services began.
	StateCareStarted
	// StateNotStarted is the dead-end alternative to StateCareStarted.
	StateNotStarted
	// StateInactive absorbs every other state and suppresses all reminders.
	StateInactive
)

func (s LeadState) String() string {
	switch s {
	case StateIntake:
		return "Intake"
	case StateReferralPending:
		return "Referral Pending"
	case StateAuthorized:
		return "Authorized"
	case StateCareStarted:
		return "Care Started"
	case StateNotStarted:
		return "Not Started"
	case StateInactive:
		return "Inactive"
	}
	return fmt.Sprintf("LeadState(%d)", int(s))
}

// DeriveState maps the stored field tuple onto the lifecycle enum. Inactive
// wins over everything else; care status wins over authorization.
func DeriveState(l *Lead) LeadState {
	if l.LastContactStatus == ContactStatusInactive {
		return StateInactive
	}
	if l.CareStatus != nil {
		switch *l.CareStatus {
		case CareStatusStart:
			return StateCareStarted
		case CareStatusNotStart:
			return StateNotStarted
		}
	}
	if !l.ActiveClient {
		return StateIntake
	}
	if l.AuthorizationReceived {
		return StateAuthorized
	}
	return StateReferralPending
}

var (
	// ErrCareStartRequiresAuthorization rejects a "Care Start" status on a
	// lead that is not an authorized referral.
	ErrCareStartRequiresAuthorization = errors.New("care status can only be \"Care Start\" for an authorized referral")
	// ErrReferralTypeRequired rejects marking a referral without a type.
	ErrReferralTypeRequired = errors.New("referral type is required when marking a lead as a referral")
	// ErrInvalidReferralType rejects unknown referral types.
	ErrInvalidReferralType = errors.New("referral type must be \"Regular\" or \"Interim\"")
	// ErrInvalidCareStatus rejects unknown care status values.
	ErrInvalidCareStatus = errors.New("care status must be \"Care Start\" or \"Not Start\"")
)

// ValidateLifecycle enforces the field invariants after an update has been
// applied but before it is persisted.
func ValidateLifecycle(l *Lead) error {
	if l.CareStatus != nil {
		switch *l.CareStatus {
		case CareStatusStart:
			if !l.ActiveClient || !l.AuthorizationReceived {
				return ErrCareStartRequiresAuthorization
			}
		case CareStatusNotStart:
		default:
			return ErrInvalidCareStatus
		}
	}
	if l.ActiveClient {
		if l.ReferralType == nil || *l.ReferralType == "" {
			return ErrReferralTypeRequired
		}
		if *l.ReferralType != ReferralRegular && *l.ReferralType != ReferralInterim {
			return ErrInvalidReferralType
		}
	}
	return nil
}
