package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func strPtr(s string) *string { return &s }

func TestDeriveState(t *testing.T) {
	tests := []struct {
		name string
		lead Lead
		want LeadState
	}{
		{
			name: "fresh intake",
			lead: Lead{LastContactStatus: "Intro Call"},
			want: StateIntake,
		},
		{
			name: "referral without authorization",
			lead: Lead{
				LastContactStatus: "Assessment Scheduled",
				ActiveClient:      true,
				ReferralType:      strPtr(ReferralRegular),
			},
			want: StateReferralPending,
		},
		{
			name: "authorized referral",
			lead: Lead{
				LastContactStatus:     "Assessment Scheduled",
				ActiveClient:          true,
				ReferralType:          strPtr(ReferralInterim),
				AuthorizationReceived: true,
			},
			want: StateAuthorized,
		},
		{
			name: "care status beats authorization",
			lead: Lead{
				LastContactStatus:     "Assessment Scheduled",
				ActiveClient:          true,
				ReferralType:          strPtr(ReferralRegular),
				AuthorizationReceived: true,
				CareStatus:            strPtr(CareStatusStart),
			},
			want: StateCareStarted,
		},
		{
			name: "not start is its own dead end",
			lead: Lead{
				LastContactStatus:     "Assessment Scheduled",
				ActiveClient:          true,
				ReferralType:          strPtr(ReferralRegular),
				AuthorizationReceived: true,
				CareStatus:            strPtr(CareStatusNotStart),
			},
			want: StateNotStarted,
		},
		{
			name: "inactive wins over everything",
			lead: Lead{
				LastContactStatus:     ContactStatusInactive,
				ActiveClient:          true,
				ReferralType:          strPtr(ReferralRegular),
				AuthorizationReceived: true,
				CareStatus:            strPtr(CareStatusStart),
			},
			want: StateInactive,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DeriveState(&tt.lead))
		})
	}
}

func TestValidateLifecycle(t *testing.T) {
	tests := []struct {
		name    string
		lead    Lead
		wantErr error
	}{
		{
			name: "plain lead is fine",
			lead: Lead{LastContactStatus: "Intro Call"},
		},
		{
			name:    "referral needs a type",
			lead:    Lead{ActiveClient: true},
			wantErr: ErrReferralTypeRequired,
		},
		{
			name:    "empty referral type",
			lead:    Lead{ActiveClient: true, ReferralType: strPtr("")},
			wantErr: ErrReferralTypeRequired,
		},
		{
			name:    "unknown referral type",
			lead:    Lead{ActiveClient: true, ReferralType: strPtr("Express")},
			wantErr: ErrInvalidReferralType,
		},
		{
			name: "care start needs authorization",
			lead: Lead{
				ActiveClient: true,
				ReferralType: strPtr(ReferralRegular),
				CareStatus:   strPtr(CareStatusStart),
			},
			wantErr: ErrCareStartRequiresAuthorization,
		},
		{
			name: "care start on a non-referral",
			lead: Lead{
				AuthorizationReceived: true,
				CareStatus:            strPtr(CareStatusStart),
			},
			wantErr: ErrCareStartRequiresAuthorization,
		},
		{
			name: "unknown care status",
			lead: Lead{
				ActiveClient:          true,
				ReferralType:          strPtr(ReferralRegular),
				AuthorizationReceived: true,
				CareStatus:            strPtr("Paused"),
			},
			wantErr: ErrInvalidCareStatus,
		},
		{
			name: "not start allowed without authorization",
			lead: Lead{
				ActiveClient: true,
				ReferralType: strPtr(ReferralRegular),
				CareStatus:   strPtr(CareStatusNotStart),
			},
		},
		{
			name: "authorized care start",
			lead: Lead{
				ActiveClient:          true,
				ReferralType:          strPtr(ReferralRegular),
				AuthorizationReceived: true,
				CareStatus:            strPtr(CareStatusStart),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateLifecycle(&tt.lead)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
