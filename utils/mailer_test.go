package utils

import (
	"strings"
	"testing"
	"time"

	"careleads/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func strPtr(s string) *string { return &s }

func sampleReferral() *models.Lead {
	dob := time.Date(1948, 6, 12, 0, 0, 0, 0, time.UTC)
	return &models.Lead{
		FirstName:         "Pat",
		LastName:          "Jones",
		Phone:             "555-0100",
		DOB:               &dob,
		Model:             gorm.Model{CreatedAt: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)},
		CreatedBy:         "alice",
		LastContactStatus: "Assessment Scheduled",
		ActiveClient:      true,
		ReferralType:      strPtr(models.ReferralRegular),
		Agency: &models.Agency{
			Name: "Sunrise Home Care",
		},
		AgencySuboption: &models.AgencySuboption{
			Name: "Waiver Program",
		},
		CCU: &models.CCU{
			Name:                "North CCU",
			Phone:               "555-0199",
			Email:               "intake@northccu.example.com",
			CareCoordinatorName: "Morgan Lee",
		},
	}
}

func TestFormatDate(t *testing.T) {
	assert.Equal(t, "N/A", FormatDate(nil))

	zero := time.Time{}
	assert.Equal(t, "N/A", FormatDate(&zero))

	d := time.Date(2025, 3, 4, 15, 30, 0, 0, time.UTC)
	assert.Equal(t, "03/04/2025", FormatDate(&d))
}

func TestComposeLeadReminderDefaultsToNA(t *testing.T) {
	lead := &models.Lead{
		FirstName:         "Sam",
		LastName:          "Berg",
		Model:             gorm.Model{CreatedAt: time.Date(2025, 2, 20, 9, 0, 0, 0, time.UTC)},
		CreatedBy:         "bob",
		LastContactStatus: "Intro Call",
	}

	subject, textBody, htmlBody, err := ComposeLeadReminder(lead)
	require.NoError(t, err)

	assert.Equal(t, "Follow-Up Reminder: Sam Berg", subject)
	assert.Contains(t, textBody, "Date of Birth: N/A")
	assert.Contains(t, textBody, "Created Date: 02/20/2025")
	assert.Contains(t, htmlBody, "Sam Berg")
	assert.Contains(t, htmlBody, "Intro Call")
}

func TestComposeReferralReminderIncludesPartners(t *testing.T) {
	lead := sampleReferral()

	subject, textBody, htmlBody, err := ComposeReferralReminder(lead)
	require.NoError(t, err)

	assert.Equal(t, "Referral Follow-Up Reminder: Pat Jones", subject)
	assert.Contains(t, textBody, "Payor: Sunrise Home Care")
	assert.Contains(t, textBody, "Payor Program: Waiver Program")
	assert.Contains(t, textBody, "Coordinator: Morgan Lee")
	// Fields the CCU never filled in fall back to N/A
	assert.Contains(t, textBody, "CCU Fax: N/A")
	assert.Contains(t, htmlBody, "North CCU")
	assert.Contains(t, htmlBody, "Regular")
}

func TestComposeCareStartReminderCountsDays(t *testing.T) {
	lead := sampleReferral()
	lead.AuthorizationReceived = true

	authorizedAt := time.Date(2025, 3, 2, 10, 0, 0, 0, time.UTC)

	subject, textBody, _, err := ComposeCareStartReminder(lead, authorizedAt, authorizedAt.Add(26*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, "Care Start Pending: Pat Jones", subject)
	assert.Contains(t, textBody, "1 day ago")
	assert.Contains(t, textBody, "03/02/2025")

	_, textBody, htmlBody, err := ComposeCareStartReminder(lead, authorizedAt, authorizedAt.Add(80*time.Hour))
	require.NoError(t, err)
	assert.Contains(t, textBody, "3 days ago")
	assert.Contains(t, htmlBody, "3 days")
}

func TestComposeAuthorizationConfirmation(t *testing.T) {
	lead := sampleReferral()
	lead.AuthorizationReceived = true
	receivedAt := time.Date(2025, 3, 3, 12, 0, 0, 0, time.UTC)
	lead.AuthorizationReceivedAt = &receivedAt

	subject, textBody, htmlBody, err := ComposeAuthorizationConfirmation(lead)
	require.NoError(t, err)

	assert.Equal(t, "Authorization Received: Pat Jones", subject)
	assert.Contains(t, textBody, "Authorization Date: 03/03/2025")
	assert.Contains(t, htmlBody, "Sunrise Home Care")
}

func TestAllTemplatesRender(t *testing.T) {
	lead := sampleReferral()
	for name := range emailTemplates {
		body, err := renderTemplate(name, leadData(lead))
		require.NoError(t, err, "template %s", name)
		assert.False(t, strings.Contains(body, "{{"), "template %s left placeholders", name)
	}
}
