package utils

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"
	"time"

	"careleads/config"
	"careleads/models"

	"github.com/badoux/checkmail"
	"gopkg.in/gomail.v2"
)

// Sender delivers a composed email. The SMTP implementation is swapped out
// for a recording fake in tests.
type Sender interface {
	Send(to, subject, textBody, htmlBody string) error
}

// SMTPSender sends through the configured SMTP relay.
type SMTPSender struct {
	Host      string
	Port      int
	Username  string
	Password  string
	FromName  string
	FromEmail string
}

func NewSMTPSender() *SMTPSender {
	smtp := config.AppConfig.SMTP
	return &SMTPSender{
		Host:      smtp.Host,
		Port:      smtp.Port,
		Username:  smtp.Username,
		Password:  smtp.Password,
		FromName:  smtp.FromName,
		FromEmail: smtp.FromEmail,
	}
}

func (s *SMTPSender) Send(to, subject, textBody, htmlBody string) error {
	if err := checkmail.ValidateFormat(to); err != nil {
		return fmt.Errorf("invalid recipient address %q: %w", to, err)
	}

	m := gomail.NewMessage()
	m.SetHeader("From", fmt.Sprintf("%s <%s>", s.FromName, s.FromEmail))
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", textBody)
	m.AddAlternative("text/html", htmlBody)

	d := gomail.NewDialer(s.Host, s.Port, s.Username, s.Password)
	if err := d.DialAndSend(m); err != nil {
		return fmt.Errorf("error sending email: %w", err)
	}
	return nil
}

// reminderData feeds the email templates. Every string field is already
// formatted for display; absent values arrive as "N/A".
type reminderData struct {
	Subject          string
	Name             string
	Phone            string
	DOB              string
	Creator          string
	CreatedDate      string
	Status           string
	ReferralType     string
	PayorName        string
	PayorSuboption   string
	CCUName          string
	CCUPhone         string
	CCUFax           string
	CCUEmail         string
	CCUAddress       string
	CCUCoordinator   string
	AuthReceivedDate string
	DaysSinceAuth    string
}

// Embedded email templates
var emailTemplates = map[string]string{
	"lead_reminder": `<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>{{.Subject}}</title>
    <style>
        body { font-family: Arial, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px; }
        .header { color: #2c3e50; border-bottom: 1px solid #eee; padding-bottom: 10px; }
        .content { margin: 20px 0; }
        table { border-collapse: collapse; width: 100%; }
        td { padding: 6px 10px; border-bottom: 1px solid #eee; }
        td.label { font-weight: bold; width: 180px; color: #2c3e50; }
        .footer { margin-top: 30px; font-size: 12px; color: #7f8c8d; text-align: center; }
    </style>
</head>
<body>
    <div class="header">
        <h2>Lead Follow-Up Reminder</h2>
    </div>

    <div class="content">
        <p>This lead has not been contacted recently. Please follow up.</p>

        <table>
            <tr><td class="label">Name</td><td>{{.Name}}</td></tr>
            <tr><td class="label">Phone</td><td>{{.Phone}}</td></tr>
            <tr><td class="label">Date of Birth</td><td>{{.DOB}}</td></tr>
            <tr><td class="label">Created By</td><td>{{.Creator}}</td></tr>
            <tr><td class="label">Created Date</td><td>{{.CreatedDate}}</td></tr>
            <tr><td class="label">Last Contact Status</td><td>{{.Status}}</td></tr>
        </table>
    </div>

    <div class="footer">
        <p>This is an automated reminder from the lead tracking system.</p>
    </div>
</body>
</html>`,

	"referral_reminder": `<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>{{.Subject}}</title>
    <style>
        body { font-family: Arial, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px; }
        .header { color: #2c3e50; border-bottom: 1px solid #eee; padding-bottom: 10px; }
        .content { margin: 20px 0; }
        table { border-collapse: collapse; width: 100%; }
        td { padding: 6px 10px; border-bottom: 1px solid #eee; }
        td.label { font-weight: bold; width: 180px; color: #2c3e50; }
        .section { margin-top: 20px; font-weight: bold; color: #2c3e50; }
        .footer { margin-top: 30px; font-size: 12px; color: #7f8c8d; text-align: center; }
    </style>
</head>
<body>
    <div class="header">
        <h2>Referral Follow-Up Reminder</h2>
    </div>

    <div class="content">
        <p>This referral has not been contacted recently. Please follow up.</p>

        <table>
            <tr><td class="label">Name</td><td>{{.Name}}</td></tr>
            <tr><td class="label">Phone</td><td>{{.Phone}}</td></tr>
            <tr><td class="label">Date of Birth</td><td>{{.DOB}}</td></tr>
            <tr><td class="label">Created By</td><td>{{.Creator}}</td></tr>
            <tr><td class="label">Created Date</td><td>{{.CreatedDate}}</td></tr>
            <tr><td class="label">Last Contact Status</td><td>{{.Status}}</td></tr>
            <tr><td class="label">Referral Type</td><td>{{.ReferralType}}</td></tr>
            <tr><td class="label">Payor</td><td>{{.PayorName}}</td></tr>
            <tr><td class="label">Payor Program</td><td>{{.PayorSuboption}}</td></tr>
        </table>

        <div class="section">Care Coordination Unit</div>
        <table>
            <tr><td class="label">CCU</td><td>{{.CCUName}}</td></tr>
            <tr><td class="label">Coordinator</td><td>{{.CCUCoordinator}}</td></tr>
            <tr><td class="label">Phone</td><td>{{.CCUPhone}}</td></tr>
            <tr><td class="label">Fax</td><td>{{.CCUFax}}</td></tr>
            <tr><td class="label">Email</td><td>{{.CCUEmail}}</td></tr>
            <tr><td class="label">Address</td><td>{{.CCUAddress}}</td></tr>
        </table>
    </div>

    <div class="footer">
        <p>This is an automated reminder from the lead tracking system.</p>
    </div>
</body>
</html>`,

	"care_start_reminder": `<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>{{.Subject}}</title>
    <style>
        body { font-family: Arial, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px; }
        .header { color: #c0392b; border-bottom: 1px solid #eee; padding-bottom: 10px; }
        .content { margin: 20px 0; }
        table { border-collapse: collapse; width: 100%; }
        td { padding: 6px 10px; border-bottom: 1px solid #eee; }
        td.label { font-weight: bold; width: 180px; color: #2c3e50; }
        .alert { font-size: 16px; font-weight: bold; color: #c0392b; margin: 20px 0; }
        .section { margin-top: 20px; font-weight: bold; color: #2c3e50; }
        .footer { margin-top: 30px; font-size: 12px; color: #7f8c8d; text-align: center; }
    </style>
</head>
<body>
    <div class="header">
        <h2>Care Start Pending</h2>
    </div>

    <div class="content">
        <div class="alert">Authorization received {{.DaysSinceAuth}} ago on {{.AuthReceivedDate}}, but care has not started.</div>

        <table>
            <tr><td class="label">Name</td><td>{{.Name}}</td></tr>
            <tr><td class="label">Phone</td><td>{{.Phone}}</td></tr>
            <tr><td class="label">Date of Birth</td><td>{{.DOB}}</td></tr>
            <tr><td class="label">Created By</td><td>{{.Creator}}</td></tr>
            <tr><td class="label">Created Date</td><td>{{.CreatedDate}}</td></tr>
            <tr><td class="label">Referral Type</td><td>{{.ReferralType}}</td></tr>
            <tr><td class="label">Payor</td><td>{{.PayorName}}</td></tr>
            <tr><td class="label">Payor Program</td><td>{{.PayorSuboption}}</td></tr>
        </table>

        <div class="section">Care Coordination Unit</div>
        <table>
            <tr><td class="label">CCU</td><td>{{.CCUName}}</td></tr>
            <tr><td class="label">Coordinator</td><td>{{.CCUCoordinator}}</td></tr>
            <tr><td class="label">Phone</td><td>{{.CCUPhone}}</td></tr>
            <tr><td class="label">Email</td><td>{{.CCUEmail}}</td></tr>
        </table>
    </div>

    <div class="footer">
        <p>This is an automated reminder from the lead tracking system.</p>
    </div>
</body>
</html>`,

	"authorization_confirmation": `<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>{{.Subject}}</title>
    <style>
        body { font-family: Arial, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px; }
        .header { color: #27ae60; border-bottom: 1px solid #eee; padding-bottom: 10px; }
        .content { margin: 20px 0; }
        table { border-collapse: collapse; width: 100%; }
        td { padding: 6px 10px; border-bottom: 1px solid #eee; }
        td.label { font-weight: bold; width: 180px; color: #2c3e50; }
        .footer { margin-top: 30px; font-size: 12px; color: #7f8c8d; text-align: center; }
    </style>
</head>
<body>
    <div class="header">
        <h2>Authorization Received</h2>
    </div>

    <div class="content">
        <p>Authorization has been received for the referral below. Care can now be scheduled.</p>

        <table>
            <tr><td class="label">Name</td><td>{{.Name}}</td></tr>
            <tr><td class="label">Phone</td><td>{{.Phone}}</td></tr>
            <tr><td class="label">Referral Type</td><td>{{.ReferralType}}</td></tr>
            <tr><td class="label">Payor</td><td>{{.PayorName}}</td></tr>
            <tr><td class="label">Authorization Date</td><td>{{.AuthReceivedDate}}</td></tr>
        </table>
    </div>

    <div class="footer">
        <p>This is an automated notification from the lead tracking system.</p>
    </div>
</body>
</html>`,
}

// FormatDate renders a date as mm/dd/yyyy, or "N/A" when absent.
func FormatDate(t *time.Time) string {
	if t == nil || t.IsZero() {
		return "N/A"
	}
	return t.Format("01/02/2006")
}

func orNA(s string) string {
	if strings.TrimSpace(s) == "" {
		return "N/A"
	}
	return s
}

func derefOrNA(s *string) string {
	if s == nil {
		return "N/A"
	}
	return orNA(*s)
}

func renderTemplate(name string, data reminderData) (string, error) {
	tmplContent, ok := emailTemplates[name]
	if !ok {
		return "", fmt.Errorf("template '%s' not found", name)
	}
	tmpl, err := template.New("email").Parse(tmplContent)
	if err != nil {
		return "", fmt.Errorf("error parsing template: %w", err)
	}
	var body bytes.Buffer
	if err := tmpl.Execute(&body, data); err != nil {
		return "", fmt.Errorf("error executing template: %w", err)
	}
	return body.String(), nil
}

func leadData(lead *models.Lead) reminderData {
	created := lead.CreatedAt
	data := reminderData{
		Name:             orNA(lead.FullName()),
		Phone:            orNA(lead.Phone),
		DOB:              FormatDate(lead.DOB),
		Creator:          orNA(lead.CreatedBy),
		CreatedDate:      FormatDate(&created),
		Status:           orNA(lead.LastContactStatus),
		ReferralType:     derefOrNA(lead.ReferralType),
		PayorName:        "N/A",
		PayorSuboption:   "N/A",
		CCUName:          "N/A",
		CCUPhone:         "N/A",
		CCUFax:           "N/A",
		CCUEmail:         "N/A",
		CCUAddress:       "N/A",
		CCUCoordinator:   "N/A",
		AuthReceivedDate: FormatDate(lead.AuthorizationReceivedAt),
		DaysSinceAuth:    "N/A",
	}
	if lead.Agency != nil {
		data.PayorName = orNA(lead.Agency.Name)
	}
	if lead.AgencySuboption != nil {
		data.PayorSuboption = orNA(lead.AgencySuboption.Name)
	}
	if lead.CCU != nil {
		data.CCUName = orNA(lead.CCU.Name)
		data.CCUPhone = orNA(lead.CCU.Phone)
		data.CCUFax = orNA(lead.CCU.Fax)
		data.CCUEmail = orNA(lead.CCU.Email)
		data.CCUAddress = orNA(lead.CCU.Address)
		data.CCUCoordinator = orNA(lead.CCU.CareCoordinatorName)
	}
	return data
}

func plainText(data reminderData, intro string, lines [][2]string) string {
	var b strings.Builder
	b.WriteString(intro)
	b.WriteString("\n\n")
	for _, line := range lines {
		fmt.Fprintf(&b, "%s: %s\n", line[0], line[1])
	}
	return b.String()
}

// ComposeLeadReminder builds the follow-up email for a non-referral lead.
func ComposeLeadReminder(lead *models.Lead) (subject, textBody, htmlBody string, err error) {
	data := leadData(lead)
	subject = fmt.Sprintf("Follow-Up Reminder: %s", data.Name)
	data.Subject = subject

	htmlBody, err = renderTemplate("lead_reminder", data)
	if err != nil {
		return "", "", "", err
	}
	textBody = plainText(data, "This lead has not been contacted recently. Please follow up.", [][2]string{
		{"Name", data.Name},
		{"Phone", data.Phone},
		{"Date of Birth", data.DOB},
		{"Created By", data.Creator},
		{"Created Date", data.CreatedDate},
		{"Last Contact Status", data.Status},
	})
	return subject, textBody, htmlBody, nil
}

// ComposeReferralReminder builds the follow-up email for an active referral,
// including payor and CCU contact details.
func ComposeReferralReminder(lead *models.Lead) (subject, textBody, htmlBody string, err error) {
	data := leadData(lead)
	subject = fmt.Sprintf("Referral Follow-Up Reminder: %s", data.Name)
	data.Subject = subject

	htmlBody, err = renderTemplate("referral_reminder", data)
	if err != nil {
		return "", "", "", err
	}
	textBody = plainText(data, "This referral has not been contacted recently. Please follow up.", [][2]string{
		{"Name", data.Name},
		{"Phone", data.Phone},
		{"Date of Birth", data.DOB},
		{"Created By", data.Creator},
		{"Created Date", data.CreatedDate},
		{"Last Contact Status", data.Status},
		{"Referral Type", data.ReferralType},
		{"Payor", data.PayorName},
		{"Payor Program", data.PayorSuboption},
		{"CCU", data.CCUName},
		{"Coordinator", data.CCUCoordinator},
		{"CCU Phone", data.CCUPhone},
		{"CCU Fax", data.CCUFax},
		{"CCU Email", data.CCUEmail},
		{"CCU Address", data.CCUAddress},
	})
	return subject, textBody, htmlBody, nil
}

// ComposeCareStartReminder builds the escalation email for an authorized
// referral whose care has not started. authorizedAt is the provable
// authorization time; now supplies the elapsed-days figure.
func ComposeCareStartReminder(lead *models.Lead, authorizedAt, now time.Time) (subject, textBody, htmlBody string, err error) {
	data := leadData(lead)
	subject = fmt.Sprintf("Care Start Pending: %s", data.Name)
	data.Subject = subject
	data.AuthReceivedDate = FormatDate(&authorizedAt)

	days := int(now.Sub(authorizedAt).Hours() / 24)
	if days == 1 {
		data.DaysSinceAuth = "1 day"
	} else {
		data.DaysSinceAuth = fmt.Sprintf("%d days", days)
	}

	htmlBody, err = renderTemplate("care_start_reminder", data)
	if err != nil {
		return "", "", "", err
	}
	textBody = plainText(data,
		fmt.Sprintf("Authorization received %s ago on %s, but care has not started.", data.DaysSinceAuth, data.AuthReceivedDate),
		[][2]string{
			{"Name", data.Name},
			{"Phone", data.Phone},
			{"Date of Birth", data.DOB},
			{"Created By", data.Creator},
			{"Created Date", data.CreatedDate},
			{"Referral Type", data.ReferralType},
			{"Payor", data.PayorName},
			{"Payor Program", data.PayorSuboption},
			{"CCU", data.CCUName},
			{"Coordinator", data.CCUCoordinator},
			{"CCU Phone", data.CCUPhone},
			{"CCU Email", data.CCUEmail},
		})
	return subject, textBody, htmlBody, nil
}

// ComposeAuthorizationConfirmation builds the notification sent when a
// referral's authorization is received.
func ComposeAuthorizationConfirmation(lead *models.Lead) (subject, textBody, htmlBody string, err error) {
	data := leadData(lead)
	subject = fmt.Sprintf("Authorization Received: %s", data.Name)
	data.Subject = subject

	htmlBody, err = renderTemplate("authorization_confirmation", data)
	if err != nil {
		return "", "", "", err
	}
	textBody = plainText(data, "Authorization has been received for the referral below. Care can now be scheduled.", [][2]string{
		{"Name", data.Name},
		{"Phone", data.Phone},
		{"Referral Type", data.ReferralType},
		{"Payor", data.PayorName},
		{"Authorization Date", data.AuthReceivedDate},
	})
	return subject, textBody, htmlBody, nil
}

// Mailer pairs a Sender with the composition helpers. It satisfies the
// store's AuthorizationNotifier.
type Mailer struct {
	Sender Sender
}

func NewMailer(sender Sender) *Mailer {
	return &Mailer{Sender: sender}
}

func (m *Mailer) SendAuthorizationConfirmation(lead *models.Lead, recipient string) error {
	subject, textBody, htmlBody, err := ComposeAuthorizationConfirmation(lead)
	if err != nil {
		return err
	}
	return m.Sender.Send(recipient, subject, textBody, htmlBody)
}
