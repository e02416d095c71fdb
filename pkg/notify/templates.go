package notify

import (
	"bytes"
	"fmt"
	"html/template"
	"time"
)

const newApplicationSubject = "New Application for IS Assessment"

var newApplicationTemplate = template.Must(template.New("new_application").Parse(`<html>
  <body style="font-family: Arial, Helvetica, sans-serif; color: #333; line-height: 1.5;">
    <p>Dear {{.Recipient}},</p>
    <p>A new application has been registered in the <strong>IS Assessment System</strong>.</p>
    <table style="border-collapse: collapse; margin: 14px 0 18px; width: 100%; max-width: 600px;">
      <tr><td style="padding: 8px; font-weight: bold;">Application Name</td><td style="padding: 8px;">{{.Name}}</td></tr>
      <tr><td style="padding: 8px; font-weight: bold;">Description</td><td style="padding: 8px;">{{.Description}}</td></tr>
      <tr><td style="padding: 8px; font-weight: bold;">Vertical</td><td style="padding: 8px;">{{.Vertical}}</td></tr>
      <tr><td style="padding: 8px; font-weight: bold;">Vendor Company</td><td style="padding: 8px;">{{.VendorCompany}}</td></tr>
      <tr><td style="padding: 8px; font-weight: bold;">SLA</td><td style="padding: 8px;">{{.SLA}}</td></tr>
    </table>
    <p>Please <a href="{{.Link}}">log in to the IS Assessment portal</a> to review the application.</p>
    <p style="margin-top: 24px;">Regards,<br /><strong>IS Assessment Team</strong></p>
    <hr style="margin-top: 32px;" />
    <p style="font-size: 12px; color: #777;">This is an automated notification. Please do not reply to this email.</p>
  </body>
</html>
`))

type NewApplication struct {
	ApplicationID string
	Name          string
	Description   string
	Vertical      string
	VendorCompany string
	DueDate       string
}

type newApplicationView struct {
	Recipient     string
	Name          string
	Description   string
	Vertical      string
	VendorCompany string
	SLA           string
	Link          string
}

func orUnspecified(s string) string {
	if s == "" {
		return "Not specified"
	}
	return s
}

// RenderNewApplication builds the email announcing a new application to one
// recipient.
func RenderNewApplication(app NewApplication, recipient, baseURL string) (Message, error) {
	sla := "Not specified"
	if app.DueDate != "" {
		if t, err := time.Parse(time.RFC3339, app.DueDate); err == nil {
			sla = t.Format("02 Jan 2006")
		}
	}

	view := newApplicationView{
		Recipient:     orUnspecified(recipient),
		Name:          app.Name,
		Description:   orUnspecified(app.Description),
		Vertical:      orUnspecified(app.Vertical),
		VendorCompany: orUnspecified(app.VendorCompany),
		SLA:           sla,
		Link:          fmt.Sprintf("%s/applications/%s", baseURL, app.ApplicationID),
	}

	var buf bytes.Buffer
	if err := newApplicationTemplate.Execute(&buf, view); err != nil {
		return Message{}, err
	}
	return Message{
		Subject:  newApplicationSubject,
		HTMLBody: buf.String(),
		TextBody: fmt.Sprintf("A new application %q has been registered for IS assessment: %s", app.Name, view.Link),
	}, nil
}
