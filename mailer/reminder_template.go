package mailer

import (
	"bytes"
	"fmt"
	"html/template"
	"time"
)

// ReminderEmail is the rendered reminder notification: subject, plain-text
// body and a styled HTML alternative.
type ReminderEmail struct {
	Subject   string
	PlainBody string
	HTMLBody  string
}

const reminderPlainFormat = `Dear %s,

This is a reminder for your task:
%s

Lead: %s
Due: %s

Please contact us at support@minicrm.com if you need assistance.

Best regards,
Mini CRM Team
`

var reminderHTMLTemplate = template.Must(template.New("reminder").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<style>
  body { font-family: Arial, sans-serif; line-height: 1.6; color: #333; background-color: #f4f4f4; margin: 0; padding: 0; }
  .container { max-width: 600px; margin: 20px auto; background: #fff; padding: 20px; border-radius: 8px; }
  .header { background: #007bff; color: #fff; padding: 10px 20px; text-align: center; border-radius: 8px 8px 0 0; }
  .details { background: #f8f9fa; padding: 15px; border-radius: 5px; margin: 10px 0; }
  .footer { text-align: center; color: #777; font-size: 12px; padding: 10px; border-top: 1px solid #eee; }
</style>
</head>
<body>
  <div class="container">
    <div class="header"><h1>Mini CRM Reminder</h1></div>
    <div class="content">
      <h2>Hello, {{.LeadName}}</h2>
      <p>We're reaching out to remind you about an important task in Mini CRM.</p>
      <div class="details">
        <p><strong>Task:</strong> {{.Message}}</p>
        <p><strong>Lead:</strong> {{.LeadName}}</p>
        <p><strong>Due:</strong> {{.Due}}</p>
      </div>
      <p>Please take a moment to review this task in your Mini CRM account.</p>
    </div>
    <div class="footer">
      <p>Mini CRM Team | support@minicrm.com</p>
    </div>
  </div>
</body>
</html>
`))

// RenderReminderEmail builds the notification for one reminder.
func RenderReminderEmail(leadName, message string, remindAt time.Time) (ReminderEmail, error) {
	due := remindAt.Format("January 2, 2006 3:04 PM MST")

	var html bytes.Buffer
	err := reminderHTMLTemplate.Execute(&html, struct {
		LeadName string
		Message  string
		Due      string
	}{leadName, message, due})
	if err != nil {
		return ReminderEmail{}, fmt.Errorf("failed to render reminder HTML: %w", err)
	}

	return ReminderEmail{
		Subject:   fmt.Sprintf("Mini CRM Reminder: Task for %s", leadName),
		PlainBody: fmt.Sprintf(reminderPlainFormat, leadName, message, leadName, due),
		HTMLBody:  html.String(),
	}, nil
}
