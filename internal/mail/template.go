// Package mail delivers onboarding messages to new workers.
package mail

import (
	"fmt"
	"html/template"

	gomail "github.com/wneessen/go-mail"

	"github.com/deliver-app/deliver/internal/users"
)

const welcomeSubject = "Welcome to Deliver"

var welcomeTemplate = template.Must(template.New("welcome").Parse(`<!DOCTYPE html>
<html>
<body>
<p>Hello {{.Name}} {{.Surname}},</p>
<p>An account has been created for you.</p>
<p>Username: <strong>{{.Username}}</strong><br>
Password: <strong>{{.Password}}</strong></p>
<p>Please change your password after your first login.</p>
</body>
</html>
`))

// newWelcomeMsg builds the MIME message for msg. Addresses are parsed, so
// header injection through the recipient fails here.
func newWelcomeMsg(from string, msg users.WelcomeMessage) (*gomail.Msg, error) {
	m := gomail.NewMsg()
	if err := m.From(from); err != nil {
		return nil, fmt.Errorf("mail: sender address: %w", err)
	}
	if err := m.To(msg.Email); err != nil {
		return nil, fmt.Errorf("mail: recipient address: %w", err)
	}
	m.Subject(welcomeSubject)
	m.SetDate()
	m.SetMessageID()
	if err := m.SetBodyHTMLTemplate(welcomeTemplate, msg); err != nil {
		return nil, fmt.Errorf("mail: render welcome: %w", err)
	}
	return m, nil
}
