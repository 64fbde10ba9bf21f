package mail

import (
	"bytes"
	"strings"
	"text/template"

	"github.com/iliyamo/cinema-ebooking/internal/model"
)

const (
	subjectVerification = "Verify your Cinema E-Booking account"
	subjectReset        = "Your Cinema E-Booking password reset code"
	subjectWelcome      = "Welcome to Cinema E-Booking System!"
)

var templates = template.Must(template.New("mail").Parse(`
{{define "verification"}}Welcome to Cinema E-Booking System!

Thank you for creating an account with us. To complete your registration, please verify your email address using the verification code below:

Verification Code: {{.Code}}

Enter this 6-digit code on the email verification page to activate your account.
This verification code will expire in 24 hours.

If you didn't create an account with Cinema E-Booking System, please ignore this email.

Cinema E-Booking System Team
{{end}}
{{define "reset"}}Dear Cinema E-Booking System User,

We received a request to reset your password. Use the following 6-digit code to choose a new one:

Your password reset code: {{.Code}}

This reset code will expire in 1 hour. Never share it with anyone.
If you didn't request a password reset, please ignore this email. Your password will remain unchanged.

Cinema E-Booking System Team
{{end}}
{{define "welcome"}}Hi {{.FirstName}},

Your email has been verified and your account is now active. You can now browse our latest movies, book tickets and manage your profile.

Thank you for joining our community of movie lovers!

Cinema E-Booking System Team
{{end}}
{{define "promotion"}}Hi {{.FirstName}},

{{.Title}}
{{if .Description}}
{{.Description}}
{{end}}
Enjoy {{.Discount}} on your next booking at Cinema E-Booking!

Valid from: {{.StartsAt}}
Until: {{.EndsAt}}

Cinema E-Booking Team
{{end}}`))

func render(name string, data any) (string, error) {
	var b bytes.Buffer
	if err := templates.ExecuteTemplate(&b, name, data); err != nil {
		return "", err
	}
	return b.String(), nil
}

// Verification renders the email verification code message.
func Verification(to, code string) (Message, error) {
	body, err := render("verification", struct{ Code string }{code})
	if err != nil {
		return Message{}, err
	}
	return newMessage(KindVerification, to, subjectVerification, body), nil
}

// PasswordReset renders the password reset code message.
func PasswordReset(to, code string) (Message, error) {
	body, err := render("reset", struct{ Code string }{code})
	if err != nil {
		return Message{}, err
	}
	return newMessage(KindReset, to, subjectReset, body), nil
}

// Welcome renders the message sent after a successful verification.
func Welcome(to, firstName string) (Message, error) {
	if strings.TrimSpace(firstName) == "" {
		firstName = "Movie Lover"
	}
	body, err := render("welcome", struct{ FirstName string }{firstName})
	if err != nil {
		return Message{}, err
	}
	return newMessage(KindWelcome, to, subjectWelcome, body), nil
}

// PromotionDateLayout formats promotion validity dates in emails.
const PromotionDateLayout = "Jan 2, 2006"

// Promotion renders a personalised promotion message.  The subject is the
// promotion name.
func Promotion(to, firstName string, p model.Promotion) (Message, error) {
	if strings.TrimSpace(firstName) == "" {
		firstName = "Valued Customer"
	}
	body, err := render("promotion", struct {
		FirstName, Title, Description, Discount, StartsAt, EndsAt string
	}{
		FirstName:   firstName,
		Title:       p.Name,
		Description: p.Description,
		Discount:    p.DiscountText(),
		StartsAt:    p.StartsAt.Format(PromotionDateLayout),
		EndsAt:      p.EndsAt.Format(PromotionDateLayout),
	})
	if err != nil {
		return Message{}, err
	}
	return newMessage(KindPromotion, to, p.Name, body), nil
}
