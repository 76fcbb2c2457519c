package mailer

import (
	"fmt"
	"html"
)

// PasswordResetSubject is the subject line of reset e-mails.
const PasswordResetSubject = "Password Reset Request"

// PasswordReset builds the reset e-mail carrying link.
func PasswordReset(to, username, link string) Message {
	text := fmt.Sprintf(
		"To reset your password, visit the following link:\n%s\n\n"+
			"If you did not make this request then simply ignore this email and no changes will be made.\n",
		link,
	)

	htmlBody := fmt.Sprintf(
		"<p>To reset your password, visit the following link:</p>"+
			"<p><a href=\"%[1]s\">%[1]s</a></p>"+
			"<p>If you did not make this request then simply ignore this email and no changes will be made.</p>",
		html.EscapeString(link),
	)

	return Message{
		To:      to,
		ToName:  username,
		Subject: PasswordResetSubject,
		Text:    text,
		HTML:    htmlBody,
	}
}
