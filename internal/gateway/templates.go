package gateway

import (
	"fmt"

	"otp-service/internal/model"
)

const passcodeSubject = "Your verification code"

// RenderPasscodeMessage builds the outbound message for a channel. SMS
// bodies stay under one segment; email gets a small HTML body.
func RenderPasscodeMessage(channel model.Channel, code string) Message {
	switch channel {
	case model.ChannelSMS:
		return Message{
			Body: fmt.Sprintf("%s is your verification code. It expires in 5 minutes. Do not share it with anyone.", code),
		}
	default:
		return Message{
			Subject: passcodeSubject,
			Body:    renderEmailHTML(code),
		}
	}
}

func renderEmailHTML(code string) string {
	return fmt.Sprintf(`<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif; background-color: #f4f4f7; padding: 24px;">
    <div style="max-width: 480px; margin: 0 auto; background: #ffffff; border-radius: 8px; padding: 32px;">
        <h2 style="margin-top: 0; color: #111827;">Your verification code</h2>
        <p style="color: #374151;">Use the code below to continue. It expires in 5 minutes.</p>
        <div style="font-size: 32px; letter-spacing: 8px; font-weight: bold; text-align: center; padding: 16px; background: #f9fafb; border-radius: 6px; color: #111827;">%s</div>
        <p style="margin-top: 24px; color: #6b7280; font-size: 13px;">
            If you did not request this code, you can safely ignore this email.
        </p>
    </div>
</body>
</html>`, code)
}
