package gateway

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"otp-service/internal/model"
)

type recordingSender struct {
	name   string
	target string
	msg    Message
	err    error
}

func (r *recordingSender) Name() string { return r.name }

func (r *recordingSender) Send(_ context.Context, target string, msg Message) error {
	r.target = target
	r.msg = msg
	return r.err
}

func TestDeliverRoutesToChannelSender(t *testing.T) {
	email := &recordingSender{name: "email-provider"}
	sms := &recordingSender{name: "sms-provider"}

	gw := NewNotificationGateway()
	gw.Register(model.ChannelEmail, email)
	gw.Register(model.ChannelSMS, sms)

	err := gw.Deliver(context.Background(), model.ChannelSMS, "+14155550123", "123456")
	require.NoError(t, err)

	assert.Equal(t, "+14155550123", sms.target)
	assert.Contains(t, sms.msg.Body, "123456")
	assert.Empty(t, email.target)
}

func TestDeliverUnsupportedChannel(t *testing.T) {
	gw := NewNotificationGateway()

	err := gw.Deliver(context.Background(), model.ChannelEmail, "user@example.com", "123456")
	assert.ErrorIs(t, err, ErrUnsupportedChannel)
}

func TestDeliverWrapsSenderFailure(t *testing.T) {
	email := &recordingSender{name: "email-provider", err: errors.New("timeout")}

	gw := NewNotificationGateway()
	gw.Register(model.ChannelEmail, email)

	err := gw.Deliver(context.Background(), model.ChannelEmail, "user@example.com", "123456")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "email-provider")
}

func TestProviderName(t *testing.T) {
	gw := NewNotificationGateway()
	gw.Register(model.ChannelEmail, &recordingSender{name: "resend"})

	assert.Equal(t, "resend", gw.Provider(model.ChannelEmail))
	assert.Equal(t, "", gw.Provider(model.ChannelSMS))
}

func TestRenderPasscodeMessage(t *testing.T) {
	sms := RenderPasscodeMessage(model.ChannelSMS, "654321")
	assert.Empty(t, sms.Subject)
	assert.Contains(t, sms.Body, "654321")
	assert.Less(t, len(sms.Body), 160, "SMS body fits one segment")

	email := RenderPasscodeMessage(model.ChannelEmail, "654321")
	assert.NotEmpty(t, email.Subject)
	assert.Contains(t, email.Body, "654321")
	assert.Contains(t, email.Body, "<html>")
}

func TestNormalizePhone(t *testing.T) {
	tests := []struct {
		input   string
		want    string
		wantErr bool
	}{
		{"+14155550123", "+14155550123", false},
		{"+1 (415) 555-0123", "+14155550123", false},
		{"+442071838750", "+442071838750", false},
		{"14155550123", "", true}, // missing leading +
		{"+1", "", true},
		{"not-a-number", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		got, err := NormalizePhone(tt.input)
		if tt.wantErr {
			assert.ErrorIs(t, err, ErrInvalidPhoneNumber, "input %q", tt.input)
			continue
		}
		require.NoError(t, err, "input %q", tt.input)
		assert.Equal(t, tt.want, got)
	}
}
