package gateway

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"
	"github.com/nyaruka/phonenumbers"

	"otp-service/internal/config"
)

var ErrInvalidPhoneNumber = errors.New("invalid phone number")

// SMSSender delivers passcode texts through AWS SNS. Targets are
// normalized to E.164 before publishing.
type SMSSender struct {
	client   *sns.Client
	senderID string
}

func NewSMSSender(cfg *config.Config, client *sns.Client) *SMSSender {
	return &SMSSender{
		client:   client,
		senderID: cfg.Notify.SMSSenderID,
	}
}

func (s *SMSSender) Name() string {
	return "sns"
}

func (s *SMSSender) Send(ctx context.Context, target string, msg Message) error {
	phone, err := NormalizePhone(target)
	if err != nil {
		return err
	}

	input := &sns.PublishInput{
		PhoneNumber: aws.String(phone),
		Message:     aws.String(msg.Body),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"AWS.SNS.SMS.SMSType": {
				DataType:    aws.String("String"),
				StringValue: aws.String("Transactional"),
			},
		},
	}

	if s.senderID != "" {
		input.MessageAttributes["AWS.SNS.SMS.SenderID"] = types.MessageAttributeValue{
			DataType:    aws.String("String"),
			StringValue: aws.String(s.senderID),
		}
	}

	if _, err := s.client.Publish(ctx, input); err != nil {
		return fmt.Errorf("sns publish failed: %w", err)
	}

	return nil
}

// NormalizePhone validates a phone number and returns its E.164 form.
// The leading + is required so the region can be inferred.
func NormalizePhone(input string) (string, error) {
	if len(input) < 2 || input[0] != '+' {
		return "", ErrInvalidPhoneNumber
	}

	num, err := phonenumbers.Parse(input, "")
	if err != nil {
		return "", ErrInvalidPhoneNumber
	}
	if !phonenumbers.IsValidNumber(num) {
		return "", ErrInvalidPhoneNumber
	}
	return phonenumbers.Format(num, phonenumbers.E164), nil
}
