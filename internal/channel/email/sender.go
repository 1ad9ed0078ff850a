package email

import (
	"context"
	"errors"
	"fmt"
	"net/mail"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/ses"

	"github.com/spec-kit/helpdesk-intake/internal/config"
	"github.com/spec-kit/helpdesk-intake/internal/domain"
)

// ErrNoSupportAlias is returned when the tenant has no address to send from.
var ErrNoSupportAlias = errors.New("organization has no support email alias")

// SESAPI is the subset of the SES client used for acknowledgments.
type SESAPI interface {
	SendEmailWithContext(ctx aws.Context, input *ses.SendEmailInput, opts ...request.Option) (*ses.SendEmailOutput, error)
}

// SESSender delivers acknowledgments through Amazon SES.
type SESSender struct {
	client SESAPI
}

// NewSESSender builds a sender from configuration. Static keys are optional; without them the
// default AWS credential chain applies.
func NewSESSender(cfg config.EmailConfig) (*SESSender, error) {
	awsCfg := &aws.Config{Region: aws.String(cfg.AWSRegion)}
	if cfg.AWSAccessKeyID != "" && cfg.AWSSecretAccessKey != "" {
		awsCfg.Credentials = credentials.NewStaticCredentials(cfg.AWSAccessKeyID, cfg.AWSSecretAccessKey, "")
	}
	if cfg.SESEndpoint != "" {
		awsCfg.Endpoint = aws.String(cfg.SESEndpoint)
	}
	sess, err := session.NewSession(awsCfg)
	if err != nil {
		return nil, fmt.Errorf("create aws session: %w", err)
	}
	return NewSESSenderWithClient(ses.New(sess)), nil
}

// NewSESSenderWithClient wraps an existing SES client.
func NewSESSenderWithClient(client SESAPI) *SESSender {
	return &SESSender{client: client}
}

// SendMessage implements channel.Sender.
func (s *SESSender) SendMessage(ctx context.Context, org *domain.Organization, msg domain.OutboundMessage) error {
	from := msg.From
	if from == "" {
		from = org.Email.SupportAlias
	}
	if from == "" {
		return ErrNoSupportAlias
	}
	if org.Name != "" {
		from = (&mail.Address{Name: org.Name, Address: from}).String()
	}

	input := &ses.SendEmailInput{
		Destination: &ses.Destination{
			ToAddresses: []*string{aws.String(msg.To)},
		},
		Message: &ses.Message{
			Body: &ses.Body{
				Text: &ses.Content{
					Charset: aws.String("UTF-8"),
					Data:    aws.String(msg.Body),
				},
			},
			Subject: &ses.Content{
				Charset: aws.String("UTF-8"),
				Data:    aws.String(msg.Subject),
			},
		},
		Source: aws.String(from),
	}

	if _, err := s.client.SendEmailWithContext(ctx, input); err != nil {
		return fmt.Errorf("send email via ses: %w", err)
	}
	return nil
}
