package email

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/ses"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/helpdesk-intake/internal/domain"
	apperrors "github.com/spec-kit/helpdesk-intake/pkg/util/errorutil"
)

func crlf(s string) []byte {
	return []byte(strings.ReplaceAll(strings.TrimPrefix(s, "\n"), "\n", "\r\n"))
}

var received = time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

func TestInboundPlainMessage(t *testing.T) {
	raw := crlf(`
From: Ana Silva <Ana@Example.com>
To: Help Desk <help@acme.io>
Subject: Printer broken
Message-ID: <abc123@mail.example.com>
Content-Type: text/plain; charset=utf-8

The printer on floor 2 is jammed.
`)
	msg, err := Inbound(validator.New(), raw, "tok", received)
	require.NoError(t, err)

	assert.Equal(t, domain.ChannelEmail, msg.Channel)
	assert.Equal(t, "help@acme.io", msg.BusinessIdentity)
	assert.Equal(t, "Ana@Example.com", msg.CustomerIdentity)
	assert.Equal(t, "Ana Silva", msg.CustomerName)
	assert.Equal(t, "Printer broken", msg.Subject)
	assert.Equal(t, "The printer on floor 2 is jammed.", msg.Body)
	assert.Equal(t, "abc123@mail.example.com", msg.CorrelationID)
	assert.Equal(t, "tok", msg.Credential)
	assert.Equal(t, received, msg.ReceivedAt)
}

func TestInboundPrefersDeliveredTo(t *testing.T) {
	raw := crlf(`
Delivered-To: support@acme.io
X-Original-To: other@acme.io
From: ana@example.com
To: list@acme.io
Subject: hi

hello
`)
	msg, err := Inbound(validator.New(), raw, "", received)
	require.NoError(t, err)
	assert.Equal(t, "support@acme.io", msg.BusinessIdentity)

	raw = crlf(`
X-Original-To: <other@acme.io>
From: ana@example.com
To: list@acme.io

hello
`)
	msg, err = Inbound(validator.New(), raw, "", received)
	require.NoError(t, err)
	assert.Equal(t, "other@acme.io", msg.BusinessIdentity)
}

func TestInboundMultipartPrefersPlainText(t *testing.T) {
	raw := crlf(`
From: =?UTF-8?Q?Jos=C3=A9?= <jose@example.com>
To: help@acme.io
Subject: =?UTF-8?B?T2zDoQ==?=
MIME-Version: 1.0
Content-Type: multipart/alternative; boundary="b1"

--b1
Content-Type: text/html; charset=utf-8

<p>html version</p>
--b1
Content-Type: text/plain; charset=utf-8
Content-Transfer-Encoding: quoted-printable

Caf=C3=A9 machine is =
broken.
--b1--
`)
	msg, err := Inbound(validator.New(), raw, "", received)
	require.NoError(t, err)
	assert.Equal(t, "José", msg.CustomerName)
	assert.Equal(t, "Olá", msg.Subject)
	assert.Equal(t, "Café machine is broken.", msg.Body)
}

func TestInboundNestedMultipartWithAttachment(t *testing.T) {
	raw := crlf(`
From: ana@example.com
To: help@acme.io
Content-Type: multipart/mixed; boundary="outer"

--outer
Content-Type: text/plain
Content-Disposition: attachment; filename="log.txt"

attachment text
--outer
Content-Type: multipart/alternative; boundary="inner"

--inner
Content-Type: text/plain
Content-Transfer-Encoding: base64

aGVsbG8gZnJvbSBiYXNlNjQ=
--inner--
--outer--
`)
	msg, err := Inbound(validator.New(), raw, "", received)
	require.NoError(t, err)
	assert.Equal(t, "hello from base64", msg.Body)
}

func TestInboundHTMLOnly(t *testing.T) {
	raw := crlf(`
From: ana@example.com
To: help@acme.io
Content-Type: text/html

<div>Line one</div><div>Tom &amp; Jerry</div>
`)
	msg, err := Inbound(validator.New(), raw, "", received)
	require.NoError(t, err)
	assert.Equal(t, "Line one\nTom & Jerry", msg.Body)
}

func TestInboundDecodesLegacyCharsets(t *testing.T) {
	raw := crlf(`
From: ana@example.com
To: help@acme.io
Subject: =?iso-8859-2?Q?Za=BF=F3=B3=E6?=
Content-Type: text/plain; charset=iso-8859-1
Content-Transfer-Encoding: 8bit

` + "Caf\xe9 machine broken\n")
	msg, err := Inbound(validator.New(), raw, "", received)
	require.NoError(t, err)
	assert.Equal(t, "Café machine broken", msg.Body)
	assert.Equal(t, "Zażółć", msg.Subject)
	assert.True(t, utf8.ValidString(msg.Body))
}

func TestInboundDecodesCharsetOfHTMLPart(t *testing.T) {
	raw := crlf(`
From: ana@example.com
To: help@acme.io
Content-Type: text/html; charset=windows-1252
Content-Transfer-Encoding: quoted-printable

<p>=93Quoted=94 na=EFve request</p>
`)
	msg, err := Inbound(validator.New(), raw, "", received)
	require.NoError(t, err)
	assert.Equal(t, "\u201cQuoted\u201d naïve request", msg.Body)
}

func TestInboundReplacesUndecodableBytes(t *testing.T) {
	raw := crlf(`
From: ana@example.com
To: help@acme.io
Content-Type: text/plain; charset=x-unknown-charset

` + "bad \xff byte\n")
	msg, err := Inbound(validator.New(), raw, "", received)
	require.NoError(t, err)
	assert.Equal(t, "bad \uFFFD byte", msg.Body)
}

func TestInboundRejectsMissingSender(t *testing.T) {
	raw := crlf(`
To: help@acme.io
Subject: anonymous

hello
`)
	_, err := Inbound(validator.New(), raw, "", received)
	require.Error(t, err)
	domainErr := apperrors.ToDomainError(err)
	assert.Equal(t, apperrors.CodeValidation, domainErr.Code)
	assert.Equal(t, "CustomerIdentity", domainErr.Details["fields"])
}

func TestInboundRejectsGarbage(t *testing.T) {
	_, err := Inbound(validator.New(), []byte("not a message"), "", received)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))
}

func TestTrimQuotedReply(t *testing.T) {
	cases := map[string]struct {
		in   string
		want string
	}{
		"angle quotes": {
			in:   "any update?\n\n> earlier text\n> more",
			want: "any update?",
		},
		"wrote line": {
			in:   "Thanks!\r\nOn Mon, 1 May 2024, Help <help@acme.io> wrote:\r\nHi Ana",
			want: "Thanks!",
		},
		"outlook": {
			in:   "See below\n-----Original Message-----\nFrom: x",
			want: "See below",
		},
		"only quotes": {
			in:   "> quoted only",
			want: "> quoted only",
		},
		"no quotes": {
			in:   "  plain  ",
			want: "plain",
		},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tc.want, TrimQuotedReply(tc.in))
		})
	}
}

type fakeSES struct {
	input *ses.SendEmailInput
	err   error
}

func (f *fakeSES) SendEmailWithContext(ctx aws.Context, input *ses.SendEmailInput, opts ...request.Option) (*ses.SendEmailOutput, error) {
	f.input = input
	return &ses.SendEmailOutput{MessageId: aws.String("m1")}, f.err
}

func TestSESSenderBuildsRequest(t *testing.T) {
	client := &fakeSES{}
	sender := NewSESSenderWithClient(client)
	org := &domain.Organization{Name: "Acme", Email: domain.EmailSettings{SupportAlias: "help@acme.io"}}

	err := sender.SendMessage(context.Background(), org, domain.OutboundMessage{
		Channel: domain.ChannelEmail,
		To:      "ana@example.com",
		Subject: "Re: Printer broken",
		Body:    "Hi Ana",
	})
	require.NoError(t, err)
	require.NotNil(t, client.input)

	assert.Equal(t, `"Acme" <help@acme.io>`, aws.StringValue(client.input.Source))
	assert.Equal(t, []string{"ana@example.com"}, aws.StringValueSlice(client.input.Destination.ToAddresses))
	assert.Equal(t, "Re: Printer broken", aws.StringValue(client.input.Message.Subject.Data))
	assert.Equal(t, "Hi Ana", aws.StringValue(client.input.Message.Body.Text.Data))
}

func TestSESSenderErrors(t *testing.T) {
	err := NewSESSenderWithClient(&fakeSES{}).SendMessage(context.Background(), &domain.Organization{}, domain.OutboundMessage{To: "a@b.c"})
	assert.ErrorIs(t, err, ErrNoSupportAlias)

	boom := errors.New("throttled")
	err = NewSESSenderWithClient(&fakeSES{err: boom}).SendMessage(context.Background(),
		&domain.Organization{Email: domain.EmailSettings{SupportAlias: "help@acme.io"}},
		domain.OutboundMessage{To: "a@b.c"})
	assert.ErrorIs(t, err, boom)
}
