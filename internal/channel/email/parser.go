// Package email adapts inbound RFC 5322 mail and outbound SES delivery.
package email

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net/mail"
	"net/textproto"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"golang.org/x/text/encoding/htmlindex"

	"github.com/spec-kit/helpdesk-intake/internal/channel"
	"github.com/spec-kit/helpdesk-intake/internal/domain"
	apperrors "github.com/spec-kit/helpdesk-intake/pkg/util/errorutil"
)

const maxPartDepth = 5

var (
	wordDecoder = &mime.WordDecoder{CharsetReader: charsetReader}
	htmlTag     = regexp.MustCompile(`(?s)<[^>]*>`)
	wroteLine   = regexp.MustCompile(`^On .+wrote:\s*$`)
)

// Inbound parses a raw message delivered by the inbound mail relay.
// credential is the relay token presented alongside the message.
func Inbound(validate *validator.Validate, raw []byte, credential string, receivedAt time.Time) (domain.InboundMessage, error) {
	msg, err := mail.ReadMessage(bytes.NewReader(raw))
	if err != nil {
		return domain.InboundMessage{}, apperrors.NewValidationError("unreadable email message", map[string]any{"error": err.Error()})
	}

	inbound := domain.InboundMessage{
		Channel:          domain.ChannelEmail,
		BusinessIdentity: businessIdentity(msg.Header),
		Subject:          decodeHeader(msg.Header.Get("Subject")),
		CorrelationID:    strings.Trim(strings.TrimSpace(msg.Header.Get("Message-Id")), "<>"),
		Credential:       credential,
		ReceivedAt:       receivedAt.UTC(),
	}

	if from, err := mail.ParseAddress(msg.Header.Get("From")); err == nil {
		inbound.CustomerIdentity = from.Address
		inbound.CustomerName = strings.TrimSpace(from.Name)
	}

	text, err := extractText(textproto.MIMEHeader(msg.Header), msg.Body, 0)
	if err != nil {
		return domain.InboundMessage{}, apperrors.NewValidationError("unreadable email body", map[string]any{"error": err.Error()})
	}
	inbound.Body = TrimQuotedReply(text)

	if err := validate.Struct(inbound); err != nil {
		return domain.InboundMessage{}, channel.ValidationError("invalid inbound email", err)
	}
	return inbound, nil
}

func businessIdentity(header mail.Header) string {
	for _, key := range []string{"Delivered-To", "X-Original-To"} {
		if value := strings.TrimSpace(header.Get(key)); value != "" {
			if addr, err := mail.ParseAddress(value); err == nil {
				return addr.Address
			}
			return value
		}
	}
	list, err := header.AddressList("To")
	if err != nil || len(list) == 0 {
		return ""
	}
	return list[0].Address
}

func decodeHeader(value string) string {
	decoded, err := wordDecoder.DecodeHeader(value)
	if err != nil {
		decoded = value
	}
	return strings.TrimSpace(strings.ToValidUTF8(decoded, "\uFFFD"))
}

// extractText returns the text/plain content of an entity, falling back to tag-stripped text/html.
func extractText(header textproto.MIMEHeader, body io.Reader, depth int) (string, error) {
	if depth > maxPartDepth {
		return "", fmt.Errorf("mime nesting deeper than %d", maxPartDepth)
	}

	mediaType, params, err := mime.ParseMediaType(header.Get("Content-Type"))
	if err != nil {
		mediaType = "text/plain"
	}

	if strings.HasPrefix(mediaType, "multipart/") {
		return extractFromMultipart(body, params["boundary"], depth)
	}

	content, err := io.ReadAll(decodeTransfer(header.Get("Content-Transfer-Encoding"), body))
	if err != nil {
		return "", err
	}
	switch mediaType {
	case "text/plain":
		return normalizeNewlines(decodeCharset(params["charset"], content)), nil
	case "text/html":
		return htmlToText(decodeCharset(params["charset"], content)), nil
	}
	return "", nil
}

// decodeCharset converts content to UTF-8. Unknown charsets and stray bytes become U+FFFD.
func decodeCharset(charset string, content []byte) string {
	charset = strings.ToLower(strings.TrimSpace(charset))
	if charset != "" && charset != "utf-8" && charset != "us-ascii" {
		if enc, err := htmlindex.Get(charset); err == nil {
			if decoded, err := enc.NewDecoder().Bytes(content); err == nil {
				content = decoded
			}
		}
	}
	if utf8.Valid(content) {
		return string(content)
	}
	return strings.ToValidUTF8(string(content), "\uFFFD")
}

func charsetReader(charset string, input io.Reader) (io.Reader, error) {
	enc, err := htmlindex.Get(charset)
	if err != nil {
		return nil, err
	}
	return enc.NewDecoder().Reader(input), nil
}

func extractFromMultipart(body io.Reader, boundary string, depth int) (string, error) {
	if boundary == "" {
		return "", fmt.Errorf("multipart message without boundary")
	}
	reader := multipart.NewReader(body, boundary)
	var htmlFallback string
	for {
		part, err := reader.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}
		if disposition, _, _ := mime.ParseMediaType(part.Header.Get("Content-Disposition")); disposition == "attachment" {
			continue
		}
		mediaType, _, _ := mime.ParseMediaType(part.Header.Get("Content-Type"))
		text, err := extractText(part.Header, part, depth+1)
		if err != nil {
			return "", err
		}
		if text == "" {
			continue
		}
		if mediaType == "text/html" {
			if htmlFallback == "" {
				htmlFallback = text
			}
			continue
		}
		return text, nil
	}
	return htmlFallback, nil
}

func decodeTransfer(encoding string, body io.Reader) io.Reader {
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "base64":
		return base64.NewDecoder(base64.StdEncoding, body)
	case "quoted-printable":
		return quotedprintable.NewReader(body)
	}
	return body
}

func htmlToText(html string) string {
	replacer := strings.NewReplacer("<br>", "\n", "<br/>", "\n", "<br />", "\n", "</p>", "\n", "</div>", "\n")
	text := htmlTag.ReplaceAllString(replacer.Replace(html), "")
	replacer = strings.NewReplacer("&nbsp;", " ", "&amp;", "&", "&lt;", "<", "&gt;", ">", "&quot;", `"`, "&#39;", "'")
	return normalizeNewlines(replacer.Replace(text))
}

func normalizeNewlines(s string) string {
	return strings.ReplaceAll(s, "\r\n", "\n")
}

// TrimQuotedReply drops the quoted history a mail client appends below a reply.
// A message that is nothing but quotes is returned whole.
func TrimQuotedReply(body string) string {
	lines := strings.Split(normalizeNewlines(body), "\n")
	cut := len(lines)
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, ">") ||
			wroteLine.MatchString(trimmed) ||
			strings.HasPrefix(trimmed, "-----Original Message-----") {
			cut = i
			break
		}
	}
	reply := strings.TrimSpace(strings.Join(lines[:cut], "\n"))
	if reply == "" {
		return strings.TrimSpace(body)
	}
	return reply
}
