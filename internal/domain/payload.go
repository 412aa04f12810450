package domain

import (
	"encoding/json"
	"fmt"
)

// PushPayload is the payload shape for the push channel.
type PushPayload struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// EmailPayload is the payload shape for the email channel. Optionals
// carries provider extras (attachments, reply_to) and is parsed
// leniently: malformed sub-objects are dropped, not rejected.
type EmailPayload struct {
	Subject     string          `json:"subject"`
	Content     string          `json:"content"`
	ContentType string          `json:"content_type"`
	Optionals   json.RawMessage `json:"optionals,omitempty"`
}

const DefaultContentType = "text/plain"

// Attachment is an email attachment inside optionals.attachments.
type Attachment struct {
	Content     string `json:"content"`
	Filename    string `json:"filename"`
	Type        string `json:"type"`
	Disposition string `json:"disposition,omitempty"`
}

const DefaultDisposition = "attachment"

// ReplyTo is the optional reply address inside optionals.reply_to.
type ReplyTo struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

// ParsePushPayload decodes and checks a push payload. Both title and
// body must be present strings.
func ParsePushPayload(raw json.RawMessage) (*PushPayload, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	var p PushPayload
	if err := requireString(fields, "title", &p.Title); err != nil {
		return nil, err
	}
	if err := requireString(fields, "body", &p.Body); err != nil {
		return nil, err
	}
	return &p, nil
}

// ParseEmailPayload decodes and checks an email payload. Subject and
// content must be present strings; content_type defaults to
// text/plain.
func ParseEmailPayload(raw json.RawMessage) (*EmailPayload, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	var p EmailPayload
	if err := requireString(fields, "subject", &p.Subject); err != nil {
		return nil, err
	}
	if err := requireString(fields, "content", &p.Content); err != nil {
		return nil, err
	}

	p.ContentType = DefaultContentType
	if ct, ok := fields["content_type"]; ok {
		if err := json.Unmarshal(ct, &p.ContentType); err != nil {
			return nil, fmt.Errorf("%w: content_type must be a string", ErrInvalidPayload)
		}
	}
	if opt, ok := fields["optionals"]; ok {
		p.Optionals = opt
	}
	return &p, nil
}

// Attachments extracts optionals.attachments, defaulting disposition.
// Malformed entries are silently ignored.
func (p *EmailPayload) Attachments() []Attachment {
	opts := p.optionals()
	if opts == nil {
		return nil
	}
	raw, ok := opts["attachments"]
	if !ok {
		return nil
	}

	var attachments []Attachment
	if err := json.Unmarshal(raw, &attachments); err != nil {
		return nil
	}
	for i := range attachments {
		if attachments[i].Disposition == "" {
			attachments[i].Disposition = DefaultDisposition
		}
	}
	return attachments
}

// ReplyTo extracts optionals.reply_to, or nil when absent or
// malformed.
func (p *EmailPayload) ReplyTo() *ReplyTo {
	opts := p.optionals()
	if opts == nil {
		return nil
	}
	raw, ok := opts["reply_to"]
	if !ok {
		return nil
	}

	var rt ReplyTo
	if err := json.Unmarshal(raw, &rt); err != nil {
		return nil
	}
	return &rt
}

func (p *EmailPayload) optionals() map[string]json.RawMessage {
	if len(p.Optionals) == 0 {
		return nil
	}
	var opts map[string]json.RawMessage
	if err := json.Unmarshal(p.Optionals, &opts); err != nil {
		return nil
	}
	return opts
}

// ValidatePayload checks that the payload conforms to the channel's
// shape at ingestion time. SMS has no supported payload shape yet.
func ValidatePayload(channel Channel, payload json.RawMessage) error {
	switch channel {
	case ChannelPush:
		if _, err := ParsePushPayload(payload); err != nil {
			return NewValidationError("payload", "push payload requires string title and body")
		}
	case ChannelEmail:
		if _, err := ParseEmailPayload(payload); err != nil {
			return NewValidationError("payload", "email payload requires string subject and content")
		}
	case ChannelSMS:
		return NewValidationError("channel", "sms channel is not supported")
	default:
		return NewValidationError("channel", "invalid channel")
	}
	return nil
}

func requireString(fields map[string]json.RawMessage, key string, dst *string) error {
	raw, ok := fields[key]
	if !ok {
		return fmt.Errorf("%w: missing %s", ErrInvalidPayload, key)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("%w: %s must be a string", ErrInvalidPayload, key)
	}
	return nil
}
