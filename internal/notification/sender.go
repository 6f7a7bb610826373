// Package notification delivers lead and operator messages over email and
// SMS. Expected failures are reported in the returned Result, never as panics
// or errors, so callers can decide whether to retry.
package notification

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"leadflow_backend/internal/email"
	"leadflow_backend/internal/sms"
	"leadflow_backend/platform/logger"
)

// Channel selects the delivery transport.
type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelSMS   Channel = "sms"
)

// Message is a templated notification addressed to one recipient.
type Message struct {
	Channel    Channel
	To         string
	ToName     string
	TemplateID string
	Vars       map[string]string
	TrackingID string
}

// Result describes the outcome of one delivery attempt.
type Result struct {
	Success           bool
	ProviderMessageID string
	Error             string
	// Permanent marks failures a retry cannot fix, such as an unknown template.
	Permanent bool
}

func failed(err error, permanent bool) Result {
	return Result{Error: err.Error(), Permanent: permanent}
}

// Notifier is what workflow actions depend on.
type Notifier interface {
	Send(ctx context.Context, msg Message) Result
}

type Sender struct {
	email email.Sender
	sms   sms.Sender
	log   *logger.Logger
}

// New builds a Sender. A nil smsSender disables the SMS channel.
func New(emailSender email.Sender, smsSender sms.Sender, log *logger.Logger) *Sender {
	if emailSender == nil {
		emailSender = email.NoopSender{}
	}
	return &Sender{email: emailSender, sms: smsSender, log: log}
}

var _ Notifier = (*Sender)(nil)

func (s *Sender) Send(ctx context.Context, msg Message) (result Result) {
	defer func() {
		if r := recover(); r != nil {
			result = Result{Error: fmt.Sprintf("notification panic: %v", r)}
		}
	}()

	if strings.TrimSpace(msg.To) == "" {
		return failed(fmt.Errorf("missing recipient"), true)
	}

	log := s.log.WithContext(ctx)
	if msg.TrackingID != "" {
		log = log.WithTrackingID(msg.TrackingID)
	}

	switch msg.Channel {
	case ChannelEmail:
		result = s.sendEmail(ctx, msg)
	case ChannelSMS:
		result = s.sendSMS(ctx, msg)
	default:
		return failed(fmt.Errorf("unsupported channel %q", msg.Channel), true)
	}

	if result.Success {
		log.Info("notification sent", "channel", msg.Channel, "template", msg.TemplateID, "providerMessageId", result.ProviderMessageID)
	} else {
		log.Warn("notification failed", "channel", msg.Channel, "template", msg.TemplateID, "error", result.Error, "permanent", result.Permanent)
	}
	return result
}

func (s *Sender) sendEmail(ctx context.Context, msg Message) Result {
	subject, html, err := email.Render(msg.TemplateID, msg.Vars)
	if err != nil {
		return failed(err, true)
	}
	id, err := s.email.Send(ctx, email.Message{To: msg.To, ToName: msg.ToName, Subject: subject, HTML: html})
	if err != nil {
		return failed(err, false)
	}
	return Result{Success: true, ProviderMessageID: id}
}

func (s *Sender) sendSMS(ctx context.Context, msg Message) Result {
	if s.sms == nil {
		return failed(fmt.Errorf("sms channel not configured"), true)
	}
	body, err := sms.Render(msg.TemplateID, msg.Vars)
	if err != nil {
		return failed(err, true)
	}
	id, err := s.sms.Send(ctx, msg.To, body)
	if err != nil {
		return failed(err, errors.Is(err, sms.ErrInvalidNumber))
	}
	return Result{Success: true, ProviderMessageID: id}
}
