package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/nearmiss1193-afk/outreach/internal/domain"
	"github.com/nearmiss1193-afk/outreach/internal/pii"
)

const smsProviderName = "crm-sms-provider"

type smsRequestBody struct {
	ContactID   string `json:"contactId,omitempty"`
	PhoneNumber string `json:"phoneNumber"`
	Type        string `json:"type"`
	Message     string `json:"message"`
	ReferenceID string `json:"referenceId"`
}

type smsSuccessBody struct {
	MessageID string `json:"messageId"`
}

type smsErrorBody struct {
	Error string `json:"error"`
}

// SMSSender relays through the CRM collaborator, which owns the actual SMS
// transport. The CRM dedupes on referenceId, so a retried request with the
// same correlation ID produces one message.
type SMSSender struct {
	client  *http.Client
	baseURL string
	apiKey  string
	logger  *slog.Logger
}

func NewSMSSender(baseURL, apiKey string, connectTimeout time.Duration, logger *slog.Logger) *SMSSender {
	if logger == nil {
		logger = slog.Default()
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DialContext = (&net.Dialer{
		Timeout:   connectTimeout,
		KeepAlive: 30 * time.Second,
	}).DialContext
	return &SMSSender{
		client:  &http.Client{Transport: transport},
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		logger:  logger,
	}
}

func (s *SMSSender) Channel() domain.Channel {
	return domain.ChannelSMS
}

func (s *SMSSender) Send(ctx context.Context, lead domain.Lead, variant domain.MessageVariant, correlationID string) (string, error) {
	if !lead.HasPhone() {
		return "", permanentErr(smsProviderName, "missing_recipient")
	}

	message := RenderTemplate(variant.Body, lead)
	body, err := json.Marshal(smsRequestBody{
		ContactID:   lead.CRMID,
		PhoneNumber: lead.Phone,
		Type:        "SMS",
		Message:     message,
		ReferenceID: correlationID,
	})
	if err != nil {
		return "", permanentErr(smsProviderName, "encode_request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/conversations/messages", bytes.NewReader(body))
	if err != nil {
		return "", permanentErr(smsProviderName, "build_request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	s.logger.Info("sms provider request",
		"correlation_id", correlationID,
		"provider", smsProviderName,
		"recipient_masked", pii.MaskRecipient(lead.Phone),
		"message_len", len(message),
		"message_hash", pii.Hash(message),
	)
	resp, err := s.client.Do(req)
	if err != nil {
		return "", transientErr(smsProviderName, "request_failed", err)
	}
	defer resp.Body.Close()

	s.logger.Info("sms provider response",
		"correlation_id", correlationID,
		"provider", smsProviderName,
		"status", resp.StatusCode,
	)
	switch {
	case resp.StatusCode >= http.StatusOK && resp.StatusCode < http.StatusMultipleChoices:
		var success smsSuccessBody
		if err := json.NewDecoder(resp.Body).Decode(&success); err != nil {
			return "", transientErr(smsProviderName, "decode_response", err)
		}
		if strings.TrimSpace(success.MessageID) == "" {
			return "", transientErr(smsProviderName, "missing_message_id", nil)
		}
		return success.MessageID, nil
	case resp.StatusCode == http.StatusTooManyRequests:
		return "", transientErr(smsProviderName, "rate_limited", nil)
	case resp.StatusCode >= http.StatusInternalServerError:
		return "", transientErr(smsProviderName, fmt.Sprintf("provider_status_%d", resp.StatusCode), nil)
	default:
		var failure smsErrorBody
		_ = json.NewDecoder(resp.Body).Decode(&failure)
		switch strings.TrimSpace(failure.Error) {
		case "INVALID_PHONE", "INVALID_RECIPIENT":
			return "", permanentErr(smsProviderName, "invalid_recipient")
		case "UNKNOWN_CONTACT":
			return "", permanentErr(smsProviderName, "unknown_contact")
		default:
			return "", permanentErr(smsProviderName, fmt.Sprintf("provider_status_%d", resp.StatusCode))
		}
	}
}
