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

const emailProviderName = "email-provider"

type emailRequestBody struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Subject string `json:"subject"`
	HTML    string `json:"html"`
}

type emailSuccessBody struct {
	ID string `json:"id"`
}

type emailErrorBody struct {
	Message string `json:"message"`
}

// EmailSender talks to the transactional email collaborator. The correlation
// ID rides along as an idempotency header so a retried request cannot double
// send on the provider side.
type EmailSender struct {
	client   *http.Client
	baseURL  string
	apiKey   string
	fromAddr string
	logger   *slog.Logger
}

func NewEmailSender(baseURL, apiKey, fromAddr string, connectTimeout time.Duration, logger *slog.Logger) *EmailSender {
	if logger == nil {
		logger = slog.Default()
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DialContext = (&net.Dialer{
		Timeout:   connectTimeout,
		KeepAlive: 30 * time.Second,
	}).DialContext
	return &EmailSender{
		client:   &http.Client{Transport: transport},
		baseURL:  strings.TrimRight(baseURL, "/"),
		apiKey:   apiKey,
		fromAddr: fromAddr,
		logger:   logger,
	}
}

func (s *EmailSender) Channel() domain.Channel {
	return domain.ChannelEmail
}

func (s *EmailSender) Send(ctx context.Context, lead domain.Lead, variant domain.MessageVariant, correlationID string) (string, error) {
	if !lead.HasEmail() {
		return "", permanentErr(emailProviderName, "missing_recipient")
	}

	body, err := json.Marshal(emailRequestBody{
		From:    s.fromAddr,
		To:      lead.Email,
		Subject: RenderTemplate(variant.Subject, lead),
		HTML:    RenderTemplate(variant.Body, lead),
	})
	if err != nil {
		return "", permanentErr(emailProviderName, "encode_request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/emails", bytes.NewReader(body))
	if err != nil {
		return "", permanentErr(emailProviderName, "build_request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("Idempotency-Key", correlationID)

	s.logger.Info("email provider request",
		"correlation_id", correlationID,
		"provider", emailProviderName,
		"recipient_masked", pii.MaskRecipient(lead.Email),
		"body_hash", pii.Hash(variant.Body),
	)
	resp, err := s.client.Do(req)
	if err != nil {
		return "", transientErr(emailProviderName, "request_failed", err)
	}
	defer resp.Body.Close()

	s.logger.Info("email provider response",
		"correlation_id", correlationID,
		"provider", emailProviderName,
		"status", resp.StatusCode,
	)
	switch {
	case resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusCreated:
		var success emailSuccessBody
		if err := json.NewDecoder(resp.Body).Decode(&success); err != nil {
			return "", transientErr(emailProviderName, "decode_response", err)
		}
		if strings.TrimSpace(success.ID) == "" {
			return "", transientErr(emailProviderName, "missing_message_id", nil)
		}
		return success.ID, nil
	case resp.StatusCode == http.StatusTooManyRequests:
		return "", transientErr(emailProviderName, "rate_limited", nil)
	case resp.StatusCode >= http.StatusInternalServerError:
		return "", transientErr(emailProviderName, fmt.Sprintf("provider_status_%d", resp.StatusCode), nil)
	default:
		var failure emailErrorBody
		_ = json.NewDecoder(resp.Body).Decode(&failure)
		reason := strings.TrimSpace(failure.Message)
		if reason == "" {
			reason = fmt.Sprintf("provider_status_%d", resp.StatusCode)
		}
		return "", permanentErr(emailProviderName, reason)
	}
}

// RenderTemplate substitutes the lead placeholders a variant may reference:
// {{firstName}}, {{company}}, {{email}} and {{phone}}. A lead without a first
// name is greeted as "there" rather than leaking the raw placeholder.
func RenderTemplate(template string, lead domain.Lead) string {
	firstName := strings.TrimSpace(lead.FirstName)
	if firstName == "" {
		firstName = "there"
	}
	return strings.NewReplacer(
		"{{firstName}}", firstName,
		"{{company}}", lead.Company,
		"{{email}}", lead.Email,
		"{{phone}}", lead.Phone,
	).Replace(template)
}
