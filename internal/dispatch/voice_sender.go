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

const voiceProviderName = "voice-ai-provider"

type voiceRequestBody struct {
	PhoneNumber   string            `json:"phoneNumber"`
	AssistantID   string            `json:"assistantId"`
	ScriptContext string            `json:"scriptContext"`
	Metadata      map[string]string `json:"metadata"`
}

type voiceSuccessBody struct {
	CallID string `json:"callId"`
}

// VoiceSender places an outbound AI call. The call outcome arrives later
// through the callback ingress; a successful response here only means the
// call was queued.
type VoiceSender struct {
	client      *http.Client
	baseURL     string
	apiKey      string
	assistantID string
	logger      *slog.Logger
}

func NewVoiceSender(baseURL, apiKey, assistantID string, connectTimeout time.Duration, logger *slog.Logger) *VoiceSender {
	if logger == nil {
		logger = slog.Default()
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DialContext = (&net.Dialer{
		Timeout:   connectTimeout,
		KeepAlive: 30 * time.Second,
	}).DialContext
	return &VoiceSender{
		client:      &http.Client{Transport: transport},
		baseURL:     strings.TrimRight(baseURL, "/"),
		apiKey:      apiKey,
		assistantID: assistantID,
		logger:      logger,
	}
}

func (s *VoiceSender) Channel() domain.Channel {
	return domain.ChannelVoice
}

func (s *VoiceSender) Send(ctx context.Context, lead domain.Lead, variant domain.MessageVariant, correlationID string) (string, error) {
	if !lead.HasPhone() {
		return "", permanentErr(voiceProviderName, "missing_recipient")
	}

	body, err := json.Marshal(voiceRequestBody{
		PhoneNumber:   lead.Phone,
		AssistantID:   s.assistantID,
		ScriptContext: RenderTemplate(variant.Body, lead),
		Metadata:      map[string]string{"correlationId": correlationID},
	})
	if err != nil {
		return "", permanentErr(voiceProviderName, "encode_request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/call", bytes.NewReader(body))
	if err != nil {
		return "", permanentErr(voiceProviderName, "build_request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	s.logger.Info("voice provider request",
		"correlation_id", correlationID,
		"provider", voiceProviderName,
		"recipient_masked", pii.MaskRecipient(lead.Phone),
	)
	resp, err := s.client.Do(req)
	if err != nil {
		return "", transientErr(voiceProviderName, "request_failed", err)
	}
	defer resp.Body.Close()

	s.logger.Info("voice provider response",
		"correlation_id", correlationID,
		"provider", voiceProviderName,
		"status", resp.StatusCode,
	)
	switch {
	case resp.StatusCode >= http.StatusOK && resp.StatusCode < http.StatusMultipleChoices:
		var success voiceSuccessBody
		if err := json.NewDecoder(resp.Body).Decode(&success); err != nil {
			return "", transientErr(voiceProviderName, "decode_response", err)
		}
		if strings.TrimSpace(success.CallID) == "" {
			return "", transientErr(voiceProviderName, "missing_call_id", nil)
		}
		return success.CallID, nil
	case resp.StatusCode == http.StatusTooManyRequests:
		return "", transientErr(voiceProviderName, "rate_limited", nil)
	case resp.StatusCode >= http.StatusInternalServerError:
		return "", transientErr(voiceProviderName, fmt.Sprintf("provider_status_%d", resp.StatusCode), nil)
	default:
		return "", permanentErr(voiceProviderName, fmt.Sprintf("provider_status_%d", resp.StatusCode))
	}
}
