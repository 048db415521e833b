// internal/channels/whatsapp.go
package channels

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"school-notify/internal/common/config"
	apperrors "school-notify/internal/common/errors"
	"school-notify/internal/common/logger"
)

// WhatsAppSender delivers messages through the Cloud API. The client is
// constructed once at process start and reused for all sends; missing
// credentials degrade to a log-only sender.
type WhatsAppSender struct {
	cfg        config.WhatsAppConfig
	httpClient *http.Client
	logger     logger.Logger
}

type whatsAppRequest struct {
	MessagingProduct string       `json:"messaging_product"`
	To               string       `json:"to"`
	Type             string       `json:"type"`
	Text             whatsAppText `json:"text"`
}

type whatsAppText struct {
	Body string `json:"body"`
}

type whatsAppResponse struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
	Error *struct {
		Message string `json:"message"`
		Code    int    `json:"code"`
	} `json:"error"`
}

// NewWhatsAppSender builds the sender. Disabled channel or missing
// credentials yield a degraded sender, never an error.
func NewWhatsAppSender(cfg config.WhatsAppConfig, log logger.Logger) *WhatsAppSender {
	log = log.WithFields(map[string]interface{}{"channel": ChannelWhatsApp})

	if !cfg.Enabled || cfg.AccessToken == "" || cfg.PhoneNumberID == "" {
		log.Info("WhatsApp channel disabled, sends will be logged only", nil)
		return &WhatsAppSender{cfg: cfg, logger: log}
	}

	return &WhatsAppSender{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: log,
	}
}

// NewWhatsAppSenderWithClient injects an HTTP client; used by tests against
// an httptest server via cfg.APIURL.
func NewWhatsAppSenderWithClient(client *http.Client, cfg config.WhatsAppConfig, log logger.Logger) *WhatsAppSender {
	return &WhatsAppSender{
		cfg:        cfg,
		httpClient: client,
		logger:     log.WithFields(map[string]interface{}{"channel": ChannelWhatsApp}),
	}
}

// InternationalNumber formats a destination for the Cloud API: digits only,
// prefixed with the default country code when none is present.
func InternationalNumber(number, countryCode string) string {
	n := strings.TrimSpace(number)
	hadPlus := strings.HasPrefix(n, "+")
	var digits strings.Builder
	for _, r := range n {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	n = digits.String()
	if n == "" {
		return ""
	}

	if hadPlus || (countryCode != "" && strings.HasPrefix(n, countryCode) && len(n) > 10) {
		return n
	}
	return countryCode + strings.TrimLeft(n, "0")
}

// Send delivers one message body to a phone number. Provider failures are
// terminal for this attempt and surface only in the Result.
func (w *WhatsAppSender) Send(ctx context.Context, phone, body string) Result {
	if w.httpClient == nil {
		w.logger.Info("WhatsApp not configured, logging only", map[string]interface{}{
			"body": body,
		})
		return Result{Channel: ChannelWhatsApp, Status: StatusSkipped, Detail: "not configured"}
	}

	to := InternationalNumber(phone, w.cfg.DefaultCountryCode)
	if to == "" {
		w.logger.Warn("WhatsApp skipped, empty destination after formatting", map[string]interface{}{
			"phone": phone,
		})
		return Result{Channel: ChannelWhatsApp, Status: StatusFailed, Detail: "invalid destination number"}
	}

	payload := whatsAppRequest{
		MessagingProduct: "whatsapp",
		To:               to,
		Type:             "text",
		Text:             whatsAppText{Body: body},
	}
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return Result{Channel: ChannelWhatsApp, Status: StatusFailed, Detail: err.Error()}
	}

	url := fmt.Sprintf("%s/%s/messages", w.cfg.APIURL, w.cfg.PhoneNumberID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonData))
	if err != nil {
		return Result{Channel: ChannelWhatsApp, Status: StatusFailed, Detail: err.Error()}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+w.cfg.AccessToken)

	resp, err := w.httpClient.Do(req)
	if err != nil {
		sendErr := apperrors.NewChannelSendError(ChannelWhatsApp, err)
		w.logger.WithError(sendErr).Error("WhatsApp send failed", nil)
		return Result{Channel: ChannelWhatsApp, Status: StatusFailed, Detail: err.Error()}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return Result{Channel: ChannelWhatsApp, Status: StatusFailed, Detail: err.Error()}
	}

	var envelope whatsAppResponse
	if err := json.Unmarshal(respBody, &envelope); err != nil {
		return Result{Channel: ChannelWhatsApp, Status: StatusFailed, Detail: "unreadable provider response"}
	}

	if resp.StatusCode != http.StatusOK || envelope.Error != nil {
		detail := fmt.Sprintf("provider status %d", resp.StatusCode)
		if envelope.Error != nil {
			detail = envelope.Error.Message
		}
		w.logger.Error("WhatsApp rejected", map[string]interface{}{
			"statusCode": resp.StatusCode,
			"detail":     detail,
		})
		return Result{Channel: ChannelWhatsApp, Status: StatusFailed, Detail: detail}
	}

	providerID := ""
	if len(envelope.Messages) > 0 {
		providerID = envelope.Messages[0].ID
	}
	return Result{Channel: ChannelWhatsApp, Status: StatusSent, ProviderID: providerID}
}
