// internal/channels/sms.go
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

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	snstypes "github.com/aws/aws-sdk-go-v2/service/sns/types"

	"school-notify/internal/common/config"
	apperrors "school-notify/internal/common/errors"
	"school-notify/internal/common/logger"
)

// Define interfaces for mocking
type SNSAPI interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// SMSSender routes text messages to one of the interchangeable gateways
// selected by configuration: "sns" (AWS) or "http" (a generic REST gateway).
// Success is judged on the provider's response envelope, not transport
// status alone.
type SMSSender struct {
	cfg        config.SMSConfig
	snsClient  SNSAPI
	httpClient *http.Client
	logger     logger.Logger
}

// gatewayResponse is the envelope returned by the HTTP gateway. Transport
// can be 200 while the provider still rejects the message.
type gatewayResponse struct {
	Status    string `json:"status"`
	MessageID string `json:"messageId"`
	Error     string `json:"error,omitempty"`
}

// NewSMSSender builds the sender for the configured gateway. Missing or
// broken credentials degrade to a log-only sender, never an error.
func NewSMSSender(ctx context.Context, cfg config.SMSConfig, log logger.Logger) *SMSSender {
	log = log.WithFields(map[string]interface{}{"channel": ChannelSMS})

	if !cfg.Enabled {
		log.Info("SMS channel disabled, sends will be logged only", nil)
		return &SMSSender{cfg: cfg, logger: log}
	}

	switch cfg.Gateway {
	case "sns":
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
		if err != nil {
			log.WithError(err).Warn("AWS config load failed, degrading to log-only", nil)
			return &SMSSender{cfg: cfg, logger: log}
		}
		return &SMSSender{cfg: cfg, snsClient: sns.NewFromConfig(awsCfg), logger: log}
	case "http":
		if cfg.GatewayURL == "" {
			log.Warn("SMS gateway URL missing, degrading to log-only", nil)
			return &SMSSender{cfg: cfg, logger: log}
		}
		return &SMSSender{
			cfg:        cfg,
			httpClient: &http.Client{Timeout: 30 * time.Second},
			logger:     log,
		}
	default:
		log.Warn("unknown SMS gateway, degrading to log-only", map[string]interface{}{
			"gateway": cfg.Gateway,
		})
		return &SMSSender{cfg: cfg, logger: log}
	}
}

// NewSMSSenderWithClient injects a ready SNS client; used by tests.
func NewSMSSenderWithClient(client SNSAPI, cfg config.SMSConfig, log logger.Logger) *SMSSender {
	return &SMSSender{
		cfg:       cfg,
		snsClient: client,
		logger:    log.WithFields(map[string]interface{}{"channel": ChannelSMS}),
	}
}

// NewSMSSenderWithHTTPClient injects an HTTP client; used by tests against
// an httptest gateway.
func NewSMSSenderWithHTTPClient(client *http.Client, cfg config.SMSConfig, log logger.Logger) *SMSSender {
	return &SMSSender{
		cfg:        cfg,
		httpClient: client,
		logger:     log.WithFields(map[string]interface{}{"channel": ChannelSMS}),
	}
}

// NormalizeNumber strips a leading "+", a leading country code, and leading
// zeros, leaving the bare national number the gateways expect.
func NormalizeNumber(number, countryCode string) string {
	n := strings.TrimSpace(number)
	n = strings.TrimPrefix(n, "+")
	var digits strings.Builder
	for _, r := range n {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	n = digits.String()

	// Only treat the prefix as a country code when the number is longer
	// than a bare national number, so "9187654321" stays intact.
	if countryCode != "" && strings.HasPrefix(n, countryCode) && len(n) > 10 {
		n = n[len(countryCode):]
	}
	return strings.TrimLeft(n, "0")
}

// Send delivers one text message. Provider failures are terminal for this
// attempt and surface only in the Result.
func (s *SMSSender) Send(ctx context.Context, phone, message string) Result {
	if s.snsClient == nil && s.httpClient == nil {
		s.logger.Info("SMS not configured, logging only", map[string]interface{}{
			"message": message,
		})
		return Result{Channel: ChannelSMS, Status: StatusSkipped, Detail: "not configured"}
	}

	national := NormalizeNumber(phone, s.cfg.DefaultCountryCode)
	if national == "" {
		s.logger.Warn("SMS skipped, empty destination after normalization", map[string]interface{}{
			"phone": phone,
		})
		return Result{Channel: ChannelSMS, Status: StatusFailed, Detail: "invalid destination number"}
	}

	if s.snsClient != nil {
		return s.sendSNS(ctx, national, message)
	}
	return s.sendHTTP(ctx, national, message)
}

func (s *SMSSender) sendSNS(ctx context.Context, national, message string) Result {
	input := &sns.PublishInput{
		PhoneNumber: aws.String("+" + s.cfg.DefaultCountryCode + national),
		Message:     aws.String(message),
	}
	if s.cfg.SenderID != "" {
		input.MessageAttributes = map[string]snstypes.MessageAttributeValue{
			"AWS.SNS.SMS.SenderID": {
				DataType:    aws.String("String"),
				StringValue: aws.String(s.cfg.SenderID),
			},
		}
	}

	out, err := s.snsClient.Publish(ctx, input)
	if err != nil {
		sendErr := apperrors.NewChannelSendError(ChannelSMS, err)
		s.logger.WithError(sendErr).Error("SMS send failed", map[string]interface{}{
			"gateway": "sns",
		})
		return Result{Channel: ChannelSMS, Status: StatusFailed, Detail: err.Error()}
	}

	providerID := ""
	if out.MessageId != nil {
		providerID = *out.MessageId
	}
	return Result{Channel: ChannelSMS, Status: StatusSent, ProviderID: providerID}
}

func (s *SMSSender) sendHTTP(ctx context.Context, national, message string) Result {
	payload := map[string]interface{}{
		"to":       national,
		"message":  message,
		"senderId": s.cfg.SenderID,
	}
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return Result{Channel: ChannelSMS, Status: StatusFailed, Detail: err.Error()}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.GatewayURL, bytes.NewBuffer(jsonData))
	if err != nil {
		return Result{Channel: ChannelSMS, Status: StatusFailed, Detail: err.Error()}
	}
	req.Header.Set("Content-Type", "application/json")
	if s.cfg.GatewayAPIKey != "" {
		req.Header.Set("X-API-Key", s.cfg.GatewayAPIKey)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		sendErr := apperrors.NewChannelSendError(ChannelSMS, err)
		s.logger.WithError(sendErr).Error("SMS send failed", map[string]interface{}{
			"gateway": "http",
		})
		return Result{Channel: ChannelSMS, Status: StatusFailed, Detail: err.Error()}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Result{Channel: ChannelSMS, Status: StatusFailed, Detail: err.Error()}
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		detail := fmt.Sprintf("gateway status %d: %s", resp.StatusCode, string(body))
		s.logger.Error("SMS send failed", map[string]interface{}{
			"gateway":    "http",
			"statusCode": resp.StatusCode,
		})
		return Result{Channel: ChannelSMS, Status: StatusFailed, Detail: detail}
	}

	// The gateway can return 200 with a failure envelope.
	var envelope gatewayResponse
	if err := json.Unmarshal(body, &envelope); err != nil {
		return Result{Channel: ChannelSMS, Status: StatusFailed, Detail: "unreadable gateway response"}
	}
	if envelope.Status != "success" {
		s.logger.Error("SMS rejected by gateway", map[string]interface{}{
			"gateway": "http",
			"detail":  envelope.Error,
		})
		return Result{Channel: ChannelSMS, Status: StatusFailed, Detail: envelope.Error}
	}

	return Result{Channel: ChannelSMS, Status: StatusSent, ProviderID: envelope.MessageID}
}
