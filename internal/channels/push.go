// internal/channels/push.go
package channels

import (
	"context"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"google.golang.org/api/option"

	"school-notify/internal/common/config"
	apperrors "school-notify/internal/common/errors"
	"school-notify/internal/common/logger"
)

// MessagingService is the slice of the FCM client the sender uses; defined
// here for mocking.
type MessagingService interface {
	Send(ctx context.Context, message *messaging.Message) (string, error)
}

// PushSender delivers device-token push notifications via FCM. The client is
// constructed once at process start and injected; when credentials are
// absent every call degrades to a log entry and a StatusSkipped result.
type PushSender struct {
	client MessagingService
	logger logger.Logger
}

// NewPushSender builds the sender. A disabled channel or missing/broken
// credential bundle yields a degraded sender, never an error: deployment
// without push is a supported configuration.
func NewPushSender(ctx context.Context, cfg config.PushConfig, log logger.Logger) *PushSender {
	log = log.WithFields(map[string]interface{}{"channel": ChannelPush})

	if !cfg.Enabled || cfg.CredentialsFile == "" {
		log.Info("push channel disabled, sends will be logged only", nil)
		return &PushSender{logger: log}
	}

	app, err := firebase.NewApp(ctx, nil, option.WithCredentialsFile(cfg.CredentialsFile))
	if err != nil {
		log.WithError(err).Warn("firebase init failed, degrading to log-only", nil)
		return &PushSender{logger: log}
	}
	client, err := app.Messaging(ctx)
	if err != nil {
		log.WithError(err).Warn("firebase messaging init failed, degrading to log-only", nil)
		return &PushSender{logger: log}
	}

	return &PushSender{client: client, logger: log}
}

// NewPushSenderWithClient injects a ready client; used by tests and by
// callers that own FCM initialization.
func NewPushSenderWithClient(client MessagingService, log logger.Logger) *PushSender {
	return &PushSender{
		client: client,
		logger: log.WithFields(map[string]interface{}{"channel": ChannelPush}),
	}
}

// Send pushes title/body to a single device token. Provider failures are
// terminal for this attempt and surface only in the Result.
func (p *PushSender) Send(ctx context.Context, token, title, body string, data map[string]string) Result {
	if p.client == nil {
		p.logger.Info("push not configured, logging only", map[string]interface{}{
			"title": title,
			"body":  body,
		})
		return Result{Channel: ChannelPush, Status: StatusSkipped, Detail: "not configured"}
	}

	msg := &messaging.Message{
		Token: token,
		Notification: &messaging.Notification{
			Title: title,
			Body:  body,
		},
		Data: data,
	}

	id, err := p.client.Send(ctx, msg)
	if err != nil {
		sendErr := apperrors.NewChannelSendError(ChannelPush, err)
		p.logger.WithError(sendErr).Error("push send failed", map[string]interface{}{
			"title": title,
		})
		return Result{Channel: ChannelPush, Status: StatusFailed, Detail: err.Error()}
	}

	return Result{Channel: ChannelPush, Status: StatusSent, ProviderID: id}
}
