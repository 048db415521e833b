// internal/dispatch/dispatcher.go
package dispatch

import (
	"context"
	"time"

	"school-notify/internal/channels"
	"school-notify/internal/common/config"
	"school-notify/internal/common/logger"
	"school-notify/internal/common/metrics"
	"school-notify/internal/common/observability"
	"school-notify/internal/models"
	"school-notify/internal/recipient"
	"school-notify/internal/templates"
)

// Define interfaces for mocking
type PushChannel interface {
	Send(ctx context.Context, token, title, body string, data map[string]string) channels.Result
}

type TextChannel interface {
	Send(ctx context.Context, phone, message string) channels.Result
}

// Dispatcher runs the full resolve, persist, multi-channel-send operation
// for one notification. Channel failures never block each other and never
// surface as errors; the one propagating failure class is the notification
// row insert, since without a persisted record there is nothing to
// reconcile later.
//
// Dispatch is deliberately not idempotent: two identical calls produce two
// rows and two send rounds. Dedup belongs to callers, not here.
type Dispatcher struct {
	resolver *recipient.Resolver
	store    *Store
	push     PushChannel
	sms      TextChannel
	whatsapp TextChannel
	registry *templates.Registry
	cfg      config.AttendanceConfig
	audit    *Audit
	obs      *observability.Observability
	logger   logger.Logger
}

func NewDispatcher(
	resolver *recipient.Resolver,
	store *Store,
	push PushChannel,
	sms TextChannel,
	whatsapp TextChannel,
	registry *templates.Registry,
	cfg config.AttendanceConfig,
	audit *Audit,
	obs *observability.Observability,
	log logger.Logger,
) *Dispatcher {
	return &Dispatcher{
		resolver: resolver,
		store:    store,
		push:     push,
		sms:      sms,
		whatsapp: whatsapp,
		registry: registry,
		cfg:      cfg,
		audit:    audit,
		obs:      obs,
		logger:   log.WithFields(map[string]interface{}{"component": "dispatcher"}),
	}
}

// Dispatch resolves the recipient, persists the notification row and fans
// out to the configured channels. The returned error is non-nil only when
// the row insert fails; everything else is reported in the Report.
func (d *Dispatcher) Dispatch(ctx context.Context, req Request) (*Report, error) {
	start := time.Now()
	report := &Report{Outcome: recipient.OutcomeUnresolved}

	ref := recipient.Parse(req.Recipient, req.RoleHint)

	res, err := d.resolver.Resolve(ctx, ref)
	if err != nil {
		// Resolution-time database failures count as "no delivery
		// possible" rather than aborting the caller.
		d.logger.WithError(err).Error("recipient resolution failed", map[string]interface{}{
			"ref": ref.String(),
		})
	}
	report.Outcome = res.Outcome
	if !res.Resolved() {
		d.observe(ctx, report, start)
		return report, nil
	}
	report.Resolved = true
	report.AccountID = res.Account.ID

	if res.Outcome == recipient.OutcomeAmbiguous {
		d.logger.Warn("ambiguous recipient, first candidate taken", map[string]interface{}{
			"ref":       ref.String(),
			"accountId": res.Account.ID,
		})
	}

	notifType := req.Type
	if notifType == "" {
		notifType = models.TypeAlert
	}

	notif, err := d.store.Insert(ctx, res.Account.ID, req.Title, req.Body, notifType)
	if err != nil {
		d.logger.WithError(err).Error("notification persist failed", map[string]interface{}{
			"accountId": res.Account.ID,
		})
		d.observe(ctx, report, start)
		return report, err
	}
	report.Persisted = true
	report.NotificationID = notif.ID

	d.sendChannels(ctx, req, res.Account, report)

	d.observe(ctx, report, start)
	d.audit.Record(ctx, res.Account.ID, req.Title, string(res.Outcome), report.Channels)
	return report, nil
}

// Send is the fire-and-forget entrypoint for callers whose own transaction
// has already committed. It never returns an error; the boolean is true
// when the notification was resolved and persisted.
func (d *Dispatcher) Send(ctx context.Context, rawRecipient interface{}, title, body, roleHint string) bool {
	report, err := d.Dispatch(ctx, Request{
		Recipient: rawRecipient,
		RoleHint:  roleHint,
		Title:     title,
		Body:      body,
	})
	if err != nil {
		return false
	}
	return report.Persisted
}

// sendChannels fans out to push and, for attendance notifications with a
// contact number, exactly one of SMS or WhatsApp. Each attempt's result is
// recorded independently; one channel's failure never gates another.
func (d *Dispatcher) sendChannels(ctx context.Context, req Request, acc models.Account, report *Report) {
	if acc.FCMToken.Valid && acc.FCMToken.String != "" {
		result := d.push.Send(ctx, acc.FCMToken.String, req.Title, req.Body, map[string]string{
			"category": req.Category,
		})
		d.recordChannel(report, result)
	}

	if req.Category != models.CategoryAttendance || req.Phone == "" {
		return
	}

	// SMS and WhatsApp are mutually exclusive by a deployment-wide switch;
	// both off falls back to the legacy plain-SMS composer. Duplicate
	// sends on both channels are avoided by this branching, not by any
	// queue dedup.
	switch {
	case d.cfg.ViaSMS:
		d.recordChannel(report, d.sms.Send(ctx, req.Phone, d.textBody(req)))
	case d.cfg.ViaWhatsApp:
		d.recordChannel(report, d.whatsapp.Send(ctx, req.Phone, d.textBody(req)))
	default:
		d.recordChannel(report, d.sms.Send(ctx, req.Phone, composePlainSMS(req.Title, req.Body)))
	}
}

// textBody renders the category template when the request carries template
// data, otherwise the raw body goes out unchanged.
func (d *Dispatcher) textBody(req Request) string {
	if d.registry == nil || req.Category == "" || req.Data == nil {
		return req.Body
	}
	body, err := d.registry.Render(req.Category, req.Data)
	if err != nil {
		d.logger.WithError(err).Warn("template render failed, sending raw body", map[string]interface{}{
			"category": req.Category,
		})
		return req.Body
	}
	return body
}

// composePlainSMS is the legacy formatting used before per-category
// templates existed; kept for deployments with both channel switches off.
func composePlainSMS(title, body string) string {
	if title == "" {
		return body
	}
	return title + ": " + body
}

func (d *Dispatcher) recordChannel(report *Report, result channels.Result) {
	report.Channels = append(report.Channels, result)
	metrics.ChannelSends.WithLabelValues(result.Channel, string(result.Status)).Inc()
}

func (d *Dispatcher) observe(ctx context.Context, report *Report, start time.Time) {
	outcome := string(report.Outcome)
	metrics.NotificationsDispatched.WithLabelValues(outcome).Inc()
	metrics.DispatchDuration.Observe(time.Since(start).Seconds())
	if d.obs != nil {
		d.obs.RecordDispatch(ctx, outcome)
		d.obs.RecordDispatchDuration(ctx, time.Since(start), outcome)
	}
}
