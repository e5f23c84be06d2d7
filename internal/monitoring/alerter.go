package monitoring

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/ENEASJO/registro-valorizaciones-backend-sub001/internal/config"
)

// AlertType identifies the kind of alert.
type AlertType string

const (
	AlertJobFailureRate    AlertType = "job_failure_rate"
	AlertPortalsDegraded   AlertType = "portals_degraded"
	AlertDLQBacklog        AlertType = "dlq_backlog"
	AlertCircuitOpen       AlertType = "circuit_open"
	AlertStructureMismatch AlertType = "structure_mismatch"
)

// Alert represents a single alert to be sent.
type Alert struct {
	Type      AlertType      `json:"type"`
	Severity  string         `json:"severity"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Alerter evaluates a MetricsSnapshot against configured thresholds
// and sends alerts via webhook when thresholds are breached.
type Alerter struct {
	cfg    config.MonitoringConfig
	client *http.Client
}

// NewAlerter creates a new Alerter with the given monitoring config.
func NewAlerter(cfg config.MonitoringConfig) *Alerter {
	return &Alerter{
		cfg:    cfg,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Evaluate checks the snapshot against thresholds and returns any alerts.
func (a *Alerter) Evaluate(snap *MetricsSnapshot) []Alert {
	var alerts []Alert
	now := time.Now().UTC()

	// Check job failure rate. A handful of finished jobs is too small a
	// sample to page anyone over.
	finished := snap.JobsCompleted + snap.JobsFailed
	if finished >= 5 && snap.JobFailRate > a.cfg.JobFailureRateThreshold {
		alerts = append(alerts, Alert{
			Type:     AlertJobFailureRate,
			Severity: "high",
			Message: fmt.Sprintf(
				"Job failure rate %.1f%% exceeds threshold %.1f%% (%d failed / %d finished)",
				snap.JobFailRate*100, a.cfg.JobFailureRateThreshold*100,
				snap.JobsFailed, finished,
			),
			Details: map[string]any{
				"failure_rate": snap.JobFailRate,
				"threshold":    a.cfg.JobFailureRateThreshold,
				"failed":       snap.JobsFailed,
				"finished":     finished,
			},
			Timestamp: now,
		})
	}

	// Check live portal health.
	if snap.LiveErrorRate > a.cfg.LiveErrorRateThreshold {
		alerts = append(alerts, Alert{
			Type:     AlertPortalsDegraded,
			Severity: "high",
			Message: fmt.Sprintf(
				"Live resolution error rate %.1f%% exceeds threshold %.1f%%, serving from local and synthetic fallbacks",
				snap.LiveErrorRate*100, a.cfg.LiveErrorRateThreshold*100,
			),
			Details: map[string]any{
				"live_error_rate": snap.LiveErrorRate,
				"threshold":       a.cfg.LiveErrorRateThreshold,
			},
			Timestamp: now,
		})
	}

	// Check dead letter backlog.
	if a.cfg.DLQDepthThreshold > 0 && snap.DLQDepth > a.cfg.DLQDepthThreshold {
		alerts = append(alerts, Alert{
			Type:     AlertDLQBacklog,
			Severity: "medium",
			Message: fmt.Sprintf(
				"Dead letter queue holds %d entries (threshold %d), %d of them permanent failures",
				snap.DLQDepth, a.cfg.DLQDepthThreshold, snap.DLQPermanent,
			),
			Details: map[string]any{
				"depth":     snap.DLQDepth,
				"permanent": snap.DLQPermanent,
				"threshold": a.cfg.DLQDepthThreshold,
			},
			Timestamp: now,
		})
	}

	// Check open circuits.
	for name, state := range snap.Breakers {
		if state != "open" {
			continue
		}
		alerts = append(alerts, Alert{
			Type:     AlertCircuitOpen,
			Severity: "high",
			Message:  fmt.Sprintf("Circuit breaker for %q is open, calls are being rejected", name),
			Details: map[string]any{
				"service": name,
			},
			Timestamp: now,
		})
	}

	return alerts
}

// NotifyStructureMismatch sends an immediate alert for a portal whose page
// layout no longer matches its profile. Delivery runs in the background so
// the resolution path never blocks on the webhook.
func (a *Alerter) NotifyStructureMismatch(strategy string, err error) {
	alert := Alert{
		Type:     AlertStructureMismatch,
		Severity: "critical",
		Message:  fmt.Sprintf("Strategy %q no longer recognizes the portal page layout; its profile needs updating", strategy),
		Details: map[string]any{
			"strategy": strategy,
			"error":    err.Error(),
		},
		Timestamp: time.Now().UTC(),
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		a.SendAlerts(ctx, []Alert{alert})
	}()
}

// SendAlerts delivers alerts to the configured webhook URL.
// Returns the number of alerts successfully sent.
func (a *Alerter) SendAlerts(ctx context.Context, alerts []Alert) int {
	if a.cfg.WebhookURL == "" || len(alerts) == 0 {
		return 0
	}

	sent := 0
	for _, alert := range alerts {
		if err := a.sendWebhook(ctx, alert); err != nil {
			zap.L().Error("monitoring: failed to send alert",
				zap.String("type", string(alert.Type)),
				zap.Error(err),
			)
			continue
		}
		zap.L().Info("monitoring: alert sent",
			zap.String("type", string(alert.Type)),
			zap.String("severity", alert.Severity),
		)
		sent++
	}
	return sent
}

// sendWebhook posts a single alert to the webhook URL.
func (a *Alerter) sendWebhook(ctx context.Context, alert Alert) error {
	payload, err := json.Marshal(alert)
	if err != nil {
		return eris.Wrap(err, "monitoring: marshal alert")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.WebhookURL, bytes.NewReader(payload))
	if err != nil {
		return eris.Wrap(err, "monitoring: create webhook request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return eris.Wrap(err, "monitoring: webhook request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode >= 400 {
		return eris.Errorf("monitoring: webhook returned status %d", resp.StatusCode)
	}
	return nil
}
