package monitoring

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/baseline-cli/internal/model"
)

// AlertType identifies the kind of alert.
type AlertType string

const (
	AlertLowSuccessRate AlertType = "low_success_rate"
	AlertPendingBacklog AlertType = "pending_backlog"
	AlertReconciliation AlertType = "reconciliation_alert"
	AlertRunFailureRate AlertType = "run_failure_rate"
)

// Alert represents a single alert to be sent.
type Alert struct {
	Type      AlertType      `json:"type"`
	Severity  string         `json:"severity"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Alerter evaluates snapshots against thresholds and delivers alerts to a
// webhook, or to the log when none is configured.
type Alerter struct {
	cfg    Config
	client *http.Client
}

// NewAlerter creates an Alerter.
func NewAlerter(cfg Config) *Alerter {
	return &Alerter{
		cfg:    cfg,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Evaluate checks the snapshot against thresholds and returns any alerts.
func (a *Alerter) Evaluate(snap *Snapshot) []Alert {
	var alerts []Alert
	now := time.Now().UTC()

	sources := make([]string, 0, len(snap.SuccessRates))
	for s := range snap.SuccessRates {
		sources = append(sources, string(s))
	}
	sort.Strings(sources)
	for _, s := range sources {
		stats := snap.SuccessRates[model.MappingSource(s)]
		if stats.Total < a.cfg.MinSamples {
			continue
		}
		if rate := stats.SuccessRate(); rate < a.cfg.MinSuccessRate {
			alerts = append(alerts, Alert{
				Type:     AlertLowSuccessRate,
				Severity: "high",
				Message: fmt.Sprintf("Mapping source %s success rate %.1f%% is below %.1f%% (%d of %d corrected)",
					s, rate*100, a.cfg.MinSuccessRate*100, stats.Corrected, stats.Total),
				Details: map[string]any{
					"source":    s,
					"rate":      rate,
					"threshold": a.cfg.MinSuccessRate,
					"corrected": stats.Corrected,
					"total":     stats.Total,
				},
				Timestamp: now,
			})
		}
	}

	if a.cfg.MaxPending > 0 && snap.PendingDepth > a.cfg.MaxPending {
		alerts = append(alerts, Alert{
			Type:     AlertPendingBacklog,
			Severity: "medium",
			Message: fmt.Sprintf("%d mappings await approval (limit %d)",
				snap.PendingDepth, a.cfg.MaxPending),
			Details:   map[string]any{"pending": snap.PendingDepth, "limit": a.cfg.MaxPending},
			Timestamp: now,
		})
	}

	finished := snap.RunsComplete + snap.RunsFailed
	if finished >= 5 && snap.RunFailRate > a.cfg.MaxRunFailureRate {
		alerts = append(alerts, Alert{
			Type:     AlertRunFailureRate,
			Severity: "high",
			Message: fmt.Sprintf("Run failure rate %.1f%% exceeds %.1f%% (%d failed / %d finished in last %dh)",
				snap.RunFailRate*100, a.cfg.MaxRunFailureRate*100, snap.RunsFailed, finished, snap.LookbackHours),
			Details: map[string]any{
				"failure_rate": snap.RunFailRate,
				"threshold":    a.cfg.MaxRunFailureRate,
				"failed":       snap.RunsFailed,
				"finished":     finished,
			},
			Timestamp: now,
		})
	}

	if snap.Reconciliation == model.OverallAlert {
		alerts = append(alerts, Alert{
			Type:      AlertReconciliation,
			Severity:  "high",
			Message:   "Latest run has invoice discrepancies",
			Timestamp: now,
		})
	}

	return alerts
}

// SendAlerts delivers alerts and returns how many were delivered. Without a
// webhook URL alerts are written to the log.
func (a *Alerter) SendAlerts(ctx context.Context, alerts []Alert) int {
	if len(alerts) == 0 {
		return 0
	}
	if a.cfg.WebhookURL == "" {
		for _, alert := range alerts {
			zap.L().Warn("monitoring: alert",
				zap.String("type", string(alert.Type)),
				zap.String("severity", alert.Severity),
				zap.String("message", alert.Message),
			)
		}
		return len(alerts)
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
