// Package metrics exposes Prometheus counters for the account-security flows.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// loginAttempts counts login attempts by outcome (success, incorrect,
	// locked, just_locked, unknown_user).
	loginAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tarot_login_attempts_total",
		Help: "Total number of login attempts by outcome",
	}, []string{"outcome"})

	// tokensIssued counts verification and reset tokens written to users.
	tokensIssued = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tarot_tokens_issued_total",
		Help: "Total number of email tokens issued",
	}, []string{"kind"})

	// tokensConsumed counts token consumption by result (ok, invalid, expired).
	tokensConsumed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tarot_tokens_consumed_total",
		Help: "Total number of email token consumption attempts by result",
	}, []string{"kind", "result"})

	// resendRejected counts requests refused by the resend cooldown.
	resendRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tarot_resend_rate_limited_total",
		Help: "Total number of email requests rejected by the resend cooldown",
	}, []string{"kind"})

	// emailsSent counts outgoing mail by template and status (sent, failed).
	emailsSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tarot_emails_total",
		Help: "Total number of outgoing emails by template and status",
	}, []string{"template", "status"})
)

// RecordLogin counts a login attempt.
func RecordLogin(outcome string) {
	loginAttempts.WithLabelValues(outcome).Inc()
}

// RecordTokenIssued counts a newly issued token.
func RecordTokenIssued(kind string) {
	tokensIssued.WithLabelValues(kind).Inc()
}

// RecordTokenConsumed counts a consumption attempt.
func RecordTokenConsumed(kind, result string) {
	tokensConsumed.WithLabelValues(kind, result).Inc()
}

// RecordResendRejected counts a cooldown rejection.
func RecordResendRejected(kind string) {
	resendRejected.WithLabelValues(kind).Inc()
}

// RecordEmail counts a delivery attempt; err decides the status label.
func RecordEmail(template string, err error) {
	status := "sent"
	if err != nil {
		status = "failed"
	}
	emailsSent.WithLabelValues(template, status).Inc()
}

// Handler serves the default registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.Handler()
}
