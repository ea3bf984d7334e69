// Package metrics defines and registers all custom Prometheus metrics for the
// pulsechat auth core. It is the single source of truth for metric names,
// labels, and help strings.
//
// The promauto vars register themselves with the default registry at package
// init; the /metrics endpoint is wired by the router.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "pulsechat"

// LoginsTotal counts login attempts through the JSON login path.
// Label:
//   - result: "success", "invalid_credentials", "malformed", "rejected_limit"
var LoginsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "logins_total",
		Help:      "Total number of login attempts, by result.",
	},
	[]string{"result"},
)

// ActiveSessions tracks the current number of active sessions in the registry.
var ActiveSessions = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "active_sessions",
		Help:      "Current number of active sessions held by the session registry.",
	},
)

// SessionsExpiredTotal counts forced session expiries.
// Label:
//   - reason: "logout", "evicted", "role_changed"
var SessionsExpiredTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "sessions_expired_total",
		Help:      "Total number of sessions transitioned to the expired state, by reason.",
	},
	[]string{"reason"},
)

// ExpiredSessionResponsesTotal counts requests that arrived bearing an
// already-expired session id and received the structured expiry response.
var ExpiredSessionResponsesTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "expired_session_responses_total",
		Help:      "Total number of requests answered with the expired-session notification.",
	},
)

// AuthzDecisionsTotal counts authorization gate decisions.
// Label:
//   - outcome: "allow" or "deny"
var AuthzDecisionsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "authz_decisions_total",
		Help:      "Total number of role-hierarchy authorization decisions, by outcome.",
	},
	[]string{"outcome"},
)

// RememberMeTotal counts remember-me token operations.
// Label:
//   - op: "issued", "rotated", "reuse_detected", "invalid"
var RememberMeTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "rememberme_total",
		Help:      "Total number of remember-me token operations, by op.",
	},
	[]string{"op"},
)

// SecurityEventsTotal counts audit events that completed the async pipeline.
// Label:
//   - kind: the security event kind (e.g. "login_failure")
var SecurityEventsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "security_events_total",
		Help:      "Total number of security events processed by the audit pipeline.",
	},
	[]string{"kind"},
)
