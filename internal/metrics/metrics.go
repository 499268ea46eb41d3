package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Check-in outcome labels.
const (
	OutcomeOK                 = "ok"
	OutcomeAlreadyCheckedIn   = "already_checked_in"
	OutcomeInvalidToken       = "invalid_token"
	OutcomeUnknownParticipant = "unknown_participant"
	OutcomeError              = "error"
)

var checkinsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "classmark_checkins_total",
	Help: "Check-in attempts by outcome.",
}, []string{"outcome"})

var sessionsCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
	Name: "classmark_sessions_created_total",
	Help: "Class sessions created.",
})

// ObserveCheckin counts one check-in attempt.
func ObserveCheckin(outcome string) {
	checkinsTotal.WithLabelValues(outcome).Inc()
}

// ObserveSessionCreated counts one created session.
func ObserveSessionCreated() {
	sessionsCreatedTotal.Inc()
}
