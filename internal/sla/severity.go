package sla

import (
	"time"

	"github.com/spec-kit/ticket-sla/internal/domain"
)

// Severity buckets SLA progress for presentation.
type Severity string

const (
	SeverityNominal  Severity = "nominal"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
	SeverityPaused   Severity = "paused"
)

const (
	warningPercent  = 50.0
	criticalPercent = 80.0
)

// SeverityFor maps a percentage elapsed onto a bucket.
func SeverityFor(percent float64) Severity {
	switch {
	case percent >= criticalPercent:
		return SeverityCritical
	case percent >= warningPercent:
		return SeverityWarning
	default:
		return SeverityNominal
	}
}

// Status is a point-in-time SLA readout of one ticket.
type Status struct {
	Deadline       time.Time     `json:"deadline"`
	Remaining      time.Duration `json:"remaining"`
	PercentElapsed float64       `json:"percent_elapsed"`
	Elapsed        time.Duration `json:"elapsed"`
	Severity       Severity      `json:"severity"`
	Paused         bool          `json:"paused"`
	Breached       bool          `json:"breached"`
}

// StatusOf summarizes t at now. Elapsed follows the calendar.
func StatusOf(t *domain.Ticket, now time.Time, cal Calendar) Status {
	pct := PercentElapsed(t, now)
	sev := SeverityFor(pct)
	if t.SLAPaused {
		sev = SeverityPaused
	}
	return Status{
		Deadline:       t.SLADeadline,
		Remaining:      Remaining(t, now),
		PercentElapsed: pct,
		Elapsed:        Elapsed(t, now, cal),
		Severity:       sev,
		Paused:         t.SLAPaused,
		Breached:       t.SLABreached,
	}
}
