package domain

import "time"

// AutoCloseTracking follows a resolved ticket towards automatic closure.
type AutoCloseTracking struct {
	ResolvedAt time.Time  `json:"resolved_at" bson:"resolved_at"`
	WarnedAt   *time.Time `json:"warned_at,omitempty" bson:"warned_at,omitempty"`
	ClosedAt   *time.Time `json:"closed_at,omitempty" bson:"closed_at,omitempty"`
}

// Clone returns a copy of the tracking entry.
func (a *AutoCloseTracking) Clone() *AutoCloseTracking {
	if a == nil {
		return nil
	}
	return &AutoCloseTracking{
		ResolvedAt: a.ResolvedAt,
		WarnedAt:   timePtrCopy(a.WarnedAt),
		ClosedAt:   timePtrCopy(a.ClosedAt),
	}
}

// TicketRecord is the durable mirror of one registry entry.
type TicketRecord struct {
	Ticket    Ticket             `json:"ticket" bson:"ticket"`
	AutoClose *AutoCloseTracking `json:"auto_close,omitempty" bson:"auto_close,omitempty"`
}
