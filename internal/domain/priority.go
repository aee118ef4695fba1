package domain

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// PriorityKey identifies an SLA priority level.
type PriorityKey string

const (
	PriorityP0 PriorityKey = "p0"
	PriorityP1 PriorityKey = "p1"
	PriorityP2 PriorityKey = "p2"
	PriorityP3 PriorityKey = "p3"
)

// Escalation role references.
const (
	RoleDevMaster        = "dev-master"
	RoleCEO              = "ceo"
	RoleCommercialLead   = "commercial-lead"
	RoleCoordinationLead = "coordination-lead"
	RoleRecruitmentLead  = "recruitment-lead"
)

// Policy is the SLA behavior bound to a priority level. Rank orders levels
// by urgency (0 is most urgent) independently of Hours.
type Policy struct {
	Key               PriorityKey
	Rank              int
	Label             string
	Hours             int
	Escalates         bool
	EscalationTargets []string
}

var policies = map[PriorityKey]Policy{
	PriorityP0: {
		Key:               PriorityP0,
		Rank:              0,
		Label:             "P0 - Critical",
		Hours:             24,
		Escalates:         true,
		EscalationTargets: []string{RoleDevMaster, RoleCEO},
	},
	PriorityP1: {
		Key:               PriorityP1,
		Rank:              1,
		Label:             "P1 - High",
		Hours:             48,
		Escalates:         true,
		EscalationTargets: []string{RoleDevMaster, RoleCEO},
	},
	PriorityP2: {
		Key:   PriorityP2,
		Rank:  2,
		Label: "P2 - Medium",
		Hours: 72,
	},
	PriorityP3: {
		Key:   PriorityP3,
		Rank:  3,
		Label: "P3 - Low",
		Hours: 128,
	},
}

// LookupPolicy returns the policy for key, reporting whether it exists.
func LookupPolicy(key PriorityKey) (Policy, bool) {
	p, ok := policies[key]
	if !ok {
		return Policy{}, false
	}
	p.EscalationTargets = append([]string(nil), p.EscalationTargets...)
	return p, true
}

// PolicyFor returns the policy for key. An unknown key is a programming
// error: canonical keys are enforced at intake.
func PolicyFor(key PriorityKey) Policy {
	p, ok := LookupPolicy(key)
	if !ok {
		panic(fmt.Sprintf("domain: unknown priority key %q", key))
	}
	return p
}

// Valid reports whether k is a canonical priority key.
func (k PriorityKey) Valid() bool {
	_, ok := policies[k]
	return ok
}

// Rank returns the urgency rank of k; unknown keys sort last.
func (k PriorityKey) Rank() int {
	if p, ok := policies[k]; ok {
		return p.Rank
	}
	return len(policies)
}

// Priorities lists canonical keys ordered by rank.
func Priorities() []PriorityKey {
	keys := make([]PriorityKey, 0, len(policies))
	for k := range policies {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Rank() < keys[j].Rank() })
	return keys
}

// Duration is the wall-clock SLA window.
func (p Policy) Duration() time.Duration {
	return time.Duration(p.Hours) * time.Hour
}

// DeadlineFrom returns createdAt shifted by the SLA window.
func (p Policy) DeadlineFrom(createdAt time.Time) time.Time {
	return createdAt.Add(p.Duration())
}

var prioritySpellings = map[string]PriorityKey{
	"p0": PriorityP0, "0": PriorityP0, "critico": PriorityP0, "crítico": PriorityP0, "critical": PriorityP0,
	"p1": PriorityP1, "1": PriorityP1, "alta": PriorityP1, "high": PriorityP1, "h": PriorityP1,
	"p2": PriorityP2, "2": PriorityP2, "media": PriorityP2, "média": PriorityP2, "medium": PriorityP2, "m": PriorityP2,
	"p3": PriorityP3, "3": PriorityP3, "baixa": PriorityP3, "low": PriorityP3, "l": PriorityP3, "b": PriorityP3,
}

// NormalizePriority maps legacy and localized spellings onto canonical keys.
func NormalizePriority(raw string) (PriorityKey, bool) {
	key, ok := prioritySpellings[strings.ToLower(strings.TrimSpace(raw))]
	return key, ok
}
