package domain

import "sort"

// Team is one of the fixed support teams owning tickets.
type Team string

const (
	TeamDev          Team = "dev"
	TeamComercial    Team = "comercial"
	TeamCoordenacao  Team = "coordenacao"
	TeamRecrutamento Team = "recrutamento"
)

// TeamProfile holds the static configuration of a team.
type TeamProfile struct {
	Team        Team
	Name        string
	TicketTypes []string
	LeadRole    string
}

var teams = map[Team]TeamProfile{
	TeamDev: {
		Team:        TeamDev,
		Name:        "DEV",
		TicketTypes: []string{"bug", "feature"},
		LeadRole:    RoleDevMaster,
	},
	TeamComercial: {
		Team:        TeamComercial,
		Name:        "COMERCIAL",
		TicketTypes: []string{"suporte", "duvida", "solicitacao"},
		LeadRole:    RoleCommercialLead,
	},
	TeamCoordenacao: {
		Team:        TeamCoordenacao,
		Name:        "COORDENAÇÃO",
		TicketTypes: []string{"evento", "conteudo", "duvida"},
		LeadRole:    RoleCoordinationLead,
	},
	TeamRecrutamento: {
		Team:        TeamRecrutamento,
		Name:        "RECRUTAMENTO",
		TicketTypes: []string{"candidato", "processo", "duvida"},
		LeadRole:    RoleRecruitmentLead,
	},
}

// LookupTeam returns the profile for t.
func LookupTeam(t Team) (TeamProfile, bool) {
	p, ok := teams[t]
	return p, ok
}

// Valid reports whether t is a known team.
func (t Team) Valid() bool {
	_, ok := teams[t]
	return ok
}

// Teams lists known teams in a stable order.
func Teams() []Team {
	out := make([]Team, 0, len(teams))
	for t := range teams {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// AllowsType reports whether typ is a subcategory of the team.
func (p TeamProfile) AllowsType(typ string) bool {
	for _, candidate := range p.TicketTypes {
		if candidate == typ {
			return true
		}
	}
	return false
}

// EscalationTargets lists the roles notified when a ticket of team with
// priority key breaches: the team lead always, plus the policy targets of
// escalating priorities.
func EscalationTargets(team Team, key PriorityKey) []string {
	var targets []string
	if profile, ok := LookupTeam(team); ok && profile.LeadRole != "" {
		targets = append(targets, profile.LeadRole)
	}
	if policy, ok := LookupPolicy(key); ok && policy.Escalates {
		for _, role := range policy.EscalationTargets {
			if !containsString(targets, role) {
				targets = append(targets, role)
			}
		}
	}
	return targets
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
