package duplicate

import (
	"strings"
	"unicode/utf8"

	"github.com/spec-kit/ticket-sla/internal/domain"
	"github.com/spec-kit/ticket-sla/internal/registry"
)

// Containment thresholds. A title contained in another matches when the
// longer one is under MaxLengthDelta characters longer, or when it only adds
// up to MaxExtraWords whole words around the shorter one.
const (
	MaxLengthDelta = 10
	MaxExtraWords  = 2
)

// Source is the slice of the registry the detector reads.
type Source interface {
	Search(f registry.Filter) []*domain.Ticket
}

// Detector finds likely duplicates among a team's active tickets.
type Detector struct {
	source Source
}

// NewDetector builds a detector over src.
func NewDetector(src Source) *Detector {
	return &Detector{source: src}
}

// Find returns ids of active tickets in team whose title matches title,
// excluding excludeID.
func (d *Detector) Find(title string, team domain.Team, excludeID string) []string {
	candidate := normalize(title)
	if candidate == "" {
		return nil
	}
	var ids []string
	for _, t := range d.source.Search(registry.Filter{Team: &team, ActiveOnly: true, Limit: registry.NoLimit}) {
		if t.ID == excludeID {
			continue
		}
		if Similar(candidate, normalize(t.Title)) {
			ids = append(ids, t.ID)
		}
	}
	return ids
}

// Similar reports an exact match or a close containment match. Inputs are
// expected to be normalized.
func Similar(a, b string) bool {
	if a == b {
		return true
	}
	short, long := a, b
	if utf8.RuneCountInString(short) > utf8.RuneCountInString(long) {
		short, long = long, short
	}
	if !strings.Contains(long, short) {
		return false
	}
	if utf8.RuneCountInString(long)-utf8.RuneCountInString(short) < MaxLengthDelta {
		return true
	}
	shortWords, longWords := strings.Fields(short), strings.Fields(long)
	return len(longWords)-len(shortWords) <= MaxExtraWords && containsWords(longWords, shortWords)
}

func containsWords(haystack, needle []string) bool {
	if len(needle) == 0 {
		return false
	}
	for i := 0; i+len(needle) <= len(haystack); i++ {
		match := true
		for j, w := range needle {
			if haystack[i+j] != w {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
