package domain

// Tag is a ticket label from the fixed vocabulary.
type Tag string

const (
	TagUrgent        Tag = "urgent"
	TagNeedsApproval Tag = "needs-approval"
	TagBlocked       Tag = "blocked"
	TagWaitingOnUser Tag = "waiting-on-user"
	TagInReview      Tag = "in-review"
	TagEscalated     Tag = "escalated"
	TagDuplicate     Tag = "duplicate"
	TagWontFix       Tag = "wont-fix"
)

var tagVocabulary = []Tag{
	TagUrgent,
	TagNeedsApproval,
	TagBlocked,
	TagWaitingOnUser,
	TagInReview,
	TagEscalated,
	TagDuplicate,
	TagWontFix,
}

// Tags lists the vocabulary.
func Tags() []Tag {
	return append([]Tag(nil), tagVocabulary...)
}

// Valid reports whether t belongs to the vocabulary.
func (t Tag) Valid() bool {
	for _, known := range tagVocabulary {
		if known == t {
			return true
		}
	}
	return false
}
