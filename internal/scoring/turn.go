package scoring

import (
	"strings"
	"time"
)

// Role identifies which party authored a conversation turn.
type Role string

const (
	RoleDoctor  Role = "doctor"
	RolePatient Role = "patient"
)

// Valid reports whether the role is one of the recognized values.
func (r Role) Valid() bool {
	return r == RoleDoctor || r == RolePatient
}

func (r Role) label() string {
	if r == RoleDoctor {
		return "Doctor"
	}
	return "Patient"
}

// Turn is one immutable utterance in the interview transcript.
type Turn struct {
	Index     int       `json:"index"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// turnStore is an append-only sequence of turns for one session. It has no
// behavior beyond append and slicing; callers serialize access per session.
type turnStore struct {
	turns []Turn
}

func (s *turnStore) append(role Role, content string) Turn {
	turn := Turn{
		Index:     len(s.turns),
		Role:      role,
		Content:   content,
		Timestamp: time.Now(),
	}
	s.turns = append(s.turns, turn)
	return turn
}

func (s *turnStore) len() int {
	return len(s.turns)
}

func (s *turnStore) countByRole(role Role) int {
	n := 0
	for _, t := range s.turns {
		if t.Role == role {
			n++
		}
	}
	return n
}

// doctorIndexes returns the positions of doctor-authored turns in
// chronological order.
func (s *turnStore) doctorIndexes() []int {
	idxs := make([]int, 0, len(s.turns))
	for i, t := range s.turns {
		if t.Role == RoleDoctor {
			idxs = append(idxs, i)
		}
	}
	return idxs
}

// contextWindow renders the n turns preceding position idx as role-labeled
// lines, oldest first.
func (s *turnStore) contextWindow(idx, n int) string {
	if n <= 0 || idx <= 0 {
		return ""
	}
	start := idx - n
	if start < 0 {
		start = 0
	}
	lines := make([]string, 0, idx-start)
	for _, t := range s.turns[start:idx] {
		lines = append(lines, t.Role.label()+": "+t.Content)
	}
	return strings.Join(lines, "\n")
}
