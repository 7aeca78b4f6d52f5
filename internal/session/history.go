package session

import "fmt"

// Role identifies who produced a turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

// Label is the display name shown on a message bubble.
func (r Role) Label() string {
	switch r {
	case RoleUser:
		return "You"
	case RoleAssistant:
		return "Assistant"
	default:
		return string(r)
	}
}

// Turn is one message in a conversation. Turns are values and never change
// after creation.
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// History is the ordered list of turns of one session. It is not safe for
// concurrent use; Session serialises access.
type History struct {
	turns []Turn
}

// Append adds turn at the end. Roles must alternate starting with the user,
// so a user turn is accepted only after a complete pair and an assistant turn
// only right after a user turn.
func (h *History) Append(turn Turn) error {
	if !turn.Role.Valid() {
		return fmt.Errorf("invalid role %q", turn.Role)
	}
	if want := h.nextRole(); turn.Role != want {
		return fmt.Errorf("out of order turn: got %s, want %s", turn.Role, want)
	}
	h.turns = append(h.turns, turn)
	return nil
}

func (h *History) nextRole() Role {
	if len(h.turns)%2 == 0 {
		return RoleUser
	}
	return RoleAssistant
}

// AppendExchange records a completed user/assistant pair.
func (h *History) AppendExchange(prompt, reply string) {
	h.turns = append(h.turns,
		Turn{Role: RoleUser, Content: prompt},
		Turn{Role: RoleAssistant, Content: reply},
	)
}

// Reset empties the history.
func (h *History) Reset() {
	h.turns = nil
}

// All returns a copy of the turns in insertion order.
func (h *History) All() []Turn {
	return append(make([]Turn, 0, len(h.turns)), h.turns...)
}

// Len returns the number of turns.
func (h *History) Len() int {
	return len(h.turns)
}
