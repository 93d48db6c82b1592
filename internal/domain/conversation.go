package domain

// Turn is a single persisted conversation turn: one user message and the
// assistant reply produced for it. Tool invocations that happen inside a turn
// are not persisted; only the user-visible exchange is.
type Turn struct {
	PK             string
	SK             string
	ConversationID string
	UserText       string
	Reply          string
	Status         string
	TTL            int64
}

// ConversationMeta stores aggregate conversation state.
type ConversationMeta struct {
	PK             string
	SK             string
	ConversationID string
	LastActivity   string
	Turns          int
	TTL            int64
}
