package llm

// Message represents a single message in a chat conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request is the outbound descriptor for one completion call. It carries the
// sampling parameters, the credential and the prompt exactly as configured;
// the client does not re-validate any of them.
type Request struct {
	Model             string
	Temperature       float64
	TopP              float64
	TopK              int
	RepetitionPenalty float64
	MaxTokens         int

	// APIKey is sent as a bearer token.
	APIKey string

	// Prompt is the user text for this turn, verbatim.
	Prompt string

	// History holds prior turns sent as context ahead of Prompt. It may be empty.
	History []Message
}

// Messages returns the conversation sent upstream: History followed by Prompt
// as a user message.
func (r Request) Messages() []Message {
	msgs := make([]Message, 0, len(r.History)+1)
	msgs = append(msgs, r.History...)
	return append(msgs, Message{Role: "user", Content: r.Prompt})
}
