package llm

// Role identifies the sender of a prompt message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one message of a prompt conversation.
type Message struct {
	Role    Role
	Content string
}

// CompletionRequest carries one classification prompt to a provider.
type CompletionRequest struct {
	Model       string
	Messages    []Message
	MaxTokens   int
	Temperature float64
	// JSONMode asks the model for a bare JSON object, which the metadata
	// parser depends on.
	JSONMode bool
}

// CompletionResponse is the model's reply. Only the text matters to the
// metadata extractor; token accounting is not tracked.
type CompletionResponse struct {
	Content string
}
