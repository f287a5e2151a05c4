package llms

// Message is a single entry of a chat exchange sent to a model.
type Message struct {
	Role    MessageRole
	Content string
}

// Response is a single response from an LLM
type Response struct {
	Content string
	// Model is the model identifier reported by the provider, it can differ
	// from the requested one when the provider resolves aliases.
	Model string
}

// MessageRole describes who is the message from
type MessageRole string

const (
	MessageRoleSystem    MessageRole = "system"
	MessageRoleUser      MessageRole = "user"
	MessageRoleAssistant MessageRole = "assistant"
)

func SystemMessage(content string) Message {
	return Message{Role: MessageRoleSystem, Content: content}
}

func UserMessage(content string) Message {
	return Message{Role: MessageRoleUser, Content: content}
}
