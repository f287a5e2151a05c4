package openai

import "github.com/koscakluka/ema-drive/core/llms"

type openAIMessage struct {
	Role    messageRole `json:"role"`
	Content string      `json:"content"`
}

type messageRole string

const (
	messageRoleSystem    messageRole = "system"
	messageRoleUser      messageRole = "user"
	messageRoleAssistant messageRole = "assistant"
)

func toOpenAIMessages(messages []llms.Message) []openAIMessage {
	converted := make([]openAIMessage, 0, len(messages))
	for _, msg := range messages {
		if msg.Content == "" {
			continue
		}
		role := messageRoleUser
		switch msg.Role {
		case llms.MessageRoleSystem:
			role = messageRoleSystem
		case llms.MessageRoleAssistant:
			role = messageRoleAssistant
		}
		converted = append(converted, openAIMessage{Role: role, Content: msg.Content})
	}
	return converted
}
