package types

import "strings"

// NewUserMessage creates a user-role message from the given parts
func NewUserMessage(parts ...Part) Message {
	return Message{
		Role:  MessageRoleUser,
		Parts: parts,
	}
}

// NewAgentMessage creates an agent-role message from the given parts
func NewAgentMessage(parts ...Part) Message {
	return Message{
		Role:  MessageRoleAgent,
		Parts: parts,
	}
}

// NewUserTextMessage creates a user-role message carrying a single text part
func NewUserTextMessage(text string) Message {
	return NewUserMessage(CreateTextPart(text))
}

// NewAgentTextMessage creates an agent-role message carrying a single text part
func NewAgentTextMessage(text string) Message {
	return NewAgentMessage(CreateTextPart(text))
}

// ExtractText concatenates the text parts of a message, separated by newlines.
// Non-text parts are skipped.
func ExtractText(m Message) string {
	var texts []string
	for _, part := range m.Parts {
		if part.Type == PartTypeText && part.Text != nil {
			texts = append(texts, *part.Text)
		}
	}
	return strings.Join(texts, "\n")
}
