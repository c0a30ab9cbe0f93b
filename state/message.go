package state

// Message is one entry in the workflow conversation log. Messages are
// append-only and order-sensitive: merges concatenate them rather than
// deduplicate. The JSON shape {type, content, role, name} is the checkpoint
// wire format; loading a checkpoint reconstructs the same logical message.
type Message struct {
	Type    string `json:"type"`
	Content string `json:"content"`
	Role    string `json:"role"`
	Name    string `json:"name,omitempty"`
}

// UserMessage creates a message attributed to the user.
func UserMessage(content string) Message {
	return Message{Type: "human", Role: "user", Content: content}
}

// TaskMessage creates a message attributed to a named pipeline task.
func TaskMessage(task, content string) Message {
	return Message{Type: "task", Role: "assistant", Name: task, Content: content}
}

// SystemMessage creates a message attributed to the orchestrator itself.
func SystemMessage(content string) Message {
	return Message{Type: "system", Role: "system", Content: content}
}
