package store

// Conversation is a titled, owned container for an ordered sequence of messages.
type Conversation struct {
	ID        int32
	UID       string
	CreatorID int32
	Title     string
	Metadata  string // JSON string
	CreatedTs int64
	UpdatedTs int64
}

type FindConversation struct {
	ID        *int32
	UID       *string
	CreatorID *int32

	Limit  *int
	Offset *int
}

type UpdateConversation struct {
	ID        int32
	Title     *string
	Metadata  *string
	UpdatedTs *int64
}

// DeleteConversation is scoped to the creator so that absence and foreign
// ownership are indistinguishable to the caller.
type DeleteConversation struct {
	ID        int32
	CreatorID int32
}

type MessageRole string

const (
	MessageRoleUser      MessageRole = "user"
	MessageRoleAssistant MessageRole = "assistant"
	MessageRoleSystem    MessageRole = "system"
)

// Message is one immutable turn within a conversation. Messages are
// append-only: there is no update struct on purpose.
type Message struct {
	ID             int32
	UID            string
	ConversationID int32
	Role           MessageRole
	Content        string
	ToolCalls      string // JSON string, "" when the message carries no tool-call record
	CreatedTs      int64
}

type FindMessage struct {
	ID             *int32
	UID            *string
	ConversationID *int32

	// Limit bounds the result to the most recent N messages. The store
	// facade returns them in chronological order regardless.
	Limit *int
}
