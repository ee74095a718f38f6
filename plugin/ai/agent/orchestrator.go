// Package agent implements the chat orchestrator: it resolves the
// conversation, loads bounded history, runs the decide/execute/respond loop
// against the model gateway and persists the completed turn.
package agent

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	errs "github.com/usetaskchat/taskchat/internal/errors"
	"github.com/usetaskchat/taskchat/plugin/ai"
	"github.com/usetaskchat/taskchat/server/service/conversation"
	"github.com/usetaskchat/taskchat/store"
)

// ModelGateway is the slice of the provider gateway the orchestrator uses.
// Kept as an interface so tests can script model behavior.
type ModelGateway interface {
	Decide(ctx context.Context, systemPrompt string, history []ai.Message, newMessage string, tools []ai.ToolDefinition) (*ai.Decision, error)
	Respond(ctx context.Context, messages []ai.Message) (string, error)
	RespondStream(ctx context.Context, messages []ai.Message, onDelta func(string) error) (string, error)
}

// ChatRequest is one user message, addressed either to an existing
// conversation or to a new one when ConversationID is nil.
type ChatRequest struct {
	OwnerID        int32
	ConversationID *int32
	Message        string
}

// ToolCallRecord captures one executed tool call for persistence and for the
// API response.
type ToolCallRecord struct {
	ID        string      `json:"id"`
	Name      string      `json:"name"`
	Arguments string      `json:"arguments"`
	Result    *ToolResult `json:"result"`
}

// ChatResult is the outcome of a completed turn.
type ChatResult struct {
	Conversation *store.Conversation
	Created      bool
	Reply        string
	ToolCalls    []ToolCallRecord
}

// Orchestrator drives the per-turn state machine. It holds no per-turn state
// itself; a single instance serves all users concurrently.
type Orchestrator struct {
	gateway       ModelGateway
	registry      *Registry
	conversations *conversation.Service
	historyLimit  int
	now           func() time.Time
}

// NewOrchestrator creates a new Orchestrator.
func NewOrchestrator(gateway ModelGateway, registry *Registry, conversations *conversation.Service, historyLimit int) *Orchestrator {
	if historyLimit <= 0 {
		historyLimit = conversation.DefaultHistoryLimit
	}
	return &Orchestrator{
		gateway:       gateway,
		registry:      registry,
		conversations: conversations,
		historyLimit:  historyLimit,
		now:           time.Now,
	}
}

// turnState carries everything a turn accumulates before persistence.
type turnState struct {
	conv     *store.Conversation
	created  bool
	history  []ai.Message
	messages []ai.Message
	records  []ToolCallRecord

	// directReply holds the decide-phase answer when no tools were called;
	// the respond phase is skipped in that case.
	directReply string
	direct      bool
}

// Chat runs one complete turn and returns the assistant reply. Nothing is
// persisted unless the model produced a reply; a failed upstream call leaves
// the conversation exactly as it was.
func (o *Orchestrator) Chat(ctx context.Context, req *ChatRequest) (*ChatResult, error) {
	state, err := o.prepare(ctx, req)
	if err != nil {
		return nil, err
	}

	reply := state.directReply
	if !state.direct {
		reply, err = o.gateway.Respond(ctx, state.messages)
		if err != nil {
			return nil, err
		}
	}

	if err := o.persistTurn(ctx, state, req, reply); err != nil {
		return nil, err
	}
	return &ChatResult{
		Conversation: state.conv,
		Created:      state.created,
		Reply:        reply,
		ToolCalls:    state.records,
	}, nil
}

// ChatStream runs one complete turn, streaming the reply through onDelta.
// When the stream breaks or the client goes away mid-reply, whatever text was
// produced is still persisted so the conversation log stays honest.
func (o *Orchestrator) ChatStream(ctx context.Context, req *ChatRequest, onDelta func(string) error) (*ChatResult, error) {
	state, err := o.prepare(ctx, req)
	if err != nil {
		return nil, err
	}

	var reply string
	var streamErr error
	if state.direct {
		reply = state.directReply
		if onDelta != nil {
			streamErr = onDelta(reply)
		}
	} else {
		reply, streamErr = o.gateway.RespondStream(ctx, state.messages, onDelta)
	}
	if streamErr != nil && reply == "" {
		return nil, streamErr
	}

	if err := o.persistTurn(ctx, state, req, reply); err != nil {
		return nil, err
	}
	result := &ChatResult{
		Conversation: state.conv,
		Created:      state.created,
		Reply:        reply,
		ToolCalls:    state.records,
	}
	return result, streamErr
}

// prepare resolves the conversation, loads history and runs the decide and
// tool-execution phases. It does not touch storage for writes.
func (o *Orchestrator) prepare(ctx context.Context, req *ChatRequest) (*turnState, error) {
	message := strings.TrimSpace(req.Message)
	if message == "" {
		return nil, errs.InvalidArgument("message", "must not be empty")
	}
	req.Message = message

	state := &turnState{}
	if req.ConversationID != nil {
		conv, err := o.conversations.FindOwned(ctx, req.OwnerID, *req.ConversationID)
		if err != nil {
			return nil, err
		}
		state.conv = conv
		history, err := o.conversations.LoadRecentHistory(ctx, conv.ID, o.historyLimit)
		if err != nil {
			return nil, err
		}
		state.history = toModelHistory(history)
	} else {
		state.conv = o.conversations.NewPending(req.OwnerID, message)
		state.created = true
	}

	systemPrompt := BuildSystemPrompt(o.now())
	decision, err := o.gateway.Decide(ctx, systemPrompt, state.history, message, o.registry.Definitions())
	if err != nil {
		return nil, err
	}

	// Base message list for the respond phase.
	state.messages = make([]ai.Message, 0, len(state.history)+len(decision.ToolCalls)+4)
	state.messages = append(state.messages, ai.SystemPrompt(systemPrompt))
	state.messages = append(state.messages, state.history...)
	state.messages = append(state.messages, ai.UserMessage(message))

	if len(decision.ToolCalls) == 0 {
		// No tools needed: the decide phase already produced the reply.
		state.direct = true
		state.directReply = decision.Content
		return state, nil
	}

	state.messages = append(state.messages, ai.Message{
		Role:      ai.RoleAssistant,
		Content:   decision.Content,
		ToolCalls: decision.ToolCalls,
	})
	for _, call := range decision.ToolCalls {
		result := o.registry.Dispatch(ctx, req.OwnerID, call.Name, call.Arguments)
		state.records = append(state.records, ToolCallRecord{
			ID:        call.ID,
			Name:      call.Name,
			Arguments: call.Arguments,
			Result:    result,
		})
		payload, err := json.Marshal(result)
		if err != nil {
			payload = []byte(`{"success":false,"error":"result serialization failed"}`)
		}
		state.messages = append(state.messages, ai.ToolResultMessage(call.ID, string(payload)))
	}
	return state, nil
}

// persistTurn stores the user message and assistant reply as one atomic unit.
// It runs detached from the request context so a client that disconnected
// after the reply was produced does not lose the turn.
func (o *Orchestrator) persistTurn(ctx context.Context, state *turnState, req *ChatRequest, reply string) error {
	ctx = context.WithoutCancel(ctx)

	userMsg := conversation.NewMessage(store.MessageRoleUser, req.Message, "")
	assistantMsg := conversation.NewMessage(store.MessageRoleAssistant, reply, marshalRecords(state.records))
	turn := []*store.Message{userMsg, assistantMsg}

	if state.created {
		created, err := o.conversations.CreateWithTurn(ctx, state.conv, turn)
		if err != nil {
			return err
		}
		state.conv = created
		return nil
	}
	if err := o.conversations.AppendTurn(ctx, state.conv.ID, turn); err != nil {
		return err
	}
	state.conv.UpdatedTs = o.now().Unix()
	return nil
}

// toModelHistory converts stored messages to provider-neutral ones. Tool call
// details are not replayed; the persisted assistant text already reflects
// their outcome.
func toModelHistory(msgs []*store.Message) []ai.Message {
	history := make([]ai.Message, 0, len(msgs))
	for _, m := range msgs {
		history = append(history, ai.Message{Role: string(m.Role), Content: m.Content})
	}
	return history
}

func marshalRecords(records []ToolCallRecord) string {
	if len(records) == 0 {
		return ""
	}
	payload, err := json.Marshal(records)
	if err != nil {
		slog.Error("failed to marshal tool call records", slog.String("error", err.Error()))
		return ""
	}
	return string(payload)
}
