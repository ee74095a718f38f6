package v1

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/usetaskchat/taskchat/plugin/ai/agent"
	"github.com/usetaskchat/taskchat/store"
)

func TestChatResponseCarriesToolResultData(t *testing.T) {
	result := &agent.ChatResult{
		Conversation: &store.Conversation{ID: 7, Title: "Groceries"},
		Created:      true,
		Reply:        "Added it.",
		ToolCalls: []agent.ToolCallRecord{{
			ID:        "call-1",
			Name:      "add_task",
			Arguments: `{"title": "buy milk"}`,
			Result: &agent.ToolResult{
				Success: true,
				Data:    map[string]any{"id": 12, "title": "buy milk", "completed": false},
			},
		}},
	}

	payload, err := json.Marshal(toChatResponse(result))
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(payload, &decoded))
	calls, ok := decoded["tool_calls"].([]any)
	require.True(t, ok)
	require.Len(t, calls, 1)

	call := calls[0].(map[string]any)
	require.Equal(t, "add_task", call["name"])
	require.Equal(t, true, call["success"])

	// The structured result payload rides along, not just the verdict.
	data, ok := call["data"].(map[string]any)
	require.True(t, ok, "tool call should carry the result data object")
	require.Equal(t, "buy milk", data["title"])
	require.EqualValues(t, 12, data["id"])
}

func TestChatResponseOmitsDataOnFailure(t *testing.T) {
	result := &agent.ChatResult{
		Conversation: &store.Conversation{ID: 7, Title: "Groceries"},
		Reply:        "I couldn't find that task.",
		ToolCalls: []agent.ToolCallRecord{{
			ID:     "call-1",
			Name:   "delete_task",
			Result: &agent.ToolResult{Success: false, Error: "task_id: no task with id 99"},
		}},
	}

	payload, err := json.Marshal(toChatResponse(result))
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(payload, &decoded))
	call := decoded["tool_calls"].([]any)[0].(map[string]any)
	require.Equal(t, false, call["success"])
	require.NotContains(t, call, "data")
	require.Contains(t, call["error"], "task_id")
}
