package llm

import (
	"encoding/json"
	"fmt"
	"strconv"

	"courtbook/internal/entity"

	"github.com/openai/openai-go/v3"
)

// ParseResponse turns the model's tool calls into entity.ToolCall values.
// A reply without tool calls yields nil, nil.
func ParseResponse(msg openai.ChatCompletionMessage) ([]entity.ToolCall, error) {
	if len(msg.ToolCalls) == 0 {
		return nil, nil
	}

	var toolCalls []entity.ToolCall
	for _, tc := range msg.ToolCalls {
		call := entity.ToolCall{
			Name:      tc.Function.Name,
			Reasoning: msg.Content,
			Args:      make(map[string]interface{}),
		}
		if err := json.Unmarshal([]byte(tc.Function.Arguments), &call.Args); err != nil {
			return nil, fmt.Errorf("failed to parse arguments for %s: %w", tc.Function.Name, err)
		}
		if reason, ok := getString(call.Args, "reason"); ok && call.Reasoning == "" {
			call.Reasoning = reason
		}
		toolCalls = append(toolCalls, call)
	}
	return toolCalls, nil
}

// pickedID returns the element id of the first pick_element call.
func pickedID(calls []entity.ToolCall) (int, string, bool) {
	for _, call := range calls {
		if call.Name != pickElementTool {
			continue
		}
		if id, ok := getInt(call.Args, "id"); ok && id > 0 {
			return id, call.Reasoning, true
		}
	}
	return 0, "", false
}

// getInt accepts the shapes models actually send: 12, 12.0 and "12".
func getInt(args map[string]interface{}, key string) (int, bool) {
	val, ok := args[key]
	if !ok || val == nil {
		return 0, false
	}
	switch v := val.(type) {
	case float64:
		return int(v), true
	case int:
		return v, true
	case string:
		if i, err := strconv.Atoi(v); err == nil {
			return i, true
		}
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return int(f), true
		}
	}
	return 0, false
}

func getString(args map[string]interface{}, key string) (string, bool) {
	val, ok := args[key]
	if !ok {
		return "", false
	}
	s, ok := val.(string)
	return s, ok
}
