package llm

import (
	"encoding/json"
	"fmt"
	"strings"

	"courtbook/internal/entity"

	"github.com/openai/openai-go/v3"
)

const SystemPrompt = `You help a script that books courts on a legacy ASP.NET reservation site.
The script's usual selector for a control did not match. You get the intent
(what the script wants to click) and a listing of the page's interactive
elements, one per line as "[id] <tag> text".

Rules:
- Answer only by calling "pick_element" with the id of the best match.
- Prefer buttons and inputs whose label or row text matches the intent.
- Never pick an id listed in the failed attempts.
`

// ConstructMessages builds the chat for one recovery request. Pure; the
// prompt text is asserted in tests.
func ConstructMessages(intent string, history []entity.ActionRecord, state *entity.BrowserState) []openai.ChatCompletionMessageParamUnion {
	messages := []openai.ChatCompletionMessageParamUnion{
		openai.SystemMessage(SystemPrompt),
	}

	if len(history) > 0 {
		var historyBuilder strings.Builder
		historyBuilder.WriteString("FAILED ATTEMPTS (do not repeat):\n")

		for i, record := range history {
			logEntry := map[string]interface{}{
				"attempt": i + 1,
				"intent":  record.Intent,
				"id":      record.ElementID,
				"thought": record.Reasoning,
				"result":  record.Result,
			}
			jsonBytes, _ := json.Marshal(logEntry)
			historyBuilder.WriteString(string(jsonBytes) + "\n")
		}

		messages = append(messages, openai.UserMessage(historyBuilder.String()))
	}

	userContent := fmt.Sprintf(
		"INTENT: %s\n\n"+
			"PAGE:\n"+
			"URL: %s\n"+
			"Title: %s\n\n"+
			"INTERACTIVE ELEMENTS:\n%s",
		intent,
		state.URL,
		state.Title,
		state.DOMSummary,
	)
	messages = append(messages, openai.UserMessage(userContent))

	return messages
}
