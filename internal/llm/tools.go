package llm

import "github.com/openai/openai-go/v3"

const pickElementTool = "pick_element"

func defineTools() []openai.ChatCompletionToolUnionParam {
	return []openai.ChatCompletionToolUnionParam{
		openai.ChatCompletionFunctionTool(openai.FunctionDefinitionParam{
			Name:        pickElementTool,
			Description: openai.String("Choose the element that fulfils the intent."),
			Parameters: openai.FunctionParameters{
				"type": "object",
				"properties": map[string]any{
					"id": map[string]any{
						"type":        "integer",
						"description": "Element id from the DOM listing (the number in square brackets).",
					},
					"reason": map[string]any{
						"type":        "string",
						"description": "One short sentence on why this element matches.",
					},
				},
				"required": []string{"id"},
			},
		}),
	}
}
