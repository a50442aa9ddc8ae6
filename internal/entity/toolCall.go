package entity

// ToolCall is a parsed function call from the model.
type ToolCall struct {
	Name      string                 // pick_element
	Args      map[string]interface{} // {"id": 12, "reason": "..."}
	Reasoning string
}
