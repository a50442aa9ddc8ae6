package entity

// ActionRecord is one recovery attempt: the element the model picked for an
// intent and what happened when it was clicked. Fed back into the prompt so
// the model does not pick the same dead element twice.
type ActionRecord struct {
	Intent    string
	ElementID int
	Reasoning string
	Result    string
}
