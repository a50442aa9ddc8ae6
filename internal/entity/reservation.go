package entity

// Option is one <option> of a <select> on the reservation page.
type Option struct {
	Index int
	Value string
	Text  string
}

// Result describes the slot the booking flow picked and what the portal said.
type Result struct {
	Club      string
	Date      string
	Duration  string
	Time      string
	Court     string
	Status    string
	Confirmed bool
	DryRun    bool
}
