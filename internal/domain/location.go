package domain

// Location scopes orders and tasks to a site independent of assignment.
type Location string

const (
	LocationStore   Location = "magaza"
	LocationFactory Location = "fabrika"
	LocationBoth    Location = "her_ikisi"
)

func (l Location) Valid() bool {
	switch l {
	case LocationStore, LocationFactory, LocationBoth:
		return true
	}
	return false
}

type Priority string

const (
	PriorityLow    Priority = "dusuk"
	PriorityMedium Priority = "orta"
	PriorityHigh   Priority = "yuksek"
	PriorityUrgent Priority = "acil"
)

func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}
