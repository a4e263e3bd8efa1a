package domain

// Actor is the user behind a mutation, as recorded in timelines and
// notifications.
type Actor struct {
	ID   int64
	Name string
	Role UserRole
}
