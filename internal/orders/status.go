package orders

import "strings"

type Status string

const (
	StatusPlaced    Status = "Order Placed"
	StatusToShip    Status = "To Ship"
	StatusShipped   Status = "Shipped"
	StatusCompleted Status = "Completed"
	StatusCancelled Status = "Cancelled"
)

// AllStatuses lists the lifecycle in display order.
var AllStatuses = []Status{StatusPlaced, StatusToShip, StatusShipped, StatusCompleted, StatusCancelled}

// Any open status may move to any status; Completed and Cancelled are final.
var validNext = map[Status]map[Status]bool{
	StatusPlaced:    {StatusPlaced: true, StatusToShip: true, StatusShipped: true, StatusCompleted: true, StatusCancelled: true},
	StatusToShip:    {StatusPlaced: true, StatusToShip: true, StatusShipped: true, StatusCompleted: true, StatusCancelled: true},
	StatusShipped:   {StatusPlaced: true, StatusToShip: true, StatusShipped: true, StatusCompleted: true, StatusCancelled: true},
	StatusCompleted: {},
	StatusCancelled: {},
}

func CanTransition(from, to Status) bool {
	return validNext[from][to]
}

func (s Status) Valid() bool {
	_, ok := validNext[s]
	return ok
}

func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// ParseStatus accepts the exact status names, ignoring surrounding spaces.
func ParseStatus(raw string) (Status, error) {
	s := Status(strings.TrimSpace(raw))
	if !s.Valid() {
		return "", ErrInvalidStatus
	}
	return s, nil
}
