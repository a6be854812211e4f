package pipeline

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// ErrUnknownWidget is returned when a connection references a widget that is
// not registered with the router.
var ErrUnknownWidget = errors.New("unknown widget")

// PortDirection distinguishes the two halves of a connection.
type PortDirection string

// Port directions.
const (
	DirectionInput  PortDirection = "input"
	DirectionOutput PortDirection = "output"
)

// InvalidPortError reports a connection attempt against a port name the
// widget's manifest does not declare. The connection is not created; nothing
// else is affected.
type InvalidPortError struct {
	WidgetID  uuid.UUID
	Port      string
	Direction PortDirection
}

func (e *InvalidPortError) Error() string {
	return fmt.Sprintf("widget %s has no %s port %q", e.WidgetID, e.Direction, e.Port)
}
