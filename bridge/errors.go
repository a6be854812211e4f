package bridge

import (
	"fmt"

	"github.com/google/uuid"
)

// HandlerError wraps a failure inside a widget's own callback (mount, input,
// event or destroy hook). It is caught at the sandbox boundary, logged, and
// never propagated to the router, other widgets or the host shell.
type HandlerError struct {
	WidgetID uuid.UUID
	Hook     string // "onMount", "onInput:<port>", "on:<event>", "onDestroy"
	Err      error
}

// NewHandlerError builds a HandlerError from a recovered panic value.
func NewHandlerError(widgetID uuid.UUID, hook string, recovered any) *HandlerError {
	err, ok := recovered.(error)
	if !ok {
		err = fmt.Errorf("%v", recovered)
	}
	return &HandlerError{WidgetID: widgetID, Hook: hook, Err: err}
}

func (e *HandlerError) Error() string {
	return fmt.Sprintf("widget %s hook %s: %v", e.WidgetID, e.Hook, e.Err)
}

func (e *HandlerError) Unwrap() error { return e.Err }
