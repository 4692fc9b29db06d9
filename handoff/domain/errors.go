package domain

import (
	"errors"
	"fmt"
	"net/http"

	pkgError "github.com/eduzayn/educhat/pkg/error"
)

var (
	ErrTeamNotFound         = errors.New("team not found")
	ErrAgentNotFound        = errors.New("agent not found")
	ErrNoTarget             = errors.New("handoff needs a team or a user")
	ErrConversationNotFound = errors.New("conversation not found")
	ErrDuplicateTeam        = errors.New("a team with this name already exists")

	// ErrHandoffExecution matches every HandoffExecutionFailure.
	ErrHandoffExecution = errors.New("handoff execution failed")
)

// HandoffExecutionFailure reports the step that failed. HandoffID is the
// failed row written for the attempt, zero when even that could not be stored.
type HandoffExecutionFailure struct {
	HandoffID uint
	Step      string
	Err       error
}

func (e *HandoffExecutionFailure) Error() string {
	return fmt.Sprintf("handoff execution failed at %s: %v", e.Step, e.Err)
}

func (e *HandoffExecutionFailure) Unwrap() error { return e.Err }

func (e *HandoffExecutionFailure) Is(target error) bool { return target == ErrHandoffExecution }

func (e *HandoffExecutionFailure) ErrCode() string { return "HANDOFF_EXECUTION_FAILURE" }

func (e *HandoffExecutionFailure) StatusCode() int { return http.StatusInternalServerError }

var _ pkgError.GenericError = (*HandoffExecutionFailure)(nil)
