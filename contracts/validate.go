package contracts

import "fmt"

// ValidateTask rejects unknown enum values, missing required fields, or an
// entity/kind mismatch. It runs before any broker operation — a task that
// fails here is never published.
func ValidateTask(msg TaskMessage) error {
	if msg.TaskID == "" {
		return newValidationError("task_id", "required", ErrMissingField)
	}
	if msg.CorrelationID == "" {
		return newValidationError("correlation_id", "required", ErrMissingField)
	}
	if !msg.EntityType.Valid() {
		return newValidationError("entity_type", fmt.Sprintf("unknown entity type %q", msg.EntityType), ErrUnknownEntityType)
	}
	if _, ok := EntityForKind(msg.TaskKind); !ok {
		return newValidationError("task_kind", fmt.Sprintf("unknown task kind %q", msg.TaskKind), ErrUnknownTaskKind)
	}
	if !kindMatchesEntity(msg.EntityType, msg.TaskKind) {
		return newValidationError("entity_kind_mismatch",
			fmt.Sprintf("entity_type %q does not accept task_kind %q", msg.EntityType, msg.TaskKind),
			ErrEntityKindMismatch)
	}
	if !msg.Priority.Valid() {
		return newValidationError("priority", fmt.Sprintf("unknown priority %d", msg.Priority), ErrMissingField)
	}
	if msg.Context.NodeID == "" {
		return newValidationError("context.node_id", "required", ErrMissingField)
	}
	return nil
}

// ValidateResult rejects unknown status, missing correlation fields, or an
// empty log_output on a reported SUCCESS.
func ValidateResult(msg ResultMessage) error {
	if msg.TaskID == "" {
		return newValidationError("task_id", "required", ErrMissingField)
	}
	if msg.CorrelationID == "" {
		return newValidationError("correlation_id", "required", ErrMissingField)
	}
	if !msg.Status.Valid() {
		return newValidationError("status", fmt.Sprintf("unknown status %q", msg.Status), ErrUnknownStatus)
	}
	if msg.Status == StatusSuccess && msg.LogOutput == "" {
		return newValidationError("log_output", "required when status=SUCCESS", ErrEmptyLogOutput)
	}
	return nil
}

// ValidationReason returns a short, stable machine-readable reason string
// for a ValidationError, suitable for recording as a node's terminal
// failure reason (e.g. "validation/entity_kind_mismatch").
func ValidationReason(err error) string {
	ve, ok := err.(*ValidationError)
	if !ok {
		return "validation/unknown"
	}
	switch {
	case ve.Err == ErrEntityKindMismatch:
		return "validation/entity_kind_mismatch"
	case ve.Err == ErrUnknownEntityType:
		return "validation/unknown_entity_type"
	case ve.Err == ErrUnknownTaskKind:
		return "validation/unknown_task_kind"
	case ve.Err == ErrUnknownStatus:
		return "validation/unknown_status"
	case ve.Err == ErrEmptyLogOutput:
		return "validation/empty_log_output"
	case ve.Err == ErrMissingField:
		return "validation/missing_field:" + ve.Field
	default:
		return "validation/unknown"
	}
}
