package contracts

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validTask() TaskMessage {
	return TaskMessage{
		TaskID:        "t-1",
		CorrelationID: "c-1",
		Priority:      PriorityMedium,
		EntityType:    EntityReasoning,
		TaskKind:      KindImplementation,
		Context:       TaskContext{NodeID: "counter4"},
	}
}

func TestValidateTask_Valid(t *testing.T) {
	require.NoError(t, ValidateTask(validTask()))
}

func TestValidateTask_SchemaPoisonPill(t *testing.T) {
	// entity_type=REASONING paired with task_kind=LINTER is a schema poison pill.
	msg := validTask()
	msg.TaskKind = KindLinter

	err := ValidateTask(msg)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrEntityKindMismatch)
	assert.Equal(t, "validation/entity_kind_mismatch", ValidationReason(err))
}

func TestValidateTask_UnknownEntityType(t *testing.T) {
	msg := validTask()
	msg.EntityType = "NOT_A_REAL_ENTITY"

	err := ValidateTask(msg)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownEntityType)
}

func TestValidateTask_MissingFields(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*TaskMessage)
	}{
		{"task_id", func(m *TaskMessage) { m.TaskID = "" }},
		{"correlation_id", func(m *TaskMessage) { m.CorrelationID = "" }},
		{"node_id", func(m *TaskMessage) { m.Context.NodeID = "" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			msg := validTask()
			tc.mutate(&msg)
			assert.Error(t, ValidateTask(msg))
		})
	}
}

func TestValidateResult_EmptyLogOnSuccess(t *testing.T) {
	msg := ResultMessage{
		TaskID:        "t-1",
		CorrelationID: "c-1",
		Status:        StatusSuccess,
	}
	err := ValidateResult(msg)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrEmptyLogOutput)
}

func TestValidateResult_UnknownStatus(t *testing.T) {
	msg := ResultMessage{TaskID: "t-1", CorrelationID: "c-1", Status: "WEIRD"}
	err := ValidateResult(msg)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownStatus)
}

func TestValidateResult_ValidFailureNeedsNoLog(t *testing.T) {
	msg := ResultMessage{TaskID: "t-1", CorrelationID: "c-1", Status: StatusFailure}
	assert.NoError(t, ValidateResult(msg))
}

func TestEntityForKind(t *testing.T) {
	entity, ok := EntityForKind(KindSimulator)
	require.True(t, ok)
	assert.Equal(t, EntityHeavyDeterministic, entity)

	_, ok = EntityForKind("BOGUS")
	assert.False(t, ok)
}
