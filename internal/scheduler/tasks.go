package scheduler

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const TaskWorkflowProcess = "workflow.process"

const TaskSyncRun = "sync.run"

// uniqueWindow collapses repeated operator triggers into one queued task.
const uniqueWindow = 30 * time.Second

type WorkflowProcessPayload struct {
	Limit int `json:"limit,omitempty"`
}

type SyncRunPayload struct {
	RequestedAt time.Time `json:"requestedAt"`
}

func NewWorkflowProcessTask(payload WorkflowProcessPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskWorkflowProcess, data), nil
}

func ParseWorkflowProcessPayload(task *asynq.Task) (WorkflowProcessPayload, error) {
	var payload WorkflowProcessPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return WorkflowProcessPayload{}, err
	}
	return payload, nil
}

func NewSyncRunTask(payload SyncRunPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskSyncRun, data), nil
}

func ParseSyncRunPayload(task *asynq.Task) (SyncRunPayload, error) {
	var payload SyncRunPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return SyncRunPayload{}, err
	}
	return payload, nil
}
