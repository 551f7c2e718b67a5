package scheduler

import (
	"encoding/json"

	"fleetdesk_backend/internal/conversation"

	"github.com/hibiken/asynq"
)

const TaskProcessMessage = "conversation.message"

const TaskNotificationSweep = "notification.sweep"

func NewProcessMessageTask(msg conversation.Message) (*asynq.Task, error) {
	data, err := json.Marshal(msg)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskProcessMessage, data), nil
}

func ParseProcessMessagePayload(task *asynq.Task) (conversation.Message, error) {
	var msg conversation.Message
	if err := json.Unmarshal(task.Payload(), &msg); err != nil {
		return conversation.Message{}, err
	}
	return msg, nil
}

func NewNotificationSweepTask() *asynq.Task {
	return asynq.NewTask(TaskNotificationSweep, nil)
}
