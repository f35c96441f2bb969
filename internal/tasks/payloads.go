package tasks

import (
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
)

// 任务类型常量，确保队列生产者与消费者一致。
const (
	TypeApplicantScore = "applicant:score"
)

// Queue names.
const (
	QueueDefault = "default"
	QueueAI      = "ai"
)

// ApplicantScorePayload 描述一次后台简历评分所需的最小信息。
type ApplicantScorePayload struct {
	ApplicantID   uint   `json:"applicant_id"`
	CompanyID     uint   `json:"company_id"`
	CorrelationID string `json:"correlation_id"`
}

// ApplicantScoreTaskID 是评分任务的固定 ID，保证同一候选人同时只有一个任务。
func ApplicantScoreTaskID(applicantID uint) string {
	return fmt.Sprintf("score:%d", applicantID)
}

// NewApplicantScoreTask 构造评分任务。
func NewApplicantScoreTask(p ApplicantScorePayload, maxRetry int) (*asynq.Task, error) {
	payload, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(
		TypeApplicantScore,
		payload,
		asynq.Queue(QueueAI),
		asynq.MaxRetry(maxRetry),
		asynq.TaskID(ApplicantScoreTaskID(p.ApplicantID)),
	), nil
}

// ParseApplicantScorePayload decodes a task payload.
func ParseApplicantScorePayload(t *asynq.Task) (ApplicantScorePayload, error) {
	var p ApplicantScorePayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return p, fmt.Errorf("unmarshal %s payload: %w", t.Type(), err)
	}
	return p, nil
}
