package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"recruify/internal/ai"
	"recruify/internal/database"
	"recruify/internal/errcode"
	"recruify/internal/notify"
	"recruify/internal/recruit"
	"recruify/internal/tasks"
)

type fakeObjects struct {
	data map[string][]byte
	err  error
}

func (f *fakeObjects) ReadObject(_ context.Context, key string, _ int64) ([]byte, string, error) {
	if f.err != nil {
		return nil, "", f.err
	}
	b, ok := f.data[key]
	if !ok {
		return nil, "", minio.ErrorResponse{Code: "NoSuchKey"}
	}
	return b, "text/plain", nil
}

type stubScorer struct {
	result ai.ScoringResult
	err    error
	got    []ai.ScoreInput
}

func (s *stubScorer) ScoreResume(_ context.Context, in ai.ScoreInput) (ai.ScoringResult, error) {
	s.got = append(s.got, in)
	return s.result, s.err
}

type recordingNotifier struct {
	mu   sync.Mutex
	msgs []notify.Message
}

func (r *recordingNotifier) Publish(_ context.Context, _ uint, msg notify.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, msg)
	return nil
}

func (r *recordingNotifier) snapshot() []notify.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]notify.Message(nil), r.msgs...)
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:"+uuid.NewString()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	return db
}

func seedApplicant(t *testing.T, db *gorm.DB, resumeKey string) (database.Company, database.Applicant) {
	t.Helper()
	owner := database.User{Email: uuid.NewString() + "@example.com"}
	require.NoError(t, db.Create(&owner).Error)
	company := database.Company{Name: "Acme", OwnerID: owner.ID}
	require.NoError(t, db.Create(&company).Error)
	desc := "Build and operate Go services."
	reqs := "3+ years of Go"
	posting := database.Posting{CompanyID: company.ID, Title: "Backend Engineer", Description: &desc, Requirements: &reqs}
	require.NoError(t, db.Create(&posting).Error)
	applicant := database.Applicant{PostingID: posting.ID, Name: "Kim Minjun", Stage: "applied", ResumeObjectKey: resumeKey, ScoringStatus: recruit.ScoringQueued}
	require.NoError(t, db.Create(&applicant).Error)
	return company, applicant
}

func newTask(t *testing.T, companyID, applicantID uint) *asynq.Task {
	t.Helper()
	task, err := tasks.NewApplicantScoreTask(tasks.ApplicantScorePayload{ApplicantID: applicantID, CompanyID: companyID, CorrelationID: "cid-1"}, 3)
	require.NoError(t, err)
	return task
}

func TestScoreTaskPersistsResult(t *testing.T) {
	db := newTestDB(t)
	company, applicant := seedApplicant(t, db, "resumes/1/1/cv.txt")
	objects := &fakeObjects{data: map[string][]byte{"resumes/1/1/cv.txt": []byte("Go, Kubernetes, 5 years")}}
	scorer := &stubScorer{result: ai.ScoringResult{
		TotalScore: 88, SkillScore: 90, CultureScore: 80, CareerScore: 85,
		Strengths: []string{"Go"}, Risks: []string{}, RecommendedQuestions: []string{"Why?"},
		Summary: "Solid",
	}}
	notifier := &recordingNotifier{}
	h := NewScoreTaskHandler(db, objects, scorer, notifier, nil, 1<<20)

	require.NoError(t, h.ProcessTask(context.Background(), newTask(t, company.ID, applicant.ID)))

	var got database.Applicant
	require.NoError(t, db.First(&got, applicant.ID).Error)
	require.NotNil(t, got.TotalScore)
	assert.Equal(t, 88, *got.TotalScore)
	assert.Equal(t, recruit.ScoringCompleted, got.ScoringStatus)
	assert.Equal(t, []string{"Go"}, []string(got.Strengths))

	require.Len(t, scorer.got, 1)
	assert.Equal(t, "Build and operate Go services.", scorer.got[0].JobDescription)
	assert.Equal(t, "Go, Kubernetes, 5 years", scorer.got[0].ResumeText)

	require.Len(t, notifier.msgs, 1)
	assert.Equal(t, notify.TypeScoringCompleted, notifier.msgs[0].Type)
}

func TestScoreTaskMissingApplicantIsDropped(t *testing.T) {
	db := newTestDB(t)
	company, _ := seedApplicant(t, db, "k")
	h := NewScoreTaskHandler(db, &fakeObjects{}, &stubScorer{}, nil, nil, 1<<20)

	assert.NoError(t, h.ProcessTask(context.Background(), newTask(t, company.ID, 999)))
}

func TestScoreTaskMissingResumeFailsWithoutRetry(t *testing.T) {
	db := newTestDB(t)
	company, applicant := seedApplicant(t, db, "resumes/1/1/gone.txt")
	notifier := &recordingNotifier{}
	scorer := &stubScorer{}
	h := NewScoreTaskHandler(db, &fakeObjects{data: map[string][]byte{}}, scorer, notifier, nil, 1<<20)

	require.NoError(t, h.ProcessTask(context.Background(), newTask(t, company.ID, applicant.ID)))

	var got database.Applicant
	require.NoError(t, db.First(&got, applicant.ID).Error)
	assert.Equal(t, recruit.ScoringFailed, got.ScoringStatus)
	assert.Empty(t, scorer.got)
	require.Len(t, notifier.msgs, 1)
	assert.Equal(t, notify.TypeScoringFailed, notifier.msgs[0].Type)
	assert.Equal(t, errcode.ResourceMissing, notifier.msgs[0].ErrorCode)
}

func TestScoreTaskProviderErrorIsRetried(t *testing.T) {
	db := newTestDB(t)
	company, applicant := seedApplicant(t, db, "cv.txt")
	boom := errors.New("provider timeout")
	notifier := &recordingNotifier{}
	h := NewScoreTaskHandler(db, &fakeObjects{data: map[string][]byte{"cv.txt": []byte("resume")}}, &stubScorer{err: boom}, notifier, nil, 1<<20)

	err := h.ProcessTask(context.Background(), newTask(t, company.ID, applicant.ID))
	assert.ErrorIs(t, err, boom)

	// not the final attempt outside the asynq runtime, so no failure is recorded yet
	var got database.Applicant
	require.NoError(t, db.First(&got, applicant.ID).Error)
	assert.Equal(t, recruit.ScoringQueued, got.ScoringStatus)
	assert.Empty(t, notifier.msgs)
}

func TestScoreTaskBadPayloadSkipsRetry(t *testing.T) {
	h := NewScoreTaskHandler(newTestDB(t), &fakeObjects{}, &stubScorer{}, nil, nil, 1<<20)
	err := h.ProcessTask(context.Background(), asynq.NewTask(tasks.TypeApplicantScore, []byte("nope")))
	assert.ErrorIs(t, err, asynq.SkipRetry)
}

// TestScoreTaskFinalAttemptMarksFailed runs the handler inside an asynq server
// so the retry-count and max-retry context values come from the runtime.
func TestScoreTaskFinalAttemptMarksFailed(t *testing.T) {
	db := newTestDB(t)
	company, applicant := seedApplicant(t, db, "cv.txt")
	notifier := &recordingNotifier{}
	objects := &fakeObjects{data: map[string][]byte{"cv.txt": []byte("Go developer")}}
	h := NewScoreTaskHandler(db, objects, &stubScorer{err: errors.New("provider timeout")}, notifier, nil, 1<<20)

	mr := miniredis.RunT(t)
	redisOpt := asynq.RedisClientOpt{Addr: mr.Addr()}
	srv := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency: 1,
		Queues:      map[string]int{tasks.QueueAI: 1},
		LogLevel:    asynq.FatalLevel,
	})
	mux := asynq.NewServeMux()
	mux.Handle(tasks.TypeApplicantScore, h)
	require.NoError(t, srv.Start(mux))
	t.Cleanup(srv.Shutdown)

	client := asynq.NewClient(redisOpt)
	t.Cleanup(func() { _ = client.Close() })
	task, err := tasks.NewApplicantScoreTask(tasks.ApplicantScorePayload{ApplicantID: applicant.ID, CompanyID: company.ID, CorrelationID: "cid-final"}, 0)
	require.NoError(t, err)
	_, err = client.Enqueue(task)
	require.NoError(t, err)

	require.Eventually(t, func() bool { return len(notifier.snapshot()) > 0 }, 10*time.Second, 20*time.Millisecond)
	msgs := notifier.snapshot()
	require.Len(t, msgs, 1)
	assert.Equal(t, notify.TypeScoringFailed, msgs[0].Type)
	assert.Equal(t, errcode.SystemError, msgs[0].ErrorCode)
	assert.Equal(t, "cid-final", msgs[0].CorrelationID)
	assert.Contains(t, msgs[0].ErrorMessage, "provider timeout")

	var got database.Applicant
	require.NoError(t, db.First(&got, applicant.ID).Error)
	assert.Equal(t, recruit.ScoringFailed, got.ScoringStatus)

	inspector := asynq.NewInspector(redisOpt)
	t.Cleanup(func() { _ = inspector.Close() })
	require.Eventually(t, func() bool {
		info, err := inspector.GetTaskInfo(tasks.QueueAI, tasks.ApplicantScoreTaskID(applicant.ID))
		return err == nil && info.State == asynq.TaskStateArchived
	}, 10*time.Second, 20*time.Millisecond)
}
