package api

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/minio/minio-go/v7"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"recruify/internal/api/middleware"
	"recruify/internal/auth"
	"recruify/internal/database"
	"recruify/internal/tasks"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	return db
}

func seedCompany(t *testing.T, db *gorm.DB, email, name string) database.Company {
	t.Helper()
	owner := database.User{Email: email}
	require.NoError(t, db.Create(&owner).Error)
	company := database.Company{Name: name, OwnerID: owner.ID}
	require.NoError(t, db.Create(&company).Error)
	return company
}

func seedPosting(t *testing.T, db *gorm.DB, companyID uint, title string) database.Posting {
	t.Helper()
	posting := database.Posting{CompanyID: companyID, Title: title, EmploymentType: "full-time", Status: "active"}
	require.NoError(t, db.Create(&posting).Error)
	return posting
}

func seedApplicant(t *testing.T, db *gorm.DB, postingID uint, name string, score *int) database.Applicant {
	t.Helper()
	applicant := database.Applicant{PostingID: postingID, Name: name, Stage: "applied", TotalScore: score}
	require.NoError(t, db.Create(&applicant).Error)
	return applicant
}

func intPtr(v int) *int { return &v }

// asCompany stands in for AuthMiddleware in handler tests.
func asCompany(companyID uint) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(middleware.UserIDKey, uint(1))
		c.Set(middleware.CompanyIDKey, companyID)
		c.Next()
	}
}

func doJSON(t *testing.T, router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

// decodeData unmarshals the {"data": ...} envelope into out.
func decodeData(t *testing.T, w *httptest.ResponseRecorder, out any) {
	t.Helper()
	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope), w.Body.String())
	require.NoError(t, json.Unmarshal(envelope.Data, out), string(envelope.Data))
}

func errorMessage(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error string `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body), w.Body.String())
	return body.Error
}

type fakeRedis struct {
	mu       sync.Mutex
	counters map[string]int64
	values   map[string]string
	ttls     map[string]time.Duration
	incrErr  error
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{
		counters: map[string]int64{},
		values:   map[string]string{},
		ttls:     map[string]time.Duration{},
	}
}

func (f *fakeRedis) Incr(ctx context.Context, key string) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	cmd := redis.NewIntCmd(ctx)
	if f.incrErr != nil {
		cmd.SetErr(f.incrErr)
		return cmd
	}
	f.counters[key]++
	cmd.SetVal(f.counters[key])
	return cmd
}

func (f *fakeRedis) Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd {
	cmd := redis.NewBoolCmd(ctx)
	cmd.SetVal(true)
	return cmd
}

func (f *fakeRedis) TTL(ctx context.Context, key string) *redis.DurationCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	cmd := redis.NewDurationCmd(ctx, time.Second)
	if ttl, ok := f.ttls[key]; ok {
		cmd.SetVal(ttl)
	} else {
		cmd.SetVal(-2)
	}
	return cmd
}

func (f *fakeRedis) Get(ctx context.Context, key string) *redis.StringCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	cmd := redis.NewStringCmd(ctx)
	if v, ok := f.values[key]; ok {
		cmd.SetVal(v)
	} else {
		cmd.SetErr(redis.Nil)
	}
	return cmd
}

func (f *fakeRedis) Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.values[key] = toString(value)
	if expiration > 0 {
		f.ttls[key] = expiration
	}
	cmd := redis.NewStatusCmd(ctx)
	cmd.SetVal("OK")
	return cmd
}

func (f *fakeRedis) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, k := range keys {
		if _, ok := f.values[k]; ok {
			n++
		}
		delete(f.values, k)
		delete(f.ttls, k)
		delete(f.counters, k)
	}
	cmd := redis.NewIntCmd(ctx)
	cmd.SetVal(n)
	return cmd
}

func (f *fakeRedis) hasPrefix(prefix string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for k := range f.values {
		if strings.HasPrefix(k, prefix) {
			return true
		}
	}
	return false
}

func toString(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case []byte:
		return string(s)
	default:
		b, _ := json.Marshal(v)
		return string(b)
	}
}

type fakeStorage struct {
	mu       sync.Mutex
	uploaded map[string][]byte
	deleted  []string
	prefixes []string
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{uploaded: map[string][]byte{}}
}

func (s *fakeStorage) UploadFile(_ context.Context, objectName string, reader io.Reader, _ int64, _ string) (*minio.UploadInfo, error) {
	b, err := io.ReadAll(reader)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.uploaded[objectName] = b
	return &minio.UploadInfo{Key: objectName, Size: int64(len(b))}, nil
}

func (s *fakeStorage) DeleteObject(_ context.Context, objectKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleted = append(s.deleted, objectKey)
	delete(s.uploaded, objectKey)
	return nil
}

func (s *fakeStorage) DeletePrefix(_ context.Context, prefix string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prefixes = append(s.prefixes, prefix)
	for k := range s.uploaded {
		if strings.HasPrefix(k, prefix) {
			delete(s.uploaded, k)
		}
	}
	return nil
}

func (s *fakeStorage) GeneratePresignedURL(_ context.Context, objectKey string, _ time.Duration, filename string) (string, error) {
	return "https://storage.test/" + objectKey + "?filename=" + filename, nil
}

// fakeQueue 按评分任务 ID 去重，并提供 Inspector 所需的查询与删除。
type fakeQueue struct {
	mu     sync.Mutex
	tasks  []*asynq.Task
	states map[string]asynq.TaskState

	// onEnqueue runs before the task is recorded; failWith makes enqueue fail.
	onEnqueue func()
	failWith  error
}

func (q *fakeQueue) EnqueueContext(_ context.Context, task *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	payload, err := tasks.ParseApplicantScorePayload(task)
	if err != nil {
		return nil, err
	}
	id := tasks.ApplicantScoreTaskID(payload.ApplicantID)
	if q.onEnqueue != nil {
		q.onEnqueue()
	}
	if q.failWith != nil {
		return nil, q.failWith
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	if q.states == nil {
		q.states = map[string]asynq.TaskState{}
	}
	if _, ok := q.states[id]; ok {
		return nil, asynq.ErrTaskIDConflict
	}
	q.states[id] = asynq.TaskStatePending
	q.tasks = append(q.tasks, task)
	return &asynq.TaskInfo{ID: id, Type: task.Type(), Queue: tasks.QueueAI, State: asynq.TaskStatePending}, nil
}

func (q *fakeQueue) GetTaskInfo(queue, id string) (*asynq.TaskInfo, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	state, ok := q.states[id]
	if !ok {
		return nil, asynq.ErrTaskNotFound
	}
	return &asynq.TaskInfo{ID: id, Queue: queue, State: state}, nil
}

func (q *fakeQueue) DeleteTask(_, id string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, ok := q.states[id]; !ok {
		return asynq.ErrTaskNotFound
	}
	delete(q.states, id)
	return nil
}

func (q *fakeQueue) setState(id string, state asynq.TaskState) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.states[id] = state
}

func newTestAuthService(t *testing.T) *auth.AuthService {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	privPEM := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)})
	pubDER, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	require.NoError(t, err)
	pubPEM := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubDER})

	svc, err := auth.NewAuthService(privPEM, pubPEM, 15*time.Minute, time.Hour)
	require.NoError(t, err)
	return svc
}
