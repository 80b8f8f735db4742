package controller

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"staff_training_backend/internal/config"
	"staff_training_backend/internal/model"
	"staff_training_backend/internal/repository"
	"staff_training_backend/internal/service"
	"staff_training_backend/internal/util"
	"staff_training_backend/pkg/database"
	"staff_training_backend/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	logger.Log = zap.NewNop()
	os.Exit(m.Run())
}

// manualClock 测试用可控时钟
type manualClock struct {
	now time.Time
}

func (c *manualClock) Now() time.Time { return c.now }

type webEnv struct {
	router *gin.Engine
	clock  *manualClock
	course *model.InteractiveCourse
	db     *gorm.DB
}

// 身份中间件替身：按角色注入已解析的声明
func injectUser(userID uint, role model.UserRole) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set("user", &util.Claims{UserID: userID, Role: role})
		c.Next()
	}
}

func newWebEnv(t *testing.T, userID uint, role model.UserRole) *webEnv {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, database.Migrate(db))

	cfg := &config.Config{
		Progress: config.ProgressConfig{
			MinDwellFloorSeconds:      20,
			VideoCompletionRatio:      0.95,
			VideoMinWatchSeconds:      60,
			VideoSeekToleranceSeconds: 5,
			QuizPassScore:             80,
			SaveRetryAttempts:         3,
		},
	}

	course := &model.InteractiveCourse{
		CourseID:        1,
		Title:           "合规入职培训",
		TotalSlides:     3,
		DurationMinutes: 3,
		IsActive:        true,
	}
	require.NoError(t, db.Create(course).Error)

	clock := &manualClock{now: time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)}
	contentRepo := repository.NewContentRepository(db, nil)
	svc := service.NewProgressService(
		contentRepo,
		repository.NewInteractiveProgressRepository(db),
		service.NewSlideGuard(clock, cfg),
		service.NewCompletionEvaluator(cfg),
		service.NewAuditSink(repository.NewSkipAttemptLogRepository(db)),
		cfg,
	)
	ctrl := NewProgressController(svc)

	router := gin.New()
	api := router.Group("/api", injectUser(userID, role))
	api.GET("/interactive/:id/play", ctrl.Play)
	api.POST("/interactive/:id/progress", ctrl.UpdateProgress)
	api.GET("/interactive/:id/completion", ctrl.Completion)
	api.POST("/interactive/:id/quiz-result", ctrl.RecordQuizResult)

	return &webEnv{router: router, clock: clock, course: course, db: db}
}

func (e *webEnv) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestUpdateProgressLockedSlideReturns403(t *testing.T) {
	env := newWebEnv(t, 7, model.Staff)
	path := fmt.Sprintf("/api/interactive/%d/progress", env.course.ID)

	w := env.do(t, http.MethodPost, path, gin.H{"current_slide": 3})
	assert.Equal(t, http.StatusForbidden, w.Code)

	body := decodeBody(t, w)
	data := body["data"].(map[string]interface{})
	assert.Equal(t, "slide_locked", data["code"])

	// 拒绝响应携带权威快照，客户端据此重渲染
	state := data["state"].(map[string]interface{})
	assert.Equal(t, float64(0), state["highest_slide_reached"])
	assert.Equal(t, float64(1), state["allowed_next_slide"])
}

func TestUpdateProgressMinTimeReturns400WithCountdown(t *testing.T) {
	env := newWebEnv(t, 7, model.Staff)
	path := fmt.Sprintf("/api/interactive/%d/progress", env.course.ID)

	w := env.do(t, http.MethodPost, path, gin.H{"current_slide": 1})
	require.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, http.MethodPost, path, gin.H{"slide_completed": 1})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	data := decodeBody(t, w)["data"].(map[string]interface{})
	assert.Equal(t, "min_time_not_met", data["code"])
	assert.Equal(t, float64(60), data["remaining_seconds"])
}

func TestUpdateProgressHappyPathReturnsState(t *testing.T) {
	env := newWebEnv(t, 7, model.Staff)
	path := fmt.Sprintf("/api/interactive/%d/progress", env.course.ID)

	w := env.do(t, http.MethodPost, path, gin.H{"current_slide": 1})
	require.Equal(t, http.StatusOK, w.Code)

	env.clock.now = env.clock.now.Add(60 * time.Second)
	w = env.do(t, http.MethodPost, path, gin.H{"slide_completed": 1, "time_spent": 60})
	require.Equal(t, http.StatusOK, w.Code)

	state := decodeBody(t, w)["data"].(map[string]interface{})
	assert.Equal(t, float64(33), state["completion_percentage"])
	assert.Equal(t, float64(1), state["highest_slide_reached"])
}

func TestUpdateProgressMalformedBodyReturns400(t *testing.T) {
	env := newWebEnv(t, 7, model.Staff)
	path := fmt.Sprintf("/api/interactive/%d/progress", env.course.ID)

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString(`{"slide_completed": "two"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUpdateProgressUnknownCourseReturns404(t *testing.T) {
	env := newWebEnv(t, 7, model.Staff)
	w := env.do(t, http.MethodPost, "/api/interactive/9999/progress", gin.H{"current_slide": 1})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPlayReturnsStateAndSuspendData(t *testing.T) {
	env := newWebEnv(t, 7, model.Staff)

	w := env.do(t, http.MethodGet, fmt.Sprintf("/api/interactive/%d/play", env.course.ID), nil)
	require.Equal(t, http.StatusOK, w.Code)

	data := decodeBody(t, w)["data"].(map[string]interface{})
	require.Contains(t, data, "state")
	require.Contains(t, data, "scorm_suspend_data")
	state := data["state"].(map[string]interface{})
	assert.Equal(t, float64(1), state["allowed_next_slide"])
}

func TestQuizResultRequiresCollaboratorRole(t *testing.T) {
	env := newWebEnv(t, 7, model.Staff)
	path := fmt.Sprintf("/api/interactive/%d/quiz-result", env.course.ID)

	w := env.do(t, http.MethodPost, path, gin.H{"user_id": 7, "score": 90})
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestQuizResultBeforeContentReturns403(t *testing.T) {
	env := newWebEnv(t, 1, model.QuizEngine)
	path := fmt.Sprintf("/api/interactive/%d/quiz-result", env.course.ID)

	w := env.do(t, http.MethodPost, path, gin.H{"user_id": 7, "score": 90})
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestCompletionGateForFreshUser(t *testing.T) {
	env := newWebEnv(t, 7, model.Staff)

	w := env.do(t, http.MethodGet, fmt.Sprintf("/api/interactive/%d/completion", env.course.ID), nil)
	require.Equal(t, http.StatusOK, w.Code)

	state := decodeBody(t, w)["data"].(map[string]interface{})
	assert.Equal(t, false, state["content_completed"])
	assert.Equal(t, false, state["can_take_quiz"])
	assert.Equal(t, false, state["is_completed"])
}
