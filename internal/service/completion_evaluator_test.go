package service

import (
	"testing"
	"time"

	"staff_training_backend/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func markCompleted(p *model.InteractiveProgress, slides ...int) {
	p.EnsureMaps()
	for _, s := range slides {
		p.SlidesCompleted[model.SlideKey(s)] = true
		if s > p.HighestSlideReached {
			p.HighestSlideReached = s
		}
	}
}

func TestRecomputePercentage(t *testing.T) {
	eval := NewCompletionEvaluator(testConfig())
	course := testCourse()
	now := time.Now()

	p := newRecord()
	eval.Recompute(p, course, now, false)
	assert.Equal(t, 0, p.CompletionPercentage)

	markCompleted(p, 1)
	eval.Recompute(p, course, now, false)
	assert.Equal(t, 33, p.CompletionPercentage)
	assert.False(t, p.ContentCompleted)

	markCompleted(p, 2)
	eval.Recompute(p, course, now, false)
	assert.Equal(t, 66, p.CompletionPercentage)

	markCompleted(p, 3)
	eval.Recompute(p, course, now, false)
	assert.Equal(t, 100, p.CompletionPercentage)
	assert.True(t, p.ContentCompleted)
	require.NotNil(t, p.ContentCompletedAt)
}

func TestRecomputePercentageIsMonotone(t *testing.T) {
	eval := NewCompletionEvaluator(testConfig())
	now := time.Now()

	p := newRecord()
	markCompleted(p, 1, 2)
	eval.Recompute(p, testCourse(), now, false)
	assert.Equal(t, 66, p.CompletionPercentage)

	// 课件改版把总页数调大，已有百分比不回退
	bigger := &model.InteractiveCourse{TotalSlides: 10, DurationMinutes: 10}
	eval.Recompute(p, bigger, now, false)
	assert.Equal(t, 66, p.CompletionPercentage)
}

func TestContentSignalAloneIsNoop(t *testing.T) {
	eval := NewCompletionEvaluator(testConfig())
	now := time.Now()

	// 只有客户端信号、计数不支持：不得置完成
	p := newRecord()
	markCompleted(p, 1)
	eval.Recompute(p, testCourse(), now, true)
	assert.False(t, p.ContentCompleted)
	assert.Nil(t, p.ContentCompletedAt)

	// 计数支持时信号与计数派生等效
	markCompleted(p, 2, 3)
	eval.Recompute(p, testCourse(), now, true)
	assert.True(t, p.ContentCompleted)
}

func TestContentCompletedDoesNotRegress(t *testing.T) {
	eval := NewCompletionEvaluator(testConfig())
	now := time.Now()

	p := newRecord()
	markCompleted(p, 1, 2, 3)
	eval.Recompute(p, testCourse(), now, false)
	require.True(t, p.ContentCompleted)
	firstAt := *p.ContentCompletedAt

	eval.Recompute(p, testCourse(), now.Add(time.Hour), false)
	assert.True(t, p.ContentCompleted)
	assert.Equal(t, firstAt, *p.ContentCompletedAt)
}

func TestQuizGatedOnContentCompletion(t *testing.T) {
	eval := NewCompletionEvaluator(testConfig())
	now := time.Now()

	p := newRecord()
	markCompleted(p, 1)
	assert.False(t, eval.RecordQuizResult(p, 95, now))
	assert.Nil(t, p.QuizScore)
	assert.Equal(t, 0, p.QuizAttempts)

	markCompleted(p, 2, 3)
	eval.Recompute(p, testCourse(), now, false)

	require.True(t, eval.RecordQuizResult(p, 72, now))
	assert.Equal(t, 1, p.QuizAttempts)
	require.NotNil(t, p.QuizPassed)
	assert.False(t, *p.QuizPassed)
	assert.False(t, p.IsCompleted)

	// 80 分及格线是闭区间
	require.True(t, eval.RecordQuizResult(p, 80, now))
	assert.Equal(t, 2, p.QuizAttempts)
	assert.True(t, *p.QuizPassed)
	assert.True(t, p.IsCompleted)
	require.NotNil(t, p.CompletedAt)
}

func TestFinalCompletionDoesNotRegress(t *testing.T) {
	eval := NewCompletionEvaluator(testConfig())
	now := time.Now()

	p := newRecord()
	markCompleted(p, 1, 2, 3)
	eval.Recompute(p, testCourse(), now, false)
	require.True(t, eval.RecordQuizResult(p, 90, now))
	require.True(t, p.IsCompleted)
	completedAt := *p.CompletedAt

	// 通过后再考一次不及格：分数记录更新，最终完成不回退
	require.True(t, eval.RecordQuizResult(p, 40, now.Add(time.Hour)))
	assert.False(t, *p.QuizPassed)
	assert.True(t, p.IsCompleted)
	assert.Equal(t, completedAt, *p.CompletedAt)
}

func TestEvaluateVideoKnownDuration(t *testing.T) {
	eval := NewCompletionEvaluator(testConfig())
	now := time.Now()
	video := &model.CourseVideo{DurationSeconds: 600}

	p := &model.VideoProgress{WatchedSeconds: 560}
	eval.EvaluateVideo(p, video, now)
	assert.False(t, p.IsCompleted)
	assert.Equal(t, 93, eval.VideoCompletionPercentage(p, video))

	// 95% 是闭区间
	p.WatchedSeconds = 570
	eval.EvaluateVideo(p, video, now)
	assert.True(t, p.IsCompleted)
	require.NotNil(t, p.CompletedAt)
	assert.Equal(t, 95, eval.VideoCompletionPercentage(p, video))
}

func TestEvaluateVideoUnknownDuration(t *testing.T) {
	eval := NewCompletionEvaluator(testConfig())
	now := time.Now()
	video := &model.CourseVideo{DurationSeconds: 0}

	p := &model.VideoProgress{WatchedSeconds: 59}
	eval.EvaluateVideo(p, video, now)
	assert.False(t, p.IsCompleted)
	// 完成前百分比封顶 99
	assert.Equal(t, 98, eval.VideoCompletionPercentage(p, video))

	p.WatchedSeconds = 60
	eval.EvaluateVideo(p, video, now)
	assert.True(t, p.IsCompleted)
	assert.Equal(t, 100, eval.VideoCompletionPercentage(p, video))
}
