package service

import (
	"testing"
	"time"

	"staff_training_backend/internal/config"
	"staff_training_backend/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock 测试用可控时钟
type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)}
}

func testConfig() *config.Config {
	return &config.Config{
		Progress: config.ProgressConfig{
			MinDwellFloorSeconds:      20,
			VideoCompletionRatio:      0.95,
			VideoMinWatchSeconds:      60,
			VideoSeekToleranceSeconds: 5,
			QuizPassScore:             80,
			SaveRetryAttempts:         3,
		},
	}
}

// 3 张幻灯片、标称 3 分钟：每张最短停留 60 秒
func testCourse() *model.InteractiveCourse {
	return &model.InteractiveCourse{
		Title:           "反洗钱基础",
		TotalSlides:     3,
		DurationMinutes: 3,
	}
}

func newRecord() *model.InteractiveProgress {
	rec := &model.InteractiveProgress{}
	rec.EnsureMaps()
	return rec
}

func intPtr(v int) *int { return &v }

func TestMinDwellSeconds(t *testing.T) {
	guard := NewSlideGuard(newFakeClock(), testConfig())

	// 180s / 3 = 60
	assert.Equal(t, 60, guard.MinDwellSeconds(testCourse()))

	// 均摊值低于下限时取下限
	assert.Equal(t, 20, guard.MinDwellSeconds(&model.InteractiveCourse{TotalSlides: 30, DurationMinutes: 1}))

	// 元数据缺失时取下限
	assert.Equal(t, 20, guard.MinDwellSeconds(&model.InteractiveCourse{TotalSlides: 0, DurationMinutes: 0}))
	assert.Equal(t, 20, guard.MinDwellSeconds(&model.InteractiveCourse{TotalSlides: 5, DurationMinutes: 0}))
}

func TestReportCurrentSlideStartsIdempotently(t *testing.T) {
	clock := newFakeClock()
	guard := NewSlideGuard(clock, testConfig())
	course := testCourse()
	rec := newRecord()

	work, rej := guard.Apply(rec, course, &ProgressUpdateRequest{CurrentSlide: intPtr(1)})
	require.Nil(t, rej)
	assert.Equal(t, 1, work.CurrentSlide)

	startedAt, ok := work.SlideStartedAt[model.SlideKey(1)]
	require.True(t, ok)
	assert.Equal(t, clock.now, startedAt)

	// 再次进入同一页不重置开始时间
	clock.Advance(30 * time.Second)
	work2, rej := guard.Apply(work, course, &ProgressUpdateRequest{CurrentSlide: intPtr(1)})
	require.Nil(t, rej)
	assert.Equal(t, startedAt, work2.SlideStartedAt[model.SlideKey(1)])
}

func TestCurrentSlideBeyondRatchetIsLocked(t *testing.T) {
	guard := NewSlideGuard(newFakeClock(), testConfig())
	course := testCourse()
	rec := newRecord()

	work, rej := guard.Apply(rec, course, &ProgressUpdateRequest{CurrentSlide: intPtr(3)})
	require.NotNil(t, rej)
	assert.Equal(t, CodeSlideLocked, rej.Code)
	assert.True(t, rej.Audited())

	// 只有跳页计数变化，当前页不动
	assert.Equal(t, 1, work.SkipAttempts)
	assert.Equal(t, 0, work.CurrentSlide)
	assert.Equal(t, 0, work.HighestSlideReached)
	assert.Empty(t, work.SlideStartedAt)
}

func TestCompleteBeforeDwellIsRejected(t *testing.T) {
	clock := newFakeClock()
	guard := NewSlideGuard(clock, testConfig())
	course := testCourse()
	rec := newRecord()

	work, rej := guard.Apply(rec, course, &ProgressUpdateRequest{CurrentSlide: intPtr(1)})
	require.Nil(t, rej)

	// 立即声明完成：停留 0 秒
	pen, rej := guard.Apply(work, course, &ProgressUpdateRequest{SlideCompleted: intPtr(1)})
	require.NotNil(t, rej)
	assert.Equal(t, CodeMinTimeNotMet, rej.Code)
	assert.False(t, rej.Audited())
	assert.Equal(t, 60, rej.RemainingSeconds)

	// 棘轮不动，跳页计数不动，开始时间保留
	assert.Equal(t, 0, pen.HighestSlideReached)
	assert.Equal(t, 0, pen.SkipAttempts)
	assert.Contains(t, pen.SlideStartedAt, model.SlideKey(1))
}

func TestCompleteAtExactDwellSucceeds(t *testing.T) {
	clock := newFakeClock()
	guard := NewSlideGuard(clock, testConfig())
	course := testCourse()
	rec := newRecord()

	work, rej := guard.Apply(rec, course, &ProgressUpdateRequest{CurrentSlide: intPtr(1)})
	require.Nil(t, rej)

	clock.Advance(60 * time.Second)
	done, rej := guard.Apply(work, course, &ProgressUpdateRequest{SlideCompleted: intPtr(1)})
	require.Nil(t, rej)

	assert.Equal(t, 1, done.HighestSlideReached)
	assert.Equal(t, 1, done.CurrentSlide)
	assert.True(t, done.SlidesCompleted[model.SlideKey(1)])
	assert.Contains(t, done.SlideCompletedAt, model.SlideKey(1))
}

func TestCompleteWithoutPriorStartGetsZeroCredit(t *testing.T) {
	clock := newFakeClock()
	guard := NewSlideGuard(clock, testConfig())
	course := testCourse()
	rec := newRecord()

	// 从未上报过 current_slide：完成声明时才写开始时间，停留为 0
	pen, rej := guard.Apply(rec, course, &ProgressUpdateRequest{SlideCompleted: intPtr(1)})
	require.NotNil(t, rej)
	assert.Equal(t, CodeMinTimeNotMet, rej.Code)
	assert.Contains(t, pen.SlideStartedAt, model.SlideKey(1))
}

func TestCompleteSkippingAheadIsRejected(t *testing.T) {
	clock := newFakeClock()
	guard := NewSlideGuard(clock, testConfig())
	course := testCourse()
	rec := completeSlides(t, guard, clock, course, newRecord(), 1)

	// 棘轮在 1，直接声明完成 3
	pen, rej := guard.Apply(rec, course, &ProgressUpdateRequest{SlideCompleted: intPtr(3)})
	require.NotNil(t, rej)
	assert.Equal(t, CodeSlideSkip, rej.Code)
	assert.True(t, rej.Audited())
	assert.Equal(t, 1, pen.SkipAttempts)
	assert.Equal(t, 1, pen.HighestSlideReached)
}

func TestInvalidSlideNumber(t *testing.T) {
	guard := NewSlideGuard(newFakeClock(), testConfig())
	course := testCourse()
	rec := newRecord()

	for _, slide := range []int{0, -1, 4} {
		work, rej := guard.Apply(rec, course, &ProgressUpdateRequest{SlideCompleted: intPtr(slide)})
		require.NotNil(t, rej, "slide %d", slide)
		assert.Equal(t, CodeInvalidSlide, rej.Code)
		// 非对抗性错误：连跳页计数都不动
		assert.Equal(t, 0, work.SkipAttempts)
	}
}

func TestForgedHighestClaimCheckedFirst(t *testing.T) {
	clock := newFakeClock()
	guard := NewSlideGuard(clock, testConfig())
	course := testCourse()
	rec := completeSlides(t, guard, clock, course, newRecord(), 1)

	// 伪造 highest=3 企图给 slide_completed=3 放行：highest 声明先被拒
	pen, rej := guard.Apply(rec, course, &ProgressUpdateRequest{
		HighestSlideClaim: intPtr(3),
		SlideCompleted:    intPtr(3),
	})
	require.NotNil(t, rej)
	assert.Equal(t, CodeSlideSkip, rej.Code)
	assert.Equal(t, 3, rej.Requested)
	assert.Equal(t, 1, pen.SkipAttempts)
	assert.Equal(t, 1, pen.HighestSlideReached)
	assert.False(t, pen.SlidesCompleted[model.SlideKey(3)])
}

func TestHighestClaimWithinRatchetIsHarmless(t *testing.T) {
	clock := newFakeClock()
	guard := NewSlideGuard(clock, testConfig())
	course := testCourse()
	rec := completeSlides(t, guard, clock, course, newRecord(), 2)

	// 客户端声明的 highest 不会抬高权威棘轮
	work, rej := guard.Apply(rec, course, &ProgressUpdateRequest{HighestSlideClaim: intPtr(1)})
	require.Nil(t, rej)
	assert.Equal(t, 2, work.HighestSlideReached)
}

func TestNegativeTimeDeltaIsInvalidPayload(t *testing.T) {
	guard := NewSlideGuard(newFakeClock(), testConfig())
	work, rej := guard.Apply(newRecord(), testCourse(), &ProgressUpdateRequest{TimeSpentDeltaSeconds: intPtr(-5)})
	require.NotNil(t, rej)
	assert.Equal(t, CodeInvalidPayload, rej.Code)
	assert.Equal(t, 0, work.TotalTimeSpent)
	assert.Equal(t, 0, work.SkipAttempts)
}

func TestTimeDeltaAccumulates(t *testing.T) {
	guard := NewSlideGuard(newFakeClock(), testConfig())
	course := testCourse()

	work, rej := guard.Apply(newRecord(), course, &ProgressUpdateRequest{TimeSpentDeltaSeconds: intPtr(90)})
	require.Nil(t, rej)
	work2, rej := guard.Apply(work, course, &ProgressUpdateRequest{TimeSpentDeltaSeconds: intPtr(30)})
	require.Nil(t, rej)
	assert.Equal(t, 120, work2.TotalTimeSpent)
}

func TestScormPassthrough(t *testing.T) {
	guard := NewSlideGuard(newFakeClock(), testConfig())
	suspend := "opaque-resume-blob"

	work, rej := guard.Apply(newRecord(), testCourse(), &ProgressUpdateRequest{
		ScormData:        map[string]interface{}{"cmi.core.lesson_status": "incomplete"},
		ScormSuspendData: &suspend,
	})
	require.Nil(t, rej)
	assert.Equal(t, "opaque-resume-blob", work.ScormSuspendData)
	assert.Equal(t, "incomplete", work.ScormData["cmi.core.lesson_status"])
}

// 监视整条操作序列上的棘轮性质
func TestRatchetMonotonicityOverSequence(t *testing.T) {
	clock := newFakeClock()
	guard := NewSlideGuard(clock, testConfig())
	course := testCourse()
	rec := newRecord()

	requests := []*ProgressUpdateRequest{
		{CurrentSlide: intPtr(1)},
		{SlideCompleted: intPtr(1)}, // 停留不足，被拒
		{SlideCompleted: intPtr(3)}, // 跳页，被拒
		{CurrentSlide: intPtr(2)},   // 锁定，被拒
	}

	prevHighest, prevSkips := rec.HighestSlideReached, rec.SkipAttempts
	for _, req := range requests {
		next, _ := guard.Apply(rec, course, req)
		assert.GreaterOrEqual(t, next.HighestSlideReached, prevHighest)
		assert.GreaterOrEqual(t, next.SkipAttempts, prevSkips)
		// 单次请求棘轮至多前进一格
		assert.LessOrEqual(t, next.HighestSlideReached-prevHighest, 1)
		prevHighest, prevSkips = next.HighestSlideReached, next.SkipAttempts
		rec = next
		clock.Advance(5 * time.Second)
	}
}

// completeSlides 按规矩完成前 n 张幻灯片
func completeSlides(t *testing.T, guard *SlideGuard, clock *fakeClock, course *model.InteractiveCourse, rec *model.InteractiveProgress, n int) *model.InteractiveProgress {
	t.Helper()
	dwell := time.Duration(guard.MinDwellSeconds(course)) * time.Second
	for slide := 1; slide <= n; slide++ {
		work, rej := guard.Apply(rec, course, &ProgressUpdateRequest{CurrentSlide: intPtr(slide)})
		require.Nil(t, rej)
		clock.Advance(dwell)
		work, rej = guard.Apply(work, course, &ProgressUpdateRequest{SlideCompleted: intPtr(slide)})
		require.Nil(t, rej)
		rec = work
	}
	return rec
}
