package service

import (
	"staff_training_backend/internal/model"
	"staff_training_backend/internal/repository"
	"staff_training_backend/pkg/logger"
	"staff_training_backend/pkg/monitoring"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// AuditSink 跳页尝试审计通道
// 这是安全信号而不是普通校验错误：结构化日志告警 + 指标 + 落库三路都走。
// 尽力而为，审计失败只记日志，绝不让学习请求因此失败。
type AuditSink struct {
	SkipLogRepo *repository.SkipAttemptLogRepository
}

func NewAuditSink(skipLogRepo *repository.SkipAttemptLogRepository) *AuditSink {
	return &AuditSink{SkipLogRepo: skipLogRepo}
}

// RecordSkipAttempt 记录一次被拒绝的越权推进请求
func (s *AuditSink) RecordSkipAttempt(userID, contentItemID uint, kind string, requested, authoritative int) {
	eventID := uuid.New().String()

	logger.Log.Warn("content skip attempt",
		zap.String("event_id", eventID),
		zap.Uint("user_id", userID),
		zap.Uint("content_item_id", contentItemID),
		zap.String("kind", kind),
		zap.Int("requested", requested),
		zap.Int("authoritative", authoritative),
	)

	monitoring.SkipAttemptCounter.WithLabelValues(kind).Inc()

	if s.SkipLogRepo == nil {
		return
	}
	entry := &model.SkipAttemptLog{
		EventID:       eventID,
		UserID:        userID,
		ContentItemID: contentItemID,
		Kind:          kind,
		Requested:     requested,
		Authoritative: authoritative,
	}
	if err := s.SkipLogRepo.Append(entry); err != nil {
		logger.Log.Error("failed to persist skip attempt audit entry", zap.Error(err))
	}
}
