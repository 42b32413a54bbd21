package store

import (
	"context"
	"errors"
	"time"

	"Symposium/internal/models"
	"Symposium/pkg/apperr"
	"gorm.io/gorm"
)

// Store 持有聊天域所有存储操作共享的数据库句柄。
type Store struct {
	DB *gorm.DB
}

// NewStore 创建一个新的 Store 实例。
func NewStore(db *gorm.DB) *Store {
	return &Store{DB: db}
}

// CreateSession 在一个事务中创建会话、参与者关联与初始消息。
// 任一步失败时整体回滚，不留下部分写入。
func (s *Store) CreateSession(ctx context.Context, session *models.ChatSession, participants []*models.Agent, initial []models.ChatMessage) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(session).Error; err != nil {
			return apperr.Wrap(apperr.KindInternal, "failed to create session", err)
		}
		if len(participants) > 0 {
			if err := tx.Model(session).Association("Participants").Append(participants); err != nil {
				return apperr.Wrap(apperr.KindInternal, "failed to attach participants", err)
			}
		}
		for i := range initial {
			initial[i].SessionID = session.ID
		}
		if len(initial) > 0 {
			if err := tx.Create(&initial).Error; err != nil {
				return apperr.Wrap(apperr.KindInternal, "failed to write initial messages", err)
			}
		}
		return nil
	})
}

// GetSession 通过 ID 查找会话，预加载参与者。
func (s *Store) GetSession(ctx context.Context, id uint) (*models.ChatSession, error) {
	var session models.ChatSession
	if err := s.DB.WithContext(ctx).Preload("Participants").First(&session, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.Newf(apperr.KindNotFound, "session %d not found", id)
		}
		return nil, apperr.Wrap(apperr.KindInternal, "failed to load session", err)
	}
	return &session, nil
}

// ListSessionsByStatus 返回指定状态的全部会话，预加载参与者。
func (s *Store) ListSessionsByStatus(ctx context.Context, status models.SessionStatus) ([]models.ChatSession, error) {
	var sessions []models.ChatSession
	if err := s.DB.WithContext(ctx).Preload("Participants").
		Where("status = ?", status).Order("id").Find(&sessions).Error; err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "failed to list sessions", err)
	}
	return sessions, nil
}

// CompleteSession 将会话从 active 迁移为 completed 并记录完成时间。
// 迁移是单向的：会话已经完成时返回 state_conflict。
func (s *Store) CompleteSession(ctx context.Context, id uint) error {
	now := time.Now()
	result := s.DB.WithContext(ctx).Model(&models.ChatSession{}).
		Where("id = ? AND status = ?", id, models.SessionActive).
		Updates(map[string]any{
			"status":       models.SessionCompleted,
			"completed_at": &now,
		})
	if result.Error != nil {
		return apperr.Wrap(apperr.KindInternal, "failed to complete session", result.Error)
	}
	if result.RowsAffected == 0 {
		var session models.ChatSession
		if err := s.DB.WithContext(ctx).First(&session, id).Error; err != nil {
			return apperr.Newf(apperr.KindNotFound, "session %d not found", id)
		}
		return apperr.Newf(apperr.KindStateConflict, "session %d is already completed", id)
	}
	return nil
}

// AppendMessage 追加一条消息。
func (s *Store) AppendMessage(ctx context.Context, message *models.ChatMessage) error {
	if err := s.DB.WithContext(ctx).Create(message).Error; err != nil {
		return apperr.Wrap(apperr.KindInternal, "failed to append message", err)
	}
	return nil
}

// AppendMessages 在一个事务中按给定顺序追加一批消息。
// 崩溃或失败只会留下此前已提交的状态，不会留下半条消息。
func (s *Store) AppendMessages(ctx context.Context, messages []*models.ChatMessage) error {
	if len(messages) == 0 {
		return nil
	}
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, message := range messages {
			if err := tx.Create(message).Error; err != nil {
				return apperr.Wrap(apperr.KindInternal, "failed to append messages", err)
			}
		}
		return nil
	})
}

// History 返回会话消息，按创建时间降序，limit 大于零时截断。
// 会话不存在或没有任何消息时返回 not_found。
func (s *Store) History(ctx context.Context, sessionID uint, limit int) ([]models.ChatMessage, error) {
	query := s.DB.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("created_at DESC").Order("id DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	var messages []models.ChatMessage
	if err := query.Find(&messages).Error; err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "failed to load history", err)
	}
	if len(messages) == 0 {
		return nil, apperr.Newf(apperr.KindNotFound, "session %d has no messages", sessionID)
	}
	return messages, nil
}

// AddParticipant 将一个 agent 加入会话。
func (s *Store) AddParticipant(ctx context.Context, session *models.ChatSession, agent *models.Agent) error {
	if err := s.DB.WithContext(ctx).Model(session).Association("Participants").Append(agent); err != nil {
		return apperr.Wrap(apperr.KindInternal, "failed to add participant", err)
	}
	return nil
}

// RemoveParticipant 将一个 agent 移出会话。
func (s *Store) RemoveParticipant(ctx context.Context, session *models.ChatSession, agent *models.Agent) error {
	if err := s.DB.WithContext(ctx).Model(session).Association("Participants").Delete(agent); err != nil {
		return apperr.Wrap(apperr.KindInternal, "failed to remove participant", err)
	}
	return nil
}

// GetAgent 通过 ID 查找 agent 记录，供编排器解析参与者。
func (s *Store) GetAgent(ctx context.Context, id uint) (*models.Agent, error) {
	var agent models.Agent
	if err := s.DB.WithContext(ctx).First(&agent, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.Newf(apperr.KindNotFound, "agent %d not found", id)
		}
		return nil, apperr.Wrap(apperr.KindInternal, "failed to load agent", err)
	}
	return &agent, nil
}
