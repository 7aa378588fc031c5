package service

import (
	"context"
	"strings"
	"time"

	"alumninet/internal/models"

	"gorm.io/gorm"
)

// MessageStore 是只追加的私信存储。
type MessageStore struct {
	db *gorm.DB
}

func NewMessageStore(db *gorm.DB) *MessageStore {
	return &MessageStore{db: db}
}

// Append 以输入的内容与收发双方生成新记录，由服务端分配 id 与时间戳。
// 存储失败返回 *PersistenceError，调用方据此放弃投递。
func (s *MessageStore) Append(ctx context.Context, in *models.Message) (*models.Message, error) {
	content := strings.TrimSpace(in.Content)
	if content == "" {
		return nil, ErrEmptyContent
	}
	msg := models.Message{
		Content:   content,
		FromID:    in.FromID,
		FromRole:  in.FromRole,
		ToID:      in.ToID,
		ToRole:    in.ToRole,
		CreatedAt: time.Now().UTC().Truncate(time.Microsecond),
	}
	if err := s.db.WithContext(ctx).Create(&msg).Error; err != nil {
		return nil, &PersistenceError{Op: "append message", Err: err}
	}
	return &msg, nil
}

// History 返回两人之间全部消息，按创建时间升序。
func (s *MessageStore) History(ctx context.Context, a, b models.Endpoint) ([]models.Message, error) {
	var msgs []models.Message
	err := pairQuery(s.db.WithContext(ctx), a, b).
		Order("created_at asc").Order("id asc").
		Find(&msgs).Error
	return msgs, err
}

// Recent 返回最近 limit 条消息，仍按升序排列。
func (s *MessageStore) Recent(ctx context.Context, a, b models.Endpoint, limit int) ([]models.Message, error) {
	if limit <= 0 || limit > 500 {
		limit = 200
	}
	var msgs []models.Message
	err := pairQuery(s.db.WithContext(ctx), a, b).
		Order("created_at desc").Order("id desc").
		Limit(limit).
		Find(&msgs).Error
	if err != nil {
		return nil, err
	}
	// 反转为升序
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

func pairQuery(q *gorm.DB, a, b models.Endpoint) *gorm.DB {
	return q.Where(
		"(from_id = ? AND from_role = ? AND to_id = ? AND to_role = ?) OR (from_id = ? AND from_role = ? AND to_id = ? AND to_role = ?)",
		a.ID, a.Role, b.ID, b.Role, b.ID, b.Role, a.ID, a.Role,
	)
}
