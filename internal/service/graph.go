package service

import (
	"context"
	"errors"
	"time"

	"alumninet/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Action 是校友对邀请的处理方式。
type Action string

const (
	ActionAccept Action = "accept"
	ActionReject Action = "reject"
)

func ParseAction(s string) (Action, error) {
	switch Action(s) {
	case ActionAccept, ActionReject:
		return Action(s), nil
	}
	return "", ErrInvalidAction
}

// Graph 维护学生与校友之间的邀请/连接边。
// 每对用户最多一行 links 记录，双方的连接列表与待处理列表都是它的投影。
type Graph struct {
	db *gorm.DB
}

func NewGraph(db *gorm.DB) *Graph {
	return &Graph{db: db}
}

// IsConnected 是消息投递前唯一的授权判断。
func (g *Graph) IsConnected(ctx context.Context, a, b models.Endpoint) (bool, error) {
	studentID, alumnusID, ok := models.Pair(a, b)
	if !ok {
		return false, nil
	}
	var count int64
	err := g.db.WithContext(ctx).Model(&models.Link{}).
		Where("student_id = ? AND alumnus_id = ? AND state = ?", studentID, alumnusID, models.LinkConnected).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// State 返回一对用户当前所处的状态。
func (g *Graph) State(ctx context.Context, studentID, alumnusID string) (models.LinkState, error) {
	var link models.Link
	err := g.db.WithContext(ctx).
		Where("student_id = ? AND alumnus_id = ?", studentID, alumnusID).
		Take(&link).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.LinkNone, nil
	}
	if err != nil {
		return "", err
	}
	return link.State, nil
}

// Invite 学生向校友发送连接请求；已有待处理请求时不做任何修改。
func (g *Graph) Invite(ctx context.Context, studentID, alumnusID string) error {
	return g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := requireParties(tx, studentID, alumnusID); err != nil {
			return err
		}
		var link models.Link
		err := tx.Where("student_id = ? AND alumnus_id = ?", studentID, alumnusID).Take(&link).Error
		switch {
		case err == nil && link.State == models.LinkConnected:
			return ErrAlreadyConnected
		case err == nil:
			return nil
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return err
		}
		return tx.Clauses(clause.OnConflict{DoNothing: true}).
			Create(&models.Link{StudentID: studentID, AlumnusID: alumnusID, State: models.LinkPending}).Error
	})
}

// RespondToInvitation 在同一事务中移除待处理边，接受时写入连接边。
// 任一方不存在时返回 ErrNotFound 且不做修改；重复调用结果相同，调用方可安全重试。
func (g *Graph) RespondToInvitation(ctx context.Context, alumnusID, studentID string, action Action) error {
	if action != ActionAccept && action != ActionReject {
		return ErrInvalidAction
	}
	return g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := requireParties(tx, studentID, alumnusID); err != nil {
			return err
		}
		if action == ActionReject {
			return tx.Where("student_id = ? AND alumnus_id = ? AND state = ?", studentID, alumnusID, models.LinkPending).
				Delete(&models.Link{}).Error
		}
		now := time.Now().UTC()
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "student_id"}, {Name: "alumnus_id"}},
			DoUpdates: clause.Assignments(map[string]interface{}{"state": models.LinkConnected, "updated_at": now}),
		}).Create(&models.Link{StudentID: studentID, AlumnusID: alumnusID, State: models.LinkConnected}).Error
	})
}

func requireParties(tx *gorm.DB, studentID, alumnusID string) error {
	var n int64
	if err := tx.Model(&models.Student{}).Where("id = ?", studentID).Count(&n).Error; err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	if err := tx.Model(&models.Alumnus{}).Where("id = ?", alumnusID).Count(&n).Error; err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Connections 返回与 ep 互相连接的对端，用于初始化聊天视图。
func (g *Graph) Connections(ctx context.Context, ep models.Endpoint) ([]models.Endpoint, error) {
	return g.neighbours(ctx, ep, models.LinkConnected)
}

// Pending 对校友返回收到的邀请，对学生返回已发出的请求。
func (g *Graph) Pending(ctx context.Context, ep models.Endpoint) ([]models.Endpoint, error) {
	return g.neighbours(ctx, ep, models.LinkPending)
}

func (g *Graph) neighbours(ctx context.Context, ep models.Endpoint, state models.LinkState) ([]models.Endpoint, error) {
	var (
		self, other string
		ref         func(string) models.Endpoint
	)
	switch ep.Role {
	case models.RoleStudent:
		self, other, ref = "student_id", "alumnus_id", models.AlumnusRef
	case models.RoleAlumnus:
		self, other, ref = "alumnus_id", "student_id", models.StudentRef
	default:
		return nil, ErrNotFound
	}
	var ids []string
	err := g.db.WithContext(ctx).Model(&models.Link{}).
		Where(self+" = ? AND state = ?", ep.ID, state).
		Order("updated_at asc").
		Pluck(other, &ids).Error
	if err != nil {
		return nil, err
	}
	out := make([]models.Endpoint, 0, len(ids))
	for _, id := range ids {
		out = append(out, ref(id))
	}
	return out, nil
}
