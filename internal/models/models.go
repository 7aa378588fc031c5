package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Account 是两类用户共享的能力集合。
type Account interface {
	Endpoint() Endpoint
	DisplayName() string
	ContactEmail() string
}

type VerificationStatus string

const (
	StatusPending  VerificationStatus = "Pending"
	StatusVerified VerificationStatus = "Verified"
	StatusRejected VerificationStatus = "Rejected"
)

type Student struct {
	ID           string             `gorm:"primaryKey;size:36" json:"id"`
	FullName     string             `gorm:"size:128" json:"fullname"`
	Email        string             `gorm:"uniqueIndex;size:254;not null" json:"email"`
	PasswordHash string             `gorm:"not null" json:"-"`
	Contact      string             `gorm:"size:32" json:"contact,omitempty"`
	Branch       string             `gorm:"size:64" json:"branch,omitempty"`
	Status       VerificationStatus `gorm:"size:16;not null;default:Pending" json:"status"`
	CreatedAt    time.Time          `json:"createdAt"`
	UpdatedAt    time.Time          `json:"updatedAt"`
}

func (s *Student) BeforeCreate(*gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	return nil
}

func (s *Student) Endpoint() Endpoint { return StudentRef(s.ID) }
func (s *Student) DisplayName() string { return s.FullName }
func (s *Student) ContactEmail() string { return s.Email }

type Alumnus struct {
	ID             string    `gorm:"primaryKey;size:36" json:"id"`
	Name           string    `gorm:"size:128;not null" json:"name"`
	Email          string    `gorm:"uniqueIndex;size:254;not null" json:"email"`
	PasswordHash   string    `gorm:"not null" json:"-"`
	GraduationYear int       `json:"graduationYear"`
	Branch         string    `gorm:"size:64" json:"branch"`
	CurrentCompany string    `gorm:"size:128" json:"currentCompany"`
	Designation    string    `gorm:"size:128" json:"designation"`
	Location       string    `gorm:"size:128" json:"location"`
	Bio            string    `gorm:"size:500" json:"bio"`
	LinkedIn       string    `gorm:"size:256" json:"linkedin"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

func (Alumnus) TableName() string { return "alumni" }

func (a *Alumnus) BeforeCreate(*gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	return nil
}

func (a *Alumnus) Endpoint() Endpoint { return AlumnusRef(a.ID) }
func (a *Alumnus) DisplayName() string { return a.Name }
func (a *Alumnus) ContactEmail() string { return a.Email }

// LinkState 描述一对 student/alumnus 之间的关系；没有记录即为未连接。
type LinkState string

const (
	LinkNone      LinkState = "none"
	LinkPending   LinkState = "pending"
	LinkConnected LinkState = "connected"
)

// Link 每对用户仅一行，因此双方视图天然对称，且不会同时处于 pending 与 connected。
type Link struct {
	StudentID string    `gorm:"primaryKey;size:36"`
	AlumnusID string    `gorm:"primaryKey;size:36;index"`
	State     LinkState `gorm:"size:16;not null;index"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Message 创建后不可变，id 为 UUIDv7，可按创建时间排序。
type Message struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	FromID    string    `gorm:"size:36;not null;index:idx_msg_pair,priority:1" json:"from"`
	FromRole  Role      `gorm:"size:16;not null" json:"fromModel"`
	ToID      string    `gorm:"size:36;not null;index:idx_msg_pair,priority:2" json:"to"`
	ToRole    Role      `gorm:"size:16;not null" json:"toModel"`
	CreatedAt time.Time `gorm:"index" json:"createdAt"`
}

func (m *Message) From() Endpoint { return Endpoint{Role: m.FromRole, ID: m.FromID} }

func (m *Message) To() Endpoint { return Endpoint{Role: m.ToRole, ID: m.ToID} }

func (m *Message) BeforeCreate(*gorm.DB) error {
	if m.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return err
		}
		m.ID = id.String()
	}
	return nil
}
