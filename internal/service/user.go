package service

import (
	"context"
	"errors"
	"strings"

	"alumninet/internal/auth"
	"alumninet/internal/config"
	"alumninet/internal/models"

	"gorm.io/gorm"
)

// UserService 封装两类用户的注册、登录与身份查找。
type UserService struct {
	db  *gorm.DB
	cfg config.Config
}

func NewUserService(db *gorm.DB, cfg config.Config) *UserService {
	return &UserService{db: db, cfg: cfg}
}

func normalizeEmail(email string) string { return strings.ToLower(strings.TrimSpace(email)) }

type StudentInput struct {
	FullName string `json:"fullname"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Contact  string `json:"contact"`
	Branch   string `json:"branch"`
}

type AlumnusInput struct {
	Name           string `json:"name"`
	Email          string `json:"email"`
	Password       string `json:"password"`
	GraduationYear int    `json:"graduationYear"`
	Branch         string `json:"branch"`
	CurrentCompany string `json:"currentCompany"`
	Designation    string `json:"designation"`
	Location       string `json:"location"`
}

// RegisterStudent 注册学生账号，同一集合内邮箱唯一。
func (s *UserService) RegisterStudent(ctx context.Context, in StudentInput) (*models.Student, error) {
	email := normalizeEmail(in.Email)
	if err := s.ensureEmailFree(ctx, &models.Student{}, email); err != nil {
		return nil, err
	}
	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}
	st := models.Student{
		FullName:     strings.TrimSpace(in.FullName),
		Email:        email,
		PasswordHash: hash,
		Contact:      in.Contact,
		Branch:       in.Branch,
		Status:       models.StatusPending,
	}
	if err := s.db.WithContext(ctx).Create(&st).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrEmailTaken
		}
		return nil, err
	}
	return &st, nil
}

// RegisterAlumnus 注册校友账号。
func (s *UserService) RegisterAlumnus(ctx context.Context, in AlumnusInput) (*models.Alumnus, error) {
	email := normalizeEmail(in.Email)
	if err := s.ensureEmailFree(ctx, &models.Alumnus{}, email); err != nil {
		return nil, err
	}
	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}
	al := models.Alumnus{
		Name:           strings.TrimSpace(in.Name),
		Email:          email,
		PasswordHash:   hash,
		GraduationYear: in.GraduationYear,
		Branch:         in.Branch,
		CurrentCompany: in.CurrentCompany,
		Designation:    in.Designation,
		Location:       in.Location,
	}
	if err := s.db.WithContext(ctx).Create(&al).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrEmailTaken
		}
		return nil, err
	}
	return &al, nil
}

func (s *UserService) ensureEmailFree(ctx context.Context, model interface{}, email string) error {
	var count int64
	if err := s.db.WithContext(ctx).Model(model).Where("email = ?", email).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return ErrEmailTaken
	}
	return nil
}

// LoginResult 登录成功后返回的数据。
type LoginResult struct {
	AccessToken string         `json:"access_token"`
	Account     models.Account `json:"-"`
}

// Login 校验邮箱密码并签发 token；未指定角色时依次查找校友与学生。
func (s *UserService) Login(ctx context.Context, email, password string, role models.Role) (*LoginResult, error) {
	roles := []models.Role{models.RoleAlumnus, models.RoleStudent}
	if role != "" {
		roles = []models.Role{role}
	}
	var acct models.Account
	for _, r := range roles {
		a, err := s.LookupAccount(ctx, email, r)
		if err != nil {
			return nil, err
		}
		if a != nil {
			acct = a
			break
		}
	}
	if acct == nil || !auth.VerifyPassword(passwordHash(acct), password) {
		return nil, ErrInvalidCredentials
	}
	at, err := auth.GenerateAccessToken(acct, s.cfg.JWTSecret, s.cfg.AccessTokenTTLMinutes)
	if err != nil {
		return nil, err
	}
	return &LoginResult{AccessToken: at, Account: acct}, nil
}

func passwordHash(acct models.Account) string {
	switch a := acct.(type) {
	case *models.Student:
		return a.PasswordHash
	case *models.Alumnus:
		return a.PasswordHash
	}
	return ""
}

// LookupAccount 按角色到对应集合中查找邮箱，找不到时返回 nil, nil。
func (s *UserService) LookupAccount(ctx context.Context, email string, role models.Role) (models.Account, error) {
	email = normalizeEmail(email)
	switch role {
	case models.RoleStudent:
		var st models.Student
		if err := s.db.WithContext(ctx).Where("email = ?", email).First(&st).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, nil
			}
			return nil, err
		}
		return &st, nil
	case models.RoleAlumnus:
		var al models.Alumnus
		if err := s.db.WithContext(ctx).Where("email = ?", email).First(&al).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, nil
			}
			return nil, err
		}
		return &al, nil
	}
	return nil, nil
}

// Get 按 Endpoint 读取账号，不存在返回 ErrNotFound。
func (s *UserService) Get(ctx context.Context, ep models.Endpoint) (models.Account, error) {
	var (
		acct models.Account
		err  error
	)
	switch ep.Role {
	case models.RoleStudent:
		var st models.Student
		err = s.db.WithContext(ctx).First(&st, "id = ?", ep.ID).Error
		acct = &st
	case models.RoleAlumnus:
		var al models.Alumnus
		err = s.db.WithContext(ctx).First(&al, "id = ?", ep.ID).Error
		acct = &al
	default:
		return nil, ErrNotFound
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return acct, nil
}
