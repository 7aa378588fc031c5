package models

import (
	"fmt"
	"strings"
)

// Role 区分两类用户集合。线上协议沿用 "student" / "alumni"。
type Role string

const (
	RoleStudent Role = "student"
	RoleAlumnus Role = "alumni"
)

// ParseRole 接受协议值以及 "alumnus" 别名，其余一律视为非法。
func ParseRole(s string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "student":
		return RoleStudent, nil
	case "alumni", "alumnus":
		return RoleAlumnus, nil
	}
	return "", fmt.Errorf("invalid role %q", s)
}

func (r Role) Valid() bool { return r == RoleStudent || r == RoleAlumnus }

// Endpoint 是带角色标签的用户引用：Student(id) 或 Alumnus(id)。
type Endpoint struct {
	Role Role   `json:"role"`
	ID   string `json:"id"`
}

func StudentRef(id string) Endpoint { return Endpoint{Role: RoleStudent, ID: id} }

func AlumnusRef(id string) Endpoint { return Endpoint{Role: RoleAlumnus, ID: id} }

func (e Endpoint) IsZero() bool { return e.ID == "" }

func (e Endpoint) String() string { return string(e.Role) + ":" + e.ID }

// Pair 将一对端点规整为 (student, alumnus)，同角色或非法角色返回 false。
func Pair(a, b Endpoint) (student, alumnus string, ok bool) {
	switch {
	case a.Role == RoleStudent && b.Role == RoleAlumnus:
		return a.ID, b.ID, a.ID != "" && b.ID != ""
	case a.Role == RoleAlumnus && b.Role == RoleStudent:
		return b.ID, a.ID, a.ID != "" && b.ID != ""
	}
	return "", "", false
}
