package model

import (
	"time"
)

type UserRole string

const (
	Student UserRole = "student"
	Teacher UserRole = "teacher"
	Admin   UserRole = "admin"
)

// swagger:model User
type User struct {
	BaseModel
	Name         string    `gorm:"size:100;not null" json:"Name"`
	Email        string    `gorm:"size:100;unique;not null" json:"Email"`
	Password     string    `gorm:"size:100;not null" json:"-"`
	Role         UserRole  `gorm:"type:enum('student','teacher','admin');default:'student'" json:"Role"`
	Department   string    `gorm:"size:100" json:"Department"`  // 学生所属院系，用于考试资格校验
	EnrollmentID string    `gorm:"size:50" json:"EnrollmentID"` // 学号
	Avatar       string    `gorm:"size:255" json:"avatar"`
	Disabled     bool      `gorm:"default:false" json:"Disabled"`
	LastLogin    time.Time `gorm:"default:CURRENT_TIMESTAMP(3)" json:"LastLogin"`
}

func (User) TableName() string {
	return "users"
}
