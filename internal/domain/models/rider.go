package models

import "time"

// Rider — курьер; хранится отдельно от покупателей, токен несет роль rider
type Rider struct {
	ID        int64     `json:"id"`
	Email     string    `json:"email"`
	PassHash  []byte    `json:"-"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone"`
	Vehicle   string    `json:"vehicle"`
	CreatedAt time.Time `json:"created_at"`
}
