package models

import "time"

// Роли пользователей в токене и в таблице users
const (
	RoleCustomer = "customer"
	RoleAdmin    = "admin"
	RoleRider    = "rider"
)

// User — покупатель или администратор магазина
type User struct {
	ID        int64
	Email     string
	PassHash  []byte
	Name      string
	Phone     string
	Role      string
	CreatedAt time.Time
}
