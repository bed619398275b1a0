package models

import "time"

// AdminSession: токен администратора и момент его истечения
type AdminSession struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Expired сообщает, истекла ли сессия к моменту now.
func (s AdminSession) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}
