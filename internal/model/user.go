// Package model はドメインモデルを定義する。
package model

import "time"

// User はサービス利用ユーザーを表す。
// SessionIDはCookie経由でクライアントと紐付く不透明トークン。
type User struct {
	ID        string
	Name      string
	Email     string
	SessionID string
	CreatedAt time.Time
	UpdatedAt time.Time
}
