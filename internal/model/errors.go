// Package model はドメインモデルを定義する。
package model

import (
	"fmt"
	"strings"
)

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, meal, user, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeUnauthorized      = "UNAUTHORIZED"
	ErrCodeInvalidRequest    = "INVALID_REQUEST"
	ErrCodeValidationFailed  = "VALIDATION_FAILED"
	ErrCodeInvalidMealID     = "INVALID_MEAL_ID"
	ErrCodeMealNotFound      = "MEAL_NOT_FOUND"
	ErrCodeUserAlreadyExists = "USER_ALREADY_EXISTS"
)

// NewUnauthorizedError は未認証エラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "認証が必要です。",
		Category: "auth",
		Action:   "ユーザー登録を行い、発行されたセッションCookieを送信してください。",
	}
}

// NewInvalidRequestError はリクエストボディ解析失敗エラーを生成する。
func NewInvalidRequestError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRequest,
		Message:  "リクエストボディの解析に失敗しました。",
		Category: "validation",
		Action:   "正しいJSON形式でリクエストしてください。",
	}
}

// NewValidationError はフィールド単位の検証エラーを集約したエラーを生成する。
// messagesには不足・不正フィールドごとのメッセージを渡す。
func NewValidationError(messages []string) *APIError {
	return &APIError{
		Code:     ErrCodeValidationFailed,
		Message:  strings.Join(messages, " "),
		Category: "validation",
		Action:   "不足しているフィールドを補って再度リクエストしてください。",
	}
}

// NewInvalidMealIDError は食事IDの形式不正エラーを生成する。
func NewInvalidMealIDError(mealID string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidMealID,
		Message:  fmt.Sprintf("食事IDの形式が不正です: %s", mealID),
		Category: "validation",
		Action:   "UUID形式の食事IDを指定してください。",
	}
}

// NewMealNotFoundError は食事未検出エラーを生成する。
func NewMealNotFoundError(mealID string) *APIError {
	return &APIError{
		Code:     ErrCodeMealNotFound,
		Message:  fmt.Sprintf("指定された食事が見つかりません: %s", mealID),
		Category: "meal",
		Action:   "食事IDを確認してください。",
	}
}

// NewUserAlreadyExistsError はメールアドレス重複エラーを生成する。
func NewUserAlreadyExistsError(email string) *APIError {
	return &APIError{
		Code:     ErrCodeUserAlreadyExists,
		Message:  fmt.Sprintf("このメールアドレスは既に登録されています: %s", email),
		Category: "user",
		Action:   "別のメールアドレスで登録してください。",
	}
}
