// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"errors"

	"github.com/hitoshi/mealtrack/internal/model"
)

// ErrDuplicateEmail はメールアドレスの一意制約違反を表す。
var ErrDuplicateEmail = errors.New("email already registered")

// UserRepository はユーザーデータの永続化インターフェース。
// ユーザーは作成専用で、更新・削除APIは存在しない。
type UserRepository interface {
	// Create はユーザーを作成する。
	// メールアドレスが既に登録済みの場合はErrDuplicateEmailを返す。
	Create(ctx context.Context, user *model.User) error

	// FindByEmail はメールアドレスでユーザーを検索する。見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.User, error)

	// FindBySessionID はセッショントークンでユーザーを検索する。見つからない場合はnilを返す。
	FindBySessionID(ctx context.Context, sessionID string) (*model.User, error)
}

// MealRepository は食事データの永続化インターフェース。
type MealRepository interface {
	// Create は食事を作成する。
	Create(ctx context.Context, meal *model.Meal) error

	// FindByID は指定IDの食事を所有者を問わず取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Meal, error)

	// FindByIDAndUser は指定IDかつ指定所有者の食事を取得する。見つからない場合はnilを返す。
	FindByIDAndUser(ctx context.Context, id, userID string) (*model.Meal, error)

	// ListByUserID はユーザーの食事一覧をdate降順で返す。
	ListByUserID(ctx context.Context, userID string) ([]*model.Meal, error)

	// Update は食事のname/description/is_on_diet/dateをID指定のみで全置換する。
	// 所有者によるフィルタは行わない（現行のAPI契約）。
	Update(ctx context.Context, meal *model.Meal) error

	// DeleteByIDAndUser は指定IDかつ指定所有者の食事を削除する。
	// 該当行が存在しない場合もエラーにしない（現行のAPI契約）。
	DeleteByIDAndUser(ctx context.Context, id, userID string) error

	// CountMetricsByUserID はユーザーの食事集計（総数・ダイエット内・ダイエット外）を返す。
	CountMetricsByUserID(ctx context.Context, userID string) (*model.MealMetrics, error)
}
