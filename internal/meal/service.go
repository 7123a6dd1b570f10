// Package meal は食事記録のドメインロジックを提供する。
package meal

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/mealtrack/internal/model"
	"github.com/hitoshi/mealtrack/internal/repository"
)

// MealInput は食事の作成・更新で共通の入力を表す。
// 所有者は常にセッションから解決し、入力には含めない。
type MealInput struct {
	Name        string
	Description string
	IsOnDiet    bool
	Date        time.Time
}

// Service は食事記録のサービス層。
// CRUD操作とユーザーごとの集計を提供する。
type Service struct {
	mealRepo repository.MealRepository
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(mealRepo repository.MealRepository) *Service {
	return &Service{
		mealRepo: mealRepo,
	}
}

// CreateMeal はセッションユーザー所有の食事を作成する。
func (s *Service) CreateMeal(ctx context.Context, userID string, input MealInput) (*model.Meal, error) {
	now := time.Now()
	newMeal := &model.Meal{
		ID:          uuid.New().String(),
		UserID:      userID,
		Name:        input.Name,
		Description: input.Description,
		IsOnDiet:    input.IsOnDiet,
		Date:        input.Date,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.mealRepo.Create(ctx, newMeal); err != nil {
		return nil, fmt.Errorf("failed to create meal: %w", err)
	}

	return newMeal, nil
}

// UpdateMeal は食事の4つの可変フィールドを全置換する。
// 存在確認と更新はともにID指定のみで、所有者によるフィルタは行わない（現行のAPI契約。
// 認可モデルの確定はプロダクト判断待ち）。食事が存在しない場合はMEAL_NOT_FOUNDを返す。
func (s *Service) UpdateMeal(ctx context.Context, mealID string, input MealInput) error {
	existing, err := s.mealRepo.FindByID(ctx, mealID)
	if err != nil {
		return fmt.Errorf("failed to find meal: %w", err)
	}
	if existing == nil {
		return model.NewMealNotFoundError(mealID)
	}

	existing.Name = input.Name
	existing.Description = input.Description
	existing.IsOnDiet = input.IsOnDiet
	existing.Date = input.Date

	if err := s.mealRepo.Update(ctx, existing); err != nil {
		return fmt.Errorf("failed to update meal: %w", err)
	}

	return nil
}

// GetMeal は食事を取得する。
// どのユーザーにも存在しない場合はMEAL_NOT_FOUNDを返す。
// 存在するが別ユーザー所有の場合は(nil, nil)を返し、ハンドラーは空ボディの200を返す
// （現行のAPI契約を再現。404/403への統一はプロダクト判断待ち）。
func (s *Service) GetMeal(ctx context.Context, userID, mealID string) (*model.Meal, error) {
	existing, err := s.mealRepo.FindByID(ctx, mealID)
	if err != nil {
		return nil, fmt.Errorf("failed to find meal: %w", err)
	}
	if existing == nil {
		return nil, model.NewMealNotFoundError(mealID)
	}

	owned, err := s.mealRepo.FindByIDAndUser(ctx, mealID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to find meal by owner: %w", err)
	}

	return owned, nil
}

// ListMeals はセッションユーザーの食事一覧をdate降順で返す。
func (s *Service) ListMeals(ctx context.Context, userID string) ([]*model.Meal, error) {
	meals, err := s.mealRepo.ListByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list meals: %w", err)
	}
	return meals, nil
}

// DeleteMeal は食事を削除する。
// どのユーザーにも存在しない場合はMEAL_NOT_FOUNDを返す。
// 存在するが別ユーザー所有の場合、削除行は0件のまま成功として扱う（現行のAPI契約を再現）。
func (s *Service) DeleteMeal(ctx context.Context, userID, mealID string) error {
	existing, err := s.mealRepo.FindByID(ctx, mealID)
	if err != nil {
		return fmt.Errorf("failed to find meal: %w", err)
	}
	if existing == nil {
		return model.NewMealNotFoundError(mealID)
	}

	if err := s.mealRepo.DeleteByIDAndUser(ctx, mealID, userID); err != nil {
		return fmt.Errorf("failed to delete meal: %w", err)
	}

	return nil
}

// Metrics はセッションユーザーの食事集計を返す。
func (s *Service) Metrics(ctx context.Context, userID string) (*model.MealMetrics, error) {
	metrics, err := s.mealRepo.CountMetricsByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to count metrics: %w", err)
	}
	return metrics, nil
}
