package meal

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/mealtrack/internal/model"
	"github.com/hitoshi/mealtrack/internal/repository"
)

// --- テスト用モック ---

// mockMealRepo はMealRepositoryのモック実装。
type mockMealRepo struct {
	createFn               func(ctx context.Context, meal *model.Meal) error
	findByIDFn             func(ctx context.Context, id string) (*model.Meal, error)
	findByIDAndUserFn      func(ctx context.Context, id, userID string) (*model.Meal, error)
	listByUserIDFn         func(ctx context.Context, userID string) ([]*model.Meal, error)
	updateFn               func(ctx context.Context, meal *model.Meal) error
	deleteByIDAndUserFn    func(ctx context.Context, id, userID string) error
	countMetricsByUserIDFn func(ctx context.Context, userID string) (*model.MealMetrics, error)
}

func (m *mockMealRepo) Create(ctx context.Context, meal *model.Meal) error {
	if m.createFn != nil {
		return m.createFn(ctx, meal)
	}
	return nil
}

func (m *mockMealRepo) FindByID(ctx context.Context, id string) (*model.Meal, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return nil, nil
}

func (m *mockMealRepo) FindByIDAndUser(ctx context.Context, id, userID string) (*model.Meal, error) {
	if m.findByIDAndUserFn != nil {
		return m.findByIDAndUserFn(ctx, id, userID)
	}
	return nil, nil
}

func (m *mockMealRepo) ListByUserID(ctx context.Context, userID string) ([]*model.Meal, error) {
	if m.listByUserIDFn != nil {
		return m.listByUserIDFn(ctx, userID)
	}
	return []*model.Meal{}, nil
}

func (m *mockMealRepo) Update(ctx context.Context, meal *model.Meal) error {
	if m.updateFn != nil {
		return m.updateFn(ctx, meal)
	}
	return nil
}

func (m *mockMealRepo) DeleteByIDAndUser(ctx context.Context, id, userID string) error {
	if m.deleteByIDAndUserFn != nil {
		return m.deleteByIDAndUserFn(ctx, id, userID)
	}
	return nil
}

func (m *mockMealRepo) CountMetricsByUserID(ctx context.Context, userID string) (*model.MealMetrics, error) {
	if m.countMetricsByUserIDFn != nil {
		return m.countMetricsByUserIDFn(ctx, userID)
	}
	return &model.MealMetrics{}, nil
}

var _ repository.MealRepository = (*mockMealRepo)(nil)

func testInput() MealInput {
	return MealInput{
		Name:        "サラダ",
		Description: "昼のサラダ",
		IsOnDiet:    true,
		Date:        time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC),
	}
}

func assertMealNotFound(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %T", err)
	}
	if apiErr.Code != model.ErrCodeMealNotFound {
		t.Errorf("error code = %q, want %q", apiErr.Code, model.ErrCodeMealNotFound)
	}
}

// --- CreateMeal テスト ---

func TestCreateMeal_SetsOwnerAndTimestamps(t *testing.T) {
	var created *model.Meal
	repo := &mockMealRepo{
		createFn: func(ctx context.Context, meal *model.Meal) error {
			created = meal
			return nil
		},
	}

	svc := NewService(repo)

	result, err := svc.CreateMeal(context.Background(), "user-123", testInput())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if created == nil {
		t.Fatal("expected Create to be called")
	}
	if created.UserID != "user-123" {
		t.Errorf("created.UserID = %q, want %q", created.UserID, "user-123")
	}
	if created.Name != "サラダ" {
		t.Errorf("created.Name = %q, want %q", created.Name, "サラダ")
	}
	if !created.IsOnDiet {
		t.Error("created.IsOnDiet should be true")
	}
	if _, err := uuid.Parse(created.ID); err != nil {
		t.Errorf("meal ID should be a UUID, got %q", created.ID)
	}
	if created.CreatedAt.IsZero() || created.UpdatedAt.IsZero() {
		t.Error("expected timestamps to be set")
	}
	if result.ID != created.ID {
		t.Errorf("result.ID = %q, want %q", result.ID, created.ID)
	}
}

func TestCreateMeal_RepoError_ReturnsError(t *testing.T) {
	repo := &mockMealRepo{
		createFn: func(ctx context.Context, meal *model.Meal) error {
			return errors.New("insert failed")
		},
	}

	svc := NewService(repo)

	_, err := svc.CreateMeal(context.Background(), "user-123", testInput())
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}

// --- UpdateMeal テスト ---

// TestUpdateMeal_ReplacesMutableFields は4つの可変フィールドが
// 全置換されることをテストする。
func TestUpdateMeal_ReplacesMutableFields(t *testing.T) {
	existing := &model.Meal{
		ID:          "meal-1",
		UserID:      "owner-1",
		Name:        "旧名",
		Description: "旧説明",
		IsOnDiet:    false,
		Date:        time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}

	var updated *model.Meal
	repo := &mockMealRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.Meal, error) {
			if id != "meal-1" {
				t.Errorf("FindByID id = %q, want %q", id, "meal-1")
			}
			return existing, nil
		},
		updateFn: func(ctx context.Context, meal *model.Meal) error {
			updated = meal
			return nil
		},
	}

	svc := NewService(repo)

	input := testInput()
	if err := svc.UpdateMeal(context.Background(), "meal-1", input); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if updated == nil {
		t.Fatal("expected Update to be called")
	}
	if updated.Name != input.Name {
		t.Errorf("updated.Name = %q, want %q", updated.Name, input.Name)
	}
	if updated.Description != input.Description {
		t.Errorf("updated.Description = %q, want %q", updated.Description, input.Description)
	}
	if updated.IsOnDiet != input.IsOnDiet {
		t.Errorf("updated.IsOnDiet = %v, want %v", updated.IsOnDiet, input.IsOnDiet)
	}
	if !updated.Date.Equal(input.Date) {
		t.Errorf("updated.Date = %v, want %v", updated.Date, input.Date)
	}
	// 所有者は変更されない
	if updated.UserID != "owner-1" {
		t.Errorf("updated.UserID = %q, want %q", updated.UserID, "owner-1")
	}
}

func TestUpdateMeal_NotFound_ReturnsMealNotFound(t *testing.T) {
	repo := &mockMealRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.Meal, error) {
			return nil, nil
		},
	}

	svc := NewService(repo)

	err := svc.UpdateMeal(context.Background(), "missing-meal", testInput())
	assertMealNotFound(t, err)
}

// TestUpdateMeal_OtherOwner_StillUpdates は別ユーザー所有の食事も
// ID指定のみで更新されることをテストする（現行のAPI契約）。
func TestUpdateMeal_OtherOwner_StillUpdates(t *testing.T) {
	updateCalled := false
	repo := &mockMealRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.Meal, error) {
			return &model.Meal{ID: id, UserID: "other-owner"}, nil
		},
		updateFn: func(ctx context.Context, meal *model.Meal) error {
			updateCalled = true
			return nil
		},
	}

	svc := NewService(repo)

	if err := svc.UpdateMeal(context.Background(), "meal-1", testInput()); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !updateCalled {
		t.Error("expected Update to be called regardless of owner")
	}
}

// --- GetMeal テスト ---

func TestGetMeal_OwnedMeal_ReturnsMeal(t *testing.T) {
	owned := &model.Meal{ID: "meal-1", UserID: "user-123", Name: "サラダ"}
	repo := &mockMealRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.Meal, error) {
			return owned, nil
		},
		findByIDAndUserFn: func(ctx context.Context, id, userID string) (*model.Meal, error) {
			if userID != "user-123" {
				t.Errorf("userID = %q, want %q", userID, "user-123")
			}
			return owned, nil
		},
	}

	svc := NewService(repo)

	result, err := svc.GetMeal(context.Background(), "user-123", "meal-1")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if result == nil {
		t.Fatal("expected non-nil meal")
	}
	if result.ID != "meal-1" {
		t.Errorf("result.ID = %q, want %q", result.ID, "meal-1")
	}
}

func TestGetMeal_NotFound_ReturnsMealNotFound(t *testing.T) {
	repo := &mockMealRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.Meal, error) {
			return nil, nil
		},
	}

	svc := NewService(repo)

	_, err := svc.GetMeal(context.Background(), "user-123", "missing-meal")
	assertMealNotFound(t, err)
}

// TestGetMeal_OtherOwner_ReturnsNilWithoutError は存在するが別ユーザー所有の
// 食事は(nil, nil)が返ることをテストする（現行のAPI契約）。
func TestGetMeal_OtherOwner_ReturnsNilWithoutError(t *testing.T) {
	repo := &mockMealRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.Meal, error) {
			return &model.Meal{ID: id, UserID: "other-owner"}, nil
		},
		findByIDAndUserFn: func(ctx context.Context, id, userID string) (*model.Meal, error) {
			return nil, nil // 所有者スコープでは見つからない
		},
	}

	svc := NewService(repo)

	result, err := svc.GetMeal(context.Background(), "user-123", "meal-1")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if result != nil {
		t.Errorf("expected nil meal for other owner, got %+v", result)
	}
}

// --- ListMeals テスト ---

func TestListMeals_ReturnsUserMeals(t *testing.T) {
	repo := &mockMealRepo{
		listByUserIDFn: func(ctx context.Context, userID string) ([]*model.Meal, error) {
			if userID != "user-123" {
				t.Errorf("userID = %q, want %q", userID, "user-123")
			}
			return []*model.Meal{
				{ID: "meal-2", UserID: userID},
				{ID: "meal-1", UserID: userID},
			}, nil
		},
	}

	svc := NewService(repo)

	meals, err := svc.ListMeals(context.Background(), "user-123")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(meals) != 2 {
		t.Fatalf("len(meals) = %d, want 2", len(meals))
	}
}

func TestListMeals_Empty_ReturnsEmptySlice(t *testing.T) {
	svc := NewService(&mockMealRepo{})

	meals, err := svc.ListMeals(context.Background(), "user-123")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if meals == nil {
		t.Error("expected empty slice, got nil")
	}
	if len(meals) != 0 {
		t.Errorf("len(meals) = %d, want 0", len(meals))
	}
}

// --- DeleteMeal テスト ---

func TestDeleteMeal_OwnedMeal_Deletes(t *testing.T) {
	deleteCalled := false
	repo := &mockMealRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.Meal, error) {
			return &model.Meal{ID: id, UserID: "user-123"}, nil
		},
		deleteByIDAndUserFn: func(ctx context.Context, id, userID string) error {
			deleteCalled = true
			if id != "meal-1" {
				t.Errorf("id = %q, want %q", id, "meal-1")
			}
			if userID != "user-123" {
				t.Errorf("userID = %q, want %q", userID, "user-123")
			}
			return nil
		},
	}

	svc := NewService(repo)

	if err := svc.DeleteMeal(context.Background(), "user-123", "meal-1"); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !deleteCalled {
		t.Error("expected DeleteByIDAndUser to be called")
	}
}

func TestDeleteMeal_NotFound_ReturnsMealNotFound(t *testing.T) {
	repo := &mockMealRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.Meal, error) {
			return nil, nil
		},
	}

	svc := NewService(repo)

	err := svc.DeleteMeal(context.Background(), "user-123", "missing-meal")
	assertMealNotFound(t, err)
}

// TestDeleteMeal_OtherOwner_SucceedsWithoutDeleting は別ユーザー所有の食事への
// 削除リクエストが、削除0件のまま成功として扱われることをテストする（現行のAPI契約）。
func TestDeleteMeal_OtherOwner_SucceedsWithoutDeleting(t *testing.T) {
	repo := &mockMealRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.Meal, error) {
			return &model.Meal{ID: id, UserID: "other-owner"}, nil
		},
		deleteByIDAndUserFn: func(ctx context.Context, id, userID string) error {
			// 所有者スコープのDELETEは0行に終わるがエラーにならない
			return nil
		},
	}

	svc := NewService(repo)

	if err := svc.DeleteMeal(context.Background(), "user-123", "meal-1"); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
}

// --- Metrics テスト ---

func TestMetrics_ReturnsCounts(t *testing.T) {
	repo := &mockMealRepo{
		countMetricsByUserIDFn: func(ctx context.Context, userID string) (*model.MealMetrics, error) {
			if userID != "user-123" {
				t.Errorf("userID = %q, want %q", userID, "user-123")
			}
			return &model.MealMetrics{TotalMeals: 5, OnDietMeals: 3, OutOfDietMeals: 2}, nil
		},
	}

	svc := NewService(repo)

	m, err := svc.Metrics(context.Background(), "user-123")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if m.TotalMeals != 5 {
		t.Errorf("TotalMeals = %d, want 5", m.TotalMeals)
	}
	if m.OnDietMeals != 3 {
		t.Errorf("OnDietMeals = %d, want 3", m.OnDietMeals)
	}
	if m.OutOfDietMeals != 2 {
		t.Errorf("OutOfDietMeals = %d, want 2", m.OutOfDietMeals)
	}
}

func TestMetrics_RepoError_ReturnsError(t *testing.T) {
	repo := &mockMealRepo{
		countMetricsByUserIDFn: func(ctx context.Context, userID string) (*model.MealMetrics, error) {
			return nil, errors.New("query failed")
		},
	}

	svc := NewService(repo)

	_, err := svc.Metrics(context.Background(), "user-123")
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}
