package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/hitoshi/mealtrack/internal/model"
)

// pgInvalidTextRep はPostgreSQLのテキスト表現不正エラーコード。
// UUID列への不正な文字列比較で発生する。
const pgInvalidTextRep = "22P02"

// isInvalidUUIDInput はUUID列へのキャスト失敗によるエラーかを判定する。
// パスパラメータのIDはUUID形式を強制しないため、不正な形式のIDは
// エラーではなく「該当行なし」として扱う必要がある。
func isInvalidUUIDInput(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == pgInvalidTextRep
}

// PostgresMealRepo はPostgreSQLを使用した食事リポジトリ。
type PostgresMealRepo struct {
	db *sql.DB
}

// NewPostgresMealRepo はPostgresMealRepoを生成する。
func NewPostgresMealRepo(db *sql.DB) *PostgresMealRepo {
	return &PostgresMealRepo{db: db}
}

const mealColumns = `id, user_id, name, description, is_on_diet, date, created_at, updated_at`

// scanMeal は1行分の食事レコードをスキャンする。
func scanMeal(row *sql.Row) (*model.Meal, error) {
	meal := &model.Meal{}
	err := row.Scan(
		&meal.ID, &meal.UserID, &meal.Name, &meal.Description,
		&meal.IsOnDiet, &meal.Date, &meal.CreatedAt, &meal.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return meal, nil
}

// Create は食事を作成する。
func (r *PostgresMealRepo) Create(ctx context.Context, meal *model.Meal) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO meals (id, user_id, name, description, is_on_diet, date, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		meal.ID, meal.UserID, meal.Name, meal.Description,
		meal.IsOnDiet, meal.Date, meal.CreatedAt, meal.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert meal: %w", err)
	}
	return nil
}

// FindByID は指定IDの食事を所有者を問わず取得する。見つからない場合はnilを返す。
// UUID形式でないIDはid列へのキャストに失敗するため、該当行なしとして扱う。
func (r *PostgresMealRepo) FindByID(ctx context.Context, id string) (*model.Meal, error) {
	meal, err := scanMeal(r.db.QueryRowContext(ctx,
		`SELECT `+mealColumns+` FROM meals WHERE id = $1`,
		id,
	))
	if err != nil {
		if isInvalidUUIDInput(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find meal by ID: %w", err)
	}
	return meal, nil
}

// FindByIDAndUser は指定IDかつ指定所有者の食事を取得する。見つからない場合はnilを返す。
// UUID形式でないIDは該当行なしとして扱う。
func (r *PostgresMealRepo) FindByIDAndUser(ctx context.Context, id, userID string) (*model.Meal, error) {
	meal, err := scanMeal(r.db.QueryRowContext(ctx,
		`SELECT `+mealColumns+` FROM meals WHERE id = $1 AND user_id = $2`,
		id, userID,
	))
	if err != nil {
		if isInvalidUUIDInput(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find meal by ID and user: %w", err)
	}
	return meal, nil
}

// ListByUserID はユーザーの食事一覧をdate降順で返す。
func (r *PostgresMealRepo) ListByUserID(ctx context.Context, userID string) ([]*model.Meal, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+mealColumns+` FROM meals WHERE user_id = $1 ORDER BY date DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list meals: %w", err)
	}
	defer rows.Close()

	meals := []*model.Meal{}
	for rows.Next() {
		meal := &model.Meal{}
		if err := rows.Scan(
			&meal.ID, &meal.UserID, &meal.Name, &meal.Description,
			&meal.IsOnDiet, &meal.Date, &meal.CreatedAt, &meal.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan meal: %w", err)
		}
		meals = append(meals, meal)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate meals: %w", err)
	}

	return meals, nil
}

// Update は食事のname/description/is_on_diet/dateをID指定のみで全置換する。
// 所有者によるフィルタは行わない（現行のAPI契約）。
func (r *PostgresMealRepo) Update(ctx context.Context, meal *model.Meal) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE meals
		 SET name = $2, description = $3, is_on_diet = $4, date = $5, updated_at = now()
		 WHERE id = $1`,
		meal.ID, meal.Name, meal.Description, meal.IsOnDiet, meal.Date,
	)
	if err != nil {
		return fmt.Errorf("failed to update meal: %w", err)
	}
	return nil
}

// DeleteByIDAndUser は指定IDかつ指定所有者の食事を削除する。
// 該当行が存在しない場合もエラーにしない（現行のAPI契約）。
// UUID形式でないIDも削除0件の成功として扱う。
func (r *PostgresMealRepo) DeleteByIDAndUser(ctx context.Context, id, userID string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM meals WHERE id = $1 AND user_id = $2`,
		id, userID,
	)
	if err != nil {
		if isInvalidUUIDInput(err) {
			return nil
		}
		return fmt.Errorf("failed to delete meal: %w", err)
	}
	return nil
}

// CountMetricsByUserID はユーザーの食事集計を1クエリで返す。
func (r *PostgresMealRepo) CountMetricsByUserID(ctx context.Context, userID string) (*model.MealMetrics, error) {
	metrics := &model.MealMetrics{}
	err := r.db.QueryRowContext(ctx,
		`SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE is_on_diet),
			COUNT(*) FILTER (WHERE NOT is_on_diet)
		 FROM meals WHERE user_id = $1`,
		userID,
	).Scan(&metrics.TotalMeals, &metrics.OnDietMeals, &metrics.OutOfDietMeals)
	if err != nil {
		return nil, fmt.Errorf("failed to count meal metrics: %w", err)
	}

	return metrics, nil
}

// compile-time interface check
var _ MealRepository = (*PostgresMealRepo)(nil)
