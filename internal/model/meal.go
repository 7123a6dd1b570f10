// Package model はドメインモデルを定義する。
package model

import "time"

// Meal はユーザーが記録した食事を表す。
// Dateは食事をした日時（呼び出し元が指定）で、レコード作成日時とは別物。
type Meal struct {
	ID          string
	UserID      string
	Name        string
	Description string
	IsOnDiet    bool
	Date        time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// MealMetrics はユーザーごとの食事集計を表す。
// TotalMeals == OnDietMeals + OutOfDietMeals が常に成り立つ。
type MealMetrics struct {
	TotalMeals     int
	OnDietMeals    int
	OutOfDietMeals int
}
