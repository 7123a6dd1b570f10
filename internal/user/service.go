// Package user はユーザー登録のドメインロジックを提供する。
package user

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/mealtrack/internal/model"
	"github.com/hitoshi/mealtrack/internal/repository"
)

// RegisterResult はユーザー登録の結果を表す。
// SessionIssuedがtrueの場合、ハンドラーは新しいセッションCookieを発行する必要がある。
type RegisterResult struct {
	User          *model.User
	SessionID     string
	SessionIssued bool
}

// Service はユーザー登録のサービス層。
// ユーザーは作成専用で、更新・削除のビジネスロジックは存在しない。
type Service struct {
	userRepo repository.UserRepository
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(userRepo repository.UserRepository) *Service {
	return &Service{
		userRepo: userRepo,
	}
}

// Register はユーザーを登録し、セッショントークンを決定する。
// presentedTokenはリクエストCookieのセッショントークン（未送信時は空文字列）。
// トークンが未提示、または既に別ユーザーに紐付いている場合は新規トークンを発行する
// （session_idはユーザーごとに一意、という不変条件を守るため）。
// メールアドレスが登録済みの場合はUSER_ALREADY_EXISTSエラーを返す。
func (s *Service) Register(ctx context.Context, name, email, presentedToken string) (*RegisterResult, error) {
	existing, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing user: %w", err)
	}
	if existing != nil {
		return nil, model.NewUserAlreadyExistsError(email)
	}

	sessionID := presentedToken
	sessionIssued := false

	if sessionID == "" {
		sessionID = uuid.New().String()
		sessionIssued = true
	} else {
		// 提示されたトークンが既存ユーザーのものなら、新規ユーザーには別トークンを発行する
		owner, err := s.userRepo.FindBySessionID(ctx, sessionID)
		if err != nil {
			return nil, fmt.Errorf("failed to check session owner: %w", err)
		}
		if owner != nil {
			sessionID = uuid.New().String()
			sessionIssued = true
		}
	}

	now := time.Now()
	newUser := &model.User{
		ID:        uuid.New().String(),
		Name:      name,
		Email:     email,
		SessionID: sessionID,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.userRepo.Create(ctx, newUser); err != nil {
		// FindByEmailチェック後に同一メールで挿入が競合した場合
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, model.NewUserAlreadyExistsError(email)
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	slog.Info("new user registered",
		slog.String("user_id", newUser.ID),
		slog.String("email", email),
	)

	return &RegisterResult{
		User:          newUser,
		SessionID:     sessionID,
		SessionIssued: sessionIssued,
	}, nil
}
