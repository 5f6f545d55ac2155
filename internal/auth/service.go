// Package auth は管理者のパスワード認証とセッション管理を提供する。
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/hitoshi/gemblog/internal/model"
	"github.com/hitoshi/gemblog/internal/repository"
)

// MinPasswordLength は管理者パスワードの最小文字数。
const MinPasswordLength = 8

// ServiceConfig は認証サービスの設定。
type ServiceConfig struct {
	SessionMaxAge int // セッション有効期間（秒）
	BcryptCost    int // 0の場合はbcrypt.DefaultCost
}

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	userRepo    repository.AdminUserRepository
	sessionRepo repository.SessionRepository
	config      ServiceConfig
	now         func() time.Time

	// dummyHash は存在しないユーザーでも照合時間を揃えるためのハッシュ。
	dummyHash []byte
}

// NewService はServiceを生成する。
func NewService(
	userRepo repository.AdminUserRepository,
	sessionRepo repository.SessionRepository,
	config ServiceConfig,
) *Service {
	if config.BcryptCost == 0 {
		config.BcryptCost = bcrypt.DefaultCost
	}
	dummy, _ := bcrypt.GenerateFromPassword([]byte("gemblog-dummy-password"), config.BcryptCost)
	return &Service{
		userRepo:    userRepo,
		sessionRepo: sessionRepo,
		config:      config,
		now:         time.Now,
		dummyHash:   dummy,
	}
}

// SignIn はメールアドレスとパスワードで認証し、セッションを発行する。
// ユーザーが存在しない場合もパスワード不一致の場合もINVALID_CREDENTIALSを返す。
func (s *Service) SignIn(ctx context.Context, email, password string) (*model.Session, *model.AdminUser, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil, nil, model.NewInvalidCredentialsError()
	}

	user, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return nil, nil, fmt.Errorf("管理者の検索に失敗しました: %w", err)
	}
	if user == nil {
		_ = bcrypt.CompareHashAndPassword(s.dummyHash, []byte(password))
		slog.Warn("ログインに失敗しました", slog.String("reason", "unknown_email"))
		return nil, nil, model.NewInvalidCredentialsError()
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		slog.Warn("ログインに失敗しました",
			slog.String("reason", "password_mismatch"),
			slog.String("user_id", user.ID),
		)
		return nil, nil, model.NewInvalidCredentialsError()
	}

	session, err := s.createSession(ctx, user.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("セッションの作成に失敗しました: %w", err)
	}

	slog.Info("管理者がログインしました", slog.String("user_id", user.ID))
	return session, user, nil
}

// SignOut はセッションを破棄する。
func (s *Service) SignOut(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return fmt.Errorf("session ID is required")
	}

	if err := s.sessionRepo.DeleteByID(ctx, sessionID); err != nil {
		return fmt.Errorf("セッションの削除に失敗しました: %w", err)
	}

	slog.Info("管理者がログアウトしました", slog.String("session_id", sessionID))
	return nil
}

// CheckSession は有効なセッションを返す。存在しないか期限切れの場合はUNAUTHORIZEDを返す。
func (s *Service) CheckSession(ctx context.Context, sessionID string) (*model.Session, error) {
	if sessionID == "" {
		return nil, model.NewUnauthorizedError()
	}

	session, err := s.sessionRepo.FindByID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("セッションの検索に失敗しました: %w", err)
	}
	if session == nil || !session.ExpiresAt.After(s.now()) {
		return nil, model.NewUnauthorizedError()
	}
	return session, nil
}

// CurrentUser はセッションに紐づく管理者を返す。
func (s *Service) CurrentUser(ctx context.Context, sessionID string) (*model.AdminUser, error) {
	session, err := s.CheckSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	user, err := s.userRepo.FindByID(ctx, session.UserID)
	if err != nil {
		return nil, fmt.Errorf("管理者の検索に失敗しました: %w", err)
	}
	if user == nil {
		return nil, model.NewUnauthorizedError()
	}
	return user, nil
}

// CreateAdmin は管理者アカウントを作成する。パスワードはbcryptでハッシュ化して保存する。
func (s *Service) CreateAdmin(ctx context.Context, email, name, password string) (*model.AdminUser, error) {
	email = strings.TrimSpace(email)
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, model.NewValidationError("email", "Informe um e-mail válido.")
	}
	if len([]rune(password)) < MinPasswordLength {
		return nil, model.NewValidationError("password",
			fmt.Sprintf("A senha deve ter pelo menos %d caracteres.", MinPasswordLength))
	}

	existing, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("管理者の検索に失敗しました: %w", err)
	}
	if existing != nil {
		return nil, model.NewValidationError("email", "Já existe um administrador com este e-mail.")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.config.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("パスワードのハッシュ化に失敗しました: %w", err)
	}

	user := &model.AdminUser{
		ID:           uuid.New().String(),
		Email:        email,
		Name:         strings.TrimSpace(name),
		PasswordHash: string(hash),
		CreatedAt:    s.now(),
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("管理者の作成に失敗しました: %w", err)
	}

	slog.Info("管理者を作成しました", slog.String("user_id", user.ID), slog.String("email", email))
	return user, nil
}

// createSession はセッションを作成し永続化する。
func (s *Service) createSession(ctx context.Context, userID string) (*model.Session, error) {
	sessionID, err := generateSessionID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate session ID: %w", err)
	}

	now := s.now()
	session := &model.Session{
		ID:        sessionID,
		UserID:    userID,
		ExpiresAt: now.Add(time.Duration(s.config.SessionMaxAge) * time.Second),
		CreatedAt: now,
	}

	if err := s.sessionRepo.Create(ctx, session); err != nil {
		return nil, err
	}

	return session, nil
}

// generateSessionID は暗号的に安全なセッションIDを生成する。
func generateSessionID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
