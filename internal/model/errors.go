// Package model はドメインモデルを定義する。
package model

import (
	"errors"
	"fmt"
)

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: validation, article, auth, system
	Action   string // ユーザー向け対処方法
	Field    string // 検証エラーの対象フィールド（該当する場合のみ）

	cause error
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap はラップした下位エラーを返す。
func (e *APIError) Unwrap() error {
	return e.cause
}

// 定義済みエラーコード
const (
	ErrCodeValidationFailed   = "VALIDATION_FAILED"
	ErrCodeArticleNotFound    = "ARTICLE_NOT_FOUND"
	ErrCodeDraftNotFound      = "DRAFT_NOT_FOUND"
	ErrCodeSlugConflict       = "SLUG_CONFLICT"
	ErrCodePersistenceFailed  = "PERSISTENCE_FAILED"
	ErrCodeSaveInFlight       = "SAVE_IN_FLIGHT"
	ErrCodeInvalidCredentials = "INVALID_CREDENTIALS"
	ErrCodeUnauthorized       = "UNAUTHORIZED"
	ErrCodeImageUnavailable   = "IMAGE_UNAVAILABLE"
	ErrCodeSSRFBlocked        = "SSRF_BLOCKED"
	ErrCodeUnsupportedFormat  = "UNSUPPORTED_FORMAT"
	ErrCodeRateLimited        = "RATE_LIMITED"
	ErrCodeCSRFFailed         = "CSRF_FAILED"
	ErrCodeInternal           = "INTERNAL_ERROR"
)

// NewValidationError はフィールド単位の検証エラーを生成する。
func NewValidationError(field, message string) *APIError {
	return &APIError{
		Code:     ErrCodeValidationFailed,
		Message:  message,
		Category: "validation",
		Action:   "Corrija o campo indicado e tente novamente.",
		Field:    field,
	}
}

// NewArticleNotFoundError は記事未検出エラーを生成する。
func NewArticleNotFoundError(key string) *APIError {
	return &APIError{
		Code:     ErrCodeArticleNotFound,
		Message:  fmt.Sprintf("Artigo não encontrado: %s", key),
		Category: "article",
		Action:   "Verifique o identificador ou o slug do artigo.",
	}
}

// NewDraftNotFoundError は編集セッション未検出エラーを生成する。
func NewDraftNotFoundError(sessionID string) *APIError {
	return &APIError{
		Code:     ErrCodeDraftNotFound,
		Message:  fmt.Sprintf("Sessão de edição não encontrada: %s", sessionID),
		Category: "article",
		Action:   "Abra o artigo novamente no editor.",
	}
}

// NewSlugConflictError はslug重複エラーを生成する。
func NewSlugConflictError(slug string) *APIError {
	return &APIError{
		Code:     ErrCodeSlugConflict,
		Message:  fmt.Sprintf("Já existe um artigo com o slug %q.", slug),
		Category: "article",
		Action:   "Altere o título do artigo para gerar um slug diferente.",
	}
}

// NewPersistenceError は永続化失敗エラーを生成する。
// causeはUnwrapで取り出せる。
func NewPersistenceError(cause error) *APIError {
	return &APIError{
		Code:     ErrCodePersistenceFailed,
		Message:  "Erro ao salvar o artigo.",
		Category: "system",
		Action:   "Aguarde alguns instantes e tente salvar novamente.",
		cause:    cause,
	}
}

// NewSaveInFlightError は保存処理の実行中に手動保存が要求された場合のエラーを生成する。
func NewSaveInFlightError() *APIError {
	return &APIError{
		Code:     ErrCodeSaveInFlight,
		Message:  "Um salvamento já está em andamento.",
		Category: "article",
		Action:   "Aguarde o término do salvamento atual.",
	}
}

// NewInvalidCredentialsError は認証情報不一致エラーを生成する。
// メールアドレスとパスワードのどちらが誤っているかは区別しない。
func NewInvalidCredentialsError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCredentials,
		Message:  "E-mail ou senha inválidos.",
		Category: "auth",
		Action:   "Verifique suas credenciais e tente novamente.",
	}
}

// NewUnauthorizedError は未認証エラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "Autenticação necessária.",
		Category: "auth",
		Action:   "Faça login novamente.",
	}
}

// NewImageUnavailableError は画像URLの検証に失敗した場合のエラーを生成する。
func NewImageUnavailableError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeImageUnavailable,
		Message:  fmt.Sprintf("Não foi possível carregar a imagem: %s", reason),
		Category: "validation",
		Action:   "Informe a URL pública de uma imagem (https://...).",
	}
}

// NewSSRFBlockedError はSSRFブロックエラーを生成する。
func NewSSRFBlockedError() *APIError {
	return &APIError{
		Code:     ErrCodeSSRFBlocked,
		Message:  "O endereço informado não é permitido.",
		Category: "validation",
		Action:   "Use uma imagem hospedada em um site público.",
	}
}

// NewUnsupportedFormatError はエクスポート形式が未対応の場合のエラーを生成する。
func NewUnsupportedFormatError(format string) *APIError {
	return &APIError{
		Code:     ErrCodeUnsupportedFormat,
		Message:  fmt.Sprintf("Formato não suportado: %s", format),
		Category: "validation",
		Action:   "Use yaml ou toml.",
	}
}

// NewRateLimitedError はレート制限超過エラーを生成する。
func NewRateLimitedError() *APIError {
	return &APIError{
		Code:     ErrCodeRateLimited,
		Message:  "Muitas requisições. Tente novamente mais tarde.",
		Category: "system",
		Action:   "Aguarde o tempo indicado em Retry-After.",
	}
}

// NewCSRFFailedError はCSRFトークン検証失敗エラーを生成する。
func NewCSRFFailedError() *APIError {
	return &APIError{
		Code:     ErrCodeCSRFFailed,
		Message:  "Token CSRF inválido ou ausente.",
		Category: "auth",
		Action:   "Recarregue a página e tente novamente.",
	}
}

// NewInternalError は内部エラーを生成する。詳細はログにのみ記録する。
func NewInternalError() *APIError {
	return &APIError{
		Code:     ErrCodeInternal,
		Message:  "Ocorreu um erro interno.",
		Category: "system",
		Action:   "Aguarde alguns instantes e tente novamente.",
	}
}

// IsNotFound はerrが記事または編集セッションの未検出エラーかどうかを判定する。
func IsNotFound(err error) bool {
	return hasCode(err, ErrCodeArticleNotFound, ErrCodeDraftNotFound)
}

// IsConflict はerrがslug重複エラーかどうかを判定する。
func IsConflict(err error) bool {
	return hasCode(err, ErrCodeSlugConflict)
}

// IsValidation はerrが検証エラーかどうかを判定する。
func IsValidation(err error) bool {
	return hasCode(err, ErrCodeValidationFailed)
}

func hasCode(err error, codes ...string) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	for _, c := range codes {
		if apiErr.Code == c {
			return true
		}
	}
	return false
}
