// Package media は記事に挿入する画像の検証を提供する。
package media

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/hitoshi/gemblog/internal/model"
)

const (
	// DefaultProbeTimeout は画像URL確認のタイムアウト。
	DefaultProbeTimeout = 5 * time.Second

	// DefaultMaxPasteSize は貼り付け画像の最大サイズ（2MB）。
	DefaultMaxPasteSize = 2 * 1024 * 1024

	// sniffSize はContent-Typeが無い場合に読み取るバイト数。
	sniffSize = 512
)

// SSRFValidator はSSRF検証とHTTPクライアント生成のインターフェース。
type SSRFValidator interface {
	NewSafeClient(timeout time.Duration) *http.Client
	ValidateURL(rawURL string) error
}

// ImageInfo は確認済みの画像URL。
type ImageInfo struct {
	URL      string
	MimeType string
}

// ImageProber は画像URLが公開された画像を指していることを確認する。
type ImageProber struct {
	ssrfGuard SSRFValidator
	timeout   time.Duration
	userAgent string
}

// NewImageProber はImageProberを生成する。timeoutが0以下の場合は既定値を使う。
func NewImageProber(ssrfGuard SSRFValidator, timeout time.Duration) *ImageProber {
	if timeout <= 0 {
		timeout = DefaultProbeTimeout
	}
	return &ImageProber{
		ssrfGuard: ssrfGuard,
		timeout:   timeout,
		userAgent: "Gemblog/1.0 (+image check)",
	}
}

// Probe はURLにGETリクエストを送り、2xxかつimage/*の応答であることを確認する。
// ブロック対象のURLはSSRF_BLOCKED、それ以外の失敗はIMAGE_UNAVAILABLEを返す。
func (p *ImageProber) Probe(ctx context.Context, rawURL string) (*ImageInfo, error) {
	rawURL = strings.TrimSpace(rawURL)
	if err := p.ssrfGuard.ValidateURL(rawURL); err != nil {
		slog.Warn("画像URL確認: SSRFブロック", "url", rawURL, "error", err)
		return nil, model.NewSSRFBlockedError()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, model.NewImageUnavailableError("URL inválida")
	}
	req.Header.Set("User-Agent", p.userAgent)
	req.Header.Set("Accept", "image/*")

	resp, err := p.ssrfGuard.NewSafeClient(p.timeout).Do(req)
	if err != nil {
		slog.Warn("画像URL確認: HTTPリクエスト失敗", "url", rawURL, "error", err)
		return nil, model.NewImageUnavailableError("falha na conexão")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		slog.Warn("画像URL確認: HTTPステータス異常", "url", rawURL, "status", resp.StatusCode)
		return nil, model.NewImageUnavailableError(fmt.Sprintf("HTTP %d", resp.StatusCode))
	}

	mimeType := extractMimeType(resp.Header.Get("Content-Type"))
	if mimeType == "" {
		head, _ := io.ReadAll(io.LimitReader(resp.Body, sniffSize))
		mimeType = extractMimeType(http.DetectContentType(head))
	}
	if !strings.HasPrefix(mimeType, "image/") {
		slog.Warn("画像URL確認: 画像以外のContent-Type", "url", rawURL, "contentType", mimeType)
		return nil, model.NewImageUnavailableError("o endereço não aponta para uma imagem")
	}

	return &ImageInfo{URL: rawURL, MimeType: mimeType}, nil
}

// DataURL は貼り付けられた画像データからdata URLを生成する。
// mimeTypeが空の場合は内容から判定する。maxSizeが0以下の場合はDefaultMaxPasteSizeを使う。
func DataURL(mimeType string, data []byte, maxSize int) (string, error) {
	if maxSize <= 0 {
		maxSize = DefaultMaxPasteSize
	}
	if len(data) == 0 {
		return "", model.NewValidationError("image", "A imagem colada está vazia.")
	}
	if len(data) > maxSize {
		return "", model.NewValidationError("image",
			fmt.Sprintf("A imagem colada excede o limite de %d KB.", maxSize/1024))
	}

	mimeType = extractMimeType(mimeType)
	if mimeType == "" {
		mimeType = extractMimeType(http.DetectContentType(data))
	}
	if !strings.HasPrefix(mimeType, "image/") || mimeType == "image/svg+xml" {
		return "", model.NewValidationError("image", "O conteúdo colado não é uma imagem suportada.")
	}

	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data), nil
}

// extractMimeType はContent-Typeヘッダーからメディアタイプを抽出する。
func extractMimeType(contentType string) string {
	if contentType == "" {
		return ""
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		parts := strings.SplitN(contentType, ";", 2)
		return strings.TrimSpace(strings.ToLower(parts[0]))
	}
	return mediaType
}
