package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/hitoshi/gemblog/internal/middleware"
	"github.com/hitoshi/gemblog/internal/model"
	"github.com/hitoshi/gemblog/internal/rss"
)

// ArticleLister はRSSフィードの生成に必要な記事一覧の取得インターフェース。
type ArticleLister interface {
	List(ctx context.Context, filter model.ArticleFilter) ([]*model.Article, error)
}

// FeedHandler は公開記事のRSSフィードを配信するHTTPハンドラー。
type FeedHandler struct {
	lister  ArticleLister
	channel rss.Channel
}

// NewFeedHandler はFeedHandlerを生成する。
func NewFeedHandler(lister ArticleLister, channel rss.Channel) *FeedHandler {
	return &FeedHandler{lister: lister, channel: channel}
}

// ServeFeed は新しい公開記事のRSS 2.0フィードを返す。
// GET /feed.xml
func (h *FeedHandler) ServeFeed(w http.ResponseWriter, r *http.Request) {
	articles, err := h.lister.List(r.Context(), model.ArticleFilter{PublishedOnly: true, Limit: rss.MaxItems})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	data, err := rss.Build(h.channel, articles)
	if err != nil {
		slog.Error("RSSフィードの生成に失敗しました", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w)
		return
	}

	w.Header().Set("Content-Type", "application/rss+xml; charset=utf-8")
	w.Header().Set("Cache-Control", "public, max-age=300")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}
