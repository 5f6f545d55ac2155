// Package rss は公開記事のRSS 2.0フィードを生成する。
package rss

import (
	"bytes"
	"fmt"
	"mime"
	"net/url"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/gorilla/feeds"

	"github.com/hitoshi/gemblog/internal/model"
)

// MaxItems はフィードに含める記事の最大件数。
const MaxItems = 20

// Channel はフィード全体の情報。
type Channel struct {
	Title       string
	Description string
	// BaseURL はサイトのURL。記事のリンクは BaseURL + "/blog/" + slug になる。
	BaseURL  string
	Language string
}

// ArticleURL は記事の公開URLを返す。
func ArticleURL(baseURL, slug string) string {
	return strings.TrimRight(baseURL, "/") + "/blog/" + slug
}

// Build は公開済みの記事から新しい順に最大MaxItems件のフィードを生成する。
// 非公開の記事は無視する。
func Build(ch Channel, articles []*model.Article) ([]byte, error) {
	published := make([]*model.Article, 0, len(articles))
	for _, a := range articles {
		if a != nil && a.Published {
			published = append(published, a)
		}
	}
	sort.SliceStable(published, func(i, j int) bool {
		return pubTime(published[i]).After(pubTime(published[j]))
	})
	if len(published) > MaxItems {
		published = published[:MaxItems]
	}

	base := strings.TrimRight(ch.BaseURL, "/")
	feed := &feeds.Feed{
		Title:       ch.Title,
		Link:        &feeds.Link{Href: base + "/"},
		Description: ch.Description,
		Items:       make([]*feeds.Item, 0, len(published)),
	}
	if len(published) > 0 {
		feed.Updated = pubTime(published[0]).UTC()
	}

	for _, a := range published {
		link := ArticleURL(base, a.Slug)
		item := &feeds.Item{
			Title:       a.Title,
			Link:        &feeds.Link{Href: link},
			Id:          link,
			IsPermaLink: "true",
			Description: a.Excerpt,
			Created:     pubTime(a).UTC(),
		}
		if typ := imageType(a.ImageURL); typ != "" {
			// 画像のサイズは取得しないため0とする
			item.Enclosure = &feeds.Enclosure{Url: a.ImageURL, Type: typ, Length: "0"}
		}
		feed.Items = append(feed.Items, item)
	}

	// gorilla/feedsのItemはカテゴリと言語を持たないため、変換後のRSSに設定する
	doc := (&feeds.Rss{Feed: feed}).RssFeed()
	doc.Language = ch.Language
	for i, a := range published {
		doc.Items[i].Category = string(a.Category)
	}

	var buf bytes.Buffer
	if err := feeds.WriteXML(doc, &buf); err != nil {
		return nil, fmt.Errorf("RSSの生成に失敗しました: %w", err)
	}
	return buf.Bytes(), nil
}

// pubTime は公開日時、未設定の場合は記事の日付を返す。
func pubTime(a *model.Article) time.Time {
	if a.PublishedAt != nil {
		return *a.PublishedAt
	}
	return a.Date
}

// imageType はhttp(s)の画像URLの拡張子からMIMEタイプを返す。画像でなければ空文字列。
func imageType(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return ""
	}
	typ := mime.TypeByExtension(strings.ToLower(path.Ext(u.Path)))
	if !strings.HasPrefix(typ, "image/") {
		return ""
	}
	return typ
}
