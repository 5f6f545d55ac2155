// Package draft はエディタの編集セッションを管理する。
//
// 1つのセッションは下書き（メタ情報と文書）、エディタ、自動保存コーディネータを持つ。
// 下書きは直接永続化されず、記事への射影だけが保存される。最初の保存が成功すると
// 記事IDが確定し、以降の保存はすべて更新になる。
package draft

import (
	"strings"

	"github.com/hitoshi/gemblog/internal/document"
	"github.com/hitoshi/gemblog/internal/markdown"
	"github.com/hitoshi/gemblog/internal/model"
)

// Meta は本文以外の下書きの項目。
type Meta struct {
	Title      string         `json:"title"`
	Subtitle   string         `json:"subtitle"`
	Author     string         `json:"author"`
	Category   model.Category `json:"category"`
	Tags       []string       `json:"tags"`
	CoverImage string         `json:"cover_image"`
	Featured   bool           `json:"featured"`
}

// Draft は編集中の記事のスナップショット。
type Draft struct {
	Meta
	ArticleID string
	Document  document.Document
}

// fromArticle は既存の記事から下書きを復元する。
func fromArticle(a *model.Article) Draft {
	return Draft{
		Meta: Meta{
			Title:      a.Title,
			Subtitle:   a.Excerpt,
			Author:     a.Author,
			Category:   a.Category,
			Tags:       append([]string(nil), a.Tags...),
			CoverImage: a.ImageURL,
			Featured:   a.Featured,
		},
		ArticleID: a.ID,
		Document:  markdown.FromMarkdown(a.Content),
	}
}

// imageURL は本文の最初の画像、なければカバー画像を返す。
func (d Draft) imageURL() string {
	if src := d.Document.FirstImageSrc(); src != "" {
		return src
	}
	return d.CoverImage
}

// Input は新規作成時の記事入力を返す。
func (d Draft) Input(published bool) model.ArticleInput {
	return model.ArticleInput{
		Title:     strings.TrimSpace(d.Title),
		Excerpt:   strings.TrimSpace(d.Subtitle),
		Author:    strings.TrimSpace(d.Author),
		Category:  d.Category,
		Tags:      d.Tags,
		Content:   markdown.ToMarkdown(d.Document),
		ImageURL:  d.imageURL(),
		Featured:  d.Featured,
		Published: published,
	}
}

// Patch は更新時の記事入力を返す。publishedがfalseの場合は公開状態を変更しない。
func (d Draft) Patch(published bool) model.ArticlePatch {
	in := d.Input(published)
	p := model.ArticlePatch{
		Title:    &in.Title,
		Excerpt:  &in.Excerpt,
		Author:   &in.Author,
		Category: &in.Category,
		Tags:     &in.Tags,
		Content:  &in.Content,
		ImageURL: &in.ImageURL,
		Featured: &in.Featured,
	}
	if published {
		p.Published = &in.Published
	}
	return p
}

// Validate は公開に必要な項目を検証する。
// 最初に見つかった不足項目について、項目ごとに異なるメッセージの検証エラーを返す。
func (d Draft) Validate() error {
	switch {
	case strings.TrimSpace(d.Title) == "":
		return model.NewValidationError("title", "Título é obrigatório para publicar")
	case strings.TrimSpace(d.Subtitle) == "":
		return model.NewValidationError("subtitle", "Subtítulo é obrigatório para publicar")
	case strings.TrimSpace(d.Author) == "":
		return model.NewValidationError("author", "Autor é obrigatório para publicar")
	case d.Category == "":
		return model.NewValidationError("category", "Categoria é obrigatória para publicar")
	case !d.Category.Valid():
		return model.NewValidationError("category", "Selecione uma categoria válida")
	case !hasTag(d.Tags):
		return model.NewValidationError("tags", "Pelo menos uma tag é obrigatória para publicar")
	case d.Document.IsEmpty():
		return model.NewValidationError("content", "Conteúdo é obrigatório para publicar")
	}
	return nil
}

func hasTag(tags []string) bool {
	for _, t := range tags {
		if strings.TrimSpace(t) != "" {
			return true
		}
	}
	return false
}
