package article

import (
	"bytes"
	"context"
	"fmt"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/hitoshi/gemblog/internal/model"
)

// エクスポート形式の定義。
const (
	FormatYAML = "yaml"
	FormatTOML = "toml"
)

// frontMatter はエクスポートするMarkdownのフロントマター。
type frontMatter struct {
	Title       string   `yaml:"title" toml:"title"`
	Description string   `yaml:"description,omitempty" toml:"description,omitempty"`
	Author      string   `yaml:"author,omitempty" toml:"author,omitempty"`
	Date        string   `yaml:"date" toml:"date"`
	Categories  []string `yaml:"categories,omitempty" toml:"categories,omitempty"`
	Tags        []string `yaml:"tags,omitempty" toml:"tags,omitempty"`
	Image       string   `yaml:"image,omitempty" toml:"image,omitempty"`
	Draft       bool     `yaml:"draft" toml:"draft"`
	Featured    bool     `yaml:"featured,omitempty" toml:"featured,omitempty"`
	Slug        string   `yaml:"slug" toml:"slug"`
	ReadTime    string   `yaml:"readTime,omitempty" toml:"readTime,omitempty"`
}

// Export は記事をフロントマター付きのMarkdownとして書き出す。
// formatは"yaml"または"toml"。
func (s *Service) Export(ctx context.Context, id, format string) ([]byte, error) {
	a, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return Render(a, format)
}

// Render は記事をフロントマター付きのMarkdownに変換する。
func Render(a *model.Article, format string) ([]byte, error) {
	fm := newFrontMatter(a)

	var buf bytes.Buffer
	switch format {
	case FormatYAML, "":
		buf.WriteString("---\n")
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(fm); err != nil {
			return nil, fmt.Errorf("YAMLフロントマターの生成に失敗しました: %w", err)
		}
		if err := enc.Close(); err != nil {
			return nil, fmt.Errorf("YAMLフロントマターの生成に失敗しました: %w", err)
		}
		buf.WriteString("---\n")
	case FormatTOML:
		buf.WriteString("+++\n")
		if err := toml.NewEncoder(&buf).Encode(fm); err != nil {
			return nil, fmt.Errorf("TOMLフロントマターの生成に失敗しました: %w", err)
		}
		buf.WriteString("+++\n")
	default:
		return nil, model.NewUnsupportedFormatError(format)
	}

	buf.WriteString("\n")
	buf.WriteString(a.Content)
	if a.Content != "" {
		buf.WriteString("\n")
	}
	return buf.Bytes(), nil
}

func newFrontMatter(a *model.Article) frontMatter {
	fm := frontMatter{
		Title:       a.Title,
		Description: a.Excerpt,
		Author:      a.Author,
		Date:        a.Date.Format("2006-01-02"),
		Tags:        a.Tags,
		Image:       a.ImageURL,
		Draft:       !a.Published,
		Featured:    a.Featured,
		Slug:        a.Slug,
		ReadTime:    a.ReadTime,
	}
	if a.Category != "" {
		fm.Categories = []string{string(a.Category)}
	}
	return fm
}
