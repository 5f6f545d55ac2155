package model

import "time"

// Category は記事カテゴリ。固定の列挙値のいずれかを取る。
type Category string

// 記事カテゴリの定義。
const (
	CategoryTrends       Category = "Tendências"
	CategoryAI           Category = "Inteligência Artificial"
	CategoryAutomation   Category = "Automação"
	CategoryBI           Category = "Business Intelligence"
	CategoryDataAnalysis Category = "Análise de Dados"
	CategoryTechnology   Category = "Tecnologia"
	CategoryBusiness     Category = "Negócios"
	CategoryTutorial     Category = "Tutorial"
	CategoryCaseStudy    Category = "Case Study"
)

// Categories は選択可能なカテゴリを表示順で返す。
func Categories() []Category {
	return []Category{
		CategoryTrends,
		CategoryAI,
		CategoryAutomation,
		CategoryBI,
		CategoryDataAnalysis,
		CategoryTechnology,
		CategoryBusiness,
		CategoryTutorial,
		CategoryCaseStudy,
	}
}

// Valid はカテゴリが定義済みの値かどうかを返す。
func (c Category) Valid() bool {
	for _, v := range Categories() {
		if c == v {
			return true
		}
	}
	return false
}

// Article は永続化されたブログ記事を表す。
// Contentは正準形式であるMarkdownで保持する。
type Article struct {
	ID          string
	Title       string
	Excerpt     string
	Author      string
	Category    Category
	Tags        []string
	Content     string
	ImageURL    string
	Date        time.Time
	ReadTime    string // "N min"
	Featured    bool
	Published   bool
	Slug        string
	CreatedAt   time.Time
	UpdatedAt   time.Time
	PublishedAt *time.Time
}

// ArticleInput は記事作成時の入力値。
type ArticleInput struct {
	Title     string
	Excerpt   string
	Author    string
	Category  Category
	Tags      []string
	Content   string
	ImageURL  string
	Date      time.Time // ゼロ値の場合は作成日時を使用する
	Featured  bool
	Published bool
}

// ArticlePatch は記事の部分更新の入力値。nilのフィールドは変更しない。
type ArticlePatch struct {
	Title     *string
	Excerpt   *string
	Author    *string
	Category  *Category
	Tags      *[]string
	Content   *string
	ImageURL  *string
	Date      *time.Time
	Featured  *bool
	Published *bool
}

// ArticleFilter は記事一覧の絞り込み条件。
// 結果は常に作成日時の降順で返る。
type ArticleFilter struct {
	PublishedOnly bool
	FeaturedOnly  bool
	Category      Category
	Query         string
	Limit         int // 0は無制限
}

// ArticleStats は管理画面向けの記事統計。
type ArticleStats struct {
	Total      int
	Published  int
	Drafts     int
	Featured   int
	Categories int // 公開記事で使用中のカテゴリ数
}
