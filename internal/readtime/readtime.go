// Package readtime は記事本文の語数と読了時間を算出する。
package readtime

import (
	"fmt"
	"math"
	"strings"

	"github.com/hitoshi/gemblog/internal/document"
	"github.com/hitoshi/gemblog/internal/markdown"
)

// WordsPerMinute は読了時間の算出に使う1分あたりの語数。
const WordsPerMinute = 200

// WordCount は空白で区切られた語の数を返す。
func WordCount(text string) int {
	return len(strings.Fields(text))
}

// Minutes は語数から読了時間（分）を返す。最小値は1分。
func Minutes(words int) int {
	return max(1, int(math.Ceil(float64(words)/WordsPerMinute)))
}

// Label は読了時間を "N min" 形式で返す。
func Label(minutes int) string {
	return fmt.Sprintf("%d min", minutes)
}

// Metrics は文書の語数と読了時間。
type Metrics struct {
	Words   int    `json:"words"`
	Minutes int    `json:"minutes"`
	Label   string `json:"label"`
}

// ForDocument は文書の語数と読了時間を算出する。
// インラインコードとコードブロックは語数に含めない。
func ForDocument(doc document.Document) Metrics {
	words := WordCount(doc.PlainText(true))
	m := Minutes(words)
	return Metrics{Words: words, Minutes: m, Label: Label(m)}
}

// ForMarkdown はMarkdown本文の語数と読了時間を算出する。
func ForMarkdown(md string) Metrics {
	return ForDocument(markdown.FromMarkdown(md))
}
