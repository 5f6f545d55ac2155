// Package slug は記事タイトルからURL用のスラッグを生成する。
package slug

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/google/uuid"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// draftPrefix はタイトルが空の下書きに付けるスラッグの接頭辞。
const draftPrefix = "rascunho-"

var (
	invalidChars = regexp.MustCompile(`[^a-z0-9\s-]`)
	spaceRuns    = regexp.MustCompile(`\s+`)
	dashRuns     = regexp.MustCompile(`-+`)
)

// Make はタイトルからスラッグを生成する。
// 小文字化してアクセント記号を除去し、英数字・空白・ハイフン以外を取り除いたうえで、
// 空白の連続をハイフン1つにまとめる。前後のハイフンは取り除く。
// 結果が空の場合は空文字列を返す。
func Make(title string) string {
	s := strings.ToLower(fold(title))
	s = invalidChars.ReplaceAllString(s, "")
	s = spaceRuns.ReplaceAllString(strings.TrimSpace(s), "-")
	s = dashRuns.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}

// ForTitle はタイトルからスラッグを生成する。生成結果が空の場合は
// "rascunho-" にランダムな8桁の16進数を付けたスラッグを返す。
func ForTitle(title string) string {
	if s := Make(title); s != "" {
		return s
	}
	return Placeholder()
}

// Placeholder はタイトルのない下書き用のスラッグを生成する。
func Placeholder() string {
	return draftPrefix + strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

// IsPlaceholder はスラッグがPlaceholderで生成されたものかどうかを返す。
func IsPlaceholder(s string) bool {
	return strings.HasPrefix(s, draftPrefix) && len(s) == len(draftPrefix)+8
}

// fold はNFD分解して結合文字を取り除き、アクセント記号を落とす。
func fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}
