// Package markdown は構造化文書とMarkdown文字列の相互変換を提供する。
//
// 変換はどちらの方向も全域関数で、エラーを返さない。解釈できない入力は
// そのまま文字列として扱う。往復変換は可読性を優先したベストエフォートで、
// コードブロックの言語指定や入れ子の書式は保持されない。
package markdown

import (
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/JohannesKaufmann/html-to-markdown/escape"

	"github.com/hitoshi/gemblog/internal/document"
)

// imageAltPlaceholder はキャプションのない画像に使う代替テキスト。
const imageAltPlaceholder = "imagem"

// ToMarkdown は文書をMarkdown文字列に変換する。
func ToMarkdown(doc document.Document) string {
	var b strings.Builder
	for _, blk := range doc.Blocks {
		writeBlock(&b, blk)
	}
	out := strings.ReplaceAll(b.String(), "\u00a0", " ")
	return strings.TrimSpace(out)
}

func writeBlock(b *strings.Builder, blk document.Block) {
	switch blk.Kind {
	case document.KindHeading:
		level := min(max(blk.Level, 1), 3)
		b.WriteString(strings.Repeat("#", level) + " ")
		// 見出しは1行で表現する
		b.WriteString(strings.ReplaceAll(inline(blk.Spans), "\n", " "))
		b.WriteString("\n\n")

	case document.KindBlockquote:
		b.WriteString("> ")
		b.WriteString(strings.ReplaceAll(inline(blk.Spans), "\n", "\n> "))
		b.WriteString("\n\n")

	case document.KindCode:
		b.WriteString("```\n")
		b.WriteString(document.TextOf(blk.Spans))
		b.WriteString("\n```\n\n")

	case document.KindList:
		for i, item := range blk.Items {
			if blk.Ordered {
				fmt.Fprintf(b, "%d. ", i+1)
			} else {
				b.WriteString("- ")
			}
			b.WriteString(strings.ReplaceAll(inline(item), "\n", " "))
			b.WriteString("\n")
		}
		b.WriteString("\n")

	case document.KindDivider:
		b.WriteString("\n---\n")

	case document.KindImage:
		if blk.Src == "" {
			return
		}
		alt := strings.TrimSpace(blk.Caption)
		if alt == "" {
			alt = imageAltPlaceholder
		}
		fmt.Fprintf(b, "![%s](%s)\n\n", escapeAlt(alt), blk.Src)

	default:
		text := inline(blk.Spans)
		if strings.TrimSpace(text) == "" {
			return
		}
		b.WriteString(text)
		b.WriteString("\n\n")
	}
}

// inline はSpan列をMarkdownのインライン記法に変換する。
func inline(spans []document.Span) string {
	var b strings.Builder
	for _, s := range spans {
		switch s.Style {
		case document.StyleBold:
			b.WriteString(wrap(escapeText(s.Text), "**"))
		case document.StyleItalic:
			b.WriteString(wrap(escapeText(s.Text), "*"))
		case document.StyleCode:
			b.WriteString(codeSpan(s.Text))
		default:
			b.WriteString(escapeText(s.Text))
		}
	}
	return b.String()
}

// wrap はテキストを記号で囲む。前後の空白は記号の外側に出す。
func wrap(text, marker string) string {
	lead, core, trail := splitSpace(text)
	if core == "" {
		return text
	}
	return lead + marker + core + marker + trail
}

// codeSpan はテキスト中の最長のバッククォート列より長い記号でインラインコードを囲む。
// 先頭か末尾がバッククォートの場合は記号との間に空白を1つ入れる。
func codeSpan(text string) string {
	lead, core, trail := splitSpace(text)
	if core == "" {
		return text
	}
	fence := strings.Repeat("`", longestRun(core, '`')+1)
	if strings.HasPrefix(core, "`") || strings.HasSuffix(core, "`") {
		core = " " + core + " "
	}
	return lead + fence + core + fence + trail
}

func splitSpace(text string) (lead, core, trail string) {
	core = strings.TrimSpace(text)
	if core == "" {
		return "", "", text
	}
	lead = text[:strings.Index(text, core)]
	trail = text[len(lead)+len(core):]
	return lead, core, trail
}

func longestRun(s string, c byte) int {
	longest, run := 0, 0
	for i := 0; i < len(s); i++ {
		if s[i] != c {
			run = 0
			continue
		}
		run++
		longest = max(longest, run)
	}
	return longest
}

// lineMarkerRe は行頭でブロックとして解釈されうる記号。
// escape.MarkdownCharactersは後続の空白がある場合しかエスケープしない。
var (
	lineMarkerRe  = regexp.MustCompile("(?m)^(\\s*)([-+>#!`])")
	lineOrderedRe = regexp.MustCompile(`(?m)^(\s*)(\d+)\.`)
)

// inlineMarkers はFromMarkdownが書式として読むため常にエスケープする記号。
const inlineMarkers = "\\*`_"

// escapedPunct はASCII句読点ごとのエスケープ要否。
// 行単位の規則が同じ文字を二重にエスケープしないよう、1文字ずつescape.MarkdownCharactersで判定する。
var escapedPunct = sync.OnceValue(func() [128]bool {
	var table [128]bool
	for i := 0; i < len(asciiPunct); i++ {
		c := string(asciiPunct[i])
		table[asciiPunct[i]] = strings.Contains(inlineMarkers, c) || escape.MarkdownCharacters(c) != c
	}
	return table
})

// escapeText は本文中のMarkdown記号をバックスラッシュでエスケープする。
// 1文字につきバックスラッシュは高々1つで、FromMarkdownは句読点の直前の
// バックスラッシュを取り除いて元のテキストに戻す。
func escapeText(s string) string {
	if s == "" {
		return s
	}
	table := escapedPunct()
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r < 128 && table[r] {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	out := lineMarkerRe.ReplaceAllString(b.String(), `$1\$2`)
	return lineOrderedRe.ReplaceAllString(out, `$1$2\.`)
}

func escapeAlt(s string) string {
	return strings.NewReplacer("[", "(", "]", ")", "\n", " ").Replace(s)
}
