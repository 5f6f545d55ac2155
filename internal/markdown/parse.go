package markdown

import (
	"regexp"
	"strings"

	"github.com/hitoshi/gemblog/internal/document"
)

var (
	headingRe   = regexp.MustCompile(`^(#{1,3})(?:\s+(.*))?$`)
	// 記号のみの行は空の項目として扱う
	unorderedRe = regexp.MustCompile(`^-(?:\s+(.*))?$`)
	orderedRe   = regexp.MustCompile(`^\d+\.(?:\s+(.*))?$`)
	quoteRe     = regexp.MustCompile(`^>\s?(.*)$`)
	imageRe     = regexp.MustCompile(`^!\[([^\]]*)\]\(([^)\s]+)\)$`)
	dividerRe   = regexp.MustCompile(`^(-{3,}|\*{3,})$`)
)

// FromMarkdown はMarkdown文字列を文書に変換する。
// ブロック要素を行単位で判定してから、各ブロックのテキストにインライン記法を適用する。
func FromMarkdown(src string) document.Document {
	src = strings.ReplaceAll(src, "\r\n", "\n")
	lines := strings.Split(src, "\n")

	var blocks []document.Block
	var para []string
	flush := func() {
		if len(para) > 0 {
			blocks = append(blocks, document.Paragraph(parseInline(strings.Join(para, "\n"))...))
			para = nil
		}
	}

	for i := 0; i < len(lines); {
		line := lines[i]
		trimmed := strings.TrimSpace(line)

		switch {
		case trimmed == "":
			flush()
			i++

		case strings.HasPrefix(trimmed, "```"):
			flush()
			var code []string
			i++
			for i < len(lines) && strings.TrimSpace(lines[i]) != "```" {
				code = append(code, lines[i])
				i++
			}
			i++ // 閉じフェンス（存在しない場合は末尾まで）
			blocks = append(blocks, document.CodeBlock(strings.Join(code, "\n")))

		case unorderedRe.MatchString(line):
			flush()
			var items [][]document.Span
			for i < len(lines) && unorderedRe.MatchString(lines[i]) {
				items = append(items, parseInline(unorderedRe.FindStringSubmatch(lines[i])[1]))
				i++
			}
			blocks = append(blocks, document.List(false, items...))

		case orderedRe.MatchString(line):
			flush()
			var items [][]document.Span
			for i < len(lines) && orderedRe.MatchString(lines[i]) {
				items = append(items, parseInline(orderedRe.FindStringSubmatch(lines[i])[1]))
				i++
			}
			blocks = append(blocks, document.List(true, items...))

		case headingRe.MatchString(line):
			flush()
			m := headingRe.FindStringSubmatch(line)
			blocks = append(blocks, document.Heading(len(m[1]), parseInline(strings.TrimSpace(m[2]))...))
			i++

		case quoteRe.MatchString(line):
			flush()
			var quoted []string
			for i < len(lines) && quoteRe.MatchString(lines[i]) {
				quoted = append(quoted, quoteRe.FindStringSubmatch(lines[i])[1])
				i++
			}
			blocks = append(blocks, document.Blockquote(parseInline(strings.Join(quoted, "\n"))...))

		case dividerRe.MatchString(trimmed):
			flush()
			blocks = append(blocks, document.Divider())
			i++

		case imageRe.MatchString(trimmed):
			flush()
			m := imageRe.FindStringSubmatch(trimmed)
			caption := m[1]
			if caption == imageAltPlaceholder {
				caption = ""
			}
			blocks = append(blocks, document.Image(m[2], m[1], caption))
			i++

		default:
			para = append(para, line)
			i++
		}
	}
	flush()

	return document.New(blocks...)
}

// parseInline はインライン記法（**太字**、*斜体*、`コード`）をSpan列に変換する。
// バックスラッシュに続く記号は文字として扱う。閉じ記号のない記法は文字列として残す。
func parseInline(text string) []document.Span {
	var spans []document.Span
	var plain strings.Builder
	emit := func(s document.Span) {
		if plain.Len() > 0 {
			spans = append(spans, document.Span{Text: plain.String()})
			plain.Reset()
		}
		spans = append(spans, s)
	}

	for i := 0; i < len(text); {
		rest := text[i:]
		switch {
		case isEscape(rest):
			plain.WriteByte(rest[1])
			i += 2
			continue
		case strings.HasPrefix(rest, "**"):
			if end := findClose(rest[2:], "**"); end > 0 {
				emit(document.Span{Text: unescape(rest[2 : 2+end]), Style: document.StyleBold})
				i += end + 4
				continue
			}
		case strings.HasPrefix(rest, "*"):
			if end := findClose(rest[1:], "*"); end > 0 {
				emit(document.Span{Text: unescape(rest[1 : 1+end]), Style: document.StyleItalic})
				i += end + 2
				continue
			}
		case strings.HasPrefix(rest, "`"):
			n := len(rest) - len(strings.TrimLeft(rest, "`"))
			if end := findCodeClose(rest[n:], n); end > 0 {
				emit(document.Span{Text: trimCodePadding(rest[n : n+end]), Style: document.StyleCode})
				i += n + end + n
				continue
			}
			// 対応する閉じ記号がなければ記号列全体を文字として扱う
			plain.WriteString(rest[:n])
			i += n
			continue
		}
		plain.WriteByte(text[i])
		i++
	}
	if plain.Len() > 0 {
		spans = append(spans, document.Span{Text: plain.String()})
	}
	return document.NormalizeSpans(spans)
}

// isEscape はsがバックスラッシュとASCII句読点で始まるかを判定する。
func isEscape(s string) bool {
	return len(s) >= 2 && s[0] == '\\' && strings.IndexByte(asciiPunct, s[1]) >= 0
}

const asciiPunct = "!\"#$%&'()*+,-./:;<=>?@[\\]^_`{|}~"

// findClose はエスケープされていない閉じ記号の位置を返す。見つからなければ-1。
func findClose(s, marker string) int {
	for i := 0; i < len(s); i++ {
		if isEscape(s[i:]) {
			i++
			continue
		}
		if strings.HasPrefix(s[i:], marker) {
			return i
		}
	}
	return -1
}

// findCodeClose は長さnのバッククォート列の位置を返す。見つからなければ-1。
func findCodeClose(s string, n int) int {
	for i := 0; i < len(s); {
		if s[i] != '`' {
			i++
			continue
		}
		run := len(s[i:]) - len(strings.TrimLeft(s[i:], "`"))
		if run == n {
			return i
		}
		i += run
	}
	return -1
}

// trimCodePadding は記号との間に入れた前後の空白を1つずつ取り除く。
func trimCodePadding(code string) string {
	if len(code) >= 2 && code[0] == ' ' && code[len(code)-1] == ' ' && strings.Trim(code, " ") != "" {
		return code[1 : len(code)-1]
	}
	return code
}

func unescape(s string) string {
	if !strings.Contains(s, "\\") {
		return s
	}
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if isEscape(s[i:]) {
			i++
		}
		b.WriteByte(s[i])
	}
	return b.String()
}
