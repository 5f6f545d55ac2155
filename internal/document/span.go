package document

import "strings"

// Style はインライン書式を表す。書式は入れ子にせず、1つのSpanに1つだけ適用する。
type Style string

// インライン書式の定義。
const (
	StylePlain  Style = ""
	StyleBold   Style = "bold"
	StyleItalic Style = "italic"
	StyleCode   Style = "code"
)

// Valid は書式が定義済みの値かどうかを返す。
func (s Style) Valid() bool {
	switch s {
	case StylePlain, StyleBold, StyleItalic, StyleCode:
		return true
	}
	return false
}

// Span は同一書式の連続したテキスト。
type Span struct {
	Text  string `json:"text"`
	Style Style  `json:"style,omitempty"`
}

// Plain は書式なしのSpanスライスを生成する。空文字列の場合はnilを返す。
func Plain(text string) []Span {
	if text == "" {
		return nil
	}
	return []Span{{Text: text}}
}

// TextOf はSpanのテキストを連結して返す。
func TextOf(spans []Span) string {
	var b strings.Builder
	for _, s := range spans {
		b.WriteString(s.Text)
	}
	return b.String()
}

// RuneLen はSpan全体のルーン数を返す。オフセットはすべてルーン単位で扱う。
func RuneLen(spans []Span) int {
	n := 0
	for _, s := range spans {
		n += len([]rune(s.Text))
	}
	return n
}

// NormalizeSpans は空のSpanを除去し、隣接する同一書式のSpanを結合する。
func NormalizeSpans(spans []Span) []Span {
	var out []Span
	for _, s := range spans {
		if s.Text == "" {
			continue
		}
		if n := len(out); n > 0 && out[n-1].Style == s.Style {
			out[n-1].Text += s.Text
			continue
		}
		out = append(out, s)
	}
	return out
}

// SliceSpans はルーンオフセット[start, end)の範囲のSpanを書式を保ったまま切り出す。
func SliceSpans(spans []Span, start, end int) []Span {
	if start < 0 {
		start = 0
	}
	if total := RuneLen(spans); end > total {
		end = total
	}
	if start >= end {
		return nil
	}

	var out []Span
	pos := 0
	for _, s := range spans {
		r := []rune(s.Text)
		sStart, sEnd := pos, pos+len(r)
		pos = sEnd
		if sEnd <= start || sStart >= end {
			continue
		}
		from := max(start, sStart) - sStart
		to := min(end, sEnd) - sStart
		out = append(out, Span{Text: string(r[from:to]), Style: s.Style})
	}
	return NormalizeSpans(out)
}

// SplitSpans はオフセット位置でSpanを左右に分割する。
func SplitSpans(spans []Span, offset int) ([]Span, []Span) {
	return SliceSpans(spans, 0, offset), SliceSpans(spans, offset, RuneLen(spans))
}

// ConcatSpans はSpanスライスを連結して正規化する。
func ConcatSpans(parts ...[]Span) []Span {
	var out []Span
	for _, p := range parts {
		out = append(out, p...)
	}
	return NormalizeSpans(out)
}

// InsertSpanText はオフセット位置にテキストを挿入する。
// 挿入テキストは直前の文字の書式を引き継ぐ。先頭への挿入は書式なしとなる。
func InsertSpanText(spans []Span, offset int, text string) []Span {
	left, right := SplitSpans(spans, offset)
	style := StylePlain
	if len(left) > 0 {
		style = left[len(left)-1].Style
	}
	return ConcatSpans(left, []Span{{Text: text, Style: style}}, right)
}

// SetStyle は範囲[start, end)の書式をstyleに置き換える。
func SetStyle(spans []Span, start, end int, style Style) []Span {
	left, rest := SplitSpans(spans, start)
	mid, right := SplitSpans(rest, end-start)
	restyled := make([]Span, 0, len(mid))
	for _, s := range mid {
		restyled = append(restyled, Span{Text: s.Text, Style: style})
	}
	return ConcatSpans(left, restyled, right)
}

// SplitLines はSpanを改行文字で行ごとに分割する。改行文字自体は含まない。
func SplitLines(spans []Span) [][]Span {
	lines := [][]Span{nil}
	for _, s := range spans {
		parts := strings.Split(s.Text, "\n")
		for i, p := range parts {
			if i > 0 {
				lines = append(lines, nil)
			}
			if p != "" {
				lines[len(lines)-1] = append(lines[len(lines)-1], Span{Text: p, Style: s.Style})
			}
		}
	}
	return lines
}

// JoinLines は行を区切り文字sepで連結する。
func JoinLines(lines [][]Span, sep string) []Span {
	var out []Span
	for i, l := range lines {
		if i > 0 {
			out = append(out, Span{Text: sep})
		}
		out = append(out, l...)
	}
	return NormalizeSpans(out)
}

func trimLeadingNewline(spans []Span) []Span {
	if strings.HasPrefix(TextOf(spans), "\n") {
		return SliceSpans(spans, 1, RuneLen(spans))
	}
	return spans
}

func trimTrailingNewline(spans []Span) []Span {
	if strings.HasSuffix(TextOf(spans), "\n") {
		return SliceSpans(spans, 0, RuneLen(spans)-1)
	}
	return spans
}

func cloneSpans(spans []Span) []Span {
	if spans == nil {
		return nil
	}
	out := make([]Span, len(spans))
	copy(out, spans)
	return out
}
