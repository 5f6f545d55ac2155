package document

import "strings"

// Position は文書内の位置。
// Itemはリストブロックの項目番号で、それ以外のブロックでは0。
// Offsetはコンテナ（テキストブロックまたはリスト項目）内のルーンオフセット。
// アトミックブロック上の位置はOffset 0のみを取る。
type Position struct {
	Block  int `json:"block"`
	Item   int `json:"item"`
	Offset int `json:"offset"`
}

// Compare はaとbの前後関係を返す。aが前なら負、同じなら0、後なら正。
func Compare(a, b Position) int {
	switch {
	case a.Block != b.Block:
		return a.Block - b.Block
	case a.Item != b.Item:
		return a.Item - b.Item
	default:
		return a.Offset - b.Offset
	}
}

// Order はaとbを文書順に並べて返す。
func Order(a, b Position) (Position, Position) {
	if Compare(a, b) > 0 {
		return b, a
	}
	return a, b
}

// Clamp は位置を文書内の有効な範囲に丸める。
func (d Document) Clamp(p Position) Position {
	if len(d.Blocks) == 0 {
		return Position{}
	}
	p.Block = min(max(p.Block, 0), len(d.Blocks)-1)
	b := d.Blocks[p.Block]
	if b.Kind == KindList {
		p.Item = min(max(p.Item, 0), len(b.Items)-1)
	} else {
		p.Item = 0
	}
	p.Offset = min(max(p.Offset, 0), RuneLen(d.containerSpans(p)))
	return p
}

// Valid は位置が文書内の既存の位置を指しているかどうかを返す。
func (d Document) Valid(p Position) bool {
	return d.Clamp(p) == p && len(d.Blocks) > 0
}

// Container は位置が属するコンテナのSpan列を返す。
// アトミックブロック上の位置ではfalseを返す。
func (d Document) Container(p Position) ([]Span, bool) {
	if p.Block < 0 || p.Block >= len(d.Blocks) {
		return nil, false
	}
	b := d.Blocks[p.Block]
	switch {
	case b.IsText():
		return b.Spans, true
	case b.Kind == KindList && p.Item >= 0 && p.Item < len(b.Items):
		return b.Items[p.Item], true
	}
	return nil, false
}

func (d Document) containerSpans(p Position) []Span {
	spans, _ := d.Container(p)
	return spans
}

// setContainer は位置が属するコンテナのSpan列を置き換える。
func (d *Document) setContainer(p Position, spans []Span) {
	b := &d.Blocks[p.Block]
	spans = NormalizeSpans(spans)
	if b.Kind == KindList {
		b.Items[p.Item] = spans
		return
	}
	b.Spans = spans
}

// EndOf はブロックiの末尾位置を返す。
func (d Document) EndOf(i int) Position {
	b := d.Blocks[i]
	if b.Kind == KindList {
		last := len(b.Items) - 1
		return Position{Block: i, Item: last, Offset: RuneLen(b.Items[last])}
	}
	return Position{Block: i, Offset: RuneLen(b.Spans)}
}

// LineAt は位置pを含む行のコンテナ内の範囲[start, end)と、
// 行頭からpまでのテキストを返す。行はコンテナ内の改行文字で区切られる。
func (d Document) LineAt(p Position) (start, end int, before string) {
	spans := d.containerSpans(p)
	runes := []rune(TextOf(spans))
	off := min(max(p.Offset, 0), len(runes))

	start = off
	for start > 0 && runes[start-1] != '\n' {
		start--
	}
	end = off
	for end < len(runes) && runes[end] != '\n' {
		end++
	}
	return start, end, string(runes[start:off])
}

// Fragment は範囲[start, end)の内容を行単位で書式付きで返す。
// コンテナの境界とコンテナ内の改行が行の区切りになる。アトミックブロックは含まない。
func (d Document) Fragment(start, end Position) [][]Span {
	start, end = Order(d.Clamp(start), d.Clamp(end))
	var lines [][]Span
	for bi := start.Block; bi <= end.Block; bi++ {
		b := d.Blocks[bi]
		if b.IsAtomic() {
			continue
		}
		containers := 1
		if b.Kind == KindList {
			containers = len(b.Items)
		}
		for ci := 0; ci < containers; ci++ {
			pos := Position{Block: bi, Item: ci}
			if Compare(Position{Block: bi, Item: ci, Offset: 1 << 30}, start) < 0 {
				continue
			}
			if Compare(pos, end) > 0 {
				break
			}
			spans := d.containerSpans(pos)
			from, to := 0, RuneLen(spans)
			isStart := bi == start.Block && ci == start.Item
			isEnd := bi == end.Block && ci == end.Item
			if isStart {
				from = start.Offset
			}
			if isEnd {
				to = end.Offset
			}
			// 範囲の端で何も選択されていないコンテナは空行として数えない
			if from >= to && isStart != isEnd {
				continue
			}
			lines = append(lines, SplitLines(SliceSpans(spans, from, to))...)
		}
	}
	return lines
}

// TextRange は範囲[start, end)のテキストを改行区切りで返す。
func (d Document) TextRange(start, end Position) string {
	var parts []string
	for _, l := range d.Fragment(start, end) {
		parts = append(parts, TextOf(l))
	}
	return strings.Join(parts, "\n")
}
