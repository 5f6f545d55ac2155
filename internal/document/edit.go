package document

import "strings"

// InsertText は位置pにテキストを挿入し、挿入後のキャレット位置を返す。
// アトミックブロック上の位置では直後に新しい段落を作って挿入する。
func (d *Document) InsertText(p Position, text string) Position {
	d.Normalize()
	p = d.Clamp(p)
	if text == "" {
		return p
	}
	if d.Blocks[p.Block].IsAtomic() {
		d.insertBlocks(p.Block+1, Paragraph(Plain(text)...))
		return Position{Block: p.Block + 1, Offset: RuneLen(Plain(text))}
	}
	spans := d.containerSpans(p)
	d.setContainer(p, InsertSpanText(spans, p.Offset, text))
	p.Offset += len([]rune(text))
	return p
}

// ApplyStyle は範囲[start, end)の各コンテナに書式を適用する。
func (d *Document) ApplyStyle(start, end Position, style Style) {
	start, end = Order(d.Clamp(start), d.Clamp(end))
	for bi := start.Block; bi <= end.Block; bi++ {
		b := d.Blocks[bi]
		// コードブロック内のテキストには書式を持たせない
		if b.IsAtomic() || b.Kind == KindCode {
			continue
		}
		containers := 1
		if b.Kind == KindList {
			containers = len(b.Items)
		}
		for ci := 0; ci < containers; ci++ {
			pos := Position{Block: bi, Item: ci}
			if bi == start.Block && ci < start.Item {
				continue
			}
			if bi == end.Block && ci > end.Item {
				break
			}
			spans := d.containerSpans(pos)
			from, to := 0, RuneLen(spans)
			if bi == start.Block && ci == start.Item {
				from = start.Offset
			}
			if bi == end.Block && ci == end.Item {
				to = end.Offset
			}
			if from < to {
				d.setContainer(pos, SetStyle(spans, from, to, style))
			}
		}
	}
}

// DeleteRange は範囲[start, end)を削除し、削除後のキャレット位置を返す。
// 開始コンテナの前半と終了コンテナの後半は1つのコンテナに結合される。
// 範囲に完全に含まれるブロックは削除される。
func (d *Document) DeleteRange(start, end Position) Position {
	d.Normalize()
	start, end = Order(d.Clamp(start), d.Clamp(end))
	if start == end {
		return start
	}

	left := SliceSpans(d.containerSpans(start), 0, start.Offset)
	endSpans := d.containerSpans(end)
	right := SliceSpans(endSpans, end.Offset, RuneLen(endSpans))

	sb := d.Blocks[start.Block]
	if start.Block == end.Block {
		switch {
		case sb.Kind == KindList:
			items := cloneItems(sb.Items[:start.Item])
			items = append(items, ConcatSpans(left, right))
			items = append(items, cloneItems(sb.Items[end.Item+1:])...)
			d.Blocks[start.Block].Items = items
		case sb.IsText():
			d.Blocks[start.Block].Spans = ConcatSpans(left, right)
		}
		return start
	}

	eb := d.Blocks[end.Block]

	var head []Block
	switch {
	case sb.Kind == KindList:
		items := cloneItems(sb.Items[:start.Item])
		items = append(items, ConcatSpans(left, right))
		head = append(head, Block{Kind: KindList, Ordered: sb.Ordered, Items: items})
	case sb.IsText():
		nb := sb.Clone()
		nb.Spans = ConcatSpans(left, right)
		head = append(head, nb)
	default:
		if len(right) > 0 {
			head = append(head, Paragraph(right...))
		}
	}

	var tail []Block
	switch {
	case eb.Kind == KindList:
		if rest := eb.Items[end.Item+1:]; len(rest) > 0 {
			tail = append(tail, Block{Kind: KindList, Ordered: eb.Ordered, Items: cloneItems(rest)})
		}
	case eb.IsAtomic():
		// アトミックブロック上の終了位置はブロックの直前を指すため、ブロックは残る
		tail = append(tail, eb)
	}

	blocks := make([]Block, 0, len(d.Blocks))
	blocks = append(blocks, d.Blocks[:start.Block]...)
	blocks = append(blocks, head...)
	blocks = append(blocks, tail...)
	blocks = append(blocks, d.Blocks[end.Block+1:]...)
	d.Blocks = blocks
	d.Normalize()

	if len(head) == 0 {
		return d.Clamp(Position{Block: start.Block})
	}
	return d.Clamp(start)
}

// InsertBlocksAt は位置pでコンテナを分割し、その間にブロックを挿入する。
// 分割で生じた空のテキスト片は捨てる。分割境界の改行1文字は取り除く。
// 挿入した最初のブロックの番号を返す。
func (d *Document) InsertBlocksAt(p Position, blocks ...Block) int {
	d.Normalize()
	p = d.Clamp(p)
	b := d.Blocks[p.Block]

	if b.IsAtomic() {
		d.insertBlocks(p.Block+1, blocks...)
		return p.Block + 1
	}

	spans := d.containerSpans(p)
	before, after := SplitSpans(spans, p.Offset)
	before = trimTrailingNewline(before)
	after = trimLeadingNewline(after)

	var replacement []Block
	first := 0
	if b.Kind == KindList {
		headItems := cloneItems(b.Items[:p.Item])
		if len(before) > 0 {
			headItems = append(headItems, before)
		}
		tailItems := [][]Span{}
		if len(after) > 0 {
			tailItems = append(tailItems, after)
		}
		tailItems = append(tailItems, cloneItems(b.Items[p.Item+1:])...)

		if len(headItems) > 0 {
			replacement = append(replacement, Block{Kind: KindList, Ordered: b.Ordered, Items: headItems})
		}
		first = len(replacement)
		replacement = append(replacement, blocks...)
		if len(tailItems) > 0 {
			replacement = append(replacement, Block{Kind: KindList, Ordered: b.Ordered, Items: tailItems})
		}
	} else {
		if len(before) > 0 {
			head := b.Clone()
			head.Spans = before
			replacement = append(replacement, head)
		}
		first = len(replacement)
		replacement = append(replacement, blocks...)
		if len(after) > 0 {
			tail := b.Clone()
			tail.Spans = after
			replacement = append(replacement, tail)
		}
	}

	d.replaceBlock(p.Block, replacement...)
	return p.Block + first
}

// SplitAt はEnterキーの既定動作として位置pでブロックを分割し、新しいキャレット位置を返す。
//   - 段落・見出し・引用: 後半を新しい段落として分割する
//   - コードブロック: 改行文字を挿入する
//   - リスト項目: 項目を分割する。空の項目ではリストを抜けて段落を作る
//   - アトミックブロック: 直後に空段落を作る
func (d *Document) SplitAt(p Position) Position {
	d.Normalize()
	p = d.Clamp(p)
	b := d.Blocks[p.Block]

	switch {
	case b.IsAtomic():
		d.insertBlocks(p.Block+1, Paragraph())
		return Position{Block: p.Block + 1}

	case b.Kind == KindCode:
		return d.InsertText(p, "\n")

	case b.Kind == KindList:
		item := b.Items[p.Item]
		if RuneLen(item) == 0 {
			idx := d.InsertBlocksAt(p, Paragraph())
			return Position{Block: idx}
		}
		left, right := SplitSpans(item, p.Offset)
		items := cloneItems(b.Items[:p.Item])
		items = append(items, left, right)
		items = append(items, cloneItems(b.Items[p.Item+1:])...)
		d.Blocks[p.Block].Items = items
		return Position{Block: p.Block, Item: p.Item + 1}

	default:
		left, right := SplitSpans(b.Spans, p.Offset)
		head := b.Clone()
		head.Spans = left
		d.replaceBlock(p.Block, head, Paragraph(right...))
		return Position{Block: p.Block + 1}
	}
}

// Backspace はキャレット直前の1文字を削除し、新しいキャレット位置を返す。
// コンテナ先頭では、空の非段落ブロックを段落に戻すか、直前のコンテナと結合する。
func (d *Document) Backspace(p Position) Position {
	d.Normalize()
	p = d.Clamp(p)
	b := d.Blocks[p.Block]

	if p.Offset > 0 {
		return d.DeleteRange(Position{Block: p.Block, Item: p.Item, Offset: p.Offset - 1}, p)
	}

	if b.IsAtomic() {
		d.replaceBlock(p.Block, Paragraph())
		return Position{Block: p.Block}
	}
	if b.Kind != KindParagraph && b.Text() == "" {
		d.replaceBlock(p.Block, Paragraph())
		return Position{Block: p.Block}
	}
	if b.Kind == KindList && p.Item > 0 {
		prev := Position{Block: p.Block, Item: p.Item - 1}
		prev.Offset = RuneLen(d.containerSpans(prev))
		return d.DeleteRange(prev, p)
	}
	if p.Block == 0 {
		return p
	}

	prevBlock := d.Blocks[p.Block-1]
	if prevBlock.IsAtomic() {
		d.removeBlock(p.Block - 1)
		return Position{Block: p.Block - 1, Item: p.Item}
	}
	return d.DeleteRange(d.EndOf(p.Block-1), p)
}

// ReplaceBlock はブロックiを指定したブロック列で置き換える。
func (d *Document) ReplaceBlock(i int, blocks ...Block) {
	if i < 0 || i >= len(d.Blocks) {
		return
	}
	d.replaceBlock(i, blocks...)
	d.Normalize()
}

// PlainText は文書のテキストを改行区切りで返す。
// excludeCodeがtrueの場合、インラインコードとコードブロックを除外する。
// 画像はキャプションのみを含める。
func (d Document) PlainText(excludeCode bool) string {
	var parts []string
	text := func(spans []Span) string {
		var b strings.Builder
		for _, s := range spans {
			if excludeCode && s.Style == StyleCode {
				b.WriteString(" ")
				continue
			}
			b.WriteString(s.Text)
		}
		return b.String()
	}

	for _, b := range d.Blocks {
		switch {
		case b.Kind == KindCode:
			if !excludeCode {
				parts = append(parts, TextOf(b.Spans))
			}
		case b.IsText():
			parts = append(parts, text(b.Spans))
		case b.Kind == KindList:
			for _, it := range b.Items {
				parts = append(parts, text(it))
			}
		case b.Kind == KindImage:
			if b.Caption != "" {
				parts = append(parts, b.Caption)
			}
		}
	}
	return strings.Join(parts, "\n")
}

func (d *Document) replaceBlock(i int, blocks ...Block) {
	out := make([]Block, 0, len(d.Blocks)+len(blocks))
	out = append(out, d.Blocks[:i]...)
	out = append(out, blocks...)
	out = append(out, d.Blocks[i+1:]...)
	d.Blocks = out
	d.Normalize()
}

func (d *Document) insertBlocks(i int, blocks ...Block) {
	out := make([]Block, 0, len(d.Blocks)+len(blocks))
	out = append(out, d.Blocks[:i]...)
	out = append(out, blocks...)
	out = append(out, d.Blocks[i:]...)
	d.Blocks = out
	d.Normalize()
}

func (d *Document) removeBlock(i int) {
	d.Blocks = append(d.Blocks[:i:i], d.Blocks[i+1:]...)
	d.Normalize()
}

func cloneItems(items [][]Span) [][]Span {
	out := make([][]Span, len(items))
	for i, it := range items {
		out[i] = cloneSpans(it)
	}
	return out
}
