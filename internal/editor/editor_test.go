package editor

import (
	"errors"
	"testing"

	"github.com/hitoshi/gemblog/internal/document"
	"github.com/hitoshi/gemblog/internal/markdown"
)

// newTestEditor はテスト用のEditorと変更回数カウンタを返す。
func newTestEditor(doc document.Document) (*Editor, *StaticSelection, *int) {
	sel := NewStaticSelection()
	changes := 0
	e := New(doc, sel, WithOnChange(func() { changes++ }))
	return e, sel, &changes
}

func pos(block, item, offset int) document.Position {
	return document.Position{Block: block, Item: item, Offset: offset}
}

// typeText はキー入力を模倣して1文字ずつ入力する。空白はKeySpaceとして送る。
func typeText(e *Editor, text string) {
	for _, r := range text {
		if r == ' ' {
			e.HandleKey(KeySpace)
			continue
		}
		e.InsertText(string(r))
	}
}

// --- インライン書式 ---

// TestApplyInline_NoSelection_NoOp は選択がない場合に書式適用が何もしないことを検証する。
func TestApplyInline_NoSelection_NoOp(t *testing.T) {
	e, _, changes := newTestEditor(document.New(document.Paragraph(document.Span{Text: "abc"})))

	if e.ApplyInline(document.StyleBold) {
		t.Error("ApplyInline() = true, want false")
	}
	if *changes != 0 {
		t.Errorf("changes = %d, want 0", *changes)
	}
}

// TestApplyInline_CaretOnly_NoOp はキャレットのみの場合に書式適用が何もしないことを検証する。
func TestApplyInline_CaretOnly_NoOp(t *testing.T) {
	e, sel, changes := newTestEditor(document.New(document.Paragraph(document.Span{Text: "abc"})))
	sel.Report(Caret(pos(0, 0, 1)), nil)

	if e.ApplyInline(document.StyleItalic) {
		t.Error("ApplyInline() = true, want false")
	}
	if *changes != 0 {
		t.Errorf("changes = %d, want 0", *changes)
	}
}

// TestApplyInline_Range_StylesAndCollapses は範囲に書式が適用され、キャレットが範囲末尾に移ることを検証する。
func TestApplyInline_Range_StylesAndCollapses(t *testing.T) {
	e, sel, changes := newTestEditor(document.New(document.Paragraph(document.Span{Text: "um dois três"})))
	sel.Report(Selection{Anchor: pos(0, 0, 7), Focus: pos(0, 0, 3)}, nil)

	if !e.ApplyInline(document.StyleBold) {
		t.Fatal("ApplyInline() = false, want true")
	}
	if got := markdown.ToMarkdown(e.Document()); got != "um **dois** três" {
		t.Errorf("markdown = %q", got)
	}
	got, _ := sel.Selection()
	if !got.Collapsed() || got.Focus != pos(0, 0, 7) {
		t.Errorf("selection = %+v, want caret at end of range", got)
	}
	if *changes != 1 {
		t.Errorf("changes = %d, want 1", *changes)
	}
}

// TestApplyInline_Code はインラインコードの適用を検証する。
func TestApplyInline_Code(t *testing.T) {
	e, sel, _ := newTestEditor(document.New(document.Paragraph(document.Span{Text: "rode go test"})))
	sel.Report(Selection{Anchor: pos(0, 0, 5), Focus: pos(0, 0, 12)}, nil)

	e.ApplyInline(document.StyleCode)
	if got := markdown.ToMarkdown(e.Document()); got != "rode `go test`" {
		t.Errorf("markdown = %q", got)
	}
}

// --- ブロック変換 ---

// TestTransformBlock_Range は選択テキストが見出しになり、キャレットが直後に置かれることを検証する。
func TestTransformBlock_Range(t *testing.T) {
	e, sel, _ := newTestEditor(document.New(document.Paragraph(document.Span{Text: "Título"})))
	sel.Report(Selection{Anchor: pos(0, 0, 0), Focus: pos(0, 0, 6)}, nil)

	if !e.TransformBlock(BlockH1) {
		t.Fatal("TransformBlock() = false")
	}
	doc := e.Document()
	if doc.Blocks[0].Kind != document.KindHeading || doc.Blocks[0].Text() != "Título" {
		t.Fatalf("blocks = %+v", doc.Blocks)
	}
	got, _ := sel.Selection()
	if got.Focus != pos(1, 0, 0) || doc.Blocks[1].Kind != document.KindParagraph {
		t.Errorf("caret = %+v, blocks = %+v", got.Focus, doc.Blocks)
	}
}

// TestTransformBlock_PartialRangeSplitsParagraph は段落の一部を変換すると段落が分割されることを検証する。
func TestTransformBlock_PartialRangeSplitsParagraph(t *testing.T) {
	e, sel, _ := newTestEditor(document.New(document.Paragraph(document.Span{Text: "antes\ncitação\ndepois"})))
	sel.Report(Selection{Anchor: pos(0, 0, 6), Focus: pos(0, 0, 13)}, nil)

	e.TransformBlock(BlockQuote)
	if got := markdown.ToMarkdown(e.Document()); got != "antes\n\n> citação\n\ndepois" {
		t.Errorf("markdown = %q", got)
	}
}

// TestTransformBlock_Caret_CreatesEmptyBlock はキャレットのみで空のブロックが作られることを検証する。
func TestTransformBlock_Caret_CreatesEmptyBlock(t *testing.T) {
	e, sel, _ := newTestEditor(document.New())
	sel.Report(Caret(pos(0, 0, 0)), nil)

	if !e.TransformBlock(BlockH2) {
		t.Fatal("TransformBlock() = false")
	}
	doc := e.Document()
	if doc.Blocks[0].Kind != document.KindHeading || doc.Blocks[0].Level != 2 {
		t.Fatalf("blocks = %+v", doc.Blocks)
	}
	typeText(e, "Seção")
	if got := markdown.ToMarkdown(e.Document()); got != "## Seção" {
		t.Errorf("markdown = %q", got)
	}
}

// TestTransformBlock_NoSelection_NoOp は選択がない場合にブロック変換が何もしないことを検証する。
func TestTransformBlock_NoSelection_NoOp(t *testing.T) {
	e, _, changes := newTestEditor(document.New())
	if e.TransformBlock(BlockCode) || e.MakeList(true) || e.InsertDivider() {
		t.Error("operation without selection should be a no-op")
	}
	if *changes != 0 {
		t.Errorf("changes = %d, want 0", *changes)
	}
}

// TestMakeList_Range は選択テキストの各行がリスト項目になることを検証する。
func TestMakeList_Range(t *testing.T) {
	e, sel, _ := newTestEditor(document.New(
		document.Paragraph(document.Span{Text: "um"}),
		document.Paragraph(document.Span{Text: "dois"}),
		document.Paragraph(document.Span{Text: "três"}),
	))
	sel.Report(Selection{Anchor: pos(0, 0, 0), Focus: pos(2, 0, 4)}, nil)

	e.MakeList(true)
	if got := markdown.ToMarkdown(e.Document()); got != "1. um\n2. dois\n3. três" {
		t.Errorf("markdown = %q", got)
	}
}

// TestInsertDivider は区切り線が選択末尾に挿入されることを検証する。
func TestInsertDivider(t *testing.T) {
	e, sel, _ := newTestEditor(document.New(document.Paragraph(document.Span{Text: "ab"})))
	sel.Report(Caret(pos(0, 0, 2)), nil)

	e.InsertDivider()
	doc := e.Document()
	if len(doc.Blocks) != 3 || doc.Blocks[1].Kind != document.KindDivider {
		t.Fatalf("blocks = %+v", doc.Blocks)
	}
	got, _ := sel.Selection()
	if got.Focus != pos(2, 0, 0) {
		t.Errorf("caret = %+v", got.Focus)
	}
}

// TestInsertImage_DefaultAlt は代替テキストが記事タイトル、なければ既定値になることを検証する。
func TestInsertImage_DefaultAlt(t *testing.T) {
	sel := NewStaticSelection()
	title := ""
	e := New(document.New(), sel, WithImageAlt(func() string { return title }))

	sel.Report(Caret(pos(0, 0, 0)), nil)
	e.InsertImage("https://cdn.example.com/a.png", "")
	if alt := e.Document().Blocks[0].Alt; alt != "Imagem" {
		t.Errorf("alt = %q, want %q", alt, "Imagem")
	}

	title = "Meu artigo"
	e.InsertImage("https://cdn.example.com/b.png", "")
	for _, b := range e.Document().Blocks {
		if b.Src == "https://cdn.example.com/b.png" && b.Alt != "Meu artigo" {
			t.Errorf("alt = %q, want %q", b.Alt, "Meu artigo")
		}
	}
}

// TestSetCaption は画像キャプションの編集を検証する。
func TestSetCaption(t *testing.T) {
	e, _, _ := newTestEditor(document.New(document.Image("https://a/x.png", "Imagem", "")))
	if !e.SetCaption(0, "Legenda") {
		t.Fatal("SetCaption() = false")
	}
	if e.Document().Blocks[0].Caption != "Legenda" {
		t.Error("caption not set")
	}
	if e.SetCaption(5, "x") {
		t.Error("SetCaption(out of range) = true")
	}
}

// --- Markdownショートカット ---

// TestDetectShortcut はキーと行テキストからのショートカット判定を検証する。
func TestDetectShortcut(t *testing.T) {
	tests := []struct {
		name   string
		key    Key
		line   string
		want   ShortcutTarget
		prefix int
		ok     bool
	}{
		{"スペースで箇条書き", KeySpace, "-", TargetUnorderedList, 1, true},
		{"スペースで番号付き", KeySpace, "1.", TargetOrderedList, 2, true},
		{"空白付きのダッシュも一致", KeySpace, "- ", TargetUnorderedList, 2, true},
		{"文中のダッシュは不一致", KeySpace, "a-", "", 0, false},
		{"Enterで##はH2", KeyEnter, "## Título", TargetH2, 3, true},
		{"Enterで#はH1", KeyEnter, "# Título", TargetH1, 2, true},
		{"Enterで>は引用", KeyEnter, "> frase", TargetBlockquote, 2, true},
		{"Enterでバッククォート3つはコード", KeyEnter, "```", TargetCode, 3, true},
		{"空白なしの#は不一致", KeyEnter, "#hashtag", "", 0, false},
		{"スペースキーでは見出しにならない", KeySpace, "#", "", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sc, ok := DetectShortcut(tt.key, tt.line)
			if ok != tt.ok {
				t.Fatalf("ok = %v, want %v", ok, tt.ok)
			}
			if ok && (sc.Target != tt.want || sc.PrefixLen != tt.prefix) {
				t.Errorf("shortcut = %+v, want %s/%d", sc, tt.want, tt.prefix)
			}
		})
	}
}

// TestShortcut_HashSpaceEnter_MakesH1 は "# " を入力してEnterすると行がH1になることを検証する。
func TestShortcut_HashSpaceEnter_MakesH1(t *testing.T) {
	e, sel, _ := newTestEditor(document.New(document.Paragraph(document.Span{Text: "Hello World"})))
	sel.Report(Caret(pos(0, 0, 0)), nil)

	typeText(e, "# ")
	if !e.HandleKey(KeyEnter) {
		t.Fatal("HandleKey(enter) = false, want shortcut")
	}
	doc := e.Document()
	if doc.Blocks[0].Kind != document.KindHeading || doc.Blocks[0].Level != 1 || doc.Blocks[0].Text() != "Hello World" {
		t.Fatalf("blocks = %+v", doc.Blocks)
	}
	if got := markdown.ToMarkdown(doc); got != "# Hello World" {
		t.Errorf("markdown = %q", got)
	}
}

// TestShortcut_DoubleHashChecksBeforeSingle は "##" が "#" より先に判定されることを検証する。
func TestShortcut_DoubleHashChecksBeforeSingle(t *testing.T) {
	e, sel, _ := newTestEditor(document.New())
	sel.Report(Caret(pos(0, 0, 0)), nil)

	typeText(e, "## Seção")
	e.HandleKey(KeyEnter)

	doc := e.Document()
	if doc.Blocks[0].Level != 2 || doc.Blocks[0].Text() != "Seção" {
		t.Errorf("blocks = %+v", doc.Blocks)
	}
}

// TestShortcut_DashSpace_MakesList は "-" のあとにスペースを押すと空の箇条書きになることを検証する。
func TestShortcut_DashSpace_MakesList(t *testing.T) {
	e, sel, _ := newTestEditor(document.New())
	sel.Report(Caret(pos(0, 0, 0)), nil)

	e.InsertText("-")
	if !e.HandleKey(KeySpace) {
		t.Fatal("HandleKey(space) = false, want shortcut")
	}
	doc := e.Document()
	if doc.Blocks[0].Kind != document.KindList || doc.Blocks[0].Ordered {
		t.Fatalf("blocks = %+v", doc.Blocks)
	}
	if doc.Blocks[0].Text() != "" {
		t.Errorf("list item = %q, want empty", doc.Blocks[0].Text())
	}

	typeText(e, "item")
	if got := markdown.ToMarkdown(e.Document()); got != "- item" {
		t.Errorf("markdown = %q", got)
	}
}

// TestShortcut_DashSpace_KeepsTextAfterCaret はキャレットの後ろにテキストがある場合に
// スペースで行が置き換えられないことを検証する。
func TestShortcut_DashSpace_KeepsTextAfterCaret(t *testing.T) {
	e, sel, _ := newTestEditor(document.New(document.Paragraph(document.Span{Text: "-foo bar"})))
	sel.Report(Caret(pos(0, 0, 1)), nil)

	if e.HandleKey(KeySpace) {
		t.Fatal("HandleKey(space) = true, want plain space")
	}
	doc := e.Document()
	if doc.Blocks[0].Kind != document.KindParagraph || doc.Blocks[0].Text() != "- foo bar" {
		t.Errorf("blocks = %+v, want paragraph %q", doc.Blocks, "- foo bar")
	}
}

// TestShortcut_OneDotSpace_MakesOrderedList は "1." のあとにスペースで番号付きリストになることを検証する。
func TestShortcut_OneDotSpace_MakesOrderedList(t *testing.T) {
	e, sel, _ := newTestEditor(document.New())
	sel.Report(Caret(pos(0, 0, 0)), nil)

	typeText(e, "1. primeiro")
	e.HandleKey(KeyEnter)
	typeText(e, "segundo")

	if got := markdown.ToMarkdown(e.Document()); got != "1. primeiro\n2. segundo" {
		t.Errorf("markdown = %q", got)
	}
}

// TestShortcut_Backticks_MakesCodeBlock は "```" でEnterするとコードブロックになることを検証する。
func TestShortcut_Backticks_MakesCodeBlock(t *testing.T) {
	e, sel, _ := newTestEditor(document.New())
	sel.Report(Caret(pos(0, 0, 0)), nil)

	e.InsertText("```")
	e.HandleKey(KeyEnter)
	e.InsertText("x := 1")

	doc := e.Document()
	if doc.Blocks[0].Kind != document.KindCode || doc.Blocks[0].Text() != "x := 1" {
		t.Errorf("blocks = %+v", doc.Blocks)
	}
}

// TestShortcut_OnlyCurrentLineIsTransformed は複数行の段落で現在行だけが変換されることを検証する。
func TestShortcut_OnlyCurrentLineIsTransformed(t *testing.T) {
	e, sel, _ := newTestEditor(document.New(document.Paragraph(document.Span{Text: "linha\n> citação"})))
	sel.Report(Caret(pos(0, 0, 15)), nil)

	e.HandleKey(KeyEnter)
	if got := markdown.ToMarkdown(e.Document()); got != "linha\n\n> citação" {
		t.Errorf("markdown = %q", got)
	}
}

// TestHandleKey_EnterWithoutShortcut_SplitsParagraph はショートカットでないEnterで段落が分割されることを検証する。
func TestHandleKey_EnterWithoutShortcut_SplitsParagraph(t *testing.T) {
	e, sel, _ := newTestEditor(document.New())
	sel.Report(Caret(pos(0, 0, 0)), nil)

	typeText(e, "um")
	if e.HandleKey(KeyEnter) {
		t.Error("HandleKey(enter) = true, want false")
	}
	typeText(e, "dois")
	if got := markdown.ToMarkdown(e.Document()); got != "um\n\ndois" {
		t.Errorf("markdown = %q", got)
	}
}

// TestHandleKey_ShortcutIgnoredOutsideParagraph は見出し内ではショートカットが働かないことを検証する。
func TestHandleKey_ShortcutIgnoredOutsideParagraph(t *testing.T) {
	e, sel, _ := newTestEditor(document.New(document.Heading(1, document.Span{Text: "-"})))
	sel.Report(Caret(pos(0, 0, 1)), nil)

	if e.HandleKey(KeySpace) {
		t.Error("HandleKey(space) = true in heading")
	}
	if got := e.Document().Blocks[0].Text(); got != "- " {
		t.Errorf("heading = %q", got)
	}
}

// TestHandleKey_Backspace は範囲削除と1文字削除を検証する。
func TestHandleKey_Backspace(t *testing.T) {
	e, sel, _ := newTestEditor(document.New(document.Paragraph(document.Span{Text: "abcdef"})))
	sel.Report(Selection{Anchor: pos(0, 0, 1), Focus: pos(0, 0, 3)}, nil)

	e.HandleKey(KeyBackspace)
	e.HandleKey(KeyBackspace)
	if got := e.Document().Blocks[0].Text(); got != "def" {
		t.Errorf("text = %q, want %q", got, "def")
	}
}

// --- スラッシュコマンド ---

// TestSlashCommand はスラッシュメニューの開閉とコマンド実行を検証する。
func TestSlashCommand(t *testing.T) {
	e, sel, _ := newTestEditor(document.New())
	sel.Report(Caret(pos(0, 0, 0)), nil)

	e.HandleKey(KeySlash)
	if !e.SlashMenuOpen() {
		t.Fatal("menu should open after slash")
	}
	if err := e.ExecCommand(CommandH1, ""); err != nil {
		t.Fatalf("ExecCommand() error = %v", err)
	}
	if e.SlashMenuOpen() {
		t.Error("menu should close after command")
	}
	doc := e.Document()
	if doc.Blocks[0].Kind != document.KindHeading || doc.Blocks[0].Text() != "" {
		t.Errorf("blocks = %+v, want empty heading without slash", doc.Blocks)
	}

	e.HandleKey(KeySlash)
	e.HandleKey(KeyEscape)
	if e.SlashMenuOpen() {
		t.Error("menu should close on escape")
	}
}

// TestExecCommand_Errors は画像URLなしと未知のコマンドがエラーになることを検証する。
func TestExecCommand_Errors(t *testing.T) {
	e, sel, _ := newTestEditor(document.New())
	sel.Report(Caret(pos(0, 0, 0)), nil)

	if err := e.ExecCommand(CommandImage, ""); !errors.Is(err, ErrMissingImageSource) {
		t.Errorf("err = %v, want ErrMissingImageSource", err)
	}
	if err := e.ExecCommand(Command("table"), ""); err == nil {
		t.Error("unknown command should fail")
	}
}

// TestExecCommand_InvalidKeepsSlash は失敗したコマンドが "/" とメニューを残すことを検証する。
func TestExecCommand_InvalidKeepsSlash(t *testing.T) {
	e, sel, changes := newTestEditor(document.New())
	sel.Report(Caret(pos(0, 0, 0)), nil)
	e.HandleKey(KeySlash)
	before := *changes

	if err := e.ExecCommand(Command("table"), ""); err == nil {
		t.Fatal("unknown command should fail")
	}
	if !e.SlashMenuOpen() {
		t.Error("menu should stay open")
	}
	if got := e.Document().Blocks[0].Text(); got != "/" {
		t.Errorf("text = %q, want %q", got, "/")
	}
	if *changes != before {
		t.Errorf("changes = %d, want %d", *changes, before)
	}
}

// TestEditor_SnapshotRestore は保存した文書とメニューの状態に戻せることを検証する。
func TestEditor_SnapshotRestore(t *testing.T) {
	e, sel, changes := newTestEditor(document.New())
	sel.Report(Caret(pos(0, 0, 0)), nil)
	e.HandleKey(KeySlash)
	snap := e.Snapshot()

	e.HandleKey(KeyEscape)
	e.InsertText("abc")
	before := *changes
	e.Restore(snap)

	if got := e.Document().Blocks[0].Text(); got != "/" {
		t.Errorf("text = %q, want %q", got, "/")
	}
	if !e.SlashMenuOpen() {
		t.Error("menu state should be restored")
	}
	if *changes != before {
		t.Error("Restore should not notify changes")
	}
}

// --- トラッカー ---

// TestTracker_Snapshot は選択状態とツールバー表示を検証する。
func TestTracker_Snapshot(t *testing.T) {
	doc := document.New(document.Paragraph(document.Span{Text: "linha um\n# dois"}))
	sel := NewStaticSelection()
	tr := NewTracker(sel)

	if st := tr.Snapshot(doc); st.Kind != SelectionNone || st.Toolbar.Visible {
		t.Errorf("no selection state = %+v", st)
	}

	sel.Report(Caret(pos(0, 0, 11)), nil)
	st := tr.Snapshot(doc)
	if st.Kind != SelectionCaret || st.LineText != "# " {
		t.Errorf("caret state = %+v", st)
	}
	if st.Toolbar.Visible {
		t.Error("toolbar should be hidden for caret")
	}

	sel.Report(Selection{Anchor: pos(0, 0, 0), Focus: pos(0, 0, 5)}, &Rect{Top: 100, Left: 50, Width: 200, Height: 20})
	st = tr.Snapshot(doc)
	if st.Kind != SelectionRange || !st.Toolbar.Visible {
		t.Fatalf("range state = %+v", st)
	}
	if st.Toolbar.Top != 56 || st.Toolbar.Left != 70 {
		t.Errorf("toolbar = %+v, want top=56 left=70", st.Toolbar)
	}

	// 矩形が不明な範囲選択ではツールバーを表示しない
	sel.SetSelection(Selection{Anchor: pos(0, 0, 0), Focus: pos(0, 0, 5)})
	if st := tr.Snapshot(doc); st.Toolbar.Visible {
		t.Error("toolbar should be hidden without bounds")
	}
}

// TestTracker_ClampsOutOfRangeSelection は範囲外の選択が丸められることを検証する。
func TestTracker_ClampsOutOfRangeSelection(t *testing.T) {
	doc := document.New(document.Paragraph(document.Span{Text: "abc"}))
	sel := NewStaticSelection()
	sel.Report(Caret(pos(9, 0, 99)), nil)

	st := NewTracker(sel).Snapshot(doc)
	if st.Selection.Focus != pos(0, 0, 3) {
		t.Errorf("focus = %+v, want clamped", st.Selection.Focus)
	}
}
