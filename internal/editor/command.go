package editor

import (
	"errors"
	"fmt"
	"strings"
)

// Command はスラッシュメニューおよびツールバーから実行するコマンド。
type Command string

// コマンドの定義。
const (
	CommandH1          Command = "h1"
	CommandH2          Command = "h2"
	CommandList        Command = "list"
	CommandOrderedList Command = "ordered-list"
	CommandQuote       Command = "quote"
	CommandCode        Command = "code"
	CommandImage       Command = "image"
	CommandDivider     Command = "divider"
)

// MenuItem はスラッシュメニューの項目。
type MenuItem struct {
	Command Command `json:"command"`
	Label   string  `json:"label"`
}

// SlashMenu はスラッシュメニューの項目を表示順で返す。
func SlashMenu() []MenuItem {
	return []MenuItem{
		{CommandH1, "Heading 1"},
		{CommandH2, "Heading 2"},
		{CommandList, "Lista"},
		{CommandOrderedList, "Lista ordenada"},
		{CommandQuote, "Citação"},
		{CommandCode, "Bloco de código"},
		{CommandImage, "Imagem"},
		{CommandDivider, "Divisor"},
	}
}

// ErrMissingImageSource は画像コマンドに画像URLが指定されていない場合のエラー。
var ErrMissingImageSource = errors.New("image command requires a source")

// ExecCommand はコマンドを実行し、スラッシュメニューを閉じる。
// メニューから実行した場合は、メニューを開いた "/" を取り除いてから実行する。
// argは画像コマンドの画像URLとして使う。
// 検証に失敗した場合は文書もメニューも変更しない。
func (e *Editor) ExecCommand(cmd Command, arg string) error {
	if err := cmd.Validate(arg); err != nil {
		return err
	}

	if e.menuOpen {
		e.menuOpen = false
		e.removeSlashTrigger()
	}

	switch cmd {
	case CommandH1:
		e.TransformBlock(BlockH1)
	case CommandH2:
		e.TransformBlock(BlockH2)
	case CommandQuote:
		e.TransformBlock(BlockQuote)
	case CommandCode:
		e.TransformBlock(BlockCode)
	case CommandList:
		e.MakeList(false)
	case CommandOrderedList:
		e.MakeList(true)
	case CommandDivider:
		e.InsertDivider()
	case CommandImage:
		e.InsertImage(arg, "")
	}
	return nil
}

// Validate はコマンド名と引数を検証する。
func (c Command) Validate(arg string) error {
	for _, item := range SlashMenu() {
		if item.Command != c {
			continue
		}
		if c == CommandImage && arg == "" {
			return ErrMissingImageSource
		}
		return nil
	}
	return fmt.Errorf("unknown command: %q", c)
}

// removeSlashTrigger はキャレット直前の "/" を削除する。
func (e *Editor) removeSlashTrigger() {
	sel, ok := e.selection()
	if !ok || !sel.Collapsed() || sel.Focus.Offset == 0 {
		return
	}
	_, _, before := e.doc.LineAt(sel.Focus)
	if !strings.HasSuffix(before, "/") {
		return
	}
	start := sel.Focus
	start.Offset--
	e.setCaret(e.doc.DeleteRange(start, sel.Focus))
}
