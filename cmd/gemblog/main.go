// gemblog はブログのAPIサーバーと運用サブコマンドのエントリーポイント。
//
//	gemblog [serve]          APIサーバーを起動する
//	gemblog migrate          マイグレーションを適用する
//	gemblog cleanup          期限切れセッションを削除する
//	gemblog create-admin     管理者を作成する (-email, -name, -password)
//	gemblog healthcheck      /healthを確認する
package main

import (
	"fmt"
	"os"

	"github.com/hitoshi/gemblog/internal/app"
)

func main() {
	if err := app.Run(os.Stdout, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "gemblog: %v\n", err)
		os.Exit(1)
	}
}
