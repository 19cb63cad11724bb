// Command wecom-coupon は企業微信サイドバー向けの兑换码発行サーバーを起動する。
//
// 使い方:
//
//	wecom-coupon [serve|migrate|healthcheck]
package main

import (
	"log/slog"
	"os"

	"github.com/DaneelOlivaw1/wecom-coupon-generator/internal/app"
)

func main() {
	if err := app.Run(os.Stdout, os.Args[1:]); err != nil {
		slog.Error("application exited with error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
