package main

import (
	"context"
	"log"
	"os"

	"ufowatch/internal/app"
	"ufowatch/internal/config"
	"ufowatch/internal/logging"
)

func main() {
	// 設定を読み込む
	cfg, err := config.Load(os.Getenv("UFOWATCH_CONFIG"))
	if err != nil {
		log.Fatalf("設定の読み込みに失敗しました: %v", err)
	}

	logger, err := logging.Setup(cfg.Log.Level, cfg.Log.Format, os.Stderr)
	if err != nil {
		log.Fatalf("ロガーの初期化に失敗しました: %v", err)
	}

	ctx := context.Background()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.WithError(err).Fatal("起動に失敗しました")
	}

	if err := a.Run(ctx); err != nil {
		logger.WithError(err).Error("サーバーが異常終了しました")
		os.Exit(1)
	}
}
