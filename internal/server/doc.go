// Package server は録画を操作するHTTP APIを提供します。
//
// 検出器などの外部プロセスはこのAPIを通して録画の開始と停止、
// 注目領域の設定を行います。
//
// 責務:
//   - HTTPサーバーの起動とグレースフルシャットダウン
//   - 録画の開始・停止と注目領域の設定
//   - 録画状態と保存済み録画の一覧の提供
//   - 現在のカメラ画像の配信
//
// 仕様:
//   - Ginを使用
//   - 認証はHS256で署名したトークン (設定で秘密鍵が空なら無効)
//   - /health は認証なしで応答する
package server
