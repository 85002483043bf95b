// Package recorder はトリガーを受けてカメラ映像を実時間で録画する
//
// # 責務
// - 一定のフレームレートで最新フレームを取得し、遅れた周期はフレームの複製で埋める
// - プロデューサーからライターへフレームを順番通りに渡す
// - 動画ファイルへの書き込みと、録画後のサムネイル作成・情報記録
// - 直接書けないコーデックは非圧縮で録画して外部エンコーダーで変換する
//
// # 仕様
// - Session: Idle → Recording → Stopping → Idle の状態を持つ
// - FrameQueue: 容量を超えても破棄しないFIFO。容量超過は警告のみ
// - Coordinator: エンコードプロセスごとに終了を待ち、全て終わったら通知する
// - 停止時はキューに残ったフレームを全て書き込んでから後処理を行う
package recorder
