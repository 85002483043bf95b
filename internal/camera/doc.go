// Package camera カメラデバイスからのフレーム取得を担う
//
// # 責務
// - キャプチャデバイスを開き、実際に設定された解像度を確認する
// - 読み取りゴルーチンで最新フレームを更新し続ける
// - 最新フレームの複製をロック待ちなしで提供する
// - V4L2デバイスの検出と実名取得
//
// # 仕様
// - FrameSource: 最新フレームを1枚だけ保持し、Snapshotで複製を返す
// - Device: バックエンドごとの読み取り実装 (ffmpeg, x11, opencv)
// - DeviceFactory: バックエンド名からDeviceを作成する
// - Discovery: /dev/video* の検出
//
// # 前提要件
//   - v4l-utils: カメラ名の取得に使用
//     Ubuntu/Debian: sudo apt install v4l-utils
//   - ffmpeg: ffmpegバックエンドでの画像キャプチャに使用
//     Ubuntu/Debian: sudo apt install ffmpeg
//   - videoグループへの参加: デバイスアクセス権限
//     sudo usermod -a -G video $USER
package camera
