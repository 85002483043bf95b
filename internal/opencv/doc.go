// Package opencv はOpenCV(gocv)を使ったカメラの読み取りと動画ファイルの書き込みを提供する
//
// camera.Device と recorder.ContainerBackend の実装を持つ。
// ビルドにはOpenCVのライブラリが必要。
package opencv
