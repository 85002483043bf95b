package recorder

import (
	"errors"
	"image"
)

// ErrContainerOpen は動画ファイルを開けなかったときに返される
var ErrContainerOpen = errors.New("video container open failed")

// Container はフレームを順に書き込む動画ファイル
type Container interface {
	Write(img *image.RGBA) error
	Close() error
}

// ContainerBackend は動画ファイルを開くバックエンド
type ContainerBackend interface {
	NativeProber

	// OpenContainer は fourcc と fps で size の動画ファイルを作成する
	OpenContainer(path, fourcc string, fps float64, size image.Point) (Container, error)
}
