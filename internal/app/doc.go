// Package app は設定から各部品を組み立ててサーバーを動かす
package app
