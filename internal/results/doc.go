// Package results は保存した録画の記録を管理する
package results
