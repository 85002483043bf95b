package recorder

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const (
	// StampLayout は録画ファイル名とサムネイル名に使う日時の書式
	StampLayout = "2006-01-02--15-04-05"

	// ThumbnailDir は結果ディレクトリ内のサムネイル置き場
	ThumbnailDir = "thumbnails"

	thumbnailExt = ".jpg"
)

// videoPaths は一時ファイルと最終ファイルのパスを返す
func videoPaths(dir, stamp, ext string) (temp, final string) {
	base := filepath.Join(dir, "Capture--"+stamp)
	return base + "temp" + ext, base + ext
}

// thumbnailPath はサムネイルのパスを返す
func thumbnailPath(dir, stamp string) string {
	return filepath.Join(dir, ThumbnailDir, stamp+thumbnailExt)
}

// uniqueStamp は既存のファイルと重ならない日時文字列を返す
// 同じ秒に複数の録画が始まった場合は連番を付ける。
func uniqueStamp(dir, ext string, t time.Time) string {
	base := t.Format(StampLayout)
	stamp := base
	for n := 2; ; n++ {
		temp, final := videoPaths(dir, stamp, ext)
		if !exists(temp) && !exists(final) {
			return stamp
		}
		stamp = fmt.Sprintf("%s-%d", base, n)
	}
}

// DurationLabel は録画時間を "mm:ss" 形式にする
func DurationLabel(d time.Duration) string {
	ms := d.Milliseconds()
	return fmt.Sprintf("%02d:%02d", ms/60000, (ms%60000)/1000)
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
