package recorder

import (
	"fmt"
	"image"
	"image/jpeg"
	"os"

	xdraw "golang.org/x/image/draw"
)

const (
	thumbnailSide    = 80
	thumbnailQuality = 90
)

// ThumbnailSize は元画像のアスペクト比から縮小画像の大きさを決める
// 幅は80固定で、高さは40から80の範囲に収める。
func ThumbnailSize(width, height int) image.Point {
	if width <= 0 || height <= 0 {
		return image.Pt(thumbnailSide, thumbnailSide)
	}
	aspect := float64(width) / float64(height)
	h := int(float64(thumbnailSide) / aspect)
	h = max(thumbnailSide/2, min(h, thumbnailSide))
	return image.Pt(thumbnailSide, h)
}

// scaleImage はimgをsizeにバイキュービックで縮小する
func scaleImage(img image.Image, size image.Point) *image.RGBA {
	dst := image.NewRGBA(image.Rectangle{Max: size})
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), img, img.Bounds(), xdraw.Src, nil)
	return dst
}

// WriteThumbnail は縮小画像をJPEGで保存する
func WriteThumbnail(path string, img image.Image) error {
	b := img.Bounds()
	thumb := scaleImage(img, ThumbnailSize(b.Dx(), b.Dy()))

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("サムネイルファイルの作成に失敗: %w", err)
	}
	if err := jpeg.Encode(f, thumb, &jpeg.Options{Quality: thumbnailQuality}); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return fmt.Errorf("サムネイルのエンコードに失敗: %w", err)
	}
	return f.Close()
}
