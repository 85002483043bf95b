package recorder

import (
	"image"
	"image/color"
)

var (
	// PositiveColor は検出が確定した物体の枠の色
	PositiveColor = color.RGBA{B: 255, A: 255}
	// NegativeColor は検出が否定された物体の枠の色
	NegativeColor = color.RGBA{R: 255, A: 255}
)

// Detection は検出器から渡される注目領域
type Detection struct {
	Rect     image.Rectangle
	Positive bool
}

// Color は枠の描画色を返す
func (d Detection) Color() color.RGBA {
	if d.Positive {
		return PositiveColor
	}
	return NegativeColor
}

// drawRectangle はimgに1画素幅の枠を描く。画像の外にはみ出た部分は描かない
func drawRectangle(img *image.RGBA, r image.Rectangle, c color.RGBA) {
	r = r.Canon()
	if r.Empty() {
		return
	}
	x0, y0, x1, y1 := r.Min.X, r.Min.Y, r.Max.X-1, r.Max.Y-1
	clip := r.Intersect(img.Bounds())
	if clip.Empty() {
		return
	}

	for x := clip.Min.X; x < clip.Max.X; x++ {
		img.SetRGBA(x, y0, c)
		img.SetRGBA(x, y1, c)
	}
	for y := clip.Min.Y; y < clip.Max.Y; y++ {
		img.SetRGBA(x0, y, c)
		img.SetRGBA(x1, y, c)
	}
}
