package recorder

import (
	"bufio"
	"context"
	"os/exec"
	"strings"
	"time"
)

// RawFourCC は外部エンコード前の一時録画に使う非圧縮コーデック
const RawFourCC = "IYUV"

// Codec は録画に使えるコーデック
type Codec struct {
	FourCC  string `json:"fourcc"`
	Name    string `json:"name"`
	Encoder string `json:"encoder,omitempty"` // 外部エンコーダーの -vcodec 引数
}

var codecs = []Codec{
	{FourCC: RawFourCC, Name: "Raw video", Encoder: "rawvideo"},
	{FourCC: "FFV1", Name: "FFV1 (lossless)", Encoder: "ffv1"},
	{FourCC: "LAGS", Name: "Lagarith (lossless)"},
	{FourCC: "MJPG", Name: "Motion JPEG", Encoder: "mjpeg"},
	{FourCC: "XVID", Name: "Xvid MPEG-4", Encoder: "libxvid"},
	{FourCC: "H264", Name: "H.264", Encoder: "libx264"},
}

// Codecs は既知のコーデック一覧を返す
func Codecs() []Codec {
	out := make([]Codec, len(codecs))
	copy(out, codecs)
	return out
}

// LookupCodec はFourCCからコーデックを探す
func LookupCodec(fourcc string) (Codec, bool) {
	for _, c := range codecs {
		if strings.EqualFold(c.FourCC, fourcc) {
			return c, true
		}
	}
	return Codec{}, false
}

// NativeProber はコンテナバックエンドが直接書けるコーデックを判定する
type NativeProber interface {
	SupportsCodec(fourcc string) bool
}

// CodecSupport はコーデックごとの対応状況
type CodecSupport struct {
	Native  map[string]bool `json:"native"`
	Encoder map[string]bool `json:"encoder"`
}

// IsNativeSupported はコンテナバックエンドが直接書けるかを返す
func (s CodecSupport) IsNativeSupported(fourcc string) bool {
	return s.Native[strings.ToUpper(fourcc)]
}

// IsEncoderSupported は外部エンコーダーで変換できるかを返す
func (s CodecSupport) IsEncoderSupported(fourcc string) bool {
	return s.Encoder[strings.ToUpper(fourcc)]
}

// CodecPlan は1回の録画でのコーデックの使い方
type CodecPlan struct {
	RecordFourCC string // 一時ファイルに書くコーデック
	EncoderCodec string // 空でなければ録画後にこのコーデックへ変換する
}

// Final は一時ファイルがそのまま最終ファイルになるかを返す
func (p CodecPlan) Final() bool {
	return p.EncoderCodec == ""
}

// SelectCodec は希望するコーデックと対応状況から録画方法を決める
// 直接書ければそのまま録画し、書けなければ非圧縮で録画して外部エンコーダーで変換する。
// エンコーダーも対応していなければ非圧縮のファイルを最終結果とする。
func SelectCodec(desired string, support CodecSupport) CodecPlan {
	if support.IsNativeSupported(desired) {
		return CodecPlan{RecordFourCC: strings.ToUpper(desired)}
	}

	plan := CodecPlan{RecordFourCC: RawFourCC}
	if c, ok := LookupCodec(desired); ok && c.Encoder != "" && support.IsEncoderSupported(desired) {
		plan.EncoderCodec = c.Encoder
	}
	return plan
}

// ProbeCodecSupport は既知のコーデックについて対応状況を調べる
// encoderLocation が空の場合は外部エンコーダーを使わない。
func ProbeCodecSupport(ctx context.Context, prober NativeProber, encoderLocation string) CodecSupport {
	support := CodecSupport{
		Native:  make(map[string]bool),
		Encoder: make(map[string]bool),
	}

	for _, c := range codecs {
		if prober != nil && prober.SupportsCodec(c.FourCC) {
			support.Native[c.FourCC] = true
		}
	}

	if encoderLocation == "" {
		return support
	}

	available, err := listEncoders(ctx, encoderLocation)
	if err != nil {
		return support
	}
	for _, c := range codecs {
		if c.Encoder != "" && available[c.Encoder] {
			support.Encoder[c.FourCC] = true
		}
	}

	return support
}

// listEncoders は `<encoder> -encoders` の出力からエンコーダー名を集める
func listEncoders(ctx context.Context, encoderLocation string) (map[string]bool, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	output, err := exec.CommandContext(ctx, encoderLocation, "-hide_banner", "-encoders").Output()
	if err != nil {
		return nil, err
	}
	return parseEncoderList(string(output)), nil
}

// parseEncoderList は " V..... ffv1   FFmpeg video codec #1" 形式の行を解析する
func parseEncoderList(output string) map[string]bool {
	encoders := make(map[string]bool)

	scanner := bufio.NewScanner(strings.NewReader(output))
	inList := false
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		// 凡例の後の区切り行から一覧が始まる
		if len(fields) == 1 && fields[0] == "------" {
			inList = true
			continue
		}
		if !inList || len(fields) < 2 {
			continue
		}
		if flags := fields[0]; len(flags) == 6 && flags[0] == 'V' {
			encoders[fields[1]] = true
		}
	}

	return encoders
}
