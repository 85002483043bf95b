package server

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/jpeg"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"ufowatch/internal/camera"
	"ufowatch/internal/generated"
	"ufowatch/internal/recorder"
	"ufowatch/internal/results"
)

// maxTriggerSize はトリガー画像として受け付ける最大サイズ
const maxTriggerSize = 16 << 20

// Recorder は録画セッションの操作
type Recorder interface {
	Start(trigger camera.Frame) bool
	Stop(save bool) bool
	SetRectangle(rect image.Rectangle, positive bool)
	Status() recorder.Status
}

// Snapshotter は最新フレームを返す
type Snapshotter interface {
	Snapshot() camera.Frame
	Resolution() camera.Resolution
}

// ResultLister は保存した録画の記録を返す
type ResultLister interface {
	List() []results.Entry
}

// Deps はハンドラーが使う部品
type Deps struct {
	Recorder  Recorder
	Camera    Snapshotter
	Results   ResultLister     // nilなら空の一覧を返す
	Discovery camera.Discovery // nilならデバイス一覧は空
	Codecs    recorder.CodecSupport
	Logger    *logrus.Entry
}

// APIHandler は生成されたServerInterfaceを実装する
type APIHandler struct {
	deps Deps
}

var _ generated.ServerInterface = (*APIHandler)(nil)

// HealthCheck はヘルスチェックエンドポイントの実装
func (h *APIHandler) HealthCheck(c *gin.Context) {
	response := generated.HealthResponse{
		Status:    generated.Healthy,
		Timestamp: time.Now(),
	}

	c.JSON(http.StatusOK, response)
}

// StartRecording はトリガー画像を先頭にして録画を開始する
// 本文がJPEGならそれをトリガーにし、なければ現在のフレームを使う。
func (h *APIHandler) StartRecording(c *gin.Context) {
	trigger, err := h.triggerFrame(c)
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "invalid_trigger", "トリガー画像を読み込めません: "+err.Error())
		return
	}

	if !h.deps.Recorder.Start(trigger) {
		abortWithError(c, http.StatusConflict, "already_recording", "既に録画中です")
		return
	}

	c.JSON(http.StatusAccepted, convertRecorderStatus(h.deps.Recorder.Status()))
}

func (h *APIHandler) triggerFrame(c *gin.Context) (camera.Frame, error) {
	if !strings.HasPrefix(c.ContentType(), "image/") {
		return h.deps.Camera.Snapshot(), nil
	}

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxTriggerSize))
	if err != nil {
		return camera.Frame{}, err
	}
	if len(body) == 0 {
		return h.deps.Camera.Snapshot(), nil
	}

	img, err := jpeg.Decode(bytes.NewReader(body))
	if err != nil {
		return camera.Frame{}, err
	}
	return camera.NewFrame(img), nil
}

// StopRecording は録画を停止する。save を省略した場合は保存する
func (h *APIHandler) StopRecording(c *gin.Context) {
	var req generated.StopRecordingJSONRequestBody
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
			abortWithError(c, http.StatusBadRequest, "invalid_request", err.Error())
			return
		}
	}
	save := req.Save == nil || *req.Save

	if !h.deps.Recorder.Stop(save) {
		abortWithError(c, http.StatusConflict, "not_recording", "録画していません")
		return
	}

	c.JSON(http.StatusOK, convertRecorderStatus(h.deps.Recorder.Status()))
}

// SetRectangle は次に描画する注目領域を設定する
// 幅と高さが負でないことはリクエストの検証で確認済み。
func (h *APIHandler) SetRectangle(c *gin.Context) {
	var req generated.SetRectangleJSONRequestBody
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	rect := image.Rect(req.X, req.Y, req.X+req.Width, req.Y+req.Height)
	positive := req.Positive != nil && *req.Positive
	h.deps.Recorder.SetRectangle(rect, positive)
	c.Status(http.StatusNoContent)
}

// GetStatus は録画の状態を返す
func (h *APIHandler) GetStatus(c *gin.Context) {
	res := h.deps.Camera.Resolution()
	response := generated.StatusResponse{
		Recorder: convertRecorderStatus(h.deps.Recorder.Status()),
		Resolution: generated.Resolution{
			Width:  res.Width,
			Height: res.Height,
		},
		Timestamp: time.Now(),
	}

	c.JSON(http.StatusOK, response)
}

// GetResults は保存した録画の一覧を返す
// limit を指定した場合は新しい方からその件数だけ返す。
func (h *APIHandler) GetResults(c *gin.Context, params generated.GetResultsParams) {
	entries := h.resultEntries()
	if params.Limit != nil && *params.Limit >= 0 && *params.Limit < len(entries) {
		entries = entries[len(entries)-*params.Limit:]
	}

	response := generated.ResultsResponse{
		Results: make([]generated.ResultEntry, 0, len(entries)),
	}
	for _, e := range entries {
		response.Results = append(response.Results, convertResultEntry(e))
	}

	c.JSON(http.StatusOK, response)
}

// GetResult は保存した録画の記録を1件返す
func (h *APIHandler) GetResult(c *gin.Context, resultID string) {
	for _, e := range h.resultEntries() {
		if e.ID == resultID {
			c.JSON(http.StatusOK, convertResultEntry(e))
			return
		}
	}
	abortWithError(c, http.StatusNotFound, "result_not_found", "指定された録画が見つかりません")
}

func (h *APIHandler) resultEntries() []results.Entry {
	if h.deps.Results == nil {
		return nil
	}
	return h.deps.Results.List()
}

// GetSnapshot は現在のフレームをJPEGで返す
func (h *APIHandler) GetSnapshot(c *gin.Context) {
	frame := h.deps.Camera.Snapshot()
	if frame.Empty() {
		abortWithError(c, http.StatusServiceUnavailable, "no_frame", "カメラからフレームが届いていません")
		return
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, frame.Image, &jpeg.Options{Quality: 85}); err != nil {
		abortWithError(c, http.StatusInternalServerError, "encode_failed", err.Error())
		return
	}

	c.Header("Cache-Control", "no-cache")
	c.Data(http.StatusOK, "image/jpeg", buf.Bytes())
}

// GetDevices は接続されているカメラデバイスの一覧を返す
func (h *APIHandler) GetDevices(c *gin.Context) {
	response := generated.DevicesResponse{Devices: []generated.DeviceInfo{}}
	if h.deps.Discovery == nil {
		c.JSON(http.StatusOK, response)
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	paths, err := h.deps.Discovery.ScanDevices(ctx)
	if err != nil {
		abortWithError(c, http.StatusInternalServerError, "scan_failed", err.Error())
		return
	}
	for _, path := range paths {
		info, err := h.deps.Discovery.GetDeviceInfo(ctx, path)
		if err != nil {
			h.deps.Logger.WithError(err).WithField("device", path).Debug("デバイス情報の取得に失敗")
			continue
		}
		response.Devices = append(response.Devices, generated.DeviceInfo{
			Device: info.Device,
			Name:   info.Name,
			Driver: info.Driver,
		})
	}

	c.JSON(http.StatusOK, response)
}

// GetCodecs は既知のコーデックと対応状況を返す
func (h *APIHandler) GetCodecs(c *gin.Context) {
	codecs := recorder.Codecs()
	response := generated.CodecsResponse{
		Codecs: make([]generated.CodecInfo, 0, len(codecs)),
	}
	for _, codec := range codecs {
		response.Codecs = append(response.Codecs, generated.CodecInfo{
			Fourcc:       codec.FourCC,
			Name:         codec.Name,
			EncoderCodec: optionalString(codec.Encoder),
			Native:       h.deps.Codecs.IsNativeSupported(codec.FourCC),
			Encoder:      h.deps.Codecs.IsEncoderSupported(codec.FourCC),
		})
	}

	c.JSON(http.StatusOK, response)
}

// ヘルパー関数

// abortWithError はエラーレスポンスを返して処理を中断する
func abortWithError(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, generated.ErrorResponse{
		Error:     code,
		Message:   message,
		Timestamp: time.Now(),
	})
}

// convertRecorderStatus は録画の状態を生成されたスキーマに変換する
func convertRecorderStatus(st recorder.Status) generated.RecorderStatus {
	status := generated.RecorderStatus{
		State:         generated.RecorderStatusState(st.State),
		SessionId:     optionalString(st.SessionID),
		QueueLength:   st.QueueLength,
		QueueCapacity: st.QueueCapacity,
		EncodingJobs:  st.EncodingJobs,
	}
	if st.Plan != nil {
		status.Plan = &generated.CodecPlan{
			RecordFourcc: st.Plan.RecordFourCC,
			EncoderCodec: optionalString(st.Plan.EncoderCodec),
		}
	}
	if st.LastResult != nil {
		result := convertRecordingResult(*st.LastResult)
		status.LastResult = &result
	}
	if len(st.Jobs) > 0 {
		jobs := make([]generated.EncodeJob, 0, len(st.Jobs))
		for _, job := range st.Jobs {
			jobs = append(jobs, generated.EncodeJob{
				Id:        job.ID,
				Codec:     job.Codec,
				FinalPath: job.FinalPath,
				StartedAt: job.StartedAt,
			})
		}
		status.Jobs = &jobs
	}
	return status
}

// convertRecordingResult は録画の結果を生成されたスキーマに変換する
func convertRecordingResult(r recorder.Result) generated.RecordingResult {
	return generated.RecordingResult{
		Id:            r.ID,
		Stamp:         r.Stamp,
		StartedAt:     r.StartedAt,
		VideoPath:     optionalString(r.VideoPath),
		ThumbnailPath: optionalString(r.ThumbnailPath),
		Duration:      r.DurationLabel,
		Codec:         r.Codec,
		Saved:         r.Saved,
		Encoded:       r.Encoded,
		Error:         optionalString(r.Error),
		Stats: generated.RecordingStats{
			FramesCaptured: r.Stats.FramesCaptured,
			FramesWritten:  r.Stats.FramesWritten,
			Duplicates:     r.Stats.Duplicates,
			WriteErrors:    r.Stats.WriteErrors,
			EmptySnapshots: r.Stats.EmptySnapshots,
		},
	}
}

// convertResultEntry は録画の記録を生成されたスキーマに変換する
func convertResultEntry(e results.Entry) generated.ResultEntry {
	return generated.ResultEntry{
		Id:       e.ID,
		DateTime: e.DateTime,
		Length:   e.Length,
		SavedAt:  e.SavedAt,
	}
}

// optionalString は空文字列ならnilを返す
func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
