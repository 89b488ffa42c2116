package variant

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"testing"

	"github.com/tahmidi1980-dev/facecomparison3llm/internal/compare"
	"github.com/tahmidi1980-dev/facecomparison3llm/internal/faceapi"
)

// stubDetector returns a fixed detection response or error.
type stubDetector struct {
	resp *faceapi.DetectResponse
	err  error
}

func (s *stubDetector) DetectFaces(ctx context.Context, imageData []byte) (*faceapi.DetectResponse, error) {
	return s.resp, s.err
}

func testImage(t *testing.T, width, height int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for x := range width {
		for y := range height {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}); err != nil {
		t.Fatalf("failed to encode test image: %v", err)
	}
	return buf.Bytes()
}

func decodeSize(t *testing.T, data []byte) (int, int) {
	t.Helper()
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("failed to decode produced variant: %v", err)
	}
	return img.Bounds().Dx(), img.Bounds().Dy()
}

func TestProduceOriginalPassthrough(t *testing.T) {
	data := testImage(t, 200, 200)
	p := NewProducer(&stubDetector{err: errors.New("should not be called")})

	out := p.Produce(context.Background(), compare.StageOriginal, data)
	if out.Unavailable {
		t.Fatalf("original stage unavailable: %s", out.Reason)
	}
	if !bytes.Equal(out.Image, data) {
		t.Error("original stage should pass the image through unchanged")
	}
}

func TestProduceCropped(t *testing.T) {
	data := testImage(t, 400, 300)
	det := &stubDetector{resp: &faceapi.DetectResponse{
		FacesCount: 1,
		Faces: []faceapi.Face{
			{DetScore: 0.95, BBox: []float64{100, 50, 200, 180}},
		},
	}}
	p := NewProducer(det)

	out := p.Produce(context.Background(), compare.StageCropped, data)
	if out.Unavailable {
		t.Fatalf("cropped stage unavailable: %s", out.Reason)
	}

	// bbox is 100x130; with 0.3 margin the crop is 160x208.
	w, h := decodeSize(t, out.Image)
	if w != 160 || h != 208 {
		t.Errorf("expected 160x208 crop, got %dx%d", w, h)
	}
}

func TestProduceCroppedDeterministic(t *testing.T) {
	data := testImage(t, 400, 300)
	det := &stubDetector{resp: &faceapi.DetectResponse{
		FacesCount: 1,
		Faces:      []faceapi.Face{{DetScore: 0.9, BBox: []float64{50, 50, 150, 150}}},
	}}
	p := NewProducer(det)

	first := p.Produce(context.Background(), compare.StageCropped, data)
	second := p.Produce(context.Background(), compare.StageCropped, data)
	if first.Unavailable || second.Unavailable {
		t.Fatal("unexpected unavailable outcome")
	}
	if !bytes.Equal(first.Image, second.Image) {
		t.Error("crop output must be byte-identical across runs")
	}
}

func TestProduceCroppedNoFace(t *testing.T) {
	data := testImage(t, 100, 100)
	p := NewProducer(&stubDetector{resp: &faceapi.DetectResponse{}})

	out := p.Produce(context.Background(), compare.StageCropped, data)
	if !out.Unavailable {
		t.Fatal("expected unavailable outcome when no face detected")
	}
	if out.Reason == "" {
		t.Error("unavailable outcome should carry a reason")
	}
}

func TestProduceCroppedDetectorError(t *testing.T) {
	data := testImage(t, 100, 100)
	p := NewProducer(&stubDetector{err: errors.New("service down")})

	out := p.Produce(context.Background(), compare.StageCropped, data)
	if !out.Unavailable {
		t.Fatal("expected unavailable outcome on detector error")
	}
}

func TestProduceCroppedMalformedImage(t *testing.T) {
	p := NewProducer(&stubDetector{})
	out := p.Produce(context.Background(), compare.StageCropped, []byte("not an image"))
	if !out.Unavailable {
		t.Fatal("expected unavailable outcome for malformed image")
	}
}

func TestProduceAligned(t *testing.T) {
	data := testImage(t, 400, 400)
	det := &stubDetector{resp: &faceapi.DetectResponse{
		FacesCount: 1,
		Faces: []faceapi.Face{
			{
				DetScore: 0.9,
				BBox:     []float64{100, 100, 300, 300},
				// Eyes tilted 45 degrees.
				Landmarks: [][]float64{{150, 150}, {250, 250}, {200, 220}, {170, 270}, {230, 270}},
			},
		},
	}}
	p := NewProducer(det)

	out := p.Produce(context.Background(), compare.StageAligned, data)
	if out.Unavailable {
		t.Fatalf("aligned stage unavailable: %s", out.Reason)
	}
	if w, h := decodeSize(t, out.Image); w == 0 || h == 0 {
		t.Error("aligned variant is empty")
	}
}

func TestProduceAlignedNoLandmarks(t *testing.T) {
	data := testImage(t, 200, 200)
	det := &stubDetector{resp: &faceapi.DetectResponse{
		FacesCount: 1,
		Faces:      []faceapi.Face{{DetScore: 0.9, BBox: []float64{50, 50, 150, 150}}},
	}}
	p := NewProducer(det)

	out := p.Produce(context.Background(), compare.StageAligned, data)
	if !out.Unavailable {
		t.Fatal("expected unavailable outcome without eye landmarks")
	}
}

func TestProduceCroppedResizesLargeFace(t *testing.T) {
	data := testImage(t, 2000, 1600)
	det := &stubDetector{resp: &faceapi.DetectResponse{
		FacesCount: 1,
		Faces:      []faceapi.Face{{DetScore: 0.9, BBox: []float64{0, 0, 2000, 1600}}},
	}}
	p := NewProducer(det)

	out := p.Produce(context.Background(), compare.StageCropped, data)
	if out.Unavailable {
		t.Fatalf("cropped stage unavailable: %s", out.Reason)
	}
	w, h := decodeSize(t, out.Image)
	if w > maxSize || h > maxSize {
		t.Errorf("variant exceeds max size: %dx%d", w, h)
	}
}
