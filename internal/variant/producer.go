// Package variant produces the preprocessed image variants (cropped,
// aligned) consumed by the comparison stages. Production never fails
// outward: every failure mode collapses into an Unavailable outcome so
// the pipeline can skip the stage gracefully.
package variant

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"
	"math"

	"golang.org/x/image/draw"
	"golang.org/x/image/math/f64"

	"github.com/tahmidi1980-dev/facecomparison3llm/internal/compare"
	"github.com/tahmidi1980-dev/facecomparison3llm/internal/faceapi"
)

const (
	cropMargin  = 0.3  // margin around the detected face, relative to its size
	maxSize     = 1024 // longest edge of a produced variant
	jpegQuality = 95
)

// FaceDetector is the face service capability the producer needs.
type FaceDetector interface {
	DetectFaces(ctx context.Context, imageData []byte) (*faceapi.DetectResponse, error)
}

// Outcome is the result of producing one variant. Either Image is set,
// or Unavailable is true and Reason explains why.
type Outcome struct {
	Image       []byte
	Unavailable bool
	Reason      string
}

func unavailable(format string, args ...any) Outcome {
	return Outcome{Unavailable: true, Reason: fmt.Sprintf(format, args...)}
}

// Producer builds image variants from raw source images.
type Producer struct {
	faces FaceDetector
}

// NewProducer creates a variant producer backed by the given face detector.
func NewProducer(faces FaceDetector) *Producer {
	return &Producer{faces: faces}
}

// Produce builds the variant for the given stage. The original stage
// passes the image through unchanged. Output is deterministic for a
// fixed input image and fixed detector responses.
func (p *Producer) Produce(ctx context.Context, stage compare.Stage, imageData []byte) Outcome {
	switch stage {
	case compare.StageOriginal:
		return Outcome{Image: imageData}
	case compare.StageCropped:
		return p.crop(ctx, imageData)
	case compare.StageAligned:
		return p.align(ctx, imageData)
	default:
		return unavailable("unknown stage %q", stage)
	}
}

func (p *Producer) crop(ctx context.Context, imageData []byte) Outcome {
	img, err := decode(imageData)
	if err != nil {
		return unavailable("decode failed: %v", err)
	}

	face, err := p.detectBest(ctx, imageData)
	if err != nil {
		return unavailable("face detection failed: %v", err)
	}

	rect, err := faceRect(face.BBox, img.Bounds())
	if err != nil {
		return unavailable("%v", err)
	}

	out, err := encode(cropWithMargin(img, rect))
	if err != nil {
		return unavailable("encode failed: %v", err)
	}
	return Outcome{Image: out}
}

func (p *Producer) align(ctx context.Context, imageData []byte) Outcome {
	img, err := decode(imageData)
	if err != nil {
		return unavailable("decode failed: %v", err)
	}

	face, err := p.detectBest(ctx, imageData)
	if err != nil {
		return unavailable("face detection failed: %v", err)
	}
	if len(face.Landmarks) < 2 || len(face.Landmarks[0]) < 2 || len(face.Landmarks[1]) < 2 {
		return unavailable("no eye landmarks for alignment")
	}

	rect, err := faceRect(face.BBox, img.Bounds())
	if err != nil {
		return unavailable("%v", err)
	}

	leftEye := face.Landmarks[0]
	rightEye := face.Landmarks[1]
	rotated, rotatedRect := levelEyes(img, leftEye, rightEye, rect)

	out, err := encode(cropWithMargin(rotated, rotatedRect))
	if err != nil {
		return unavailable("encode failed: %v", err)
	}
	return Outcome{Image: out}
}

func (p *Producer) detectBest(ctx context.Context, imageData []byte) (*faceapi.Face, error) {
	resp, err := p.faces.DetectFaces(ctx, imageData)
	if err != nil {
		return nil, err
	}
	return resp.BestFace()
}

// faceRect converts a detector bbox [x1, y1, x2, y2] into an image
// rectangle clamped to the image bounds.
func faceRect(bbox []float64, bounds image.Rectangle) (image.Rectangle, error) {
	if len(bbox) != 4 {
		return image.Rectangle{}, fmt.Errorf("malformed bbox with %d values", len(bbox))
	}
	rect := image.Rect(int(bbox[0]), int(bbox[1]), int(bbox[2]), int(bbox[3])).Intersect(bounds)
	if rect.Empty() {
		return image.Rectangle{}, fmt.Errorf("bbox %v outside image bounds", bbox)
	}
	return rect, nil
}

// cropWithMargin crops the face rectangle plus margin and scales the
// result down to maxSize if needed.
func cropWithMargin(img image.Image, rect image.Rectangle) image.Image {
	marginX := int(float64(rect.Dx()) * cropMargin)
	marginY := int(float64(rect.Dy()) * cropMargin)
	expanded := image.Rect(
		rect.Min.X-marginX,
		rect.Min.Y-marginY,
		rect.Max.X+marginX,
		rect.Max.Y+marginY,
	).Intersect(img.Bounds())

	cropped := image.NewRGBA(image.Rect(0, 0, expanded.Dx(), expanded.Dy()))
	draw.Copy(cropped, image.Point{}, img, expanded, draw.Src, nil)

	if cropped.Bounds().Dx() <= maxSize && cropped.Bounds().Dy() <= maxSize {
		return cropped
	}
	return scaleDown(cropped, maxSize)
}

func scaleDown(img image.Image, limit int) image.Image {
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()

	var newWidth, newHeight int
	if width > height {
		newWidth = limit
		newHeight = int(float64(height) * float64(limit) / float64(width))
	} else {
		newHeight = limit
		newWidth = int(float64(width) * float64(limit) / float64(height))
	}

	resized := image.NewRGBA(image.Rect(0, 0, newWidth, newHeight))
	draw.CatmullRom.Scale(resized, resized.Bounds(), img, bounds, draw.Src, nil)
	return resized
}

// levelEyes rotates the image around the eye midpoint so the eye line is
// horizontal, and returns the face rectangle mapped into the rotated image.
func levelEyes(img image.Image, leftEye, rightEye []float64, rect image.Rectangle) (image.Image, image.Rectangle) {
	dy := rightEye[1] - leftEye[1]
	dx := rightEye[0] - leftEye[0]
	angle := -math.Atan2(dy, dx) // rotate back to horizontal

	cx := (leftEye[0] + rightEye[0]) / 2
	cy := (leftEye[1] + rightEye[1]) / 2
	cos, sin := math.Cos(angle), math.Sin(angle)

	// Source-to-destination rotation about (cx, cy).
	m := f64.Aff3{
		cos, -sin, cx - cos*cx + sin*cy,
		sin, cos, cy - sin*cx - cos*cy,
	}

	bounds := img.Bounds()
	rotated := image.NewRGBA(bounds)
	draw.BiLinear.Transform(rotated, m, img, bounds, draw.Src, nil)

	// Map the face rectangle corners through the same transform and take
	// their bounding box.
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	corners := [4][2]float64{
		{float64(rect.Min.X), float64(rect.Min.Y)},
		{float64(rect.Max.X), float64(rect.Min.Y)},
		{float64(rect.Min.X), float64(rect.Max.Y)},
		{float64(rect.Max.X), float64(rect.Max.Y)},
	}
	for _, c := range corners {
		x := m[0]*c[0] + m[1]*c[1] + m[2]
		y := m[3]*c[0] + m[4]*c[1] + m[5]
		minX, maxX = math.Min(minX, x), math.Max(maxX, x)
		minY, maxY = math.Min(minY, y), math.Max(maxY, y)
	}

	mapped := image.Rect(int(minX), int(minY), int(maxX), int(maxY)).Intersect(bounds)
	if mapped.Empty() {
		mapped = rect.Intersect(bounds)
	}
	return rotated, mapped
}

func decode(data []byte) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	return img, err
}

func encode(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
