package compare

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"time"

	"github.com/google/uuid"
)

// MaxImageBytes is the largest accepted source image.
const MaxImageBytes = 5 << 20

// ErrInvalidImage is returned when a source image is missing, oversized
// or cannot be decoded. This is the only hard failure a caller sees; all
// later failures are absorbed into the vote ledger.
var ErrInvalidImage = errors.New("invalid source image")

// Request holds the two source images of one comparison. Immutable once
// created; validation happens in NewRequest before the pipeline starts.
type Request struct {
	ID        string
	CreatedAt time.Time
	ImageA    []byte
	ImageB    []byte
}

// NewRequest validates both images and builds an immutable request.
func NewRequest(imageA, imageB []byte) (*Request, error) {
	if err := validateImage("first", imageA); err != nil {
		return nil, err
	}
	if err := validateImage("second", imageB); err != nil {
		return nil, err
	}
	return &Request{
		ID:        uuid.NewString(),
		CreatedAt: time.Now().UTC(),
		ImageA:    imageA,
		ImageB:    imageB,
	}, nil
}

func validateImage(name string, data []byte) error {
	if len(data) == 0 {
		return fmt.Errorf("%w: %s image is empty", ErrInvalidImage, name)
	}
	if len(data) > MaxImageBytes {
		return fmt.Errorf("%w: %s image exceeds %d bytes", ErrInvalidImage, name, MaxImageBytes)
	}
	if _, format, err := image.Decode(bytes.NewReader(data)); err != nil {
		return fmt.Errorf("%w: %s image: %v", ErrInvalidImage, name, err)
	} else if format != "jpeg" && format != "png" {
		return fmt.Errorf("%w: %s image has unsupported format %q", ErrInvalidImage, name, format)
	}
	return nil
}
