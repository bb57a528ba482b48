// Package face holds the detection/embedding capability boundary and the
// glue that turns a decoded frame into a fixed-size face crop.
package face

import (
	"context"
	"image"

	"github.com/andresmejia3/aegis/internal/types"
	"golang.org/x/image/draw"
)

// DefaultSize is the crop size expected by the embedding model.
var DefaultSize = image.Pt(112, 112)

// Analyzer is the only capability the scoring core needs from a face model.
// Implementations own their model resources; callers construct and close them.
type Analyzer interface {
	// Detect returns every face region found in img, in img's pixel coordinates.
	Detect(ctx context.Context, img image.Image) ([]types.FaceRegion, error)
	// Embed maps a cropped face to an L2-normalized embedding vector.
	Embed(ctx context.Context, face image.Image) ([]float64, error)
}

// SelectLargest picks the region with the largest area. The first one wins ties.
func SelectLargest(regions []types.FaceRegion) (types.FaceRegion, bool) {
	if len(regions) == 0 {
		return types.FaceRegion{}, false
	}
	best := regions[0]
	for _, r := range regions[1:] {
		if r.Area() > best.Area() {
			best = r
		}
	}
	return best, true
}

// CropAndResize clips region to the image and scales it bilinearly to size.
// A region that misses the image entirely produces an all-black crop.
func CropAndResize(img image.Image, region types.FaceRegion, size image.Point) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, size.X, size.Y))

	b := img.Bounds()
	src := image.Rect(
		b.Min.X+max(0, region.X),
		b.Min.Y+max(0, region.Y),
		b.Min.X+min(b.Dx(), region.X+region.W),
		b.Min.Y+min(b.Dy(), region.Y+region.H),
	)
	if src.Empty() {
		for i := 3; i < len(dst.Pix); i += 4 {
			dst.Pix[i] = 255
		}
		return dst
	}

	draw.BiLinear.Scale(dst, dst.Bounds(), img, src, draw.Src, nil)
	return dst
}

// Crop detects the largest face in img and returns its normalized crop.
// ok is false when no face was found.
func Crop(ctx context.Context, a Analyzer, img image.Image, size image.Point) (crop *image.RGBA, region types.FaceRegion, ok bool, err error) {
	regions, err := a.Detect(ctx, img)
	if err != nil {
		return nil, types.FaceRegion{}, false, err
	}
	region, ok = SelectLargest(regions)
	if !ok {
		return nil, types.FaceRegion{}, false, nil
	}
	return CropAndResize(img, region, size), region, true, nil
}
