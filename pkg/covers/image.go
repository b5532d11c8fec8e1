package covers

import (
	"bytes"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"

	"github.com/pkg/errors"
	"golang.org/x/image/draw"
)

const (
	// Rendered image height bounds, matching the desktop client's cover and
	// thumbnail sizes.
	coverHeight     = 800
	thumbnailHeight = 144

	jpegQuality = 80
)

// renderJPEG decodes src and re-encodes it as a JPEG no taller than
// maxHeight, preserving the aspect ratio. JPEG input already within bounds
// passes through unchanged.
func renderJPEG(src []byte, maxHeight int) ([]byte, error) {
	img, format, err := image.Decode(bytes.NewReader(src))
	if err != nil {
		return nil, errors.Wrap(err, "decode cover image")
	}

	bounds := img.Bounds()
	if bounds.Dy() > maxHeight {
		ratio := float64(maxHeight) / float64(bounds.Dy())
		width := int(float64(bounds.Dx()) * ratio)
		if width < 1 {
			width = 1
		}
		dst := image.NewRGBA(image.Rect(0, 0, width, maxHeight))
		draw.BiLinear.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)
		img = dst
	} else if format == "jpeg" {
		return src, nil
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, errors.Wrap(err, "encode cover jpeg")
	}
	return buf.Bytes(), nil
}
