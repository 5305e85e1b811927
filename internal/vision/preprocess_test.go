package vision

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func solid(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = c.R, c.G, c.B, c.A
	}
	return img
}

func TestToCHWNormalises(t *testing.T) {
	img := solid(4, 2, color.RGBA{R: 255, G: 127, B: 0, A: 255})
	data := toCHW(img, embMean, embStd)
	require.Len(t, data, 3*4*2)

	assert.InDelta(t, 1.0, data[0], 1e-6)
	assert.InDelta(t, -0.0039, data[8], 1e-3)
	assert.InDelta(t, -1.0, data[16], 1e-6)
}

func TestPreprocessSizes(t *testing.T) {
	img := solid(320, 240, color.RGBA{A: 255})
	assert.Len(t, preprocessForDetection(img, 640, 640), 3*640*640)
	assert.Len(t, preprocessForEmbedding(img, 112, 112), 3*112*112)
}

func TestCropFacePadsAndClamps(t *testing.T) {
	img := solid(100, 100, color.RGBA{R: 10, A: 255})

	crop := cropFace(img, [4]float32{10, 10, 60, 60})
	require.NotNil(t, crop)
	assert.Equal(t, image.Rect(0, 0, 60, 60), crop.Bounds())

	edge := cropFace(img, [4]float32{80, 80, 120, 120})
	require.NotNil(t, edge)
	assert.Equal(t, 24, edge.Bounds().Dx())

	assert.Nil(t, cropFace(img, [4]float32{200, 200, 220, 220}))
}

func TestNMSSuppressesOverlaps(t *testing.T) {
	dets := []Detection{
		{BBox: [4]float32{0, 0, 10, 10}, Confidence: 0.6},
		{BBox: [4]float32{1, 1, 11, 11}, Confidence: 0.9},
		{BBox: [4]float32{50, 50, 60, 60}, Confidence: 0.7},
	}
	kept := nms(dets, 0.4)
	require.Len(t, kept, 2)
	assert.Equal(t, float32(0.9), kept[0].Confidence)
	assert.Equal(t, float32(0.7), kept[1].Confidence)
}

func TestIoU(t *testing.T) {
	assert.Equal(t, float32(0), iou([4]float32{0, 0, 1, 1}, [4]float32{2, 2, 3, 3}))
	assert.InDelta(t, 1.0, iou([4]float32{0, 0, 4, 4}, [4]float32{0, 0, 4, 4}), 1e-6)
	assert.InDelta(t, 1.0/7.0, iou([4]float32{0, 0, 2, 2}, [4]float32{1, 1, 3, 3}), 1e-6)
}
