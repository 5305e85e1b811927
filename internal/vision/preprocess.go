package vision

import (
	"image"

	"golang.org/x/image/draw"
)

// Normalisation constants for the InsightFace models.
var (
	detMean = [3]float32{127.5, 127.5, 127.5}
	detStd  = [3]float32{128, 128, 128}
	embMean = [3]float32{127.5, 127.5, 127.5}
	embStd  = [3]float32{127.5, 127.5, 127.5}
)

func preprocessForDetection(img image.Image, w, h int) []float32 {
	return toCHW(resize(img, w, h), detMean, detStd)
}

func preprocessForEmbedding(img image.Image, w, h int) []float32 {
	return toCHW(resize(img, w, h), embMean, embStd)
}

func resize(img image.Image, w, h int) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Src, nil)
	return dst
}

// toCHW converts RGBA pixels to planar RGB floats: (pixel - mean) / std.
func toCHW(img *image.RGBA, mean, std [3]float32) []float32 {
	w, h := img.Rect.Dx(), img.Rect.Dy()
	plane := w * h
	out := make([]float32, 3*plane)
	for y := 0; y < h; y++ {
		row := img.Pix[y*img.Stride:]
		for x := 0; x < w; x++ {
			px := row[x*4:]
			i := y*w + x
			out[i] = (float32(px[0]) - mean[0]) / std[0]
			out[plane+i] = (float32(px[1]) - mean[1]) / std[1]
			out[2*plane+i] = (float32(px[2]) - mean[2]) / std[2]
		}
	}
	return out
}

// cropFace cuts the detection box out of img with 10% padding on each side.
// It returns nil when the box does not overlap the image.
func cropFace(img image.Image, bbox [4]float32) image.Image {
	box := image.Rect(int(bbox[0]), int(bbox[1]), int(bbox[2]), int(bbox[3]))
	padX, padY := box.Dx()/10, box.Dy()/10
	box = image.Rect(box.Min.X-padX, box.Min.Y-padY, box.Max.X+padX, box.Max.Y+padY).
		Intersect(img.Bounds())
	if box.Empty() {
		return nil
	}

	crop := image.NewRGBA(image.Rect(0, 0, box.Dx(), box.Dy()))
	draw.Draw(crop, crop.Bounds(), img, box.Min, draw.Src)
	return crop
}
