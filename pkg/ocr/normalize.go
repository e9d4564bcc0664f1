package ocr

import (
	"fmt"
	"image"
	"log/slog"
	"math"
	"sort"

	"gocv.io/x/gocv"
)

// Normalized is a scan image prepared for OCR. Image is either the
// perspective-corrected card or, when no card boundary was found, the
// original decoded photo.
type Normalized struct {
	Image         image.Image
	Binarized     *image.Gray
	BoundaryFound bool
}

// Normalizer finds the card outline in a photo and warps it flat.
type Normalizer struct {
	// MaxCandidates is how many of the largest contours are tried.
	MaxCandidates int
	// Epsilon is the polygon approximation tolerance as a fraction of the
	// contour perimeter.
	Epsilon   float64
	CannyLow  float32
	CannyHigh float32
	Logger    *slog.Logger
}

func NewNormalizer(logger *slog.Logger) *Normalizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Normalizer{
		MaxCandidates: 5,
		Epsilon:       0.02,
		CannyLow:      75,
		CannyHigh:     200,
		Logger:        logger,
	}
}

// Normalize runs a default Normalizer over raw.
func Normalize(raw []byte) (*Normalized, error) {
	return NewNormalizer(nil).Normalize(raw)
}

// Normalize decodes raw and returns the OCR-ready image. The only error is
// ErrDecode; a failed boundary search falls back to the original image.
func (n *Normalizer) Normalize(raw []byte) (*Normalized, error) {
	img, err := Decode(raw)
	if err != nil {
		return nil, err
	}
	out := &Normalized{Image: img}
	if warped, ok := n.flatten(img); ok {
		out.Image = warped
		out.BoundaryFound = true
	} else {
		n.Logger.Debug("card boundary not found, using original image",
			"width", img.Bounds().Dx(), "height", img.Bounds().Dy())
	}
	out.Binarized = Binarize(out.Image)
	return out, nil
}

// flatten locates a four-cornered contour and perspective-corrects it.
func (n *Normalizer) flatten(img image.Image) (image.Image, bool) {
	src, err := gocv.ImageToMatRGB(img)
	if err != nil {
		n.Logger.Warn("image to mat", "error", err)
		return nil, false
	}
	defer src.Close()
	if src.Empty() {
		return nil, false
	}

	corners, ok := n.findQuad(src)
	if !ok {
		return nil, false
	}
	warped, err := warp(src, corners)
	if err != nil {
		n.Logger.Warn("perspective warp", "error", err)
		return nil, false
	}
	return warped, true
}

func (n *Normalizer) findQuad(src gocv.Mat) ([]image.Point, bool) {
	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(src, &gray, gocv.ColorBGRToGray)

	blur := gocv.NewMat()
	defer blur.Close()
	gocv.GaussianBlur(gray, &blur, image.Point{X: 5, Y: 5}, 0, 0, gocv.BorderDefault)

	edges := gocv.NewMat()
	defer edges.Close()
	gocv.Canny(blur, &edges, n.CannyLow, n.CannyHigh)

	contours := gocv.FindContours(edges, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()

	type candidate struct {
		idx  int
		area float64
	}
	cands := make([]candidate, 0, contours.Size())
	for i := 0; i < contours.Size(); i++ {
		cands = append(cands, candidate{idx: i, area: gocv.ContourArea(contours.At(i))})
	}
	sort.SliceStable(cands, func(i, j int) bool { return cands[i].area > cands[j].area })
	if len(cands) > n.MaxCandidates {
		cands = cands[:n.MaxCandidates]
	}

	for _, c := range cands {
		contour := contours.At(c.idx)
		approx := gocv.ApproxPolyDP(contour, n.Epsilon*gocv.ArcLength(contour, true), true)
		pts := approx.ToPoints()
		approx.Close()
		if len(pts) == 4 {
			return orderCorners(pts), true
		}
	}
	return nil, false
}

// orderCorners returns the points as top-left, top-right, bottom-right,
// bottom-left. TL has the smallest x+y, BR the largest; TR has the smallest
// y-x and BL the largest.
func orderCorners(pts []image.Point) []image.Point {
	p := append([]image.Point(nil), pts...)
	sort.Slice(p, func(i, j int) bool { return p[i].X+p[i].Y < p[j].X+p[j].Y })
	tl, br := p[0], p[3]
	mid := p[1:3]
	sort.Slice(mid, func(i, j int) bool { return mid[i].Y-mid[i].X < mid[j].Y-mid[j].X })
	return []image.Point{tl, mid[0], br, mid[1]}
}

// outputSize is the longest of each pair of opposite edges.
func outputSize(c []image.Point) (int, int) {
	width := math.Max(dist(c[0], c[1]), dist(c[3], c[2]))
	height := math.Max(dist(c[0], c[3]), dist(c[1], c[2]))
	return int(math.Round(width)), int(math.Round(height))
}

func dist(a, b image.Point) float64 {
	return math.Hypot(float64(a.X-b.X), float64(a.Y-b.Y))
}

func warp(src gocv.Mat, corners []image.Point) (image.Image, error) {
	w, h := outputSize(corners)
	if w < 1 || h < 1 {
		return nil, fmt.Errorf("degenerate quad %v", corners)
	}
	srcPts := gocv.NewPointVectorFromPoints(corners)
	defer srcPts.Close()
	dstPts := gocv.NewPointVectorFromPoints([]image.Point{
		{0, 0},
		{w - 1, 0},
		{w - 1, h - 1},
		{0, h - 1},
	})
	defer dstPts.Close()

	transform := gocv.GetPerspectiveTransform(srcPts, dstPts)
	defer transform.Close()

	dst := gocv.NewMat()
	defer dst.Close()
	gocv.WarpPerspective(src, &dst, transform, image.Point{X: w, Y: h})

	out, err := dst.ToImage()
	if err != nil {
		return nil, fmt.Errorf("mat to image: %w", err)
	}
	return out, nil
}
