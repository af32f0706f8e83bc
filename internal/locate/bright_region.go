package locate

import (
	"image"

	"github.com/disintegration/gift"
)

// BrightRegionSegmenter is a pure-Go Segmenter. It converts the frame to
// luminance, keeps pixels strictly brighter than Threshold, and groups them
// into 8-connected regions in raster order. Area is enclosed by the polygon
// through the centres of the region's outer boundary pixels, the same measure
// OpenCV's contour area gives, so single pixels and one-pixel-wide lines have
// zero area.
type BrightRegionSegmenter struct {
	Threshold uint8
	gray      *gift.GIFT
}

// NewBrightRegionSegmenter returns a segmenter binarizing at threshold.
func NewBrightRegionSegmenter(threshold uint8) *BrightRegionSegmenter {
	return &BrightRegionSegmenter{
		Threshold: threshold,
		gray:      gift.New(gift.Grayscale()),
	}
}

// Segment implements Segmenter.
func (s *BrightRegionSegmenter) Segment(img image.Image) ([]Region, error) {
	bounds := img.Bounds()
	if bounds.Empty() {
		return nil, nil
	}
	gray := image.NewGray(s.gray.Bounds(bounds))
	s.gray.Draw(gray, img)

	w, h := gray.Rect.Dx(), gray.Rect.Dy()
	fg := make([]bool, w*h)
	for y := 0; y < h; y++ {
		row := gray.Pix[y*gray.Stride : y*gray.Stride+w]
		for x, v := range row {
			fg[y*w+x] = v > s.Threshold
		}
	}

	// gift draws into a zero-origin rectangle; shift moments back into the
	// caller's coordinate space.
	ox, oy := float64(bounds.Min.X), float64(bounds.Min.Y)

	var regions []Region
	seen := make([]bool, w*h)
	stack := make([]int, 0, 64)
	for start := range fg {
		if !fg[start] || seen[start] {
			continue
		}
		var r Region
		var count int
		seen[start] = true
		stack = append(stack[:0], start)
		for len(stack) > 0 {
			p := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			px, py := p%w, p/w
			r.M00++
			count++
			r.M10 += float64(px) + ox
			r.M01 += float64(py) + oy

			for dy := -1; dy <= 1; dy++ {
				ny := py + dy
				if ny < 0 || ny >= h {
					continue
				}
				for dx := -1; dx <= 1; dx++ {
					nx := px + dx
					if nx < 0 || nx >= w || (dx == 0 && dy == 0) {
						continue
					}
					n := ny*w + nx
					if fg[n] && !seen[n] {
						seen[n] = true
						stack = append(stack, n)
					}
				}
			}
		}
		r.Area = boundaryArea(fg, w, h, start, count)
		regions = append(regions, r)
	}
	return regions, nil
}

// Clockwise neighbour offsets in image coordinates (y down), starting west.
var moore = [8]image.Point{
	{-1, 0}, {-1, -1}, {0, -1}, {1, -1}, {1, 0}, {1, 1}, {0, 1}, {-1, 1},
}

// boundaryArea traces the outer boundary of the 8-connected region containing
// start, which must be the region's first pixel in raster order, and returns
// the shoelace area of the polygon through the boundary pixel centres.
func boundaryArea(fg []bool, w, h, start, count int) float64 {
	isFG := func(x, y int) bool {
		return x >= 0 && x < w && y >= 0 && y < h && fg[y*w+x]
	}

	// Moore-neighbour tracing with Jacob's stopping criterion. The pixel west
	// of the raster-first pixel is always background.
	first := image.Pt(start%w, start/w)
	cur, back := first, 0
	firstDir := -1
	var boundary []image.Point
	for steps := 0; steps <= 8*count+8; steps++ {
		dir := -1
		for i := 1; i <= 8; i++ {
			d := (back + i) % 8
			if isFG(cur.X+moore[d].X, cur.Y+moore[d].Y) {
				dir = d
				break
			}
		}
		if dir < 0 {
			return 0 // isolated pixel
		}
		if cur == first {
			if firstDir == dir {
				break
			}
			if firstDir < 0 {
				firstDir = dir
			}
		}
		boundary = append(boundary, cur)
		cur = cur.Add(moore[dir])
		// The last background neighbour checked, relative to the new pixel.
		if dir%2 == 0 {
			back = (dir + 6) % 8
		} else {
			back = (dir + 5) % 8
		}
	}

	var twice int
	for i, p := range boundary {
		q := boundary[(i+1)%len(boundary)]
		twice += p.X*q.Y - q.X*p.Y
	}
	if twice < 0 {
		twice = -twice
	}
	return float64(twice) / 2
}
