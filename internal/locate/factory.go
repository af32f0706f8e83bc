package locate

import (
	"errors"
	"fmt"
	"image"
)

// Options selects and configures a Localizer for one run.
type Options struct {
	Kind Kind

	// Segmenter backs KindSegmentation.
	Segmenter Segmenter

	// NewTracker and Box back KindRegionTrack. A new tracker is built for
	// every run so no state leaks between videos.
	NewTracker func() (RegionTracker, error)
	Box        image.Rectangle
}

// New builds the Localizer described by opts.
func New(opts Options) (Localizer, error) {
	switch opts.Kind {
	case KindSegmentation, "":
		if opts.Segmenter == nil {
			return nil, errors.New("segmentation localizer needs a segmenter")
		}
		return NewSegmentationLocalizer(opts.Segmenter), nil
	case KindRegionTrack:
		if opts.NewTracker == nil {
			return nil, errors.New("region-track localizer needs a tracker constructor")
		}
		if opts.Box.Empty() {
			return nil, errors.New("region-track localizer needs a non-empty initial box")
		}
		tr, err := opts.NewTracker()
		if err != nil {
			return nil, fmt.Errorf("create tracker: %w", err)
		}
		return NewRegionTrackLocalizer(tr, opts.Box), nil
	default:
		return nil, fmt.Errorf("unknown localizer kind %q", opts.Kind)
	}
}
