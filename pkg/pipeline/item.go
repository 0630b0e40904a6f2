package pipeline

import (
	"context"
	"image"
	"time"

	"github.com/menta2k/batch-resizer/pkg/types"
)

// Status is the outcome of one item
type Status int

const (
	StatusPending Status = iota
	StatusDone
	StatusFailed
	StatusCancelled
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusDone:
		return "done"
	case StatusFailed:
		return "failed"
	case StatusCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Source produces one input image. Load runs inside the item's task.
type Source struct {
	Name string
	Load func(ctx context.Context) (image.Image, error)
}

// ImageSource wraps an already decoded image
func ImageSource(name string, img image.Image) Source {
	return Source{
		Name: name,
		Load: func(context.Context) (image.Image, error) { return img, nil },
	}
}

// Item is the processing state of one source within a run. Each item is
// written only by its own task; read it after Run returns.
type Item struct {
	Index     int
	Name      string
	Source    image.Image
	Placement types.Rect
	Sigma     types.Sigma

	// Filtered is nil when the source was drawn without pre-filtering.
	Filtered *image.RGBA
	Output   *image.RGBA

	Status   Status
	Err      error
	Duration time.Duration
}

// Result holds the items of a finished run in input order
type Result struct {
	Params Params
	Items  []*Item
}

// Succeeded returns the items that produced an output
func (r *Result) Succeeded() []*Item {
	return r.filter(StatusDone)
}

// Failed returns the items that hit a load or pipeline error
func (r *Result) Failed() []*Item {
	return r.filter(StatusFailed)
}

// Outputs returns the output rasters of successful items, in input order
func (r *Result) Outputs() []*image.RGBA {
	var out []*image.RGBA
	for _, it := range r.Items {
		if it.Status == StatusDone {
			out = append(out, it.Output)
		}
	}
	return out
}

func (r *Result) filter(s Status) []*Item {
	var out []*Item
	for _, it := range r.Items {
		if it.Status == s {
			out = append(out, it)
		}
	}
	return out
}
