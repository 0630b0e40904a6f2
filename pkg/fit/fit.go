// Package fit computes where a source image is drawn inside a destination
// canvas for each fit policy.
package fit

import (
	"fmt"
	"image"
	"math"
	"strings"

	"github.com/menta2k/batch-resizer/pkg/types"
)

// FitMode is the policy used to map a source image into a destination box
type FitMode int

const (
	// Cover scales the source until it fills the box on both axes and
	// centers it, letting one axis overflow.
	Cover FitMode = iota

	// Contain scales the source until it fits inside the box on both axes and
	// centers it, leaving blank bands on one axis.
	Contain

	// Exact stretches the source to the box, ignoring its aspect ratio.
	Exact
)

var modeNames = map[FitMode]string{
	Cover:   "cover",
	Contain: "contain",
	Exact:   "exact",
}

// Modes returns every supported fit mode
func Modes() []FitMode {
	return []FitMode{Cover, Contain, Exact}
}

func (m FitMode) String() string {
	if name, ok := modeNames[m]; ok {
		return name
	}
	return fmt.Sprintf("FitMode(%d)", int(m))
}

// MarshalText implements encoding.TextMarshaler
func (m FitMode) MarshalText() ([]byte, error) {
	if _, ok := modeNames[m]; !ok {
		return nil, &InvalidFitModeError{Mode: m.String()}
	}
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (m *FitMode) UnmarshalText(text []byte) error {
	parsed, err := ParseFitMode(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// ParseFitMode parses a mode name such as "cover". Matching ignores case and
// surrounding whitespace.
func ParseFitMode(name string) (FitMode, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	for mode, n := range modeNames {
		if n == key {
			return mode, nil
		}
	}
	return 0, &InvalidFitModeError{Mode: name}
}

// InvalidFitModeError reports a fit mode outside the supported set
type InvalidFitModeError struct {
	Mode string
}

func (e *InvalidFitModeError) Error() string {
	return fmt.Sprintf("invalid fit mode: %q", e.Mode)
}

// InvalidDimensionsError reports a non-positive or non-finite size input
type InvalidDimensionsError struct {
	What  string
	Value string
}

func (e *InvalidDimensionsError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.What, e.Value)
}

// ComputePlacement returns the rectangle, in destination coordinates, that a
// source with the given aspect ratio is drawn into under mode.
func ComputePlacement(sourceAspect float64, dest types.Dimensions, mode FitMode) (types.Rect, error) {
	if _, ok := modeNames[mode]; !ok {
		return types.Rect{}, &InvalidFitModeError{Mode: mode.String()}
	}
	if !dest.Valid() {
		return types.Rect{}, &InvalidDimensionsError{What: "destination", Value: dest.String()}
	}
	if !(sourceAspect > 0) || math.IsInf(sourceAspect, 0) {
		return types.Rect{}, &InvalidDimensionsError{What: "source aspect ratio", Value: fmt.Sprint(sourceAspect)}
	}

	if mode == Exact {
		return types.Rect{Width: dest.Width, Height: dest.Height}, nil
	}

	canvasAspect := dest.AspectRatio()

	// Cover and Contain pick opposite branches for the same comparison.
	fillHeight := sourceAspect > canvasAspect
	if mode == Contain {
		fillHeight = !fillHeight
	}

	var placed types.Rect
	if fillHeight {
		placed.Width = dest.Height * sourceAspect
		placed.Height = dest.Height
	} else {
		placed.Width = dest.Width
		placed.Height = dest.Width / sourceAspect
	}

	placed.Top = (dest.Height - placed.Height) / 2
	placed.Left = (dest.Width - placed.Width) / 2
	return placed, nil
}

// ComputePlacementFor is ComputePlacement using the aspect ratio of img
func ComputePlacementFor(img image.Image, dest types.Dimensions, mode FitMode) (types.Rect, error) {
	src := types.DimensionsOf(img)
	if !src.Valid() {
		return types.Rect{}, &InvalidDimensionsError{What: "source", Value: src.String()}
	}
	return ComputePlacement(src.AspectRatio(), dest, mode)
}
