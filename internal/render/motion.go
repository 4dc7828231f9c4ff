package render

// Effect is the Ken Burns motion applied to a still image over its screen
// time.
type Effect string

const (
	EffectZoomIn        Effect = "zoom_in"        // push in toward center
	EffectZoomOut       Effect = "zoom_out"       // start tight, pull back wide
	EffectPanHorizontal Effect = "pan_horizontal" // drift left to right
	EffectPanVertical   Effect = "pan_vertical"   // drift top to bottom
)

// Orientation of a source image, detected from its aspect ratio.
type Orientation string

const (
	OrientationLandscape Orientation = "landscape"
	OrientationPortrait  Orientation = "portrait"
	OrientationSquare    Orientation = "square"
)

// Aspect-ratio thresholds for orientation detection.
const (
	landscapeRatio = 1.2
	portraitRatio  = 0.8
)

// DetectOrientation classifies an image by its width/height ratio.
func DetectOrientation(width, height int) Orientation {
	if height <= 0 {
		return OrientationSquare
	}
	ratio := float64(width) / float64(height)
	switch {
	case ratio > landscapeRatio:
		return OrientationLandscape
	case ratio < portraitRatio:
		return OrientationPortrait
	default:
		return OrientationSquare
	}
}

// SelectEffect deterministically picks a motion effect for the scene at the
// given index. The zoom directions alternate through a fixed cycle so
// adjacent scenes never repeat an effect, and pan direction follows the
// source orientation: vertical pans read better on portrait images,
// horizontal on landscape. Square sources alternate pan axes.
//
// Deterministic by design — the same (index, orientation) always yields
// the same effect, so renders are reproducible.
func SelectEffect(index int, orientation Orientation) Effect {
	switch index % 4 {
	case 0:
		return EffectZoomIn
	case 2:
		return EffectZoomOut
	}

	// Odd positions are pans.
	switch orientation {
	case OrientationPortrait:
		return EffectPanVertical
	case OrientationLandscape:
		return EffectPanHorizontal
	default:
		// Square: alternate between the two pan axes across the cycle.
		if index%4 == 1 {
			return EffectPanHorizontal
		}
		return EffectPanVertical
	}
}
