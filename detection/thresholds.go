package detection

import (
	"errors"
	"fmt"
)

// BrightnessTier names the scene brightness class used to pick HSV bounds
type BrightnessTier int

const (
	TierDark BrightnessTier = iota
	TierNormal
	TierBright
)

func (t BrightnessTier) String() string {
	switch t {
	case TierDark:
		return "DARK"
	case TierNormal:
		return "NORMAL"
	case TierBright:
		return "BRIGHT"
	default:
		return "UNKNOWN"
	}
}

// HSV is a point in OpenCV's HSV space (H 0-179, S and V 0-255)
type HSV struct {
	H float64
	S float64
	V float64
}

// Thresholds is the InRange window selected for one frame
type Thresholds struct {
	Tier  BrightnessTier
	Lower HSV
	Upper HSV
}

// TierBounds holds the saturation and value minimums of one brightness tier
type TierBounds struct {
	MinSaturation float64
	MinValue      float64
}

// Config holds every tunable of the segmenter
type Config struct {
	BlurKernel  int     // Odd Gaussian kernel size
	MorphKernel int     // Structuring element size for close/erode
	HueMax      float64 // Upper hue bound in OpenCV units, lower bound is always 0
	MinArea     float64 // Smallest accepted contour area in px²

	// Scene brightness above BrightCutoff selects Bright, below DarkCutoff selects Dark
	BrightCutoff float64
	DarkCutoff   float64

	Bright TierBounds
	Normal TierBounds
	Dark   TierBounds

	// DebugMaskPath, when set, receives the final binary mask of every frame
	DebugMaskPath string
}

// DefaultConfig returns the tuned defaults for outdoor and indoor footage
func DefaultConfig() Config {
	return Config{
		BlurKernel:   21,
		MorphKernel:  5,
		HueMax:       35,
		MinArea:      100,
		BrightCutoff: 130,
		DarkCutoff:   80,
		// Sunlit surfaces are rejected by requiring vivid, very bright pixels
		Bright: TierBounds{MinSaturation: 170, MinValue: 220},
		Normal: TierBounds{MinSaturation: 140, MinValue: 180},
		// Near-black scenes still need to catch dim flames
		Dark: TierBounds{MinSaturation: 80, MinValue: 150},
	}
}

// Validate checks the configuration for values OpenCV would reject
func (c Config) Validate() error {
	if c.BlurKernel <= 0 || c.BlurKernel%2 == 0 {
		return fmt.Errorf("blur kernel must be a positive odd number, got %d", c.BlurKernel)
	}
	if c.MorphKernel <= 0 {
		return fmt.Errorf("morph kernel must be positive, got %d", c.MorphKernel)
	}
	if c.HueMax <= 0 || c.HueMax > 179 {
		return fmt.Errorf("hue max must be in (0, 179], got %.1f", c.HueMax)
	}
	if c.MinArea < 0 {
		return errors.New("min area must not be negative")
	}
	if c.DarkCutoff > c.BrightCutoff {
		return fmt.Errorf("dark cutoff %.1f is above bright cutoff %.1f", c.DarkCutoff, c.BrightCutoff)
	}
	for name, b := range map[string]TierBounds{"bright": c.Bright, "normal": c.Normal, "dark": c.Dark} {
		if b.MinSaturation < 0 || b.MinSaturation > 255 || b.MinValue < 0 || b.MinValue > 255 {
			return fmt.Errorf("%s tier bounds out of range: %+v", name, b)
		}
	}
	return nil
}

// ThresholdsFor selects the HSV window for a scene of the given mean luminance
func (c Config) ThresholdsFor(brightness float64) Thresholds {
	tier := TierNormal
	bounds := c.Normal
	switch {
	case brightness > c.BrightCutoff:
		tier, bounds = TierBright, c.Bright
	case brightness < c.DarkCutoff:
		tier, bounds = TierDark, c.Dark
	}

	return Thresholds{
		Tier:  tier,
		Lower: HSV{H: 0, S: bounds.MinSaturation, V: bounds.MinValue},
		Upper: HSV{H: c.HueMax, S: 255, V: 255},
	}
}

// ThresholdsFor uses the default tier table
func ThresholdsFor(brightness float64) Thresholds {
	return DefaultConfig().ThresholdsFor(brightness)
}
