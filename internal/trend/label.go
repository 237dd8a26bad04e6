package trend

// Label is the presentation class of a trend summary.
type Label string

const (
	LabelNone        Label = "none"
	LabelExtreme     Label = "extreme"
	LabelBearish     Label = "bearish"
	LabelWeakBullish Label = "weak_bullish"
	LabelBullish     Label = "bullish"
)

const (
	extremeLowAngle  = -44.9
	extremeHighAngle = 45.0
	bullishSlope     = 0.2
)

// Classify maps a summary to its label. Steep angles in either direction
// read as extreme before the slope sign is considered.
func Classify(s Summary) Label {
	if s.Slope == nil || s.AngleDegrees == nil {
		return LabelNone
	}
	angle, slope := *s.AngleDegrees, *s.Slope
	switch {
	case angle < extremeLowAngle || angle > extremeHighAngle:
		return LabelExtreme
	case slope < 0:
		return LabelBearish
	case slope < bullishSlope:
		return LabelWeakBullish
	}
	return LabelBullish
}
