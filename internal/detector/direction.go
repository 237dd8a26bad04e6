package detector

// Direction summarises the short-term movement of a few values.
type Direction string

const (
	DirectionUp   Direction = "up"
	DirectionDown Direction = "down"
	DirectionSide Direction = "side"
)

// ShortTrend classifies the last three values: strictly rising is up,
// strictly falling is down, anything else is side.
func ShortTrend(values []float64) Direction {
	if len(values) < 3 {
		return DirectionSide
	}
	a, b, c := values[len(values)-3], values[len(values)-2], values[len(values)-1]
	switch {
	case a < b && b < c:
		return DirectionUp
	case a > b && b > c:
		return DirectionDown
	}
	return DirectionSide
}
