package scoring

// Category is the seven-level risk label derived from the risk percentage
type Category string

const (
	VeryHigh       Category = "VH"
	High           Category = "HI"
	Moderate       Category = "MO"
	Low            Category = "LO"
	VeryLow        Category = "VL"
	NearThreatened Category = "NT"
	LeastConcern   Category = "LC"
)

// thresholds is ordered most severe first; lower bounds are inclusive
var thresholds = []struct {
	min      float64
	category Category
}{
	{80, VeryHigh},
	{70, High},
	{60, Moderate},
	{50, Low},
	{40, VeryLow},
	{30, NearThreatened},
}

var categoryLabels = map[Category]string{
	VeryHigh:       "Very High",
	High:           "High",
	Moderate:       "Moderate",
	Low:            "Low",
	VeryLow:        "Very Low",
	NearThreatened: "Near Threatened",
	LeastConcern:   "Least Concern",
}

// CategoryFor maps a risk percentage to its category
func CategoryFor(riskPercent float64) Category {
	for _, t := range thresholds {
		if riskPercent >= t.min {
			return t.category
		}
	}
	return LeastConcern
}

// Label returns the human-readable name, e.g. "Very High"
func (c Category) Label() string {
	if l, ok := categoryLabels[c]; ok {
		return l
	}
	return string(c)
}

// Severity orders categories from 0 (LC) to 6 (VH)
func (c Category) Severity() int {
	for i, t := range thresholds {
		if t.category == c {
			return len(thresholds) - i
		}
	}
	return 0
}
