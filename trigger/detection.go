package trigger

import (
	"fmt"
	"strings"
)

// Detection is one validated detection record from the upstream detector.
// Arbitrary payloads from the collaborator are reduced to this shape at the
// boundary before they reach the state machine.
type Detection struct {
	ClassName      string  `json:"className"`
	Score          float64 `json:"score"`
	HasBoundingBox bool    `json:"hasBoundingBox"`
	IsMoving       bool    `json:"isMoving"`
}

// Validate rejects records the state machine must never see
func (d Detection) Validate() error {
	if strings.TrimSpace(d.ClassName) == "" {
		return fmt.Errorf("detection has empty class name")
	}
	if d.Score < 0 || d.Score > 1 {
		return fmt.Errorf("detection score %g out of range [0,1]", d.Score)
	}
	return nil
}

// Normalize returns the record with its class name lowercased and trimmed
func (d Detection) Normalize() Detection {
	d.ClassName = strings.ToLower(strings.TrimSpace(d.ClassName))
	return d
}

// Filter decides which detections qualify to start or extend a session
type Filter struct {
	EnabledClasses     map[string]bool
	ScoreThreshold     float64
	RequireBoundingBox bool
}

// NewFilter builds a Filter from an enabled-class list
func NewFilter(classes []string, scoreThreshold float64, requireBoundingBox bool) Filter {
	enabled := make(map[string]bool, len(classes))
	for _, c := range classes {
		c = strings.ToLower(strings.TrimSpace(c))
		if c != "" {
			enabled[c] = true
		}
	}
	return Filter{
		EnabledClasses:     enabled,
		ScoreThreshold:     scoreThreshold,
		RequireBoundingBox: requireBoundingBox,
	}
}

// Qualifies reports whether a single detection passes the filter
func (f Filter) Qualifies(d Detection) bool {
	if !f.EnabledClasses[d.ClassName] {
		return false
	}
	if d.Score < f.ScoreThreshold {
		return false
	}
	if f.RequireBoundingBox && !d.HasBoundingBox {
		// Camera-internal pre-filtered detections arrive without a box
		return false
	}
	return true
}

// Qualify returns the subset of a batch that passes the filter, normalized
func (f Filter) Qualify(batch []Detection) []Detection {
	var accepted []Detection
	for _, d := range batch {
		d = d.Normalize()
		if f.Qualifies(d) {
			accepted = append(accepted, d)
		}
	}
	return accepted
}
