package trigger

import (
	"testing"
)

// TestFilterScoreThreshold verifies the score boundary: a vehicle at 0.65
// against threshold 0.7 must not qualify, the same detection at 0.75 must.
func TestFilterScoreThreshold(t *testing.T) {
	filter := NewFilter([]string{"person", "vehicle"}, 0.7, false)

	low := Detection{ClassName: "vehicle", Score: 0.65, HasBoundingBox: true}
	if filter.Qualifies(low) {
		t.Error("Expected vehicle at 0.65 to be rejected at threshold 0.7")
	}

	high := Detection{ClassName: "vehicle", Score: 0.75, HasBoundingBox: true}
	if !filter.Qualifies(high) {
		t.Error("Expected vehicle at 0.75 to qualify at threshold 0.7")
	}

	// Exactly at threshold qualifies
	exact := Detection{ClassName: "vehicle", Score: 0.7, HasBoundingBox: true}
	if !filter.Qualifies(exact) {
		t.Error("Expected vehicle at exactly 0.7 to qualify")
	}

	t.Logf("✅ Score threshold boundary behaves correctly")
}

// TestFilterClassEnablement verifies only enabled classes qualify
func TestFilterClassEnablement(t *testing.T) {
	filter := NewFilter([]string{"person"}, 0.5, false)

	if !filter.Qualifies(Detection{ClassName: "person", Score: 0.9}) {
		t.Error("Expected enabled class person to qualify")
	}
	if filter.Qualifies(Detection{ClassName: "vehicle", Score: 0.9}) {
		t.Error("Expected disabled class vehicle to be rejected")
	}
	if filter.Qualifies(Detection{ClassName: "bird", Score: 0.9}) {
		t.Error("Expected unknown class bird to be rejected")
	}
}

// TestFilterBoundingBoxRequirement verifies box-less detections are dropped
// when a bounding box is required.
func TestFilterBoundingBoxRequirement(t *testing.T) {
	strict := NewFilter([]string{"person"}, 0.5, true)

	noBox := Detection{ClassName: "person", Score: 0.9, HasBoundingBox: false}
	if strict.Qualifies(noBox) {
		t.Error("Expected box-less detection to be rejected when box required")
	}

	withBox := Detection{ClassName: "person", Score: 0.9, HasBoundingBox: true}
	if !strict.Qualifies(withBox) {
		t.Error("Expected detection with box to qualify")
	}

	// Without the requirement, box-less detections pass
	lax := NewFilter([]string{"person"}, 0.5, false)
	if !lax.Qualifies(noBox) {
		t.Error("Expected box-less detection to qualify when box not required")
	}
}

// TestQualifyBatch verifies batch filtering keeps only qualifying records,
// normalized.
func TestQualifyBatch(t *testing.T) {
	filter := NewFilter([]string{"person", "vehicle"}, 0.7, true)

	batch := []Detection{
		{ClassName: "Person", Score: 0.8, HasBoundingBox: true},  // qualifies, normalized
		{ClassName: "vehicle", Score: 0.6, HasBoundingBox: true}, // below threshold
		{ClassName: "vehicle", Score: 0.9, HasBoundingBox: false},
		{ClassName: "animal", Score: 0.95, HasBoundingBox: true}, // class disabled
	}

	accepted := filter.Qualify(batch)
	if len(accepted) != 1 {
		t.Fatalf("Expected 1 accepted detection, got %d", len(accepted))
	}
	if accepted[0].ClassName != "person" {
		t.Errorf("Expected normalized class person, got %s", accepted[0].ClassName)
	}
}

// TestDetectionValidate verifies boundary validation rejects garbage payloads
func TestDetectionValidate(t *testing.T) {
	if err := (Detection{ClassName: "person", Score: 0.5}).Validate(); err != nil {
		t.Errorf("Expected valid detection to pass, got %v", err)
	}
	if err := (Detection{ClassName: "", Score: 0.5}).Validate(); err == nil {
		t.Error("Expected empty class name to fail validation")
	}
	if err := (Detection{ClassName: "person", Score: -0.1}).Validate(); err == nil {
		t.Error("Expected negative score to fail validation")
	}
	if err := (Detection{ClassName: "person", Score: 1.1}).Validate(); err == nil {
		t.Error("Expected score above 1 to fail validation")
	}
}
