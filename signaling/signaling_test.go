package signaling

import (
	"errors"
	"testing"
)

func TestParseMotionLine(t *testing.T) {
	cases := []struct {
		line       string
		wantCamera string
		wantActive bool
		wantErr    bool
	}{
		{"garage:1\n", "garage", true, false},
		{"garage:0\n", "garage", false, false},
		{"front-door:1\r\n", "front-door", true, false},
		{"  porch:0  \n", "porch", false, false},
		{"\n", "", false, true},
		{"garage\n", "", false, true},
		{":1\n", "", false, true},
		{"garage:\n", "", false, true},
		{"garage:2\n", "", false, true},
		{"garage:on\n", "", false, true},
	}

	for _, tc := range cases {
		camera, active, err := parseMotionLine(tc.line)
		if tc.wantErr {
			if err == nil {
				t.Errorf("parseMotionLine(%q) should fail, got %s/%v", tc.line, camera, active)
			}
			continue
		}
		if err != nil {
			t.Errorf("parseMotionLine(%q) failed: %v", tc.line, err)
			continue
		}
		if camera != tc.wantCamera || active != tc.wantActive {
			t.Errorf("parseMotionLine(%q) = %s/%v, want %s/%v", tc.line, camera, active, tc.wantCamera, tc.wantActive)
		}
	}
}

func TestFunctionMotionSource(t *testing.T) {
	var gotCamera string
	var gotActive bool
	source := NewFunctionMotionSource(func(camera string, active bool) error {
		gotCamera = camera
		gotActive = active
		return nil
	})

	if err := source.HandleMotion("yard", true); err != nil {
		t.Fatalf("HandleMotion failed: %v", err)
	}
	if gotCamera != "yard" || !gotActive {
		t.Errorf("Callback received %s/%v, want yard/true", gotCamera, gotActive)
	}

	failing := NewFunctionMotionSource(func(string, bool) error {
		return errors.New("unknown camera")
	})
	if err := failing.HandleMotion("ghost", true); err == nil {
		t.Errorf("Handler error should propagate")
	}

	// A source with no callback swallows events
	empty := NewFunctionMotionSource(nil)
	if err := empty.HandleMotion("yard", false); err != nil {
		t.Errorf("Nil callback should be tolerated: %v", err)
	}
}
