package models

import "testing"

func TestParseInputDateIsStrict(t *testing.T) {
	d, err := ParseInputDate("2024-02-29")
	if err != nil || d.String() != "2024-02-29" {
		t.Fatalf("ParseInputDate = %v, %v", d, err)
	}
	for _, s := range []string{"2024-01-01T10:00:00Z", "01/02/2024", "2024-1-1", ""} {
		if _, err := ParseInputDate(s); err == nil {
			t.Errorf("ParseInputDate(%q) succeeded", s)
		}
	}
}

func TestParseDateAcceptsStoredTimestamps(t *testing.T) {
	d, err := ParseDate("2024-01-01T23:30:00Z")
	if err != nil || d.String() != "2024-01-01" {
		t.Errorf("ParseDate = %v, %v", d, err)
	}
}
