package extraction

import "testing"

func TestNormalizeUnit(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"mg/dl", "mg/dL"},
		{"MG/DL", "mg/dL"},
		{"mg/dL.", "mg/dL"},
		{"mg%", "mg/dL"},
		{"gm/dl", "g/dL"},
		{"µIU/mL", "mIU/L"},
		{"U/L", "U/L"},
		{"mmhg", "mmHg"},
		{"%", "%"},
		{"furlongs", "furlongs"},
		{"  ", ""},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			if got := NormalizeUnit(tt.raw); got != tt.want {
				t.Errorf("NormalizeUnit(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}

func TestParseNumber(t *testing.T) {
	tests := []struct {
		in   string
		want float64
		ok   bool
	}{
		{"250", 250, true},
		{"13.5", 13.5, true},
		{"1,250", 1250, true},
		{"<5", 5, true},
		{"> 40.5 H", 40.5, true},
		{"-1.2", -1.2, true},
		{"7.2%", 7.2, true},
		{"positive", 0, false},
		{"", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseNumber(tt.in)
			if ok != tt.ok || got != tt.want {
				t.Errorf("ParseNumber(%q) = (%v, %v), want (%v, %v)", tt.in, got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestCleanParameterName(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"Glucose", "Glucose"},
		{"  - HDL   Cholesterol :", "HDL Cholesterol"},
		{"1. Hemoglobin", "Hemoglobin"},
		{"• TSH", "TSH"},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			if got := cleanParameterName(tt.raw); got != tt.want {
				t.Errorf("cleanParameterName(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}

func TestFormatDrugName(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"METFORMIN", "Metformin"},
		{"amlodipine", "Amlodipine"},
		{"vitamin d3", "Vitamin D3"},
		{"co amoxiclav", "CO Amoxiclav"},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			if got := FormatDrugName(tt.raw); got != tt.want {
				t.Errorf("FormatDrugName(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}

func TestNormalizeDate(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"15/01/2024", "2024-01-15"},
		{"2024-01-15", "2024-01-15"},
		{"15 Jan 2024", "2024-01-15"},
		{"Jan 15, 2024", "2024-01-15"},
		{"15-Jan-2024", "2024-01-15"},
		{"sometime", "sometime"},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			if got := NormalizeDate(tt.raw); got != tt.want {
				t.Errorf("NormalizeDate(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}

func TestIsFlagToken(t *testing.T) {
	for _, s := range []string{"H", "l", "HIGH", "*"} {
		if !isFlagToken(s) {
			t.Errorf("isFlagToken(%q) = false, want true", s)
		}
	}
	if isFlagToken("mg/dL") {
		t.Error("isFlagToken(mg/dL) = true, want false")
	}
}

func TestLooksLikeUnit(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"mg/dL", true},
		{"mg/dL.", true},
		{"%", true},
		{"mmHg", true},
		{"IU", true},
		{"x10^3/uL", true},
		{"remain", false},
		{"today", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := looksLikeUnit(tt.in); got != tt.want {
				t.Errorf("looksLikeUnit(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}
