package topic

import "testing"

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		text string
		want Topic
	}{
		{"pensions keyword", "How do I export a matrix in PENSIONS?", Pensions},
		{"pension singular", "Where is the pension projection table?", Pensions},
		{"namespaced pensions", "The ILO/PENSIONS import screen is empty", Pensions},
		{"health keyword", "What about health?", Health},
		{"namespaced health", "ilo-health demographic assumptions", Health},
		{"case insensitive", "pEnSiOnS", Pensions},
		{"neither", "Tell me about exporting data", Unknown},
		{"empty", "", Unknown},
		{"substring does not match", "comprehension exercises", Unknown},
		{"both keywords prefers pensions", "Is this about pensions or health?", Pensions},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.text); got != tt.want {
				t.Errorf("Classify(%q) = %q, want %q", tt.text, got, tt.want)
			}
		})
	}
}

func TestClassify_Idempotent(t *testing.T) {
	text := "exporting from HEALTH"
	first := Classify(text)
	second := Classify(text)
	if first != second {
		t.Errorf("Classify not deterministic: %q then %q", first, second)
	}
}

func TestIsBareClarification(t *testing.T) {
	tests := []struct {
		text string
		want bool
	}{
		{"pensions", true},
		{"Pensions", true},
		{"  health  ", true},
		{"it's pensions", true},
		{"its health", true},
		{"the pensions one", true},
		{"the health tool", true},
		{"the pensions manual", true},
		{"pensions.", true},
		{"How do I export a matrix in PENSIONS?", false},
		{"pensions are great investment vehicles", false},
		{"tell me about it", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			if got := IsBareClarification(tt.text); got != tt.want {
				t.Errorf("IsBareClarification(%q) = %v, want %v", tt.text, got, tt.want)
			}
		})
	}
}
