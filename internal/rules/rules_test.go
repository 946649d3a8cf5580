package rules

import "testing"

func TestCheck_CriticalTier(t *testing.T) {
	e := NewEngine()

	tests := []struct {
		name  string
		input string
	}{
		{"kill myself", "I want to kill myself"},
		{"suicide", "I have been thinking about suicide lately"},
		{"suicidal", "feeling suicidal again"},
		{"end my life", "sometimes I think about ending my life"},
		{"want to die", "i just want to die"},
		{"self harm", "I started self harm last month"},
		{"self-harm hyphen", "struggling with self-harm"},
		{"cutting", "I've been cutting myself"},
		{"better off dead", "everyone would be better off without me"},
		{"no reason to live", "there is no reason to live"},
		{"upper case", "I WANT TO KILL MYSELF"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := e.Check(tt.input)
			if !v.Obvious {
				t.Fatalf("Check(%q).Obvious = false, want true", tt.input)
			}
			if v.Severity != SeverityCritical {
				t.Errorf("Check(%q).Severity = %q, want %q", tt.input, v.Severity, SeverityCritical)
			}
			if v.Confidence != 0.95 {
				t.Errorf("Check(%q).Confidence = %v, want 0.95", tt.input, v.Confidence)
			}
			if len(v.Reasons) == 0 || len(v.SuggestedActions) == 0 {
				t.Errorf("Check(%q) missing reasons or actions: %+v", tt.input, v)
			}
		})
	}
}

func TestCheck_HighTier(t *testing.T) {
	e := NewEngine()

	tests := []struct {
		name  string
		input string
	}{
		{"hits me", "my stepdad hits me when he's angry"},
		{"abusive", "my relationship is abusive"},
		{"threatened", "he threatened me after class"},
		{"afraid to go home", "I'm afraid to go home tonight"},
		{"not safe at home", "I am not safe at home"},
		{"weapon", "he said he's bringing a knife tomorrow"},
		{"hurt someone", "I want to hurt him for what he did"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := e.Check(tt.input)
			if !v.Obvious {
				t.Fatalf("Check(%q).Obvious = false, want true", tt.input)
			}
			if v.Severity != SeverityHigh {
				t.Errorf("Check(%q).Severity = %q, want %q", tt.input, v.Severity, SeverityHigh)
			}
			if v.Confidence != 0.90 {
				t.Errorf("Check(%q).Confidence = %v, want 0.90", tt.input, v.Confidence)
			}
		})
	}
}

func TestCheck_MediumTier(t *testing.T) {
	e := NewEngine()

	tests := []struct {
		name  string
		input string
	}{
		{"hopeless", "everything feels hopeless"},
		{"worthless", "I'm worthless at this"},
		{"nobody cares", "nobody cares what happens to me"},
		{"no one understands", "no one understands me"},
		{"hate myself", "I hate myself for failing"},
		{"cant go on", "I can't go on like this"},
		{"completely alone", "I feel completely alone"},
		{"depressed", "I've been depressed all term"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := e.Check(tt.input)
			if !v.Obvious {
				t.Fatalf("Check(%q).Obvious = false, want true", tt.input)
			}
			if v.Severity != SeverityMedium {
				t.Errorf("Check(%q).Severity = %q, want %q", tt.input, v.Severity, SeverityMedium)
			}
			if v.Confidence != 0.80 {
				t.Errorf("Check(%q).Confidence = %v, want 0.80", tt.input, v.Confidence)
			}
		})
	}
}

// A submission matching both a critical and a medium pattern must resolve
// to critical: tiers are evaluated strongest first.
func TestCheck_TierPrecedence(t *testing.T) {
	e := NewEngine()

	v := e.Check("I feel hopeless and I want to kill myself")
	if !v.Obvious {
		t.Fatal("expected obvious verdict")
	}
	if v.Severity != SeverityCritical {
		t.Errorf("Severity = %q, want %q", v.Severity, SeverityCritical)
	}

	v = e.Check("I feel so depressed, he threatened me again")
	if v.Severity != SeverityHigh {
		t.Errorf("Severity = %q, want %q", v.Severity, SeverityHigh)
	}
}

func TestCheck_NoMatch(t *testing.T) {
	e := NewEngine()

	tests := []struct {
		name  string
		input string
	}{
		{"ordinary reflection", "I learned a lot today"},
		{"empty", ""},
		{"positive", "really proud of my group project"},
		{"near miss kill", "this workload is killing my weekend"},
		{"near miss die", "the battery will die soon"},
		{"near miss alone", "I worked alone on the essay"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := e.Check(tt.input)
			if v.Obvious {
				t.Errorf("Check(%q) = %+v, want non-obvious", tt.input, v)
			}
			if v.Severity != "" || v.Confidence != 0 {
				t.Errorf("non-obvious verdict carries data: %+v", v)
			}
		})
	}
}
