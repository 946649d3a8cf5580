package positivity

import "testing"

func TestScore_PositiveContent(t *testing.T) {
	d := NewDetector()

	tests := []struct {
		name     string
		input    string
		wantTerm string
	}{
		{"single word", "I learned so much in class", "learned"},
		{"punctuation", "I'm really proud!", "proud"},
		{"upper case", "FEELING GRATEFUL TODAY", "grateful"},
		{"phrase", "I finally figured it out after an hour", "figured it out"},
		{"phrase with words around", "honestly, thank you for the feedback", "thank you"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := d.Score(tt.input)
			if !result.Positive {
				t.Fatalf("Score(%q).Positive = false", tt.input)
			}
			found := false
			for _, term := range result.Terms {
				if term == tt.wantTerm {
					found = true
				}
			}
			if !found {
				t.Errorf("Score(%q).Terms = %v, want to include %q", tt.input, result.Terms, tt.wantTerm)
			}
			if result.Score <= 0 {
				t.Errorf("Score(%q).Score = %v, want > 0", tt.input, result.Score)
			}
		})
	}
}

func TestScore_NeutralContent(t *testing.T) {
	d := NewDetector()

	tests := []string{
		"the assignment is due friday",
		"",
		"I finished the reading",
	}

	for _, input := range tests {
		result := d.Score(input)
		if result.Positive {
			t.Errorf("Score(%q) = %+v, want not positive", input, result)
		}
		if len(result.Terms) != 0 {
			t.Errorf("Score(%q).Terms = %v, want none", input, result.Terms)
		}
	}
}

func TestScore_DeduplicatesTerms(t *testing.T) {
	d := NewDetector()

	result := d.Score("proud proud proud of what I learned, learned a lot")
	counts := make(map[string]int)
	for _, term := range result.Terms {
		counts[term]++
	}
	for term, n := range counts {
		if n > 1 {
			t.Errorf("term %q listed %d times", term, n)
		}
	}
}
