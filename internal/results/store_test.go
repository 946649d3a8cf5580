package results

import (
	"reflect"
	"testing"
)

// Reasons and actions must survive the JSONB round trip exactly: same
// elements, same order, no lossy re-encoding.
func TestStringList_RoundTrip(t *testing.T) {
	tests := []struct {
		name string
		list []string
	}{
		{"nil", nil},
		{"empty", []string{}},
		{"single", []string{"self-harm or suicidal language detected"}},
		{"ordered", []string{"b-second", "a-first", "c-third"}},
		{"duplicates preserved", []string{"repeat", "repeat"}},
		{"unicode and quotes", []string{`said "I can't"`, "émotions fortes"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			encoded, err := encodeStringList(tt.list)
			if err != nil {
				t.Fatalf("encode: %v", err)
			}
			decoded, err := decodeStringList(encoded)
			if err != nil {
				t.Fatalf("decode: %v", err)
			}

			want := tt.list
			if want == nil {
				want = []string{}
			}
			if !reflect.DeepEqual(decoded, want) {
				t.Errorf("round trip = %#v, want %#v", decoded, want)
			}
		})
	}
}

func TestDecodeStringList_EmptyColumn(t *testing.T) {
	decoded, err := decodeStringList(nil)
	if err != nil {
		t.Fatalf("decode(nil): %v", err)
	}
	if len(decoded) != 0 {
		t.Errorf("decode(nil) = %v, want empty", decoded)
	}
}

func TestDecodeStringList_Corrupt(t *testing.T) {
	if _, err := decodeStringList([]byte(`{"not":"a list"}`)); err == nil {
		t.Error("decode accepted a non-array value")
	}
}
