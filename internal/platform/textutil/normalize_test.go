package textutil

import (
	"reflect"
	"testing"
)

func TestNormalizeEmail(t *testing.T) {
	if got := NormalizeEmail("  Groom@Example.COM "); got != "groom@example.com" {
		t.Fatalf("unexpected email %q", got)
	}
}

func TestNormalizeAttributes(t *testing.T) {
	t.Run("trims keys and keeps values", func(t *testing.T) {
		input := map[string]string{
			" __event_id ": "evt-1",
			"gift_note":    " congrats ",
			" ":            "ignored",
		}
		expected := map[string]string{
			"__event_id": "evt-1",
			"gift_note":  " congrats ",
		}
		if actual := NormalizeAttributes(input); !reflect.DeepEqual(actual, expected) {
			t.Fatalf("expected %#v got %#v", expected, actual)
		}
	})

	t.Run("returns nil for empty input", func(t *testing.T) {
		if NormalizeAttributes(nil) != nil {
			t.Fatalf("expected nil for nil input")
		}
		if NormalizeAttributes(map[string]string{"": "x"}) != nil {
			t.Fatalf("expected nil when every key is blank")
		}
	})
}

func TestCompactStrings(t *testing.T) {
	got := CompactStrings([]string{" GIFT-1 ", "GIFT-1", "", "GROUP-2", "  "})
	want := []string{"GIFT-1", "GROUP-2"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v got %v", want, got)
	}
	if out := CompactStrings(nil); len(out) != 0 {
		t.Fatalf("expected empty result, got %v", out)
	}
}
