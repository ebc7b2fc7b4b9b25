package services

import (
	"errors"
	"testing"

	domain "github.com/suitline/fulfillment/internal/domain"
)

func TestResolveSKUByCategory(t *testing.T) {
	cases := []struct {
		name        string
		sku         string
		sizing      *domain.SizingRecord
		measurement *domain.MeasurementRecord
		want        string
	}{
		{"jacket", "101A1BLK", &domain.SizingRecord{JacketSize: "42", JacketLength: "R"}, nil, "101A1BLK42RAF"},
		{"suit", "001A1BLK", &domain.SizingRecord{JacketSize: "42", JacketLength: "R"}, nil, "001A1BLK42R"},
		{"pants without drop", "201A1BLK", &domain.SizingRecord{PantSize: "40", PantLength: "R", JacketSize: "42"}, nil, "201A1BLK40R"},
		{"pants with drop", "201A1BLK", &domain.SizingRecord{PantSize: "36", PantLength: "R", JacketSize: "42"}, nil, "201A1BLK36RAF"},
		{"vest", "301A2BLK", &domain.SizingRecord{VestSize: "40", VestLength: "L"}, nil, "301A2BLK00MLAF"},
		{"vest largest", "301A2BLK", &domain.SizingRecord{VestSize: "66", VestLength: "R"}, nil, "301A2BLK06XRAF"},
		{"shirt", "401A1WHT", &domain.SizingRecord{ShirtNeck: "16.5", ShirtSleeve: "34/35"}, nil, "401A1WHT1655"},
		{"shirt twenty", "401A1WHT", &domain.SizingRecord{ShirtNeck: "20", ShirtSleeve: "38/39"}, nil, "401A1WHT2009"},
		{"bow tie", "501A1BLK", nil, nil, "501A1BLKOSR"},
		{"neck tie", "601A1BLK", nil, nil, "601A1BLKOSR"},
		{"socks", "903A4BLK", nil, nil, "903A4BLKOSR"},
		{"premium pocket square", "P01A1RED", nil, nil, "P01A1REDOSR"},
		{"belt small", "701A1BLK", &domain.SizingRecord{PantSize: "46", PantLength: "R"}, nil, "701A1BLK460R"},
		{"belt large", "701A1BLK", &domain.SizingRecord{PantSize: "48", PantLength: "R"}, nil, "701A1BLK600R"},
		{"shoes", "803A4BLK", nil, &domain.MeasurementRecord{ShoeSize: "7"}, "803A4BLK070D"},
		{"shoes wide", "803A4BLK", nil, &domain.MeasurementRecord{ShoeSize: "9 wide"}, "803A4BLK090W"},
		{"swatch", "W01A1BLK", nil, nil, "W01A1BLK"},
		{"unknown", "Z01A1BLK", nil, nil, "Z01A1BLK"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ResolveSKU(tc.sku, tc.sizing, tc.measurement)
			if err != nil {
				t.Fatalf("resolve %s: %v", tc.sku, err)
			}
			if !got.Resolved {
				t.Fatalf("expected %s to resolve", tc.sku)
			}
			if got.SKU != tc.want {
				t.Fatalf("expected %s, got %s", tc.want, got.SKU)
			}
		})
	}
}

func TestResolveSKUMissingInputsIsUnresolved(t *testing.T) {
	cases := []struct {
		name        string
		sku         string
		sizing      *domain.SizingRecord
		measurement *domain.MeasurementRecord
	}{
		{"jacket without sizing", "101A1BLK", nil, nil},
		{"jacket without length", "101A1BLK", &domain.SizingRecord{JacketSize: "42"}, nil},
		{"pants without pant size", "201A1BLK", &domain.SizingRecord{JacketSize: "42", JacketLength: "R"}, nil},
		{"shirt without sleeve", "401A1WHT", &domain.SizingRecord{ShirtNeck: "16"}, nil},
		{"belt without pants", "701A1BLK", &domain.SizingRecord{}, nil},
		{"shoes without measurement", "803A4BLK", &domain.SizingRecord{}, nil},
		{"shoes with blank size", "803A4BLK", nil, &domain.MeasurementRecord{ShoeSize: "  "}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ResolveSKU(tc.sku, tc.sizing, tc.measurement)
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if got.Resolved {
				t.Fatalf("expected unresolved, got %s", got.SKU)
			}
		})
	}
}

func TestResolveSKUValidation(t *testing.T) {
	cases := []struct {
		name        string
		sizing      *domain.SizingRecord
		measurement *domain.MeasurementRecord
		sku         string
		field       string
	}{
		{"odd jacket size", &domain.SizingRecord{JacketSize: "41", JacketLength: "R"}, nil, "101A1BLK", "jacketSize"},
		{"jacket too large", &domain.SizingRecord{JacketSize: "68", JacketLength: "R"}, nil, "101A1BLK", "jacketSize"},
		{"jacket length", &domain.SizingRecord{JacketSize: "42", JacketLength: "T"}, nil, "101A1BLK", "jacketLength"},
		{"pant length", &domain.SizingRecord{PantSize: "32", PantLength: "L"}, nil, "201A1BLK", "pantLength"},
		{"pant size", &domain.SizingRecord{PantSize: "60", PantLength: "R"}, nil, "201A1BLK", "pantSize"},
		{"vest size", &domain.SizingRecord{VestSize: "32", VestLength: "R"}, nil, "301A1BLK", "vestSize"},
		{"neck", &domain.SizingRecord{ShirtNeck: "13", ShirtSleeve: "34/35"}, nil, "401A1WHT", "shirtNeck"},
		{"sleeve", &domain.SizingRecord{ShirtNeck: "16", ShirtSleeve: "30/31"}, nil, "401A1WHT", "shirtSleeve"},
		{"shoe size", nil, &domain.MeasurementRecord{ShoeSize: "16"}, "803A4BLK", "shoeSize"},
		// invalid sizing fails even for categories that do not use the field
		{"unrelated category", &domain.SizingRecord{JacketSize: "99"}, nil, "601A1BLK", "jacketSize"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ResolveSKU(tc.sku, tc.sizing, tc.measurement)
			if !errors.Is(err, ErrValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
			var vErr *ValidationError
			if !errors.As(err, &vErr) {
				t.Fatalf("expected *ValidationError, got %T", err)
			}
			if vErr.Field != tc.field {
				t.Fatalf("expected field %s, got %s", tc.field, vErr.Field)
			}
		})
	}
}

func TestNormalizeSizingCorrections(t *testing.T) {
	cases := []struct {
		name string
		in   domain.SizingRecord
		want domain.SizingRecord
	}{
		{
			name: "short regular snaps to 36R",
			in:   domain.SizingRecord{JacketSize: "34", JacketLength: "R", VestSize: "34"},
			want: domain.SizingRecord{JacketSize: "36", JacketLength: "R", VestSize: "36"},
		},
		{
			name: "small long snaps to 38L",
			in:   domain.SizingRecord{JacketSize: "36", JacketLength: "L", VestSize: "36"},
			want: domain.SizingRecord{JacketSize: "38", JacketLength: "L", VestSize: "38"},
		},
		{
			name: "large extra long becomes long",
			in:   domain.SizingRecord{JacketSize: "50", JacketLength: "X"},
			want: domain.SizingRecord{JacketSize: "50", JacketLength: "L"},
		},
		{
			name: "large short becomes regular",
			in:   domain.SizingRecord{JacketSize: "54", JacketLength: "S"},
			want: domain.SizingRecord{JacketSize: "54", JacketLength: "R"},
		},
		{
			name: "52 short unchanged",
			in:   domain.SizingRecord{JacketSize: "52", JacketLength: "S"},
			want: domain.SizingRecord{JacketSize: "52", JacketLength: "S"},
		},
		{
			name: "neck 14 with 34/35",
			in:   domain.SizingRecord{ShirtNeck: "14", ShirtSleeve: "34/35"},
			want: domain.SizingRecord{ShirtNeck: "14.5", ShirtSleeve: "34/35"},
		},
		{
			name: "short neck with 36/37",
			in:   domain.SizingRecord{ShirtNeck: "14 1/2", ShirtSleeve: "36/37"},
			want: domain.SizingRecord{ShirtNeck: "15.5", ShirtSleeve: "36/37"},
		},
		{
			name: "neck 16 with 36/37 unchanged",
			in:   domain.SizingRecord{ShirtNeck: "16", ShirtSleeve: "36/37"},
			want: domain.SizingRecord{ShirtNeck: "16", ShirtSleeve: "36/37"},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			original := tc.in
			got := NormalizeSizing(tc.in)
			if got != tc.want {
				t.Fatalf("expected %+v, got %+v", tc.want, got)
			}
			if tc.in != original {
				t.Fatalf("input mutated: %+v", tc.in)
			}
		})
	}
}

func TestResolveSKUAppliesNormalizationWithoutMutatingInput(t *testing.T) {
	sizing := &domain.SizingRecord{ID: "sz_1", JacketSize: "34", JacketLength: "R", VestSize: "34", VestLength: "R"}
	jacket, err := ResolveSKU("101A1NVY", sizing, nil)
	if err != nil {
		t.Fatalf("resolve jacket: %v", err)
	}
	if jacket.SKU != "101A1NVY36RAF" {
		t.Fatalf("expected snapped jacket, got %s", jacket.SKU)
	}
	vest, err := ResolveSKU("301A1NVY", sizing, nil)
	if err != nil {
		t.Fatalf("resolve vest: %v", err)
	}
	if vest.SKU != "301A1NVY0XSRAF" {
		t.Fatalf("expected vest to mirror jacket, got %s", vest.SKU)
	}
	if sizing.JacketSize != "34" || sizing.VestSize != "34" {
		t.Fatalf("sizing snapshot mutated: %+v", sizing)
	}
}

func TestResolveSKUFoldsFullWidthInput(t *testing.T) {
	got, err := ResolveSKU("101A1BLK", &domain.SizingRecord{JacketSize: "４２", JacketLength: "ｒ"}, nil)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got.SKU != "101A1BLK42RAF" {
		t.Fatalf("expected 101A1BLK42RAF, got %s", got.SKU)
	}
}

func TestResolveSKUIsDeterministic(t *testing.T) {
	sizing := &domain.SizingRecord{JacketSize: "44", JacketLength: "L", PantSize: "38", PantLength: "R"}
	first, err := ResolveSKU("201B3GRY", sizing, nil)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	for i := 0; i < 5; i++ {
		again, err := ResolveSKU("201B3GRY", sizing, nil)
		if err != nil || again != first {
			t.Fatalf("expected %+v, got %+v (%v)", first, again, err)
		}
	}
}

func TestRequiresMeasurements(t *testing.T) {
	required := []string{"001A", "101A", "201A", "301A", "401A", "701A", "801A"}
	for _, sku := range required {
		if !RequiresMeasurements(sku) {
			t.Fatalf("expected %s to require measurements", sku)
		}
	}
	optional := []string{"501A", "601A", "901A", "W01A", "P01A", "Z01A", ""}
	for _, sku := range optional {
		if RequiresMeasurements(sku) {
			t.Fatalf("expected %s not to require measurements", sku)
		}
	}
}

func TestSuitBaseCode(t *testing.T) {
	for _, sku := range []string{"101A2BLK", "201A2BLK", "301A2BLK"} {
		if got := SuitBaseCode(sku); got != "001A2BLK" {
			t.Fatalf("expected 001A2BLK for %s, got %s", sku, got)
		}
	}
}
