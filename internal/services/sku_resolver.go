package services

import (
	"strings"

	"golang.org/x/text/width"

	domain "github.com/suitline/fulfillment/internal/domain"
)

// ResolveSKU maps a catalog SKU to the warehouse SKU for the customer's sizing and measurements.
// It performs no I/O. A result with Resolved=false means the inputs required by the SKU's
// category are missing; invalid inputs return a *ValidationError.
func ResolveSKU(catalogSKU string, sizing *domain.SizingRecord, measurement *domain.MeasurementRecord) (domain.ResolvedSKU, error) {
	sku := strings.TrimSpace(catalogSKU)
	category := domain.CategoryOf(sku)
	unresolved := domain.ResolvedSKU{Category: category}

	var fit *domain.SizingRecord
	if sizing != nil {
		cleaned := cleanSizing(*sizing)
		if err := ValidateSizing(cleaned); err != nil {
			return unresolved, err
		}
		normalized := NormalizeSizing(cleaned)
		fit = &normalized
	}

	resolved := func(suffix string) domain.ResolvedSKU {
		return domain.ResolvedSKU{SKU: sku + suffix, Category: category, Resolved: true}
	}

	switch category {
	case domain.CategorySuit:
		if fit == nil || fit.JacketSize == "" || fit.JacketLength == "" {
			return unresolved, nil
		}
		return resolved(fit.JacketSize + jacketLengths[fit.JacketLength]), nil

	case domain.CategoryJacket:
		if fit == nil || fit.JacketSize == "" || fit.JacketLength == "" {
			return unresolved, nil
		}
		return resolved(fit.JacketSize + jacketLengths[fit.JacketLength] + autofillSuffix), nil

	case domain.CategoryVest:
		if fit == nil || fit.VestSize == "" || fit.VestLength == "" {
			return unresolved, nil
		}
		return resolved(vestSizeCodes[fit.VestSize] + strings.ToUpper(fit.VestLength) + autofillSuffix), nil

	case domain.CategoryPants:
		if fit == nil || fit.PantSize == "" || fit.PantLength == "" {
			return unresolved, nil
		}
		suffix := fit.PantSize + pantLengths[fit.PantLength]
		if jacket, ok := jacketSizes[fit.JacketSize]; ok && jacket-pantSizes[fit.PantSize] == pantsAutofillDrop {
			suffix += autofillSuffix
		}
		return resolved(suffix), nil

	case domain.CategoryShirt:
		if fit == nil || fit.ShirtNeck == "" || fit.ShirtSleeve == "" {
			return unresolved, nil
		}
		return resolved(shirtNeckCodes[fit.ShirtNeck] + shirtSleeveCodes[fit.ShirtSleeve]), nil

	case domain.CategoryNeckTie, domain.CategoryBowTie, domain.CategorySocks, domain.CategoryPremiumPocketSquare:
		return resolved(oneSizeSuffix), nil

	case domain.CategoryBelt:
		if fit == nil || fit.PantSize == "" {
			return unresolved, nil
		}
		if pantSizes[fit.PantSize] <= beltSmallMaxPantSize {
			return resolved(beltSmallSuffix), nil
		}
		return resolved(beltLargeSuffix), nil

	case domain.CategoryShoes:
		if measurement == nil {
			return unresolved, nil
		}
		shoe := canonicalShoeSize(measurement.ShoeSize)
		if shoe == "" {
			return unresolved, nil
		}
		code, ok := shoeSizeCodes[shoe]
		if !ok {
			return unresolved, newValidationError("shoeSize", measurement.ShoeSize)
		}
		return resolved(code), nil

	case domain.CategorySwatch, domain.CategoryUnknown:
		return domain.ResolvedSKU{SKU: sku, Category: category, Resolved: sku != ""}, nil
	}

	return unresolved, nil
}

// RequiresMeasurements reports whether resolving the SKU depends on customer sizing inputs.
func RequiresMeasurements(catalogSKU string) bool {
	switch domain.CategoryOf(catalogSKU) {
	case domain.CategorySuit, domain.CategoryJacket, domain.CategoryPants, domain.CategoryVest,
		domain.CategoryShirt, domain.CategoryBelt, domain.CategoryShoes:
		return true
	}
	return false
}

// ValidateSizing checks every populated field against its closed enumeration.
func ValidateSizing(sizing domain.SizingRecord) error {
	checks := []struct {
		field string
		value string
		ok    func(string) bool
	}{
		{"jacketSize", sizing.JacketSize, inIntTable(jacketSizes)},
		{"jacketLength", sizing.JacketLength, inStringTable(jacketLengths)},
		{"vestSize", sizing.VestSize, inIntTable(jacketSizes)},
		{"pantSize", sizing.PantSize, inIntTable(pantSizes)},
		{"pantLength", sizing.PantLength, inStringTable(pantLengths)},
		{"shirtNeck", sizing.ShirtNeck, inStringTable(shirtNeckCodes)},
		{"shirtSleeve", sizing.ShirtSleeve, inStringTable(shirtSleeveCodes)},
	}
	for _, check := range checks {
		if check.value == "" {
			continue
		}
		if !check.ok(check.value) {
			return newValidationError(check.field, check.value)
		}
	}
	return nil
}

// NormalizeSizing applies the fit corrections used by the warehouse and returns a corrected copy.
// The input must already be validated.
func NormalizeSizing(sizing domain.SizingRecord) domain.SizingRecord {
	out := sizing

	jacket, hasJacket := jacketSizes[out.JacketSize]
	if hasJacket {
		switch {
		case jacket < 36 && out.JacketLength == "R":
			out.JacketSize, out.JacketLength = "36", "R"
			out.VestSize = out.JacketSize
		case jacket < 38 && out.JacketLength == "L":
			out.JacketSize, out.JacketLength = "38", "L"
			out.VestSize = out.JacketSize
		case jacket >= 50 && out.JacketLength == "X":
			out.JacketLength = "L"
		case jacket >= 54 && out.JacketLength == "S":
			out.JacketLength = "R"
		}
	}

	switch {
	case out.ShirtNeck == "14" && out.ShirtSleeve == "34/35":
		out.ShirtNeck = "14.5"
	case out.ShirtSleeve == "36/37":
		if _, short := shortNecks[out.ShirtNeck]; short {
			out.ShirtNeck = "15.5"
		}
	}

	return out
}

// SuitBaseCode returns the suit-level SKU shared by the jacket, vest, and pants of one style.
func SuitBaseCode(sku string) string {
	sku = strings.TrimSpace(sku)
	if sku == "" {
		return ""
	}
	return string(domain.SuitCategoryCode) + sku[1:]
}

func cleanSizing(sizing domain.SizingRecord) domain.SizingRecord {
	out := sizing
	out.JacketSize = cleanValue(out.JacketSize)
	out.JacketLength = strings.ToUpper(cleanValue(out.JacketLength))
	out.VestSize = cleanValue(out.VestSize)
	out.VestLength = strings.ToUpper(cleanValue(out.VestLength))
	out.PantSize = cleanValue(out.PantSize)
	out.PantLength = strings.ToUpper(cleanValue(out.PantLength))
	out.ShirtNeck = cleanValue(out.ShirtNeck)
	out.ShirtSleeve = cleanValue(out.ShirtSleeve)
	return out
}

// cleanValue folds full-width characters and collapses whitespace.
func cleanValue(value string) string {
	return strings.Join(strings.Fields(width.Narrow.String(value)), " ")
}

func canonicalShoeSize(value string) string {
	fields := strings.Fields(width.Narrow.String(value))
	if len(fields) == 0 {
		return ""
	}
	if len(fields) == 2 && strings.EqualFold(fields[1], "wide") {
		return fields[0] + " Wide"
	}
	return strings.Join(fields, " ")
}

func inIntTable(table map[string]int) func(string) bool {
	return func(value string) bool {
		_, ok := table[value]
		return ok
	}
}

func inStringTable(table map[string]string) func(string) bool {
	return func(value string) bool {
		_, ok := table[value]
		return ok
	}
}
