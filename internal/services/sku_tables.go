package services

// Lookup tables for fulfillment SKU suffixes. Keys are the exact values accepted from sizing and
// measurement records; the maps are never written after initialisation.

const (
	autofillSuffix  = "AF"
	oneSizeSuffix   = "OSR"
	beltSmallSuffix = "460R"
	beltLargeSuffix = "600R"

	beltSmallMaxPantSize = 46
	pantsAutofillDrop    = 6
)

// jacketSizes covers jacket and vest sizes 34 through 66 (even only).
var jacketSizes = map[string]int{
	"34": 34, "36": 36, "38": 38, "40": 40, "42": 42, "44": 44,
	"46": 46, "48": 48, "50": 50, "52": 52, "54": 54, "56": 56,
	"58": 58, "60": 60, "62": 62, "64": 64, "66": 66,
}

var jacketLengths = map[string]string{
	"S": "S",
	"R": "R",
	"L": "L",
	"X": "X",
}

var pantSizes = map[string]int{
	"28": 28, "30": 30, "32": 32, "34": 34, "36": 36, "38": 38,
	"40": 40, "42": 42, "44": 44, "46": 46, "48": 48, "50": 50,
	"52": 52, "54": 54, "56": 56, "58": 58,
}

var pantLengths = map[string]string{
	"R": "R",
}

var vestSizeCodes = map[string]string{
	"34": "2XS",
	"36": "0XS",
	"38": "00S",
	"40": "00M",
	"42": "00L",
	"44": "00L",
	"46": "0XL",
	"48": "0XL",
	"50": "02X",
	"52": "02X",
	"54": "03X",
	"56": "03X",
	"58": "04X",
	"60": "04X",
	"62": "05X",
	"64": "06X",
	"66": "06X",
}

// shirtNeckCodes holds the 22 accepted neck sizes, including fractional spellings.
var shirtNeckCodes = map[string]string{
	"14":     "140",
	"14.5":   "145",
	"14 1/2": "145",
	"15":     "150",
	"15.5":   "155",
	"15 1/2": "155",
	"16":     "160",
	"16.5":   "165",
	"16 1/2": "165",
	"17":     "170",
	"17.5":   "175",
	"17 1/2": "175",
	"18":     "180",
	"18.5":   "185",
	"18 1/2": "185",
	"19":     "190",
	"19.5":   "195",
	"19 1/2": "195",
	"20":     "200",
	"20.5":   "205",
	"20 1/2": "205",
	"21":     "210",
}

var shirtSleeveCodes = map[string]string{
	"32/33": "3",
	"34/35": "5",
	"36/37": "7",
	"38/39": "9",
}

// shortNecks are promoted to 15.5 when paired with a 36/37 sleeve.
var shortNecks = map[string]struct{}{
	"14":     {},
	"14.5":   {},
	"14 1/2": {},
	"15":     {},
}

var shoeSizeCodes = map[string]string{
	"6":         "060D",
	"6 Wide":    "060W",
	"6.5":       "065D",
	"6.5 Wide":  "065W",
	"7":         "070D",
	"7 Wide":    "070W",
	"7.5":       "075D",
	"7.5 Wide":  "075W",
	"8":         "080D",
	"8 Wide":    "080W",
	"8.5":       "085D",
	"8.5 Wide":  "085W",
	"9":         "090D",
	"9 Wide":    "090W",
	"9.5":       "095D",
	"9.5 Wide":  "095W",
	"10":        "100D",
	"10 Wide":   "100W",
	"10.5":      "105D",
	"10.5 Wide": "105W",
	"11":        "110D",
	"11 Wide":   "110W",
	"11.5":      "115D",
	"11.5 Wide": "115W",
	"12":        "120D",
	"12 Wide":   "120W",
	"12.5":      "125D",
	"12.5 Wide": "125W",
	"13":        "130D",
	"13 Wide":   "130W",
	"14":        "140D",
	"14 Wide":   "140W",
	"15":        "150D",
	"15 Wide":   "150W",
}
