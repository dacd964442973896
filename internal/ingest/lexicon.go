package ingest

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// categoryLexicon maps Russian-language keyword stems to an inferred use_category,
// used to backfill legacy rows that carry no category column.
var categoryLexicon = map[string]string{
	"кирпич":    "masonry",
	"блок":      "masonry",
	"цемент":    "binders",
	"бетон":     "concrete",
	"арматура":  "reinforcement",
	"труба":     "pipe",
	"кабель":    "electrical",
	"провод":    "electrical",
	"утеплитель": "insulation",
	"гипсокартон": "drywall",
	"краска":    "paint",
	"плитка":    "tile",
	"доска":     "lumber",
	"брус":      "lumber",
	"профиль":   "metalwork",
}

// unitLexicon maps common Russian unit abbreviations to a canonical-looking
// unit string, used when a legacy row's unit column is missing or blank.
var unitLexicon = map[string]string{
	"шт":  "шт",
	"кг":  "кг",
	"т":   "т",
	"м":   "м",
	"м2":  "м2",
	"м3":  "м3",
	"уп":  "уп",
	"мешок": "мешок",
	"рулон": "рулон",
}

// InferCategory guesses a use_category from the product name when the row
// did not supply one, by matching known Russian material keyword stems.
// It returns "" when no stem matches.
func InferCategory(name string) string {
	lower := strings.ToLower(name)
	for stem, category := range categoryLexicon {
		if strings.Contains(lower, stem) {
			return category
		}
	}
	return ""
}

// InferUnit guesses a unit string from the product name when the row's unit
// column is blank, by matching known unit-word stems. Returns "" on a miss.
// Stems are matched against whole words; stems longer than two letters also
// match as a word prefix (so "рулон" matches "рулонах").
func InferUnit(name string) string {
	words := strings.FieldsFunc(strings.ToLower(name), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, w := range words {
		for stem, unit := range unitLexicon {
			if w == stem || (utf8.RuneCountInString(stem) > 2 && strings.HasPrefix(w, stem)) {
				return unit
			}
		}
	}
	return ""
}
