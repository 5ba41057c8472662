package services

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"tenant-onboarding-backend/db/models"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Deterministic interpretation used whenever the model is unavailable or
// returns an unusable result. Keyword lists cover English and Hebrew.

var confirmationWords = []string{
	"yes", "yeah", "yep", "sure", "ok", "okay", "correct", "right", "confirm", "confirmed",
	"כן", "נכון", "בסדר", "מאשר", "מאשרת", "אישור",
}

var rejectionWords = []string{
	"no", "nope", "wrong", "incorrect", "not right", "reject",
	"לא", "לא נכון", "שגוי", "טעות",
}

var familyStatusWords = map[string]string{
	"single":   "single",
	"married":  "married",
	"divorced": "divorced",
	"widowed":  "widowed",
	"widow":    "widowed",
	"רווק":     "single",
	"רווקה":    "single",
	"נשוי":     "married",
	"נשואה":    "married",
	"גרוש":     "divorced",
	"גרושה":    "divorced",
	"אלמן":     "widowed",
	"אלמנה":    "widowed",
}

var selfEmployedKeywords = []string{
	"self-employed", "self employed", "freelance", "freelancer", "owner", "business owner",
	"entrepreneur", "consultant", "contractor", "independent",
	"עצמאי", "עצמאית", "פרילנסר", "בעל עסק", "בעלת עסק", "יועץ", "יועצת",
}

var numberWords = map[string]int{
	"zero": 0, "none": 0, "no": 0,
	"one": 1, "two": 2, "three": 3, "four": 4, "five": 5,
	"six": 6, "seven": 7, "eight": 8, "nine": 9, "ten": 10,
	"אין": 0, "אפס": 0, "אחד": 1, "אחת": 1, "שניים": 2, "שתיים": 2,
	"שלושה": 3, "שלוש": 3, "ארבעה": 4, "ארבע": 4, "חמישה": 5, "חמש": 5,
}

var digitsPattern = regexp.MustCompile(`\d+`)

// RuleBasedInterpret produces a ValidationOutcome from keyword and pattern
// matching alone. It always returns an outcome.
func RuleBasedInterpret(q QuestionContext, raw string) ValidationOutcome {
	text := strings.ToLower(strings.TrimSpace(raw))

	switch q.Kind {
	case QuestionOccupation:
		// Any substantive answer is accepted; classification happens later.
		if len([]rune(text)) < 2 {
			return ValidationOutcome{
				IsValid:      false,
				ParsedFields: map[string]any{"occupation": nil},
				Feedback:     "Please tell me your occupation",
			}
		}
		return ValidationOutcome{
			IsValid:      true,
			ParsedFields: map[string]any{"occupation": strings.TrimSpace(raw)},
			Feedback:     "Thanks for the occupation details",
			Confidence:   0.6,
		}

	case QuestionFamilyStatus:
		for word, status := range familyStatusWords {
			if strings.Contains(text, word) {
				return ValidationOutcome{
					IsValid:      true,
					ParsedFields: map[string]any{"family_status": status},
					Confidence:   0.7,
				}
			}
		}
		return ValidationOutcome{
			IsValid:      false,
			ParsedFields: map[string]any{"family_status": nil},
			Feedback:     "Please answer with single, married, divorced or widowed",
		}

	case QuestionNumberOfChildren:
		if n, ok := extractNumber(text); ok {
			return ValidationOutcome{
				IsValid:      true,
				ParsedFields: map[string]any{"number_of_children": n},
				Confidence:   0.7,
			}
		}
		return ValidationOutcome{
			IsValid:      false,
			ParsedFields: map[string]any{"number_of_children": nil},
			Feedback:     "Please answer with a number",
		}

	case QuestionGuarantorContact:
		return parseGuarantorContact(raw)

	default:
		return ValidationOutcome{
			IsValid:      true,
			ParsedFields: map[string]any{"confirmed": matchConfirmation(text)},
			Confidence:   0.6,
		}
	}
}

// matchConfirmation returns true, false, or nil when neither word list hits.
// Rejection wins over confirmation so "no that's not right, yes?" reads as a
// rejection.
func matchConfirmation(text string) any {
	for _, w := range rejectionWords {
		if containsWord(text, w) {
			return false
		}
	}
	for _, w := range confirmationWords {
		if containsWord(text, w) {
			return true
		}
	}
	return nil
}

// containsWord matches whole tokens for Latin words and substrings for
// Hebrew, where prefixes attach to the word.
func containsWord(text, word string) bool {
	if word == "" {
		return false
	}
	if word[0] >= 'a' && word[0] <= 'z' {
		for _, token := range strings.FieldsFunc(text, func(r rune) bool {
			return !unicode.IsLetter(r)
		}) {
			if token == word {
				return true
			}
		}
		return false
	}
	return strings.Contains(text, word)
}

func extractNumber(text string) (int, bool) {
	if m := digitsPattern.FindString(text); m != "" {
		if n, err := strconv.Atoi(m); err == nil {
			return n, true
		}
	}
	for word, n := range numberWords {
		if containsWord(text, word) {
			return n, true
		}
	}
	return 0, false
}

var phonePattern = regexp.MustCompile(`\+?\d[\d\-\s]{7,}\d`)

// parseGuarantorContact splits a free-text message into a phone number and
// the remaining text as the name.
func parseGuarantorContact(raw string) ValidationOutcome {
	phone := phonePattern.FindString(raw)
	name := strings.TrimSpace(phonePattern.ReplaceAllString(raw, " "))
	name = strings.Trim(name, ",.-: \t\n")

	if phone == "" || name == "" {
		return ValidationOutcome{
			IsValid:      false,
			ParsedFields: map[string]any{},
			Feedback:     "Please send the guarantor's full name and phone number",
		}
	}
	return ValidationOutcome{
		IsValid: true,
		ParsedFields: map[string]any{
			"name":  name,
			"phone": phone,
		},
		Confidence: 0.6,
	}
}

func classifyOccupationByKeywords(occupation string) models.OccupationClass {
	text := strings.ToLower(occupation)
	for _, kw := range selfEmployedKeywords {
		if strings.Contains(text, kw) {
			return models.OccupationSelfEmployed
		}
	}
	return models.OccupationSalaried
}

var stripMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// normalizeName lowercases and strips combining marks so "José" and "jose"
// compare equal.
func normalizeName(name string) string {
	out, _, err := transform.String(stripMarks, strings.ToLower(strings.TrimSpace(name)))
	if err != nil {
		return strings.ToLower(strings.TrimSpace(name))
	}
	return out
}

// NamesMatch compares names case- and diacritic-insensitively, accepting a
// match when one name's tokens all appear in the other. Documents often
// carry middle names the record omits, or the reverse.
func NamesMatch(a, b string) bool {
	tokensA := strings.Fields(normalizeName(a))
	tokensB := strings.Fields(normalizeName(b))
	if len(tokensA) == 0 || len(tokensB) == 0 {
		return false
	}
	return tokensContained(tokensA, tokensB) || tokensContained(tokensB, tokensA)
}

func tokensContained(subset, set []string) bool {
	for _, t := range subset {
		found := false
		for _, s := range set {
			if t == s {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
