package locale

import "strings"

// Language is the closed set of reply languages the widget offers.
type Language string

const (
	English Language = "en"
	Tamil   Language = "ta"
)

// Valid reports whether l is one of the supported languages.
func (l Language) Valid() bool {
	return l == English || l == Tamil
}

// ParseLanguage normalizes raw input and rejects anything outside the enum.
func ParseLanguage(raw string) (Language, bool) {
	lang := Language(strings.ToLower(strings.TrimSpace(raw)))
	if !lang.Valid() {
		return "", false
	}
	return lang, true
}

// Locale captures the strings the widget shows for one language.
type Locale struct {
	Language        Language `json:"language"`
	Label           string   `json:"label"`
	Instruction     string   `json:"instruction"` // language name used in the reply instruction
	Placeholder     string   `json:"placeholder"`
	Greeting        string   `json:"greeting"`
	NewChatGreeting string   `json:"newChatGreeting"`
}

// Seed provides the languages offered by the site.
func Seed() []Locale {
	return []Locale{
		{
			Language:        English,
			Label:           "English",
			Instruction:     "English",
			Placeholder:     "Ask a question...",
			Greeting:        "Hi! I'm Subha AI, your Sai Finance assistant. How can I help you today?",
			NewChatGreeting: "New chat. How can I assist?",
		},
		{
			Language:        Tamil,
			Label:           "தமிழ்",
			Instruction:     "Tamil (தமிழ்)",
			Placeholder:     "கேள்வி கேளுங்கள்...",
			Greeting:        "வணக்கம்! நான் சுபா AI, உங்கள் சாய் ஃபைனான்ஸ் உதவியாளர். நான் உங்களுக்கு எப்படி உதவ முடியும்?",
			NewChatGreeting: "புதிய உரையாடல். நான் எப்படி உதவ முடியும்?",
		},
	}
}
