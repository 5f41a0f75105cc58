package replies

import "strings"

// Fallbacks is the tone x language table used when nothing else answers.
// Build it once at startup and treat it as read-only.
type Fallbacks struct {
	greetings       map[string]string
	tones           map[string]string
	defaultLanguage string
	defaultTone     string
}

// NewFallbacks copies the given tables. Unknown keys resolve to the defaults,
// which must be present in the tables.
func NewFallbacks(greetings, tones map[string]string, defaultLanguage, defaultTone string) Fallbacks {
	f := Fallbacks{
		greetings:       make(map[string]string, len(greetings)),
		tones:           make(map[string]string, len(tones)),
		defaultLanguage: defaultLanguage,
		defaultTone:     defaultTone,
	}
	for k, v := range greetings {
		f.greetings[strings.ToLower(k)] = v
	}
	for k, v := range tones {
		f.tones[strings.ToLower(k)] = v
	}
	return f
}

func DefaultFallbacks() Fallbacks {
	return NewFallbacks(
		map[string]string{
			"en": "Hi there!",
			"hi": "Namaste!",
			"ta": "Vanakkam!",
			"te": "Namaskaram!",
			"mr": "Namaskar!",
			"bn": "Nomoskar!",
			"es": "¡Hola!",
		},
		map[string]string{
			"friendly":     "Thanks for reaching out 😊 How can I help you today?",
			"professional": "Thank you for contacting us. How may we assist you today?",
			"casual":       "What can I get you today?",
			"formal":       "We appreciate your message. Kindly let us know how we may be of service.",
		},
		"en",
		"friendly",
	)
}

// Compose returns greeting + tone response for the business's tone and language.
func (f Fallbacks) Compose(tone, language string) string {
	greeting, ok := f.greetings[strings.ToLower(strings.TrimSpace(language))]
	if !ok {
		greeting = f.greetings[f.defaultLanguage]
	}
	response, ok := f.tones[strings.ToLower(strings.TrimSpace(tone))]
	if !ok {
		response = f.tones[f.defaultTone]
	}
	return strings.TrimSpace(greeting + " " + response)
}
