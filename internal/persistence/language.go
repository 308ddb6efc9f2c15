package persistence

import (
	"github.com/abadojack/whatlanggo"
	"golang.org/x/text/language"
)

// DetectLanguage guesses the language of a question. Short or ambiguous
// text yields language.Und.
func DetectLanguage(text string) language.Tag {
	info := whatlanggo.Detect(text)
	if !info.IsReliable() {
		return language.Und
	}
	code := info.Lang.Iso6391()
	if code == "" {
		return language.Und
	}
	tag, err := language.Parse(code)
	if err != nil {
		return language.Und
	}
	return tag
}

func parseLanguage(s string) language.Tag {
	tag, err := language.Parse(s)
	if err != nil {
		return language.Und
	}
	return tag
}
