package domain

import (
	"strings"

	"golang.org/x/text/language"
)

// supportedLocales lists the storefront locales in fallback priority order.
var supportedLocales = language.NewMatcher([]language.Tag{
	language.English,
	language.Arabic,
})

// ResolveLocale negotiates the best supported locale for an Accept-Language
// header value. Unknown or empty input falls back to English.
func ResolveLocale(acceptLanguage string) language.Tag {
	if strings.TrimSpace(acceptLanguage) == "" {
		return language.English
	}
	tags, _, err := language.ParseAcceptLanguage(acceptLanguage)
	if err != nil || len(tags) == 0 {
		return language.English
	}
	tag, _, _ := supportedLocales.Match(tags...)
	// Matcher may return an extended tag; collapse to the base language.
	base, _ := tag.Base()
	if base.String() == "ar" {
		return language.Arabic
	}
	return language.English
}

// Resolve returns the text for the given locale, falling back to English and
// then to whichever value is present.
func (t LocalizedText) Resolve(tag language.Tag) string {
	base, _ := tag.Base()
	if base.String() == "ar" && t.AR != "" {
		return t.AR
	}
	if t.EN != "" {
		return t.EN
	}
	return t.AR
}
