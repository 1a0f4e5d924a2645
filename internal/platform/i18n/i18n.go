// Package i18n lists the languages sqlitedesk can render and resolves
// user-supplied tags against them.
package i18n

import "golang.org/x/text/language"

var supportedTags = []language.Tag{
	language.MustParse("en-US"),
	language.MustParse("pt-BR"),
}

var tagMatcher = language.NewMatcher(supportedTags)

// SupportedTags returns a copy of the supported language tags. The first tag
// is the default.
func SupportedTags() []language.Tag {
	tags := make([]language.Tag, len(supportedTags))
	copy(tags, supportedTags)
	return tags
}

// DefaultTag returns the fallback language.
func DefaultTag() language.Tag {
	return supportedTags[0]
}

// ParseTag parses value and reports whether it names a supported language.
// Base-language matches ("pt" for "pt-BR") are accepted.
func ParseTag(value string) (language.Tag, bool) {
	parsed, err := language.Parse(value)
	if err != nil {
		return language.Tag{}, false
	}
	_, index, confidence := tagMatcher.Match(parsed)
	if confidence < language.High {
		return language.Tag{}, false
	}
	return supportedTags[index], true
}

// MatchTags picks the best supported tag for an Accept-Language preference list.
func MatchTags(tags []language.Tag) language.Tag {
	if len(tags) == 0 {
		return DefaultTag()
	}
	_, index, confidence := tagMatcher.Match(tags...)
	if confidence == language.No {
		return DefaultTag()
	}
	return supportedTags[index]
}
