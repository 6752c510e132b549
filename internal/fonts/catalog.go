// Package fonts holds the language catalogue and the rule that picks the
// rendering font the translation service is asked to use.
package fonts

import "sort"

// Display font families offered to the user.
const (
	FamilyNotoSans  = "Noto Sans"
	FamilyWildWords = "Wild Words"
)

// Wire font names sent as the fontFamily parameter.
const (
	WireNotoSans  = "NotoSans"
	WireWildWords = "WildWords"
	WireGothicA1  = "GothicA1"
	WireFangSong  = "FangSong"
)

// Defaults applied when nothing is selected.
const (
	DefaultLanguage = "Indonesian"
	DefaultFamily   = FamilyNotoSans
)

// Families lists the display families, default first.
var Families = []string{FamilyNotoSans, FamilyWildWords}

var languages = []string{
	"Afrikaans",
	"Arabic",
	"Armenian",
	"Bengali",
	"Bulgarian",
	"Catalan",
	"Chinese",
	"Croatian",
	"Czech",
	"Danish",
	"Dutch",
	"English",
	"Estonian",
	"Filipino",
	"Finnish",
	"French",
	"Georgian",
	"German",
	"Greek",
	"Hebrew",
	"Hindi",
	"Hungarian",
	"Indonesian",
	"Italian",
	"Japanese",
	"Korean",
	"Latvian",
	"Lithuanian",
	"Malay",
	"Norwegian",
	"Persian",
	"Polish",
	"Portuguese",
	"Romanian",
	"Russian",
	"Serbian",
	"Slovak",
	"Slovenian",
	"Spanish",
	"Swedish",
	"Thai",
	"Turkish",
	"Ukrainian",
	"Vietnamese",
}

// Wild Words only carries Latin glyphs without heavy diacritics.
var wildWordsSupported = set(
	"Afrikaans", "Catalan", "Danish", "Dutch", "English", "Filipino",
	"Finnish", "French", "German", "Indonesian", "Italian", "Malay",
	"Norwegian", "Portuguese", "Spanish", "Swedish",
)

var notoSansSupported = union(wildWordsSupported, set(
	"Bulgarian", "Croatian", "Czech", "Estonian", "Greek", "Hungarian",
	"Latvian", "Lithuanian", "Polish", "Romanian", "Russian", "Serbian",
	"Slovak", "Slovenian", "Turkish", "Ukrainian", "Vietnamese",
))

// Languages returns the catalogue in alphabetical order.
func Languages() []string {
	out := make([]string, len(languages))
	copy(out, languages)
	return out
}

// IsLanguage reports whether name is an exact catalogue entry.
func IsLanguage(name string) bool {
	i := sort.SearchStrings(languages, name)
	return i < len(languages) && languages[i] == name
}

// IsFamily reports whether name is a display family.
func IsFamily(name string) bool {
	return name == FamilyNotoSans || name == FamilyWildWords
}

// Supports reports whether family renders language correctly.
func Supports(family, language string) bool {
	switch family {
	case FamilyWildWords:
		return wildWordsSupported[language]
	case FamilyNotoSans:
		return notoSansSupported[language]
	}
	return false
}

func set(names ...string) map[string]bool {
	m := make(map[string]bool, len(names))
	for _, n := range names {
		m[n] = true
	}
	return m
}

func union(a, b map[string]bool) map[string]bool {
	m := make(map[string]bool, len(a)+len(b))
	for k := range a {
		m[k] = true
	}
	for k := range b {
		m[k] = true
	}
	return m
}
