package fonts

import (
	"errors"
	"fmt"
	"strings"

	"github.com/agnivade/levenshtein"
)

var (
	ErrUnknownLanguage = errors.New("unknown language")
	ErrUnknownFamily   = errors.New("unknown font family")
)

// Resolve returns the wire font for a family/language pair. Wild Words is
// used only where it is supported; Korean and Chinese get dedicated fonts;
// everything else falls back to NotoSans.
func Resolve(family, language string) string {
	if family == FamilyWildWords && wildWordsSupported[language] {
		return WireWildWords
	}
	switch language {
	case "Korean":
		return WireGothicA1
	case "Chinese":
		return WireFangSong
	}
	return WireNotoSans
}

// Compatible reports whether the chosen family supports language.
func Compatible(family, language string) bool {
	return Supports(family, language)
}

// Warning returns the non-blocking incompatibility notice, or "" when the
// pair is compatible.
func Warning(family, language string) string {
	if Compatible(family, language) {
		return ""
	}
	return fmt.Sprintf("The %s font and %s are not compatible, which will cause broken results, the fallback NotoSans font will be used", family, language)
}

// ParseLanguage matches name case-insensitively against the catalogue.
func ParseLanguage(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return DefaultLanguage, nil
	}
	for _, l := range languages {
		if strings.EqualFold(l, name) {
			return l, nil
		}
	}
	return "", unknown(ErrUnknownLanguage, name, languages)
}

// ParseFamily accepts display names ("Wild Words") and wire names ("WildWords").
func ParseFamily(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return DefaultFamily, nil
	}
	squashed := strings.ReplaceAll(name, " ", "")
	for _, f := range Families {
		if strings.EqualFold(f, name) || strings.EqualFold(strings.ReplaceAll(f, " ", ""), squashed) {
			return f, nil
		}
	}
	return "", unknown(ErrUnknownFamily, name, Families)
}

func unknown(kind error, name string, candidates []string) error {
	if s := Suggest(name, candidates); s != "" {
		return fmt.Errorf("%w %q, did you mean %q?", kind, name, s)
	}
	return fmt.Errorf("%w %q", kind, name)
}

// Suggest returns the closest candidate by edit distance, or "" when nothing
// is reasonably close.
func Suggest(name string, candidates []string) string {
	needle := strings.ToLower(name)
	best, bestDist := "", -1
	for _, c := range candidates {
		d := levenshtein.ComputeDistance(needle, strings.ToLower(c))
		if bestDist < 0 || d < bestDist {
			best, bestDist = c, d
		}
	}
	// Allow roughly one typo per three characters
	if bestDist < 0 || bestDist > max(2, len(needle)/3) {
		return ""
	}
	return best
}
