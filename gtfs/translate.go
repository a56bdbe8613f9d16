package gtfs

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"github.com/transitlive/transitlive/arrivals"
)

// addressLanguages are the extra languages a multilingual address is
// resolved into, beyond the schedule's source language.
var addressLanguages = []string{"EN", "AR"}

// Rules carries the data-driven heuristics used when translating composite
// route long names. Keeping them as data lets deployments tune the
// separators and town synonyms without touching the translation logic.
type Rules struct {
	// Separators is tried in order against the route long name; the first
	// one present splits the name into its two terminals.
	Separators []string
	// TownSynonyms maps a translated town name to a pattern matching stop
	// names the town is considered redundant against.
	TownSynonyms map[string]*regexp.Regexp
}

// DefaultRules returns the separator set seen in national schedule exports.
func DefaultRules() *Rules {
	return &Rules{
		Separators: []string{"<->", " - "},
	}
}

// Translate returns every known translation of source, keyed by language.
// When the schedule has none, the map carries the quote-normalized source
// itself under DefaultLang so callers always have something displayable.
func (r *Resolver) Translate(ctx context.Context, source string) (map[string]string, error) {
	key := "trans:" + source
	if m, ok := r.translations.Get(ctx, key); ok {
		return m, nil
	}
	m, err := r.store.Translations(ctx, source)
	if err != nil {
		return nil, err
	}
	if len(m) == 0 {
		m = map[string]string{DefaultLang: NormalizeQuotes(source)}
	}
	r.translations.Set(ctx, key, m, staticInfoTTL)
	return m, nil
}

// TranslateCityName resolves a city name into lang. The translation table is
// consulted first; for English the cities table is the fallback, since it
// covers municipalities the translation table omits. Returns "" when no
// translation exists.
func (r *Resolver) TranslateCityName(ctx context.Context, city, lang string) (string, error) {
	key := "city:" + lang + ":" + city
	if name, ok := r.cityNames.Get(ctx, key); ok {
		return name, nil
	}
	trans, err := r.Translate(ctx, city)
	if err != nil {
		return "", err
	}
	name := trans[lang]
	if name == "" && lang == "EN" {
		row, err := r.store.CityByName(ctx, city)
		switch {
		case err == nil:
			name = row.EnglishName
		case !errors.Is(err, ErrNotFound):
			return "", err
		}
	}
	r.cityNames.Set(ctx, key, name, staticInfoTTL)
	return name, nil
}

// TranslatedAddress parses the stop's free-text description and translates
// its city component, recording each resolved language alongside the source
// form. Returns nil when the stop has no parseable address.
func (r *Resolver) TranslatedAddress(ctx context.Context, stop *Stop) (*arrivals.Address, error) {
	parsed := stop.Address()
	if parsed == nil {
		return nil, nil
	}
	addr := *parsed
	addr.CityMultilingual = map[string]string{DefaultLang: parsed.City}
	for _, lang := range addressLanguages {
		name, err := r.TranslateCityName(ctx, parsed.City, lang)
		if err != nil {
			return nil, err
		}
		if name != "" {
			addr.CityMultilingual[lang] = name
		}
	}
	if en := addr.CityMultilingual["EN"]; en != "" {
		addr.City = en
	}
	return &addr, nil
}

// TranslateRouteLongName translates a composite route long name of the form
// "origin<->destination", translating each terminal independently. A
// terminal is typically "stop name-town"; when the translated town is
// already part of the translated stop name (directly or via a synonym
// pattern) it is dropped rather than repeated.
func (r *Resolver) TranslateRouteLongName(ctx context.Context, longName string) (string, error) {
	for _, sep := range r.rules.Separators {
		if !strings.Contains(longName, sep) {
			continue
		}
		parts := strings.SplitN(longName, sep, 2)
		from, err := r.translateTerminal(ctx, parts[0])
		if err != nil {
			return "", err
		}
		to, err := r.translateTerminal(ctx, parts[1])
		if err != nil {
			return "", err
		}
		return from + "<->" + to, nil
	}
	return r.translateTerminal(ctx, longName)
}

func (r *Resolver) translateTerminal(ctx context.Context, part string) (string, error) {
	part = strings.TrimSpace(part)

	// A whole-terminal translation beats any decomposition.
	if t, err := r.store.Translation(ctx, part, "EN"); err == nil {
		return t, nil
	} else if !errors.Is(err, ErrNotFound) {
		return "", err
	}

	stopName := ""
	town := part
	if pieces := strings.Split(part, "-"); len(pieces) > 1 {
		stopName = strings.TrimSpace(pieces[0])
		town = strings.TrimSpace(pieces[1])
	}
	if stopName != "" {
		if t, err := r.store.Translation(ctx, stopName, "EN"); err == nil {
			stopName = t
		} else if !errors.Is(err, ErrNotFound) {
			return "", err
		}
	}
	if t, err := r.TranslateCityName(ctx, town, "EN"); err != nil {
		return "", err
	} else if t != "" {
		town = t
	}

	if stopName == "" {
		return town, nil
	}
	if strings.Contains(stopName, town) ||
		strings.Contains(stopName, strings.ReplaceAll(town, "-", "")) {
		return stopName, nil
	}
	// Synonym patterns apply only at the start of the stop name, so a town
	// mentioned mid-name does not count as already present.
	if re, ok := r.rules.TownSynonyms[town]; ok {
		if loc := re.FindStringIndex(stopName); loc != nil && loc[0] == 0 {
			return stopName, nil
		}
	}
	return stopName + "-" + town, nil
}
