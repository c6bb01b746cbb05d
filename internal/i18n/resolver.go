// Package i18n resolves dotted translation keys ("app.welcome") against the
// English and Arabic dictionaries and tracks the active language, which is
// persisted so it survives restarts and follows changes made by other
// processes.
package i18n

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/text/language"

	appLog "jamati/internal/log"
	"jamati/internal/persisted"
)

type Language string

const (
	English Language = "en"
	Arabic  Language = "ar"
)

// Languages lists the supported languages in toggle order.
var Languages = []Language{English, Arabic}

type Direction string

const (
	LTR Direction = "ltr"
	RTL Direction = "rtl"
)

// StorageKey is where the active language is persisted.
const StorageKey = "jamati-lang"

func (l Language) Valid() bool {
	return l == English || l == Arabic
}

// Direction is the text direction used to render l.
func (l Language) Direction() Direction {
	if l == Arabic {
		return RTL
	}
	return LTR
}

// ParseLanguage accepts "en"/"ar" and anything x/text can match to them
// ("ar-SA", "en_GB").
func ParseLanguage(s string) (Language, error) {
	s = strings.TrimSpace(s)
	if l := Language(strings.ToLower(s)); l.Valid() {
		return l, nil
	}
	tag, err := language.Parse(strings.ReplaceAll(s, "_", "-"))
	if err != nil {
		return "", fmt.Errorf("i18n: unsupported language %q", s)
	}
	if l, ok := fromTag(tag); ok {
		return l, nil
	}
	return "", fmt.Errorf("i18n: unsupported language %q", s)
}

var matcher = language.NewMatcher([]language.Tag{language.English, language.Arabic})

// Match picks the best supported language for an Accept-Language header,
// defaulting to English.
func Match(acceptLanguage string) Language {
	tag, _ := language.MatchStrings(matcher, acceptLanguage)
	if l, ok := fromTag(tag); ok {
		return l
	}
	return English
}

func fromTag(tag language.Tag) (Language, bool) {
	base, _ := tag.Base()
	switch base.String() {
	case "en":
		return English, true
	case "ar":
		return Arabic, true
	}
	return "", false
}

type dictionary map[string]any

// Resolver is constructed once at startup and handed to every consumer that
// needs translated text.
type Resolver struct {
	lang *persisted.Value[Language]

	mu     sync.RWMutex
	dicts  map[Language]dictionary
	loaded bool
	ready  chan struct{}
	once   sync.Once
}

// NewResolver creates a resolver whose active language lives in lang.
// Until Load completes every key resolves to itself.
func NewResolver(lang *persisted.Value[Language]) *Resolver {
	return &Resolver{
		lang:  lang,
		ready: make(chan struct{}),
	}
}

// Load fetches both dictionaries. If either fails, both are replaced by
// empty dictionaries and every key resolves to its own text.
func (r *Resolver) Load(ctx context.Context, src Source) {
	raw := make([][]byte, len(Languages))
	g, gctx := errgroup.WithContext(ctx)
	for i, l := range Languages {
		g.Go(func() error {
			data, err := src.Load(gctx, l)
			if err != nil {
				return fmt.Errorf("load %s: %w", l, err)
			}
			raw[i] = data
			return nil
		})
	}

	dicts := make(map[Language]dictionary, len(Languages))
	err := g.Wait()
	if err == nil {
		for i, l := range Languages {
			var d dictionary
			if jerr := json.Unmarshal(raw[i], &d); jerr != nil {
				err = fmt.Errorf("decode %s: %w", l, jerr)
				break
			}
			dicts[l] = d
		}
	}
	if err != nil {
		appLog.Error("failed to load translation files", err)
		dicts = map[Language]dictionary{English: {}, Arabic: {}}
	}

	r.mu.Lock()
	r.dicts = dicts
	r.loaded = true
	r.mu.Unlock()
	r.once.Do(func() { close(r.ready) })
}

// Ready is closed once Load has finished, successfully or not.
func (r *Resolver) Ready() <-chan struct{} { return r.ready }

func (r *Resolver) Loaded() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.loaded
}

func (r *Resolver) Language() Language {
	l := r.lang.Get()
	if !l.Valid() {
		return English
	}
	return l
}

func (r *Resolver) Dir() Direction { return r.Language().Direction() }

// SetLanguage persists l as the active language.
func (r *Resolver) SetLanguage(l Language) error {
	if !l.Valid() {
		return fmt.Errorf("i18n: unsupported language %q", l)
	}
	r.lang.Set(l)
	return nil
}

// Toggle switches between English and Arabic and returns the new language.
func (r *Resolver) Toggle() Language {
	return r.lang.Update(func(old Language) Language {
		if old == Arabic {
			return English
		}
		return Arabic
	})
}

// T resolves key in the active language.
func (r *Resolver) T(key string) string {
	return r.Lookup(r.Language(), key)
}

// Tf resolves key and substitutes "{name}" placeholders from pairs
// (name, value, name, value, ...).
func (r *Resolver) Tf(key string, pairs ...string) string {
	return fill(r.T(key), pairs...)
}

// Lookup resolves key in lang by descending the nested dictionary one
// dotted segment at a time. A missing key logs a warning and returns key.
func (r *Resolver) Lookup(lang Language, key string) string {
	r.mu.RLock()
	loaded := r.loaded
	d := r.dicts[lang]
	r.mu.RUnlock()

	if !loaded {
		return key
	}

	var cur any = map[string]any(d)
	for _, seg := range strings.Split(key, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			cur = nil
			break
		}
		cur, ok = m[seg]
		if !ok {
			break
		}
	}

	s, ok := cur.(string)
	if !ok {
		appLog.Warn("translation key not found", "key", key, "lang", lang)
		return key
	}
	return s
}

func fill(s string, pairs ...string) string {
	if len(pairs) < 2 {
		return s
	}
	args := make([]string, 0, len(pairs))
	for i := 0; i+1 < len(pairs); i += 2 {
		args = append(args, "{"+pairs[i]+"}", pairs[i+1])
	}
	return strings.NewReplacer(args...).Replace(s)
}
