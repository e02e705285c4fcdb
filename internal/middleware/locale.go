package middleware

import (
	"context"
	"net/http"

	"golang.org/x/text/language"
)

type localeContextKey struct{}

// supportedLocales are the prompt languages the concept provider can
// produce. The first entry is the matcher fallback.
var supportedLocales = []language.Tag{
	language.English,
	language.Spanish,
	language.French,
	language.German,
	language.Indonesian,
}

var localeMatcher = language.NewMatcher(supportedLocales)

// Locale resolves the request language from X-Locale, then
// Accept-Language, then the configured default, and stores the matched
// base tag in the request context.
func Locale(defaultLocale string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			locale := resolveLocale(r, defaultLocale)
			ctx := context.WithValue(r.Context(), localeContextKey{}, locale)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// LocaleFromContext returns the resolved locale, defaulting to "en" when
// the middleware did not run.
func LocaleFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(localeContextKey{}).(string); ok && v != "" {
		return v
	}
	return "en"
}

func resolveLocale(r *http.Request, fallback string) string {
	candidates := r.Header.Get("X-Locale")
	if candidates == "" {
		candidates = r.Header.Get("Accept-Language")
	}
	if candidates == "" {
		candidates = fallback
	}

	tags, _, err := language.ParseAcceptLanguage(candidates)
	if err != nil || len(tags) == 0 {
		tags, _, err = language.ParseAcceptLanguage(fallback)
		if err != nil || len(tags) == 0 {
			return "en"
		}
	}

	_, index, _ := localeMatcher.Match(tags...)
	base, _ := supportedLocales[index].Base()
	return base.String()
}
