// Package locale picks the LANG value handed to spawned shells.
package locale

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/GriffinCanCode/terminaltab/internal/shared/executor"
	"go.uber.org/zap"
)

const (
	fallbackBase = "en_US"

	// enumerateTimeout bounds the one-time `locale -a` run.
	enumerateTimeout = 5 * time.Second
)

// Resolver enumerates installed locales once and memoizes the choice for the
// configured UI language.
type Resolver struct {
	exec     executor.Executor
	language string
	logger   *zap.Logger

	once   sync.Once
	result string
}

// NewResolver creates a resolver for language (e.g. "en-US").
func NewResolver(exec executor.Executor, language string, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{
		exec:     exec,
		language: language,
		logger:   logger,
	}
}

// Resolve returns the locale for the configured language. The first call runs
// `locale -a`; concurrent callers block until it finishes and every later
// call returns the cached value, including the synthesized fallback. The
// enumeration outlives a cancellation of the first caller's ctx.
func (r *Resolver) Resolve(ctx context.Context) string {
	r.once.Do(func() {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), enumerateTimeout)
		defer cancel()
		r.result = r.resolve(ctx)
	})
	return r.result
}

func (r *Resolver) resolve(ctx context.Context) string {
	base := Normalize(r.language)

	out, err := r.exec.Output(ctx, "locale", "-a")
	if err != nil {
		r.logger.Warn("Failed to enumerate locales, using default",
			zap.String("locale", Synthesize(base)),
			zap.Error(err))
		return Synthesize(base)
	}

	chosen, ok := Select(strings.Split(string(out), "\n"), base)
	if !ok {
		r.logger.Warn("No locales installed, using default",
			zap.String("locale", chosen))
	}
	return chosen
}

// Select picks a locale from installed for the normalized language base. It
// reports false when nothing was installed and the result was synthesized.
func Select(installed []string, base string) (string, bool) {
	var locales []string
	for _, l := range installed {
		if l = strings.TrimSpace(l); l != "" {
			locales = append(locales, l)
		}
	}
	if len(locales) == 0 {
		return Synthesize(base), false
	}

	if l, ok := pick(locales, base); ok {
		return l, true
	}
	if l, ok := pick(locales, fallbackBase); ok && IsUTF8(l) {
		return l, true
	}
	for _, l := range locales {
		if IsUTF8(l) {
			return l, true
		}
	}
	return locales[0], true
}

// pick returns a locale whose base matches, preferring a UTF-8 variant.
func pick(locales []string, base string) (string, bool) {
	var match string
	for _, l := range locales {
		if !strings.EqualFold(baseOf(l), base) {
			continue
		}
		if IsUTF8(l) {
			return l, true
		}
		if match == "" {
			match = l
		}
	}
	return match, match != ""
}

// Normalize converts a UI language tag such as "en-US" to "en_US".
func Normalize(language string) string {
	if language == "" {
		return fallbackBase
	}
	return strings.ReplaceAll(language, "-", "_")
}

// Synthesize builds the default locale name for base.
func Synthesize(base string) string {
	return base + ".UTF-8"
}

// IsUTF8 reports whether the locale name carries a UTF-8 codeset.
func IsUTF8(locale string) bool {
	l := strings.ToLower(locale)
	return strings.Contains(l, "utf-8") || strings.Contains(l, "utf8")
}

func baseOf(locale string) string {
	if i := strings.IndexAny(locale, ".@"); i >= 0 {
		return locale[:i]
	}
	return locale
}
