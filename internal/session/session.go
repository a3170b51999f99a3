// Package session carries the per-action user/session context the debug
// builder reads. A Context is constructed fresh for every user action and
// threaded explicitly instead of living in ambient global state.
package session

import (
	"os"
	"strings"

	"github.com/rampkit/gateway/internal/version"
)

// Context implements debuginfo.ContextProvider. Zero values mean "absent";
// the builder applies its own fallbacks.
type Context struct {
	PartnerUserRef string
	ApplicationID  string
	Version        string
	LocaleTag      string
	Zone           string
	CountryCode    string
	Sandbox        bool
}

func (c Context) CorrelationRef() string { return c.PartnerUserRef }
func (c Context) AppID() string          { return c.ApplicationID }
func (c Context) AppVersion() string     { return c.Version }
func (c Context) Locale() string         { return c.LocaleTag }
func (c Context) Timezone() string       { return c.Zone }
func (c Context) Country() string        { return c.CountryCode }
func (c Context) SandboxMode() bool      { return c.Sandbox }

// FromEnvironment builds a Context from process-level state: the build
// version, the POSIX locale variables, and the TZ variable. Caller-specific
// fields (partner user ref, app id, sandbox flag) are filled in afterward.
func FromEnvironment() Context {
	locale := localeFromEnv(os.Getenv)
	return Context{
		Version:     version.Version,
		LocaleTag:   locale,
		Zone:        strings.TrimSpace(os.Getenv("TZ")),
		CountryCode: countryFromLocale(locale),
	}
}

// localeFromEnv normalizes the first set POSIX locale variable to a BCP-47
// tag: "en_US.UTF-8" becomes "en-US". The C and POSIX locales carry no
// language information and map to absent.
func localeFromEnv(getenv func(string) string) string {
	for _, name := range []string{"LC_ALL", "LC_MESSAGES", "LANG"} {
		raw := strings.TrimSpace(getenv(name))
		if raw == "" {
			continue
		}
		if tag := normalizeLocale(raw); tag != "" {
			return tag
		}
	}
	return ""
}

// countryFromLocale lifts the region subtag out of a BCP-47 locale:
// "en-US" yields "US". Locales without a two-letter region map to absent.
func countryFromLocale(locale string) string {
	parts := strings.Split(locale, "-")
	for _, part := range parts[1:] {
		if len(part) == 2 && part == strings.ToUpper(part) {
			return part
		}
	}
	return ""
}

func normalizeLocale(raw string) string {
	value := raw
	if idx := strings.IndexAny(value, ".@"); idx >= 0 {
		value = value[:idx]
	}
	if value == "" || value == "C" || value == "POSIX" {
		return ""
	}
	return strings.ReplaceAll(value, "_", "-")
}
