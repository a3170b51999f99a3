package session

import "testing"

func TestLocaleFromEnv(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{
			name: "LANG with encoding suffix",
			env:  map[string]string{"LANG": "en_US.UTF-8"},
			want: "en-US",
		},
		{
			name: "LC_ALL wins over LANG",
			env:  map[string]string{"LC_ALL": "de_DE.UTF-8", "LANG": "en_US.UTF-8"},
			want: "de-DE",
		},
		{
			name: "modifier suffix stripped",
			env:  map[string]string{"LANG": "sr_RS@latin"},
			want: "sr-RS",
		},
		{
			name: "C locale carries no language",
			env:  map[string]string{"LANG": "C.UTF-8"},
			want: "",
		},
		{
			name: "POSIX locale carries no language",
			env:  map[string]string{"LC_ALL": "POSIX"},
			want: "",
		},
		{
			name: "nothing set",
			env:  map[string]string{},
			want: "",
		},
		{
			name: "falls through empty C locale to LANG",
			env:  map[string]string{"LC_ALL": "C", "LANG": "fr_FR.UTF-8"},
			want: "fr-FR",
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			getenv := func(name string) string { return tc.env[name] }
			if got := localeFromEnv(getenv); got != tc.want {
				t.Errorf("localeFromEnv = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestContextAccessors(t *testing.T) {
	t.Parallel()

	ctx := Context{
		PartnerUserRef: "user-7",
		ApplicationID:  "app-1",
		Version:        "1.2.3",
		LocaleTag:      "en-US",
		Zone:           "Europe/London",
		CountryCode:    "US",
		Sandbox:        true,
	}

	if got := ctx.CorrelationRef(); got != "user-7" {
		t.Errorf("CorrelationRef = %q", got)
	}
	if got := ctx.AppID(); got != "app-1" {
		t.Errorf("AppID = %q", got)
	}
	if got := ctx.AppVersion(); got != "1.2.3" {
		t.Errorf("AppVersion = %q", got)
	}
	if got := ctx.Locale(); got != "en-US" {
		t.Errorf("Locale = %q", got)
	}
	if got := ctx.Timezone(); got != "Europe/London" {
		t.Errorf("Timezone = %q", got)
	}
	if got := ctx.Country(); got != "US" {
		t.Errorf("Country = %q", got)
	}
	if !ctx.SandboxMode() {
		t.Error("SandboxMode = false, want true")
	}
}

func TestCountryFromLocale(t *testing.T) {
	t.Parallel()

	tests := []struct {
		locale string
		want   string
	}{
		{"en-US", "US"},
		{"sr-RS", "RS"},
		{"zh-Hans-CN", "CN"},
		{"en", ""},
		{"", ""},
		{"en-us", ""},
	}

	for _, tc := range tests {
		if got := countryFromLocale(tc.locale); got != tc.want {
			t.Errorf("countryFromLocale(%q) = %q, want %q", tc.locale, got, tc.want)
		}
	}
}
