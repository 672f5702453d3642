//go:build !windows

package i18n

// systemLocales is empty off Windows; the locale variables already describe
// the user's language there.
func systemLocales() []string {
	return nil
}
