package model

import "strings"

const DefaultExtension = "prs"

var fallbackLanguageVersions = map[string][]string{
	"printscript": {"1.0"},
}

func normalizeLanguage(language string) string {
	return strings.ToLower(strings.TrimSpace(language))
}

// FindFileType looks up a language in the catalog, ignoring case.
func FindFileType(catalog []FileType, language string) (FileType, bool) {
	want := normalizeLanguage(language)
	if want == "" {
		return FileType{}, false
	}
	for _, ft := range catalog {
		if normalizeLanguage(ft.Language) == want {
			return ft, true
		}
	}
	return FileType{}, false
}

// LanguageVersions lists the versions known for language.
func LanguageVersions(catalog []FileType, language string) []string {
	if normalizeLanguage(language) == "" {
		return nil
	}
	ft, ok := FindFileType(catalog, language)
	if ok && len(ft.Versions) > 0 {
		return ft.Versions
	}
	if ok && ft.DefaultVersion != "" {
		return []string{ft.DefaultVersion}
	}
	return fallbackLanguageVersions[normalizeLanguage(language)]
}

// DefaultVersion returns the catalog default version, or the first known one.
func DefaultVersion(catalog []FileType, language string) string {
	if ft, ok := FindFileType(catalog, language); ok && ft.DefaultVersion != "" {
		return ft.DefaultVersion
	}
	if versions := LanguageVersions(catalog, language); len(versions) > 0 {
		return versions[0]
	}
	return ""
}

// VersionRequired reports whether a snippet in language must carry a version.
func VersionRequired(catalog []FileType, language string) bool {
	return len(LanguageVersions(catalog, language)) > 0
}

// HasVersion reports whether version is one of language's known versions.
func HasVersion(catalog []FileType, language, version string) bool {
	for _, v := range LanguageVersions(catalog, language) {
		if v == version {
			return true
		}
	}
	return false
}

// ExtensionFor returns the canonical extension for language, or "".
func ExtensionFor(catalog []FileType, language string) string {
	if ft, ok := FindFileType(catalog, language); ok {
		return NormalizeExtension(ft.Extension)
	}
	return ""
}

// NormalizeExtension strips surrounding whitespace and dots.
func NormalizeExtension(ext string) string {
	return strings.Trim(strings.TrimSpace(ext), ".")
}

// FileName builds "{name}.{extension}", defaulting the extension to "prs".
func FileName(name, ext string) string {
	ext = NormalizeExtension(ext)
	if ext == "" {
		ext = DefaultExtension
	}
	return name + "." + ext
}
