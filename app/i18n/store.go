// Package i18n holds the translation table used for every user-visible text.
package i18n

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"golang.org/x/text/language"
)

// Fallback is consulted when a language or key is missing.
const Fallback = "ru"

// ErrMissingTranslation is returned when neither the requested language nor the fallback has the key.
var ErrMissingTranslation = errors.New("i18n: missing translation")

// RequiredKeys must be present in the fallback language for the table to load.
var RequiredKeys = []string{
	"welcome",
	"please_login",
	"select_language",
	"provide_fullname",
	"provide_number",
	"share_number",
	"share_contact",
	"contact_not_own",
	"phone_exists",
	"provide_role",
	"seller",
	"user",
	"provide_login",
	"login_exists",
	"provide_password",
	"incorrect_info",
	"server_error",
	"user_error",
	"successfully_created",
	"cancelled",
}

//go:embed translations.json
var embedded []byte

// Store is a read-only language -> key -> text table.
type Store struct {
	table map[string]map[string]string
}

// Load reads the table from path, or from the embedded resource when path is empty.
func Load(path string) (*Store, error) {
	data := embedded
	if strings.TrimSpace(path) != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("i18n: read %s: %w", path, err)
		}
		data = raw
	}
	return Parse(data)
}

// Parse decodes a JSON table and validates the fallback language.
func Parse(data []byte) (*Store, error) {
	var table map[string]map[string]string
	if err := json.Unmarshal(data, &table); err != nil {
		return nil, fmt.Errorf("i18n: decode: %w", err)
	}
	fallback, ok := table[Fallback]
	if !ok {
		return nil, fmt.Errorf("i18n: fallback language %q not present", Fallback)
	}
	var missing []string
	for _, key := range RequiredKeys {
		if strings.TrimSpace(fallback[key]) == "" {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("i18n: fallback language %q lacks keys: %s", Fallback, strings.Join(missing, ", "))
	}
	return &Store{table: table}, nil
}

// Lookup resolves key for lang. The exact language wins, then its base
// language (en-US -> en), then the fallback. Blank texts count as missing.
func (s *Store) Lookup(lang, key string) (string, error) {
	for _, candidate := range candidates(lang) {
		if text := s.table[candidate][key]; strings.TrimSpace(text) != "" {
			return text, nil
		}
	}
	return "", fmt.Errorf("%w: %s/%s", ErrMissingTranslation, lang, key)
}

// Languages lists the languages present in the table.
func (s *Store) Languages() []string {
	out := make([]string, 0, len(s.table))
	for lang := range s.table {
		out = append(out, lang)
	}
	sort.Strings(out)
	return out
}

func candidates(lang string) []string {
	lang = strings.TrimSpace(lang)
	out := make([]string, 0, 3)
	if lang != "" {
		out = append(out, lang)
		if base := baseLanguage(lang); base != "" && base != lang {
			out = append(out, base)
		}
	}
	return append(out, Fallback)
}

func baseLanguage(lang string) string {
	tag, err := language.Parse(lang)
	if err != nil {
		return ""
	}
	base, conf := tag.Base()
	if conf == language.No {
		return ""
	}
	return base.String()
}
