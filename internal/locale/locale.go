// Package locale provides the offline-screen message catalogs keyed by
// locale tag. Built-in catalogs can be extended or overridden from a YAML
// file.
package locale

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// FallbackLocale is used when neither the requested tag nor its base
// language is known.
const FallbackLocale = "en"

// Messages holds the strings the offline screen renders.
type Messages struct {
	NoInternetTitle       string `yaml:"no_internet_title" json:"no_internet_title"`
	NoInternetDescription string `yaml:"no_internet_description" json:"no_internet_description"`
	TryAgainButton        string `yaml:"try_again_button" json:"try_again_button"`
}

var builtin = map[string]Messages{
	"en": {
		NoInternetTitle:       "No internet connection",
		NoInternetDescription: "Please check your connection and try again.",
		TryAgainButton:        "Try again",
	},
	"de": {
		NoInternetTitle:       "Keine Internetverbindung",
		NoInternetDescription: "Bitte überprüfe deine Verbindung und versuche es erneut.",
		TryAgainButton:        "Erneut versuchen",
	},
	"fr": {
		NoInternetTitle:       "Pas de connexion Internet",
		NoInternetDescription: "Veuillez vérifier votre connexion et réessayer.",
		TryAgainButton:        "Réessayer",
	},
	"es": {
		NoInternetTitle:       "Sin conexión a Internet",
		NoInternetDescription: "Comprueba tu conexión e inténtalo de nuevo.",
		TryAgainButton:        "Reintentar",
	},
	"pl": {
		NoInternetTitle:       "Brak połączenia z internetem",
		NoInternetDescription: "Sprawdź połączenie i spróbuj ponownie.",
		TryAgainButton:        "Spróbuj ponownie",
	},
}

// Catalog maps locale tags to messages. Immutable after construction.
type Catalog struct {
	messages map[string]Messages
}

// NewCatalog returns a catalog with the built-in locales.
func NewCatalog() *Catalog {
	messages := make(map[string]Messages, len(builtin))
	for tag, msgs := range builtin {
		messages[tag] = msgs
	}
	return &Catalog{messages: messages}
}

// LoadCatalog builds a catalog from the built-ins plus an optional YAML
// override file mapping locale tags to messages. Empty override fields keep
// the built-in (or English) value so partial translations stay usable.
func LoadCatalog(path string) (*Catalog, error) {
	c := NewCatalog()
	if path == "" {
		return c, nil
	}

	content, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return c, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read locale file: %w", err)
	}

	overrides := map[string]Messages{}
	if err := yaml.Unmarshal(content, &overrides); err != nil {
		return nil, fmt.Errorf("parse locale file: %w", err)
	}

	base := c.messages[FallbackLocale]
	for tag, msgs := range overrides {
		tag = normalise(tag)
		if tag == "" {
			continue
		}
		merged := c.messages[tag]
		if merged == (Messages{}) {
			merged = base
		}
		if msgs.NoInternetTitle != "" {
			merged.NoInternetTitle = msgs.NoInternetTitle
		}
		if msgs.NoInternetDescription != "" {
			merged.NoInternetDescription = msgs.NoInternetDescription
		}
		if msgs.TryAgainButton != "" {
			merged.TryAgainButton = msgs.TryAgainButton
		}
		c.messages[tag] = merged
	}
	return c, nil
}

// Lookup resolves messages for a locale tag: exact match, then base
// language ("de-AT" falls back to "de"), then English.
func (c *Catalog) Lookup(tag string) Messages {
	tag = normalise(tag)
	if msgs, ok := c.messages[tag]; ok {
		return msgs
	}
	if base, _, found := strings.Cut(tag, "-"); found {
		if msgs, ok := c.messages[base]; ok {
			return msgs
		}
	}
	return c.messages[FallbackLocale]
}

// Locales lists the known locale tags, sorted.
func (c *Catalog) Locales() []string {
	tags := make([]string, 0, len(c.messages))
	for tag := range c.messages {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags
}

func normalise(tag string) string {
	tag = strings.TrimSpace(strings.ToLower(tag))
	return strings.ReplaceAll(tag, "_", "-")
}
