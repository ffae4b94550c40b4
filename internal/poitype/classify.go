// Package poitype classifies POIs into a small semantic type vocabulary and
// gates cross-source matches on type compatibility.
package poitype

import (
	"os"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/roteiro-pt/enrich-cli/internal/textnorm"
)

// Type is the semantic category of a POI.
type Type string

// Known types. Unknown never blocks a match downstream.
const (
	TypeChurch    Type = "church"
	TypePalace    Type = "palace"
	TypeViewpoint Type = "viewpoint"
	TypePark      Type = "park"
	TypeCastle    Type = "castle"
	TypeMonument  Type = "monument"
	TypeCultural  Type = "cultural"
	TypeUnknown   Type = "unknown"
)

// KeywordGroup binds a type to the normalized substrings that imply it.
type KeywordGroup struct {
	Type     Type     `yaml:"type"`
	Keywords []string `yaml:"keywords"`
}

// defaultKeywordGroups is evaluated top to bottom: the first group with a
// matching keyword wins. The ordering is a documented contract — text
// containing both "capela" and "monumento" classifies as church because the
// church group is tested first.
var defaultKeywordGroups = []KeywordGroup{
	{Type: TypeChurch, Keywords: []string{
		"igreja", "sé", "basilica", "catedral", "capela", "ermida", "mosteiro", "convento",
	}},
	{Type: TypePalace, Keywords: []string{"palacio", "palace"}},
	{Type: TypeViewpoint, Keywords: []string{"miradouro", "mirador", "mirante", "viewpoint"}},
	{Type: TypePark, Keywords: []string{"parque", "jardim", "jardins", "garden"}},
	{Type: TypeCastle, Keywords: []string{"castelo", "castle", "fortaleza", "fortress"}},
	{Type: TypeMonument, Keywords: []string{"monumento", "monument"}},
}

// Classifier maps declared category strings and infers types from free text.
// The zero value is not usable; construct with NewClassifier.
type Classifier struct {
	groups []KeywordGroup
}

// Option configures a Classifier.
type Option func(*Classifier)

// WithKeywordGroups overrides the default ordered keyword table.
func WithKeywordGroups(groups []KeywordGroup) Option {
	return func(c *Classifier) {
		if len(groups) > 0 {
			c.groups = groups
		}
	}
}

// NewClassifier creates a Classifier with the default keyword table.
func NewClassifier(opts ...Option) *Classifier {
	c := &Classifier{groups: defaultKeywordGroups}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// LoadKeywordGroups reads an ordered keyword table from a YAML file, for
// deployments that need to extend the vocabulary without a rebuild.
func LoadKeywordGroups(path string) ([]KeywordGroup, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "poitype: read keyword table %s", path)
	}

	var wrapper struct {
		Groups []KeywordGroup `yaml:"groups"`
	}
	if err := yaml.Unmarshal(data, &wrapper); err != nil {
		return nil, eris.Wrap(err, "poitype: parse keyword table")
	}
	if len(wrapper.Groups) == 0 {
		return nil, eris.Errorf("poitype: keyword table %s has no groups", path)
	}
	return wrapper.Groups, nil
}

// ClassifyDeclared maps a declared category string to a Type by exact
// case-insensitive match. Unrecognized or empty input yields TypeUnknown.
func (c *Classifier) ClassifyDeclared(category string) Type {
	switch strings.ToLower(strings.TrimSpace(category)) {
	case "church":
		return TypeChurch
	case "palace":
		return TypePalace
	case "viewpoint":
		return TypeViewpoint
	case "park":
		return TypePark
	case "castle":
		return TypeCastle
	case "monument":
		return TypeMonument
	case "cultural":
		return TypeCultural
	default:
		return TypeUnknown
	}
}

// InferFromText infers a Type from free text by testing the normalized text
// for keyword containment, most specific group first. Keywords of one or two
// letters ("sé") match whole words only, against text that keeps its
// diacritics — stripped, "sé" would collide with the pronoun "se".
func (c *Classifier) InferFromText(text string) Type {
	canonical := textnorm.Normalize(text)
	if canonical == "" {
		return TypeUnknown
	}
	padded := " " + foldSpacing(text) + " "

	for _, group := range c.groups {
		for _, kw := range group.Keywords {
			k := strings.ToLower(strings.TrimSpace(kw))
			if k == "" {
				continue
			}
			if utf8.RuneCountInString(k) <= 2 {
				if strings.Contains(padded, " "+k+" ") {
					return group.Type
				}
				continue
			}
			if strings.Contains(canonical, textnorm.Normalize(k)) {
				return group.Type
			}
		}
	}
	return TypeUnknown
}

// foldSpacing lowercases and replaces punctuation with spaces while keeping
// diacritics intact.
func foldSpacing(text string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(text) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		} else {
			b.WriteRune(' ')
		}
	}
	return b.String()
}
