// Package diff computes the ordered structural changes between two JSON Schema documents.
package diff

import (
	"fmt"
	"strings"
)

// Kind identifies what changed at a location of the schema tree.
type Kind int

const (
	DescriptionChanged Kind = iota + 1
	TitleChanged
	PropertiesAdded
	IDChanged
	SchemaRemoved
	TypeChanged
	NumberOfItemsChanged
	PropertyRemoved
	DependencyArrayChanged
	DependencySchemaChanged
	CompositionMethodChanged
	AttributeValueChanged
	EnumArrayChanged
	SubSchemaChanged
	DependencySchemaRemoved
	RequiredArrayChanged
	AdditionalPropertiesChanged
	AdditionalItemsChanged
)

var kindNames = map[Kind]string{
	DescriptionChanged:          "DESCRIPTION_CHANGED",
	TitleChanged:                "TITLE_CHANGED",
	PropertiesAdded:             "PROPERTIES_ADDED",
	IDChanged:                   "ID_CHANGED",
	SchemaRemoved:               "SCHEMA_REMOVED",
	TypeChanged:                 "TYPE_CHANGED",
	NumberOfItemsChanged:        "NUMBER_OF_ITEMS_CHANGED",
	PropertyRemoved:             "PROPERTY_REMOVED",
	DependencyArrayChanged:      "DEPENDENCY_ARRAY_CHANGED",
	DependencySchemaChanged:     "DEPENDENCY_SCHEMA_CHANGED",
	CompositionMethodChanged:    "COMPOSITION_METHOD_CHANGED",
	AttributeValueChanged:       "ATTRIBUTE_VALUE_CHANGED",
	EnumArrayChanged:            "ENUM_ARRAY_CHANGED",
	SubSchemaChanged:            "SUB_SCHEMA_CHANGED",
	DependencySchemaRemoved:     "DEPENDENCY_SCHEMA_REMOVED",
	RequiredArrayChanged:        "REQUIRED_ARRAY_CHANGED",
	AdditionalPropertiesChanged: "ADDITIONAL_PROPERTIES_CHANGED",
	AdditionalItemsChanged:      "ADDITIONAL_ITEMS_CHANGED",
}

// Kinds returns every change kind in declaration order.
func Kinds() []Kind {
	kinds := make([]Kind, 0, len(kindNames))
	for k := DescriptionChanged; k <= AdditionalItemsChanged; k++ {
		kinds = append(kinds, k)
	}
	return kinds
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// ParseKind parses a kind name such as "TYPE_CHANGED".
func ParseKind(s string) (Kind, error) {
	for k, name := range kindNames {
		if name == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown schema change kind %q", s)
}

func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *Kind) UnmarshalText(b []byte) error {
	parsed, err := ParseKind(string(b))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// Change is a single structural difference.
type Change struct {
	Kind Kind   `json:"kind"`
	Path string `json:"path"`
}

func (c Change) String() string {
	return c.Kind.String() + " " + c.Path
}

// Path is a location in the schema tree, rendered as a JSON Pointer fragment ("#/properties/a").
type Path []string

// Root is the path of the document root.
var Root = Path{}

// Child returns a new path extended by the given tokens. The receiver is never modified.
func (p Path) Child(tokens ...string) Path {
	next := make(Path, len(p), len(p)+len(tokens))
	copy(next, p)
	return append(next, tokens...)
}

var pointerEscaper = strings.NewReplacer("~", "~0", "/", "~1")

func (p Path) String() string {
	var b strings.Builder
	b.WriteString("#")
	for _, tok := range p {
		b.WriteByte('/')
		b.WriteString(pointerEscaper.Replace(tok))
	}
	return b.String()
}
