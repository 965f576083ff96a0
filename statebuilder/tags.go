package statebuilder

import (
	"fmt"

	"github.com/janelia-flyem/ngstate/ngstate"
)

// MaxTagCount is the maximum number of tags in an annotation layer.
const MaxTagCount = 10

// DefaultTagBindings are the keys bound to the tag tools of a layer, in tag order.
var DefaultTagBindings = []string{"Q", "W", "E", "R", "T", "Y", "U", "I", "O", "P"}

// AnnotationProperty describes one property of the annotations in a layer.
type AnnotationProperty struct {
	ID          string `json:"id"`
	Type        string `json:"type"`
	Tag         string `json:"tag,omitempty"`
	Description string `json:"description,omitempty"`
}

// MakeAnnotationProperties returns one uint8 property per tag, with ids
// "tag<N>" numbered from tagBaseNumber.
func MakeAnnotationProperties(tags []string, tagBaseNumber int) []AnnotationProperty {
	props := make([]AnnotationProperty, len(tags))
	for i, tag := range tags {
		props[i] = AnnotationProperty{
			ID:   fmt.Sprintf("tag%d", tagBaseNumber+i),
			Type: ngstate.T_uint8.String(),
			Tag:  tag,
		}
	}
	return props
}

// MakeBindings maps successive keys to the tag tool of each property.  If no
// bindings are given, DefaultTagBindings are used.
func MakeBindings(props []AnnotationProperty, bindings []string) (map[string]string, error) {
	if bindings == nil {
		bindings = DefaultTagBindings
	}
	if len(props) > len(bindings) {
		return nil, ngstate.Validationf("too many properties (%d) for %d available key bindings", len(props), len(bindings))
	}
	out := make(map[string]string, len(props))
	for i, p := range props {
		out[bindings[i]] = "tagTool_" + p.ID
	}
	return out, nil
}

func makeTagMap(tags []string) map[string]int {
	m := make(map[string]int, len(tags))
	for i, tag := range tags {
		if _, found := m[tag]; !found {
			m[tag] = i
		}
	}
	return m
}
