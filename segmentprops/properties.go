/*
	Package segmentprops encodes and decodes segment properties, the per-segment tabular
	metadata of a segmentation layer: labels, descriptions, strings, numbers and tags, each
	with one value per segment id.
*/
package segmentprops

import (
	"fmt"
	"math"
	"reflect"
	"sort"
	"strings"

	"go.uber.org/multierr"

	"github.com/janelia-flyem/ngstate/ngstate"
)

// DocumentType is the "@type" of a segment properties document.
const DocumentType = "neuroglancer_segment_properties"

// PropertyType is the wire type of a property.
type PropertyType string

const (
	LabelType       PropertyType = "label"
	DescriptionType PropertyType = "description"
	StringType      PropertyType = "string"
	NumberType      PropertyType = "number"
	TagsType        PropertyType = "tags"
)

// NumberTypes are the data types allowed for number properties.
var NumberTypes = []ngstate.DataType{
	ngstate.T_uint8, ngstate.T_int8,
	ngstate.T_uint16, ngstate.T_int16,
	ngstate.T_uint32, ngstate.T_int32,
	ngstate.T_float32,
}

// Property is one of *LabelProperty, *DescriptionProperty, *StringProperty,
// *NumberProperty or *TagProperty.
type Property interface {
	Type() PropertyType
	ID() string
	Len() int
	toWire() map[string]interface{}
}

// LabelProperty gives each segment a label shown in the viewer.
type LabelProperty struct {
	Values []string
}

// NewLabelProperty returns a label property.
func NewLabelProperty(values []string) *LabelProperty {
	return &LabelProperty{Values: append([]string{}, values...)}
}

func (p *LabelProperty) Type() PropertyType { return LabelType }
func (p *LabelProperty) ID() string { return string(LabelType) }
func (p *LabelProperty) Len() int { return len(p.Values) }

func (p *LabelProperty) toWire() map[string]interface{} {
	return map[string]interface{}{"id": p.ID(), "type": string(LabelType), "values": append([]string{}, p.Values...)}
}

// DescriptionProperty gives each segment a longer description.
type DescriptionProperty struct {
	Values []string
}

// NewDescriptionProperty returns a description property.
func NewDescriptionProperty(values []string) *DescriptionProperty {
	return &DescriptionProperty{Values: append([]string{}, values...)}
}

func (p *DescriptionProperty) Type() PropertyType { return DescriptionType }
func (p *DescriptionProperty) ID() string { return string(DescriptionType) }
func (p *DescriptionProperty) Len() int { return len(p.Values) }

func (p *DescriptionProperty) toWire() map[string]interface{} {
	return map[string]interface{}{"id": p.ID(), "type": string(DescriptionType), "values": append([]string{}, p.Values...)}
}

// StringProperty is a named string column.
type StringProperty struct {
	PropID      string
	Values      []string
	Description string
}

// NewStringProperty returns a string property.
func NewStringProperty(id string, values []string) *StringProperty {
	return &StringProperty{PropID: id, Values: append([]string{}, values...)}
}

func (p *StringProperty) Type() PropertyType { return StringType }
func (p *StringProperty) ID() string { return p.PropID }
func (p *StringProperty) Len() int { return len(p.Values) }

func (p *StringProperty) toWire() map[string]interface{} {
	return withDescription(map[string]interface{}{"id": p.PropID, "type": string(StringType), "values": append([]string{}, p.Values...)}, p.Description)
}

// NumberProperty is a named numeric column of a fixed data type.
type NumberProperty struct {
	PropID      string
	Values      []float64
	DataType    ngstate.DataType
	Description string
}

// NewNumberProperty returns a number property.  The values may be a slice of any
// Go numeric type, or a list of numbers.  Without a data type, one is inferred
// from the slice type, with 64-bit types narrowed to 32 bits.  A given data type
// must be allowed, must not cast floats to integers, and must hold every value.
func NewNumberProperty(id string, values interface{}, dataType ...ngstate.DataType) (*NumberProperty, error) {
	src, floats, err := numericValues(values)
	if err != nil {
		return nil, fmt.Errorf("number property %q: %w", id, err)
	}
	var dt ngstate.DataType
	if len(dataType) > 0 {
		dt = dataType[0]
		if !src.CanCast(dt) {
			return nil, ngstate.Validationf("number property %q: can't cast %s values to %s", id, src, dt)
		}
	} else {
		dt = src
	}
	dt, err = fitType(dt, floats, len(dataType) == 0)
	if err != nil {
		return nil, fmt.Errorf("number property %q: %w", id, err)
	}
	return &NumberProperty{PropID: id, Values: floats, DataType: dt}, nil
}

// numericValues returns the data type of a numeric slice and its values.
func numericValues(values interface{}) (ngstate.DataType, []float64, error) {
	rv := reflect.ValueOf(values)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return 0, nil, ngstate.Typef("number values must be a list, got %T", values)
	}
	var dt ngstate.DataType
	kindSeen := false
	switch rv.Type().Elem().Kind() {
	case reflect.Uint8:
		dt, kindSeen = ngstate.T_uint8, true
	case reflect.Int8:
		dt, kindSeen = ngstate.T_int8, true
	case reflect.Uint16:
		dt, kindSeen = ngstate.T_uint16, true
	case reflect.Int16:
		dt, kindSeen = ngstate.T_int16, true
	case reflect.Uint32:
		dt, kindSeen = ngstate.T_uint32, true
	case reflect.Int32:
		dt, kindSeen = ngstate.T_int32, true
	case reflect.Uint, reflect.Uint64:
		dt, kindSeen = ngstate.T_uint64, true
	case reflect.Int, reflect.Int64:
		dt, kindSeen = ngstate.T_int64, true
	case reflect.Float32:
		dt, kindSeen = ngstate.T_float32, true
	case reflect.Float64:
		dt, kindSeen = ngstate.T_float64, true
	}
	n, err := ngstate.Normalize(values)
	if err != nil {
		return 0, nil, err
	}
	list, _ := n.([]interface{})
	floats := make([]float64, len(list))
	mixed := ngstate.T_uint64
	for i, elem := range list {
		switch x := elem.(type) {
		case uint64:
			floats[i] = float64(x)
		case int64:
			floats[i] = float64(x)
			if mixed == ngstate.T_uint64 {
				mixed = ngstate.T_int64
			}
		case float64:
			floats[i] = x
			mixed = ngstate.T_float64
		case nil:
			return 0, nil, ngstate.Validationf("number values can't be null (element %d)", i)
		default:
			return 0, nil, ngstate.Typef("number values must be numbers, got %T at element %d", elem, i)
		}
	}
	if !kindSeen {
		dt = mixed
	}
	return dt, floats, nil
}

func allowedNumberType(dt ngstate.DataType) bool {
	for _, t := range NumberTypes {
		if t == dt {
			return true
		}
	}
	return false
}

// fitType returns a wire-safe type holding every value.  If narrowing is allowed,
// 64-bit types become 32-bit ones and integers too large for 32 bits become
// float32.
func fitType(dt ngstate.DataType, values []float64, narrow bool) (ngstate.DataType, error) {
	fits := func(t ngstate.DataType) bool {
		for _, v := range values {
			if !t.Fits(v) {
				return false
			}
		}
		return true
	}
	if narrow {
		dt = dt.Downcast32()
	}
	if !allowedNumberType(dt) {
		return 0, ngstate.Validationf("data type %s not allowed, expected one of %v", dt, NumberTypes)
	}
	if fits(dt) {
		return dt, nil
	}
	if narrow && dt != ngstate.T_float32 && fits(ngstate.T_float32) {
		return ngstate.T_float32, nil
	}
	return 0, ngstate.Validationf("values can't be represented as %s", dt)
}

func (p *NumberProperty) Type() PropertyType { return NumberType }
func (p *NumberProperty) ID() string { return p.PropID }
func (p *NumberProperty) Len() int { return len(p.Values) }

func (p *NumberProperty) toWire() map[string]interface{} {
	var values interface{}
	if p.DataType.Kind() == ngstate.FloatKind {
		f32 := make([]float64, len(p.Values))
		for i, v := range p.Values {
			f32[i] = float64(float32(v))
		}
		values = f32
	} else {
		ints := make([]int64, len(p.Values))
		for i, v := range p.Values {
			ints[i] = int64(math.Round(v))
		}
		values = ints
	}
	return withDescription(map[string]interface{}{
		"id":        p.PropID,
		"type":      string(NumberType),
		"data_type": p.DataType.String(),
		"values":    values,
	}, p.Description)
}

// TagProperty assigns each segment a set of tags from a vocabulary.
type TagProperty struct {
	PropID string

	// Tags is the vocabulary, without leading "#" and with spaces replaced by
	// underscores.
	Tags []string

	// Values holds the sorted indices into Tags of each segment's tags.
	Values [][]int

	// TagDescriptions, if set, has one description per tag.
	TagDescriptions []string
	Description     string
}

// DefaultTagsID is the id of a tag property.
const DefaultTagsID = "tags"

// CleanTag removes a leading "#" and replaces spaces with underscores.
func CleanTag(tag string) string {
	return strings.ReplaceAll(strings.TrimPrefix(tag, "#"), " ", "_")
}

// NewTagProperty returns a tag property.  Each row's indices are sorted and
// must refer to a tag in the vocabulary.
func NewTagProperty(tags []string, values [][]int, tagDescriptions []string) (*TagProperty, error) {
	p := &TagProperty{PropID: DefaultTagsID, Tags: make([]string, len(tags))}
	seen := make(map[string]bool, len(tags))
	for i, tag := range tags {
		p.Tags[i] = CleanTag(tag)
		if seen[p.Tags[i]] {
			return nil, ngstate.Validationf("duplicate tag %q", p.Tags[i])
		}
		seen[p.Tags[i]] = true
	}
	if tagDescriptions != nil {
		if len(tagDescriptions) != len(tags) {
			return nil, ngstate.Validationf("%d tag descriptions for %d tags", len(tagDescriptions), len(tags))
		}
		p.TagDescriptions = append([]string{}, tagDescriptions...)
	}
	p.Values = make([][]int, len(values))
	for i, row := range values {
		sorted := append([]int{}, row...)
		sort.Ints(sorted)
		for _, idx := range sorted {
			if idx < 0 || idx >= len(tags) {
				return nil, ngstate.Validationf("row %d has tag index %d outside the %d tags", i, idx, len(tags))
			}
		}
		p.Values[i] = sorted
	}
	return p, nil
}

func (p *TagProperty) Type() PropertyType { return TagsType }
func (p *TagProperty) ID() string { return p.PropID }
func (p *TagProperty) Len() int { return len(p.Values) }

func (p *TagProperty) toWire() map[string]interface{} {
	values := make([][]int, len(p.Values))
	for i, row := range p.Values {
		values[i] = append([]int{}, row...)
	}
	wire := map[string]interface{}{
		"id":     p.PropID,
		"type":   string(TagsType),
		"tags":   append([]string{}, p.Tags...),
		"values": values,
	}
	if p.TagDescriptions != nil {
		wire["tag_descriptions"] = append([]string{}, p.TagDescriptions...)
	}
	return withDescription(wire, p.Description)
}

// SegmentProperties are properties of a list of segments.
type SegmentProperties struct {
	IDs []uint64

	Label       *LabelProperty
	Description *DescriptionProperty
	Tags        *TagProperty
	Strings     []*StringProperty
	Numbers     []*NumberProperty
}

// New returns segment properties after checking that every property has one
// value per id.  At most one label, description and tag property is allowed.
func New(ids []uint64, props ...Property) (*SegmentProperties, error) {
	s := &SegmentProperties{IDs: append([]uint64{}, ids...)}
	for _, p := range props {
		if err := s.add(p); err != nil {
			return nil, err
		}
	}
	if err := s.validate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *SegmentProperties) add(p Property) error {
	switch x := p.(type) {
	case *LabelProperty:
		if s.Label != nil {
			return ngstate.Validationf("only one label property allowed")
		}
		s.Label = x
	case *DescriptionProperty:
		if s.Description != nil {
			return ngstate.Validationf("only one description property allowed")
		}
		s.Description = x
	case *TagProperty:
		if s.Tags != nil {
			return ngstate.Validationf("only one tag property allowed")
		}
		s.Tags = x
	case *StringProperty:
		s.Strings = append(s.Strings, x)
	case *NumberProperty:
		s.Numbers = append(s.Numbers, x)
	default:
		return ngstate.Typef("unknown property type %T", p)
	}
	return nil
}

// validate checks property lengths and id uniqueness.
func (s *SegmentProperties) validate() error {
	var errs error
	ids := make(map[string]bool)
	for _, p := range s.Properties() {
		if p.Len() != len(s.IDs) {
			errs = multierr.Append(errs, ngstate.Validationf("%s property %q has %d values but there are %d ids", p.Type(), p.ID(), p.Len(), len(s.IDs)))
		}
		if ids[p.ID()] {
			errs = multierr.Append(errs, ngstate.Validationf("duplicate property id %q", p.ID()))
		}
		ids[p.ID()] = true
	}
	return errs
}

// Len returns the number of segments.
func (s *SegmentProperties) Len() int {
	return len(s.IDs)
}

// Properties returns the properties in wire order: label, description, tags,
// strings, then numbers.
func (s *SegmentProperties) Properties() []Property {
	var props []Property
	if s.Label != nil {
		props = append(props, s.Label)
	}
	if s.Description != nil {
		props = append(props, s.Description)
	}
	if s.Tags != nil {
		props = append(props, s.Tags)
	}
	for _, p := range s.Strings {
		props = append(props, p)
	}
	for _, p := range s.Numbers {
		props = append(props, p)
	}
	return props
}

// PropertyInfo describes one property.
type PropertyInfo struct {
	ID       string
	Type     PropertyType
	DataType string
}

func (i PropertyInfo) String() string {
	if i.DataType != "" {
		return fmt.Sprintf("%s (%s, %s)", i.ID, i.Type, i.DataType)
	}
	return fmt.Sprintf("%s (%s)", i.ID, i.Type)
}

// PropertyDescription describes every property.
func (s *SegmentProperties) PropertyDescription() []PropertyInfo {
	props := s.Properties()
	out := make([]PropertyInfo, len(props))
	for i, p := range props {
		out[i] = PropertyInfo{ID: p.ID(), Type: p.Type()}
		if n, ok := p.(*NumberProperty); ok {
			out[i].DataType = n.DataType.String()
		}
	}
	return out
}

// withDescription adds a description only when there is one.
func withDescription(wire map[string]interface{}, description string) map[string]interface{} {
	if description != "" {
		wire["description"] = description
	}
	return wire
}
