package segmentprops

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/janelia-flyem/ngstate/ngstate"
)

// ToDict returns the segment properties document.
func (s *SegmentProperties) ToDict() map[string]interface{} {
	props := s.Properties()
	wire := make([]interface{}, len(props))
	for i, p := range props {
		wire[i] = p.toWire()
	}
	ids := make([]string, len(s.IDs))
	for i, id := range s.IDs {
		ids[i] = strconv.FormatUint(id, 10)
	}
	return map[string]interface{}{
		"@type": DocumentType,
		"inline": map[string]interface{}{
			"ids":        ids,
			"properties": wire,
		},
	}
}

// MarshalJSON writes the segment properties document.
func (s *SegmentProperties) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.ToDict())
}

type wireDocument struct {
	Type   string `json:"@type"`
	Inline struct {
		IDs        []string       `json:"ids"`
		Properties []wireProperty `json:"properties"`
	} `json:"inline"`
}

type wireProperty struct {
	ID              string          `json:"id"`
	Type            string          `json:"type"`
	DataType        string          `json:"data_type"`
	Description     string          `json:"description"`
	Tags            []string        `json:"tags"`
	TagDescriptions []string        `json:"tag_descriptions"`
	Values          json.RawMessage `json:"values"`
}

// FromJSON decodes a segment properties document after validating it against
// the document schema.
func FromJSON(data []byte) (*SegmentProperties, error) {
	var doc interface{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	if err := Validate(doc); err != nil {
		return nil, err
	}
	return decode(data)
}

// FromDict decodes a segment properties document given as decoded JSON, e.g.,
// the result of ToDict.
func FromDict(d map[string]interface{}) (*SegmentProperties, error) {
	data, err := json.Marshal(d)
	if err != nil {
		return nil, err
	}
	return decode(data)
}

func decode(data []byte) (*SegmentProperties, error) {
	var doc wireDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	if doc.Type != DocumentType {
		return nil, ngstate.Validationf("expected @type %q, got %q", DocumentType, doc.Type)
	}
	ids := make([]uint64, len(doc.Inline.IDs))
	for i, s := range doc.Inline.IDs {
		id, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			return nil, ngstate.Validationf("bad segment id %q", s)
		}
		ids[i] = id
	}
	props := make([]Property, 0, len(doc.Inline.Properties))
	for _, wp := range doc.Inline.Properties {
		p, err := wp.property()
		if err != nil {
			return nil, fmt.Errorf("property %q: %w", wp.ID, err)
		}
		props = append(props, p)
	}
	return New(ids, props...)
}

func (wp wireProperty) property() (Property, error) {
	switch PropertyType(wp.Type) {
	case LabelType, DescriptionType, StringType:
		var values []string
		if err := json.Unmarshal(wp.Values, &values); err != nil {
			return nil, err
		}
		switch PropertyType(wp.Type) {
		case LabelType:
			return NewLabelProperty(values), nil
		case DescriptionType:
			return NewDescriptionProperty(values), nil
		}
		p := NewStringProperty(wp.ID, values)
		p.Description = wp.Description
		return p, nil
	case NumberType:
		var values []float64
		if err := json.Unmarshal(wp.Values, &values); err != nil {
			return nil, err
		}
		dt, err := ngstate.ParseDataType(wp.DataType)
		if err != nil {
			return nil, err
		}
		if _, err := fitType(dt, values, false); err != nil {
			return nil, err
		}
		return &NumberProperty{PropID: wp.ID, Values: values, DataType: dt, Description: wp.Description}, nil
	case TagsType:
		var values [][]int
		if err := json.Unmarshal(wp.Values, &values); err != nil {
			return nil, err
		}
		p, err := NewTagProperty(wp.Tags, values, wp.TagDescriptions)
		if err != nil {
			return nil, err
		}
		p.PropID = wp.ID
		p.Description = wp.Description
		return p, nil
	}
	return nil, ngstate.Validationf("unknown property type %q", wp.Type)
}
