package segmentprops

import (
	"fmt"
	"sort"

	"github.com/apache/arrow/go/v14/arrow"

	"github.com/janelia-flyem/ngstate/dataframe"
	"github.com/janelia-flyem/ngstate/ngstate"
)

// FrameOptions names the table columns that become properties.
type FrameOptions struct {
	IDCol          string
	LabelCol       string
	DescriptionCol string
	StringCols     []string
	NumberCols     []string

	// TagValueCols are columns whose distinct values are tags.  TagBoolCols are
	// boolean columns whose names are tags.  Only one of the two may be given.
	TagValueCols []string
	TagBoolCols  []string

	// TagDescriptions optionally maps a tag to its description.
	TagDescriptions map[string]string
}

// DefaultIDCol is the id column used when FrameOptions.IDCol is empty.
const DefaultIDCol = "pt_root_id"

// FromDataframe builds segment properties from the columns of a table.
func FromDataframe(rec arrow.Record, opts FrameOptions) (*SegmentProperties, error) {
	if len(opts.TagValueCols) > 0 && len(opts.TagBoolCols) > 0 {
		return nil, ngstate.Validationf("only one of tag value columns and tag bool columns may be given")
	}
	idCol := opts.IDCol
	if idCol == "" {
		idCol = DefaultIDCol
	}
	rawIDs, err := dataframe.ColumnValues(rec, idCol)
	if err != nil {
		return nil, err
	}
	ids, err := ngstate.AsUint64s(rawIDs)
	if err != nil {
		return nil, fmt.Errorf("id column %q: %w", idCol, err)
	}

	var props []Property
	if opts.LabelCol != "" {
		values, err := stringColumn(rec, opts.LabelCol)
		if err != nil {
			return nil, err
		}
		props = append(props, NewLabelProperty(values))
	}
	if opts.DescriptionCol != "" {
		values, err := stringColumn(rec, opts.DescriptionCol)
		if err != nil {
			return nil, err
		}
		props = append(props, NewDescriptionProperty(values))
	}
	for _, col := range opts.StringCols {
		values, err := stringColumn(rec, col)
		if err != nil {
			return nil, err
		}
		props = append(props, NewStringProperty(col, values))
	}
	for _, col := range opts.NumberCols {
		p, err := numberColumn(rec, col)
		if err != nil {
			return nil, err
		}
		props = append(props, p)
	}
	var tags *TagProperty
	switch {
	case len(opts.TagValueCols) > 0:
		tags, err = tagsFromValueColumns(rec, opts.TagValueCols, opts.TagDescriptions)
	case len(opts.TagBoolCols) > 0:
		tags, err = tagsFromBoolColumns(rec, opts.TagBoolCols, opts.TagDescriptions)
	}
	if err != nil {
		return nil, err
	}
	if tags != nil {
		props = append(props, tags)
	}
	return New(ids, props...)
}

// stringColumn returns a column as strings, with nulls as empty strings.
func stringColumn(rec arrow.Record, name string) ([]string, error) {
	values, err := dataframe.ColumnValues(rec, name)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(values))
	for i, v := range values {
		switch x := v.(type) {
		case nil:
		case string:
			out[i] = x
		default:
			out[i] = fmt.Sprint(x)
		}
	}
	return out, nil
}

// numberColumn returns a number property with a wire-safe type inferred from
// the column type.
func numberColumn(rec arrow.Record, name string) (*NumberProperty, error) {
	arr, err := dataframe.ColumnArray(rec, name)
	if err != nil {
		return nil, err
	}
	dt, ok := dataframe.DataType(arr)
	if !ok {
		return nil, ngstate.Typef("column %q of type %s is not numeric", name, arr.DataType())
	}
	values, err := dataframe.Values(arr)
	if err != nil {
		return nil, err
	}
	floats := make([]float64, len(values))
	for i, v := range values {
		if v == nil {
			return nil, ngstate.Validationf("number column %q has a null at row %d", name, i)
		}
		if floats[i], err = ngstate.AsFloat(v); err != nil {
			return nil, err
		}
	}
	fitted, err := fitType(dt, floats, true)
	if err != nil {
		return nil, fmt.Errorf("number column %q: %w", name, err)
	}
	return &NumberProperty{PropID: name, Values: floats, DataType: fitted}, nil
}

func describeTags(tags []string, descriptions map[string]string) []string {
	if descriptions == nil {
		return nil
	}
	out := make([]string, len(tags))
	for i, tag := range tags {
		if d, found := descriptions[tag]; found {
			out[i] = d
		} else {
			out[i] = tag
		}
	}
	return out
}

// tagsFromValueColumns makes one vocabulary from the distinct values of each
// column.  A row's tags are the union over the columns.
func tagsFromValueColumns(rec arrow.Record, cols []string, descriptions map[string]string) (*TagProperty, error) {
	var tags []string
	tagIndex := make(map[string]int)
	columns := make([][]string, len(cols))
	present := make([][]bool, len(cols))
	for c, col := range cols {
		values, err := dataframe.ColumnValues(rec, col)
		if err != nil {
			return nil, err
		}
		columns[c] = make([]string, len(values))
		present[c] = make([]bool, len(values))
		distinct := make(map[string]bool)
		for i, v := range values {
			if v == nil {
				continue
			}
			s, ok := v.(string)
			if !ok {
				s = fmt.Sprint(v)
			}
			columns[c][i] = s
			present[c][i] = true
			distinct[s] = true
		}
		vocab := make([]string, 0, len(distinct))
		for s := range distinct {
			vocab = append(vocab, s)
		}
		sort.Strings(vocab)
		for _, s := range vocab {
			if _, found := tagIndex[s]; found {
				return nil, ngstate.Validationf("tags across columns are not unique: %q appears in more than one column", s)
			}
			tagIndex[s] = len(tags)
			tags = append(tags, s)
		}
	}

	nrows := int(rec.NumRows())
	values := make([][]int, nrows)
	for i := 0; i < nrows; i++ {
		row := []int{}
		for c := range cols {
			if present[c][i] {
				row = append(row, tagIndex[columns[c][i]])
			}
		}
		values[i] = row
	}
	return NewTagProperty(tags, values, describeTags(tags, descriptions))
}

// tagsFromBoolColumns uses each column name as a tag.
func tagsFromBoolColumns(rec arrow.Record, cols []string, descriptions map[string]string) (*TagProperty, error) {
	nrows := int(rec.NumRows())
	values := make([][]int, nrows)
	for i := range values {
		values[i] = []int{}
	}
	for j, col := range cols {
		arr, err := dataframe.ColumnArray(rec, col)
		if err != nil {
			return nil, err
		}
		if !dataframe.IsBool(arr) {
			return nil, ngstate.Typef("tag column %q must be boolean, got %s", col, arr.DataType())
		}
		flags, err := dataframe.Values(arr)
		if err != nil {
			return nil, err
		}
		for i, v := range flags {
			if b, _ := v.(bool); b {
				values[i] = append(values[i], j)
			}
		}
	}
	return NewTagProperty(cols, values, describeTags(cols, descriptions))
}
