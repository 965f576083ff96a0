package statebuilder

import (
	"reflect"
	"sort"

	"github.com/janelia-flyem/ngstate/ngstate"
)

// DefaultPriority is the priority of a DataMap unless adjusted.
const DefaultPriority = 10

// NoKey is the datamap key used when a bare, non-mapping value is supplied.
const NoKey = ""

// DataMap is a placeholder for a value supplied later through WithDatamap or Map.
// Placeholders with lower priority are filled first.
type DataMap struct {
	Key      string
	Priority int
}

// NewDataMap returns a placeholder for the value under the given key.  The empty
// key is filled by a bare value passed to WithDatamap.
func NewDataMap(key string) *DataMap {
	return &DataMap{Key: key, Priority: DefaultPriority}
}

// AdjustPriority sets the priority and returns the DataMap.
func (d *DataMap) AdjustPriority(p int) *DataMap {
	d.Priority = p
	return d
}

// DataValues are the values supplied for DataMap keys.
type DataValues map[string]interface{}

// toDataValues wraps any non-mapping value as the value of the empty key.  Maps
// with string keys are used directly.
func toDataValues(values interface{}) DataValues {
	switch v := values.(type) {
	case nil:
		return nil
	case DataValues:
		return v
	case map[string]interface{}:
		return DataValues(v)
	}
	rv := reflect.ValueOf(values)
	if rv.Kind() == reflect.Map && rv.Type().Key().Kind() == reflect.String {
		dv := make(DataValues, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			dv[iter.Key().String()] = iter.Value().Interface()
		}
		return dv
	}
	return DataValues{NoKey: values}
}

// datamapSlot names the part of a layer that a registered DataMap fills.
type datamapSlot uint8

const (
	slotSource datamapSlot = iota
	slotSegments
	slotSegmentColors
	slotAnnotations
	slotPoints
	slotLines
	slotEllipsoids
	slotBoxes
	slotPolylines
)

type datamapEntry struct {
	dm   DataMap
	slot datamapSlot
	args interface{}
}

// datamapRegistry holds the unfilled placeholders of a layer in registration order.
type datamapRegistry struct {
	entries []datamapEntry
}

func (r *datamapRegistry) register(dm *DataMap, slot datamapSlot, args interface{}) {
	r.entries = append(r.entries, datamapEntry{dm: *dm, slot: slot, args: args})
}

func (r *datamapRegistry) clone() datamapRegistry {
	return datamapRegistry{entries: append([]datamapEntry{}, r.entries...)}
}

func (r *datamapRegistry) isStatic() bool {
	return len(r.entries) == 0
}

// keys returns the distinct unfilled keys sorted.
func (r *datamapRegistry) keys() []string {
	seen := make(map[string]bool, len(r.entries))
	var keys []string
	for _, e := range r.entries {
		if !seen[e.dm.Key] {
			seen[e.dm.Key] = true
			keys = append(keys, e.dm.Key)
		}
	}
	sort.Strings(keys)
	return keys
}

// resolve applies every entry whose key is present in values, lowest priority
// first, and drops it from the registry.
func (r *datamapRegistry) resolve(values DataValues, apply func(e datamapEntry, v interface{}) error) error {
	entries := r.entries
	r.entries = nil
	order := make([]int, len(entries))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return entries[order[a]].dm.Priority < entries[order[b]].dm.Priority
	})
	applied := make([]bool, len(entries))
	for _, i := range order {
		e := entries[i]
		v, found := values[e.dm.Key]
		if !found {
			continue
		}
		if err := apply(e, v); err != nil {
			return err
		}
		applied[i] = true
	}
	// Placeholders registered by the appliers themselves stay pending.
	added := r.entries
	r.entries = nil
	for i, e := range entries {
		if !applied[i] {
			r.entries = append(r.entries, e)
		}
	}
	r.entries = append(r.entries, added...)
	return nil
}

// check returns an *ngstate.UnmappedDataError if any placeholder is unfilled.
func (r *datamapRegistry) check(owner string) error {
	if r.isStatic() {
		return nil
	}
	return &ngstate.UnmappedDataError{Owner: owner, Keys: r.keys()}
}
