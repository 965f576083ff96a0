package dataframe

import (
	"fmt"
	"os"

	"github.com/apache/arrow/go/v14/arrow"
	"github.com/apache/arrow/go/v14/arrow/array"
	"github.com/apache/arrow/go/v14/arrow/ipc"

	"github.com/janelia-flyem/ngstate/ngstate"
)

// ReadFile reads an Arrow IPC file and returns its record batches merged into
// a single record.  The caller must Release the returned record.
func ReadFile(filename string) (arrow.Record, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r, err := ipc.NewFileReader(f, ipc.WithAllocator(Pool))
	if err != nil {
		return nil, fmt.Errorf("can't read arrow file %q: %v", filename, err)
	}
	defer r.Close()

	records := make([]arrow.Record, 0, r.NumRecords())
	defer func() {
		for _, rec := range records {
			rec.Release()
		}
	}()
	for i := 0; i < r.NumRecords(); i++ {
		rec, err := r.Record(i)
		if err != nil {
			return nil, fmt.Errorf("can't read record %d of %q: %v", i, filename, err)
		}
		rec.Retain()
		records = append(records, rec)
	}
	return Concat(r.Schema(), records)
}

// Concat merges records sharing a schema into one record.
func Concat(schema *arrow.Schema, records []arrow.Record) (arrow.Record, error) {
	if len(records) == 1 {
		records[0].Retain()
		return records[0], nil
	}
	cols := make([]arrow.Array, schema.NumFields())
	defer func() {
		for _, col := range cols {
			if col != nil {
				col.Release()
			}
		}
	}()
	var nrows int64
	for _, rec := range records {
		if !rec.Schema().Equal(schema) {
			return nil, ngstate.Validationf("can't concatenate records with differing schemas")
		}
		nrows += rec.NumRows()
	}
	for i := range cols {
		parts := make([]arrow.Array, len(records))
		for j, rec := range records {
			parts[j] = rec.Column(i)
		}
		if len(parts) == 0 {
			b := array.NewBuilder(Pool, schema.Field(i).Type)
			cols[i] = b.NewArray()
			b.Release()
			continue
		}
		merged, err := array.Concatenate(parts, Pool)
		if err != nil {
			return nil, err
		}
		cols[i] = merged
	}
	return array.NewRecord(schema, cols, nrows), nil
}

// WriteFile writes a record to an Arrow IPC file and returns the number of bytes written.
func WriteFile(filename string, rec arrow.Record) (int64, error) {
	f, err := os.Create(filename)
	if err != nil {
		return 0, err
	}
	w, err := ipc.NewFileWriter(f, ipc.WithSchema(rec.Schema()), ipc.WithAllocator(Pool))
	if err != nil {
		f.Close()
		return 0, err
	}
	if err := w.Write(rec); err != nil {
		w.Close()
		f.Close()
		return 0, err
	}
	if err := w.Close(); err != nil {
		f.Close()
		return 0, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return 0, err
	}
	return info.Size(), f.Close()
}
