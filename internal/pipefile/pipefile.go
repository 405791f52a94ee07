// Package pipefile reads and writes pipeline definitions: a JSON array of
// {category, algorithm, parameters} records in execution order.
package pipefile

import (
	"bytes"
	"encoding/json"
	"os"
	"strconv"

	"github.com/pkg/errors"

	"nefi-engine/internal/category"
)

// ParseError reports why a document was rejected. Step is the zero-based record
// index, or -1 when the document itself is malformed.
type ParseError struct {
	Step int
	Err  error
}

func (e *ParseError) Error() string {
	if e.Step < 0 {
		return "pipeline file: " + e.Err.Error()
	}
	return "pipeline file: step " + strconv.Itoa(e.Step) + ": " + e.Err.Error()
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Cause lets github.com/pkg/errors.Cause see through the wrapper.
func (e *ParseError) Cause() error {
	return e.Err
}

func Encode(records []category.Record) ([]byte, error) {
	out := make([]category.Record, len(records))
	for i, rec := range records {
		if rec.Parameters == nil {
			rec.Parameters = map[string]interface{}{}
		}
		out[i] = rec
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return nil, errors.Wrap(err, "encode pipeline")
	}
	return append(data, '\n'), nil
}

// Decode parses a document without consulting any registry. Numbers are kept as
// float64, which parameter validation accepts for integer parameters.
func Decode(data []byte) ([]category.Record, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	var records []category.Record
	if err := dec.Decode(&records); err != nil {
		return nil, &ParseError{Step: -1, Err: err}
	}
	if dec.More() {
		return nil, &ParseError{Step: -1, Err: errors.New("trailing data after pipeline array")}
	}
	if records == nil {
		return nil, &ParseError{Step: -1, Err: errors.New("document is not a pipeline array")}
	}

	for i, rec := range records {
		if rec.Category == "" {
			return nil, &ParseError{Step: i, Err: errors.New("missing category")}
		}
		if rec.Algorithm == "" {
			return nil, &ParseError{Step: i, Err: errors.New("missing algorithm")}
		}
	}
	return records, nil
}

// Build validates every record in order and returns freshly built steps. The first
// invalid record aborts the whole build.
func Build(records []category.Record, registry *category.Registry) ([]*category.Category, error) {
	steps := make([]*category.Category, 0, len(records))
	for i, rec := range records {
		cat, err := registry.Build(rec)
		if err != nil {
			return nil, &ParseError{Step: i, Err: err}
		}
		steps = append(steps, cat)
	}
	return steps, nil
}

func Read(path string) ([]category.Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read pipeline %s", path)
	}
	return Decode(data)
}

// Write stores records at path, replacing the file only once the new content is
// fully written.
func Write(path string, records []category.Record) error {
	data, err := Encode(records)
	if err != nil {
		return err
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return errors.Wrapf(err, "write pipeline %s", path)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return errors.Wrapf(err, "write pipeline %s", path)
	}
	return nil
}
