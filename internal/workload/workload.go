// Package workload describes what every benchmark iteration executes: an
// ordered list of find filters plus the sort, collation, limit and pause that
// apply to all of them.
package workload

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Spec is an immutable workload. Workers each take a Clone.
type Spec struct {
	queries   []Payload
	sort      bson.D
	collation *options.Collation
	limit     *int64
	pause     time.Duration
}

// Query is one ready-to-execute find operation.
type Query struct {
	Index     int
	Filter    bson.D
	Sort      bson.D
	Collation *options.Collation
	Limit     *int64
}

// Option customizes a Spec during Build.
type Option func(*Spec) error

// WithSort sets the sort document, given as extended JSON. An empty string
// leaves the results unsorted.
func WithSort(sortJSON string) Option {
	return func(s *Spec) error {
		sortJSON = strings.TrimSpace(sortJSON)
		if sortJSON == "" {
			return nil
		}
		var d bson.D
		if err := bson.UnmarshalExtJSON([]byte(sortJSON), false, &d); err != nil {
			return configErr("sort", err)
		}
		s.sort = d
		return nil
	}
}

// WithCollation sets the collation, given as a JSON object such as
// {"locale":"en","strength":2}.
func WithCollation(collationJSON string) Option {
	return func(s *Spec) error {
		collationJSON = strings.TrimSpace(collationJSON)
		if collationJSON == "" {
			return nil
		}
		var c options.Collation
		dec := json.NewDecoder(bytes.NewReader([]byte(collationJSON)))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&c); err != nil {
			return configErr("collation", err)
		}
		if c.Locale == "" {
			return configErr("collation", errors.New("locale is required"))
		}
		s.collation = &c
		return nil
	}
}

// WithLimit caps the number of documents each find returns. Zero means no
// limit.
func WithLimit(n int64) Option {
	return func(s *Spec) error {
		if n < 0 {
			return configErr("limit", fmt.Errorf("must be non-negative, got %d", n))
		}
		if n == 0 {
			s.limit = nil
			return nil
		}
		s.limit = &n
		return nil
	}
}

// WithPauseMillis sets the pause between consecutive operations of a worker.
func WithPauseMillis(ms int64) Option {
	return func(s *Spec) error {
		if ms < 0 {
			return configErr("pause", fmt.Errorf("must be non-negative, got %d", ms))
		}
		s.pause = time.Duration(ms) * time.Millisecond
		return nil
	}
}

// Build validates queries and options and returns the workload.
func Build(queries []string, opts ...Option) (*Spec, error) {
	if len(queries) == 0 {
		return nil, configErr("queries", errors.New("at least one query is required"))
	}

	s := &Spec{queries: make([]Payload, 0, len(queries))}
	for i, raw := range queries {
		raw = strings.TrimSpace(raw)
		if !gjson.Valid(raw) {
			return nil, &ConfigError{Field: "queries", Index: i, Err: errors.New("not valid JSON")}
		}
		if !gjson.Parse(raw).IsObject() {
			return nil, &ConfigError{Field: "queries", Index: i, Err: errors.New("must be a JSON object")}
		}
		s.queries = append(s.queries, Payload{Index: i, Raw: raw})
	}

	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Len returns the number of queries in one iteration.
func (s *Spec) Len() int {
	return len(s.queries)
}

// Pause returns the delay between consecutive operations.
func (s *Spec) Pause() time.Duration {
	return s.pause
}

// Raw returns the extended JSON text of query i.
func (s *Spec) Raw(i int) string {
	return s.queries[i].Raw
}

// Query converts query i and attaches the shared find modifiers. Conversion
// failures wrap ErrConversion.
func (s *Spec) Query(i int) (Query, error) {
	filter, err := s.queries[i].Document()
	if err != nil {
		return Query{Index: i}, err
	}
	return Query{
		Index:     i,
		Filter:    filter,
		Sort:      s.sort,
		Collation: s.collation,
		Limit:     s.limit,
	}, nil
}

// Clone returns an independent deep copy. Conversion caches are not carried
// over; the clone converts its payloads on first use.
func (s *Spec) Clone() *Spec {
	c := &Spec{
		queries: make([]Payload, len(s.queries)),
		pause:   s.pause,
	}
	for i, p := range s.queries {
		c.queries[i] = Payload{Index: p.Index, Raw: p.Raw}
	}
	if s.sort != nil {
		c.sort = copyD(s.sort)
	}
	if s.collation != nil {
		coll := *s.collation
		c.collation = &coll
	}
	if s.limit != nil {
		n := *s.limit
		c.limit = &n
	}
	return c
}

func copyD(d bson.D) bson.D {
	out := make(bson.D, len(d))
	for i, e := range d {
		out[i] = bson.E{Key: e.Key, Value: copyValue(e.Value)}
	}
	return out
}

func copyValue(v interface{}) interface{} {
	switch t := v.(type) {
	case bson.D:
		return copyD(t)
	case bson.A:
		out := make(bson.A, len(t))
		for i, item := range t {
			out[i] = copyValue(item)
		}
		return out
	case bson.M:
		out := make(bson.M, len(t))
		for k, item := range t {
			out[k] = copyValue(item)
		}
		return out
	default:
		return v
	}
}
