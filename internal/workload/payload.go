package workload

import (
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
)

// Payload is one query filter in extended JSON, kept in its textual form
// until a worker needs it.
type Payload struct {
	Index int
	Raw   string

	doc       bson.D
	converted bool
}

// Document converts the payload to a filter document. The first successful
// conversion is cached on the payload, so each worker should call it on its
// own clone of the workload.
func (p *Payload) Document() (bson.D, error) {
	if p.converted {
		return p.doc, nil
	}
	var doc bson.D
	if err := bson.UnmarshalExtJSON([]byte(p.Raw), false, &doc); err != nil {
		return nil, fmt.Errorf("%w: query %d: %v", ErrConversion, p.Index, err)
	}
	p.doc = doc
	p.converted = true
	return doc, nil
}
