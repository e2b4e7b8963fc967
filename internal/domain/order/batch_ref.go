package order

import (
	"encoding/json"
	"errors"

	"github.com/google/uuid"
)

var ErrUnrecognizedBatchRef = errors.New("unrecognized batch reference format")

type BatchRefKind int

const (
	// RefInherited means no batch was named; updates fall back to the
	// batch already linked to the existing order.
	RefInherited BatchRefKind = iota
	// RefDirect is a plain batch id.
	RefDirect
	// RefRelationList is the client-side relation wrapper {"set":[{"id":...}]};
	// the first linked id wins.
	RefRelationList
)

// BatchRef is the tagged parse result of the "batch" field of an order
// mutation. Parsing happens exactly once, ahead of validation, so the
// validator never sees the wire shapes.
type BatchRef struct {
	kind BatchRefKind
	id   uuid.UUID
}

func InheritedBatchRef() BatchRef {
	return BatchRef{kind: RefInherited}
}

func DirectBatchRef(id uuid.UUID) BatchRef {
	return BatchRef{kind: RefDirect, id: id}
}

func (r BatchRef) Kind() BatchRefKind {
	return r.kind
}

// ID returns the referenced batch id; only meaningful when Kind is not
// RefInherited.
func (r BatchRef) ID() uuid.UUID {
	return r.id
}

func (r BatchRef) IsInherited() bool {
	return r.kind == RefInherited
}

type relationList struct {
	Set []struct {
		ID uuid.UUID `json:"id"`
	} `json:"set"`
}

// ParseBatchRef accepts the wire shapes the frontend has historically sent:
// a plain id string, a relation-list wrapper, or nothing at all.
func ParseBatchRef(raw json.RawMessage) (BatchRef, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return InheritedBatchRef(), nil
	}

	var direct uuid.UUID
	if err := json.Unmarshal(raw, &direct); err == nil && direct != uuid.Nil {
		return BatchRef{kind: RefDirect, id: direct}, nil
	}

	var rel relationList
	if err := json.Unmarshal(raw, &rel); err == nil && len(rel.Set) > 0 && rel.Set[0].ID != uuid.Nil {
		return BatchRef{kind: RefRelationList, id: rel.Set[0].ID}, nil
	}

	return BatchRef{}, ErrUnrecognizedBatchRef
}
