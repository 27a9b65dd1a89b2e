/*
NAME
  store.go

DESCRIPTION
  store.go provides SideDataStore: a typed, GUID-keyed container for the
  per-sample sideband metadata (HDR mastering, content light level,
  HDR10+, 3D offsets) that must ride alongside video samples through the
  filter, per spec §4.3.

AUTHORS
  Ella Pietraroia <ella@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package sidedata provides the typed side-data store attached to every
// media sample, carrying HDR and 3D sideband metadata across the filter.
package sidedata

import (
	"errors"
	"sync"
)

// Kind identifies one of the recognized metadata kinds. The spec keys
// these by GUID; a small closed set of string tags serves the same
// purpose here without requiring an external GUID registry.
type Kind string

// The four recognized side-data kinds (spec §3, §4.3).
const (
	HDR                  Kind = "HDR"
	HDRContentLightLevel Kind = "HDRContentLightLevel"
	HDR10Plus            Kind = "HDR10Plus"
	ThreeDOffset         Kind = "3DOffset"
)

var recognized = map[Kind]bool{
	HDR:                  true,
	HDRContentLightLevel: true,
	HDR10Plus:            true,
	ThreeDOffset:         true,
}

// ErrUnrecognizedKind is returned by Store and Retrieve for any kind
// outside the recognized set.
var ErrUnrecognizedKind = errors.New("sidedata: unrecognized kind")

// Store is a mapping from recognized Kind to an owned byte buffer. At
// most one buffer is held per kind; Store copies its input, so the
// caller's slice may be reused or mutated afterwards.
type Store struct {
	mu   sync.RWMutex
	data map[Kind][]byte
}

// New returns an empty Store.
func New() *Store {
	return &Store{data: make(map[Kind][]byte)}
}

// Store copies b and associates it with kind, replacing any previous
// value. It returns ErrUnrecognizedKind for a kind outside the
// recognized set.
func (s *Store) Store(kind Kind, b []byte) error {
	if !recognized[kind] {
		return ErrUnrecognizedKind
	}
	cp := make([]byte, len(b))
	copy(cp, b)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.data == nil {
		s.data = make(map[Kind][]byte)
	}
	s.data[kind] = cp
	return nil
}

// Retrieve returns a borrow of the bytes stored for kind. The returned
// slice is valid only as long as the Store (and the sample that owns it)
// is alive; callers that need to keep the bytes longer must copy them.
// ok is false when nothing is stored for kind, or when kind is not
// recognized.
func (s *Store) Retrieve(kind Kind) (b []byte, ok bool) {
	if !recognized[kind] {
		return nil, false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok = s.data[kind]
	return b, ok
}

// Has reports whether kind has a stored value.
func (s *Store) Has(kind Kind) bool {
	_, ok := s.Retrieve(kind)
	return ok
}

// Carrier is implemented by anything that owns a side-data Store — in
// this filter, every media sample (spec §9: samples carry the capability
// set {timed byte buffer, side-data mapping}, with no separate
// upstream/downstream sample type to distinguish).
type Carrier interface {
	SideData() *Store
}

// ReadFrom copies every recognized kind present in c's store into s,
// per spec §4.3 ("ReadFrom(sample) ... iterate the four recognized
// kinds"). Kinds absent from c are left untouched in s.
func (s *Store) ReadFrom(c Carrier) {
	src := c.SideData()
	if src == nil {
		return
	}
	for kind := range recognized {
		if b, ok := src.Retrieve(kind); ok {
			s.Store(kind, b)
		}
	}
}

// WriteTo copies every recognized kind present in s into c's store, the
// mirror of ReadFrom.
func (s *Store) WriteTo(c Carrier) {
	dst := c.SideData()
	if dst == nil {
		return
	}
	for kind := range recognized {
		if b, ok := s.Retrieve(kind); ok {
			dst.Store(kind, b)
		}
	}
}
