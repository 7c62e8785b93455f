// Package model defines the gateway's core data model: discovered parameter
// metadata, cached live values, and alarm records. These mirror the shape of
// the struct-catalog and value-cache entries exchanged across the rest of
// the gateway and surfaced over HTTP.
package model

import (
	"fmt"

	"github.com/econext/gm3-gateway/internal/protocol"
)

// AddressSpace identifies which bus participant a stored index belongs to.
type AddressSpace int

const (
	Controller AddressSpace = iota
	Panel
)

// String implements fmt.Stringer.
func (s AddressSpace) String() string {
	switch s {
	case Controller:
		return "CONTROLLER"
	case Panel:
		return "PANEL"
	default:
		return fmt.Sprintf("AddressSpace(%d)", int(s))
	}
}

// PanelStoreOffset is added to a panel-space wire index to produce its
// stored index, keeping the two address spaces disjoint in the cache and
// catalog's shared key space.
const PanelStoreOffset = 10000

// CatalogEntry describes one parameter's static metadata as discovered from
// the controller or panel struct walk.
type CatalogEntry struct {
	StoredIndex int
	WireIndex   int
	Space       AddressSpace
	Name        string
	Unit        byte
	Type        protocol.DataType
	Writable    bool

	// MinValue/MaxValue are literal range bounds; nil when the bound is a
	// reference to another parameter (MinParamRef/MaxParamRef) or simply
	// absent.
	MinValue *float64
	MaxValue *float64

	// MinParamRef/MaxParamRef name another stored index whose live cached
	// value supplies the bound, resolved lazily at write time.
	MinParamRef *int
	MaxParamRef *int
}

// NewCatalogEntry validates and constructs a CatalogEntry.
func NewCatalogEntry(e CatalogEntry) (CatalogEntry, error) {
	if e.Name == "" {
		return CatalogEntry{}, fmt.Errorf("model: catalog entry %d has empty name", e.StoredIndex)
	}
	if e.MinValue != nil && e.MaxValue != nil && *e.MinValue > *e.MaxValue {
		return CatalogEntry{}, fmt.Errorf("model: catalog entry %q has min %v > max %v", e.Name, *e.MinValue, *e.MaxValue)
	}
	return e, nil
}

// UnitString returns the human-readable unit for this entry.
func (e CatalogEntry) UnitString() string {
	return protocol.UnitNames[e.Unit]
}

// Parameter is a single live value paired with its catalog metadata, the
// shape returned from cache reads and served over HTTP.
type Parameter struct {
	StoredIndex int
	Name        string
	Unit        string
	Value       any
	UpdatedAt   int64 // unix seconds, caller-supplied (no wall-clock reads inside model)
}

// Alarm is a single decoded alarm log entry.
type Alarm struct {
	Code     int
	FromDate AlarmDate
	ToDate   *AlarmDate // nil while the alarm is still active
}

// AlarmDate is a decoded 7-byte GM3 timestamp.
type AlarmDate struct {
	Year   int
	Month  int
	Day    int
	Hour   int
	Minute int
	Second int
}

// Before reports whether d occurred strictly before other.
func (d AlarmDate) Before(other AlarmDate) bool {
	a := [...]int{d.Year, d.Month, d.Day, d.Hour, d.Minute, d.Second}
	b := [...]int{other.Year, other.Month, other.Day, other.Hour, other.Minute, other.Second}
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}
