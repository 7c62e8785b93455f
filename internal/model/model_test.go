package model

import "testing"

func TestNewCatalogEntryRejectsEmptyName(t *testing.T) {
	_, err := NewCatalogEntry(CatalogEntry{StoredIndex: 1, Name: ""})
	if err == nil {
		t.Fatal("expected error for empty name")
	}
}

func TestNewCatalogEntryRejectsInvertedRange(t *testing.T) {
	min, max := 10.0, 5.0
	_, err := NewCatalogEntry(CatalogEntry{StoredIndex: 1, Name: "x", MinValue: &min, MaxValue: &max})
	if err == nil {
		t.Fatal("expected error for min > max")
	}
}

func TestNewCatalogEntryAccepts(t *testing.T) {
	min, max := 5.0, 10.0
	e, err := NewCatalogEntry(CatalogEntry{StoredIndex: 1, Name: "x", MinValue: &min, MaxValue: &max})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if e.Name != "x" {
		t.Fatalf("unexpected entry: %+v", e)
	}
}

func TestAlarmDateBefore(t *testing.T) {
	earlier := AlarmDate{Year: 2026, Month: 1, Day: 1}
	later := AlarmDate{Year: 2026, Month: 1, Day: 2}
	if !earlier.Before(later) {
		t.Fatal("expected earlier.Before(later) to be true")
	}
	if later.Before(earlier) {
		t.Fatal("expected later.Before(earlier) to be false")
	}
	if earlier.Before(earlier) {
		t.Fatal("a date must not be before itself")
	}
}
