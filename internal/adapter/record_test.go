package adapter

import (
	"encoding/json"
	"reflect"
	"testing"
)

func TestRecord_MarshalFlattens(t *testing.T) {
	rec := Record{
		ID:           "r1",
		Status:       StatusSynced,
		LastModified: 99,
		Extra:        map[string]any{"title": "hello"},
	}

	data, err := json.Marshal(rec)
	if err != nil {
		t.Fatal(err)
	}

	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatal(err)
	}
	if m["id"] != "r1" {
		t.Errorf("id = %v", m["id"])
	}
	if m["_status"] != "synced" {
		t.Errorf("_status = %v", m["_status"])
	}
	if m["last_modified"] != float64(99) {
		t.Errorf("last_modified = %v", m["last_modified"])
	}
	if m["title"] != "hello" {
		t.Errorf("title = %v", m["title"])
	}
}

func TestRecord_MarshalOmitsEmptyBookkeeping(t *testing.T) {
	data, err := json.Marshal(Record{ID: "r1"})
	if err != nil {
		t.Fatal(err)
	}

	var m map[string]any
	json.Unmarshal(data, &m)
	if _, ok := m["_status"]; ok {
		t.Error("empty _status serialized")
	}
	if _, ok := m["last_modified"]; ok {
		t.Error("zero last_modified serialized")
	}
}

func TestRecord_NamedFieldsWinCollisions(t *testing.T) {
	rec := Record{
		ID:    "real",
		Extra: map[string]any{"id": "shadow", "title": "x"},
	}

	data, err := json.Marshal(rec)
	if err != nil {
		t.Fatal(err)
	}
	var m map[string]any
	json.Unmarshal(data, &m)
	if m["id"] != "real" {
		t.Errorf("id = %v, want the named field", m["id"])
	}
}

func TestRecord_RoundTrip(t *testing.T) {
	rec := Record{
		ID:           "r1",
		Status:       StatusDeleted,
		LastModified: 7,
		Extra:        map[string]any{"title": "hello", "tags": []any{"a", "b"}},
	}

	data, err := json.Marshal(rec)
	if err != nil {
		t.Fatal(err)
	}
	var got Record
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(got, rec) {
		t.Errorf("round trip = %+v, want %+v", got, rec)
	}
}

func TestRecord_RoundTrip_NoExtra(t *testing.T) {
	rec := Record{ID: "r1", Status: StatusCreated}

	data, _ := json.Marshal(rec)
	var got Record
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatal(err)
	}
	if got.Extra != nil {
		t.Errorf("Extra = %v, want nil", got.Extra)
	}
	if !reflect.DeepEqual(got, rec) {
		t.Errorf("round trip = %+v, want %+v", got, rec)
	}
}
