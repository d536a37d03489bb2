package models

import (
	"encoding/json"
	"testing"
	"time"
)

func TestValueUnmarshalJSON(t *testing.T) {
	var r Record
	data := `{"date":"2024-01-02","type":"A","pages":12,"draft":true,"note":null,"empty":""}`
	if err := json.Unmarshal([]byte(data), &r); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}

	if got := r.Get("type"); got != String("A") {
		t.Errorf("type = %#v, want String(A)", got)
	}
	if got := r.Get("pages"); got != Number(12) {
		t.Errorf("pages = %#v, want Number(12)", got)
	}
	if got := r.Get("draft"); got != String("true") {
		t.Errorf("draft = %#v, want String(true)", got)
	}
	if !r.Get("note").IsEmpty() {
		t.Error("null should decode to an empty value")
	}
	if !r.Get("empty").IsEmpty() {
		t.Error("empty string should be empty")
	}
	if !r.Get("missing").IsEmpty() {
		t.Error("missing field should be empty")
	}
}

func TestValueRejectsNested(t *testing.T) {
	var r Record
	if err := json.Unmarshal([]byte(`{"tags":["a","b"]}`), &r); err == nil {
		t.Fatal("expected an error for an array field value")
	}
}

func TestValueEqualityIsKindExact(t *testing.T) {
	if String("1") == Number(1) {
		t.Error("string 1 and number 1 must not be equal")
	}
	if Number(0).IsEmpty() {
		t.Error("numeric zero is a real value")
	}
}

func TestValueString(t *testing.T) {
	tests := []struct {
		v    Value
		want string
	}{
		{String("abc"), "abc"},
		{Number(3), "3"},
		{Number(2.5), "2.5"},
		{Value{}, ""},
	}
	for _, tt := range tests {
		if got := tt.v.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}

func TestCalendarDataJSON(t *testing.T) {
	data := CalendarData{
		2024: YearGrid{nil, {Date: "2024-01-01", Records: []Record{}}},
	}
	b, err := json.Marshal(data)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	want := `{"2024":[null,{"date":"2024-01-01","records":[]}]}`
	if string(b) != want {
		t.Errorf("got %s, want %s", b, want)
	}
}

func TestCalendarDataYearsNewestFirst(t *testing.T) {
	data := CalendarData{2021: nil, 2024: nil, 2022: nil}
	years := data.Years()
	want := []int{2024, 2022, 2021}
	for i := range want {
		if years[i] != want[i] {
			t.Fatalf("Years() = %v, want %v", years, want)
		}
	}
}

func TestValueCountsJSON(t *testing.T) {
	counts := ValueCounts{String("A"): 2, AnyValue: 3}
	b, err := json.Marshal(counts)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	want := `{"A":2,"__ANY__":3}`
	if string(b) != want {
		t.Errorf("got %s, want %s", b, want)
	}
}

func TestEventRecord(t *testing.T) {
	loc := time.FixedZone("UTC-5", -5*3600)
	e := &Event{
		UID:       "abc",
		Title:     "Standup",
		StartTime: time.Date(2024, 3, 2, 2, 0, 0, 0, time.UTC),
		Status:    "CONFIRMED",
	}
	r := e.Record("date", loc)
	if got := r.Text("date"); got != "2024-03-01" {
		t.Errorf("date = %q, want 2024-03-01", got)
	}
	if got := r.Text("summary"); got != "Standup" {
		t.Errorf("summary = %q", got)
	}
	if _, ok := r["location"]; ok {
		t.Error("empty fields should be omitted")
	}
}

func TestEventRecordWithoutStart(t *testing.T) {
	e := &Event{Title: "Someday"}
	r := e.Record("date", time.UTC)
	if _, ok := r["date"]; ok {
		t.Errorf("an event without a start time should have no date, got %q", r.Text("date"))
	}
}
