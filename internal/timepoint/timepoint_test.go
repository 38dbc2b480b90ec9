package timepoint

import (
	"encoding/json"
	"testing"
)

func TestNewWrapsFields(t *testing.T) {
	tests := []struct {
		name                string
		h, m, s             int
		wantH, wantM, wantS int
	}{
		{"in range", 13, 4, 5, 13, 4, 5},
		{"hour wraps", 25, 0, 0, 1, 0, 0},
		{"minute wraps without carry", 1, 75, 0, 1, 15, 0},
		{"second wraps without carry", 1, 14, 99, 1, 14, 39},
		{"negative wraps", -1, -1, -1, 23, 59, 59},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := New(tt.h, tt.m, tt.s)
			if got.Hour() != tt.wantH || got.Minute() != tt.wantM || got.Second() != tt.wantS {
				t.Fatalf("New(%d, %d, %d) = %v", tt.h, tt.m, tt.s, got)
			}
		})
	}
}

func TestAddCarries(t *testing.T) {
	tests := []struct {
		name  string
		start Timepoint
		field Field
		delta int
		want  Timepoint
	}{
		{"wrap at midnight", New(23, 59, 59), Second, 1, New(0, 0, 0)},
		{"second into minute", New(1, 14, 59), Second, 2, New(1, 15, 1)},
		{"minute into hour", New(1, 59, 30), Minute, 1, New(2, 0, 30)},
		{"hour wraps", New(23, 10, 0), Hour, 2, New(1, 10, 0)},
		{"negative second borrows", New(0, 0, 0), Second, -1, New(23, 59, 59)},
		{"negative minute borrows", New(10, 0, 5), Minute, -1, New(9, 59, 5)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.start.Add(tt.field, tt.delta)
			if got != tt.want {
				t.Fatalf("%v.Add(%v, %d) = %v, want %v", tt.start, tt.field, tt.delta, got, tt.want)
			}
		})
	}
}

func TestEqualAt(t *testing.T) {
	a := New(1, 14, 15)
	if !a.EqualAt(New(1, 14, 99), Minute) {
		t.Errorf("minute resolution must ignore seconds")
	}
	if a.EqualAt(New(2, 14, 15), Hour) {
		t.Errorf("different hours must differ at hour resolution")
	}
	if !a.EqualAt(New(1, 59, 0), Hour) {
		t.Errorf("hour resolution must ignore minutes")
	}
	if a.EqualAt(New(1, 14, 16), Second) {
		t.Errorf("second resolution compares every field")
	}
}

func TestCompareOrdersBySeconds(t *testing.T) {
	if New(8, 0, 0).Compare(New(7, 59, 59)) != 1 {
		t.Errorf("08:00:00 should be one second after 07:59:59")
	}
	if !New(0, 0, 1).After(Midnight) || !Midnight.Before(Midday) {
		t.Errorf("ordering helpers disagree with Compare")
	}
	if got := New(13, 4, 5).Seconds(); got != 13*3600+4*60+5 {
		t.Errorf("Seconds() = %d", got)
	}
}

func TestAMPM(t *testing.T) {
	if got := New(13, 5, 0).ToAM(); got != New(1, 5, 0) {
		t.Errorf("13:05 ToAM = %v", got)
	}
	if got := New(1, 5, 0).ToPM(); got != New(13, 5, 0) {
		t.Errorf("01:05 ToPM = %v", got)
	}
	if got := New(12, 0, 0).ToAM(); got != Midnight {
		t.Errorf("12:00 ToAM = %v", got)
	}
	if got := New(0, 30, 0).ToPM(); got != New(12, 30, 0) {
		t.Errorf("00:30 ToPM = %v", got)
	}
	if got := New(9, 0, 0).ToAM(); got != New(9, 0, 0) {
		t.Errorf("ToAM on AM value changed it: %v", got)
	}
	if !New(11, 59, 59).IsAM() || !Midday.IsPM() {
		t.Errorf("IsAM/IsPM boundary wrong")
	}
}

func TestParse(t *testing.T) {
	tests := []struct {
		in      string
		want    Timepoint
		wantErr bool
	}{
		{in: "13", want: New(13, 0, 0)},
		{in: "13:04", want: New(13, 4, 0)},
		{in: "13:04:05", want: New(13, 4, 5)},
		{in: "24:00", wantErr: true},
		{in: "10:60", wantErr: true},
		{in: "1:2:3:4", wantErr: true},
		{in: "", wantErr: true},
		{in: "noon", wantErr: true},
	}
	for _, tt := range tests {
		got, err := Parse(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("Parse(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if !tt.wantErr && got != tt.want {
			t.Errorf("Parse(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestTextRoundTripInJSON(t *testing.T) {
	type payload struct {
		At Timepoint `json:"at"`
	}
	b, err := json.Marshal(payload{At: New(9, 5, 7)})
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != `{"at":"09:05:07"}` {
		t.Fatalf("json = %s", b)
	}
	var p payload
	if err := json.Unmarshal([]byte(`{"at":"17:30"}`), &p); err != nil {
		t.Fatal(err)
	}
	if p.At != New(17, 30, 0) {
		t.Fatalf("unmarshal = %v", p.At)
	}
}

func TestParseField(t *testing.T) {
	for in, want := range map[string]Field{"hour": Hour, "MINUTE": Minute, "s": Second, "": Unset, "none": Unset} {
		got, err := ParseField(in)
		if err != nil || got != want {
			t.Errorf("ParseField(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	if _, err := ParseField("day"); err == nil {
		t.Errorf("ParseField(day) should fail")
	}
}
