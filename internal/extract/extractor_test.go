// Argus - OSINT Conflict Event Processing and Mapping
// Copyright 2026 Argus Watch (arguswatch)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/arguswatch/argus

package extract

import (
	"reflect"
	"testing"
)

func texts(cands []Candidate) []string {
	out := make([]string, 0, len(cands))
	for _, c := range cands {
		out = append(out, c.Text)
	}
	return out
}

func TestScan_CuedPlace(t *testing.T) {
	got := Scan("Drone strike reported near Sidon, airstrike confirmed").Collect()

	want := []string{"Sidon"}
	if !reflect.DeepEqual(texts(got), want) {
		t.Errorf("expected %v, got %v", want, texts(got))
	}
	if got[0].Kind != KindPlace {
		t.Errorf("expected place kind, got %q", got[0].Kind)
	}
}

func TestScan_MultiTokenPlace(t *testing.T) {
	got := Scan("Explosions heard in Tel Aviv tonight").Collect()

	want := []string{"Tel Aviv"}
	if !reflect.DeepEqual(texts(got), want) {
		t.Errorf("expected %v, got %v", want, texts(got))
	}
}

func TestScan_ConnectorTokens(t *testing.T) {
	tests := []struct {
		text string
		want string
	}{
		{"Heavy fighting continued in Deir ez-Zor overnight", "Deir ez-Zor"},
		{"Shipping disrupted near Bab el-Mandeb again", "Bab el-Mandeb"},
		{"Clashes reported near al-Bab today", "al-Bab"},
	}
	for _, tt := range tests {
		got := Scan(tt.text).Collect()
		if len(got) != 1 || got[0].Text != tt.want {
			t.Errorf("%q: expected [%s], got %v", tt.text, tt.want, texts(got))
		}
	}
}

func TestScan_FacilityKind(t *testing.T) {
	got := Scan("Missiles struck at Damascus International Airport overnight").Collect()

	if len(got) != 1 || got[0].Text != "Damascus International Airport" {
		t.Fatalf("expected Damascus International Airport, got %v", texts(got))
	}
	if got[0].Kind != KindFacility {
		t.Errorf("expected facility kind, got %q", got[0].Kind)
	}
}

func TestScan_SentenceInitialWithoutCueSkipped(t *testing.T) {
	// "Drone" opens the sentence and is a subject, not a location.
	got := Scan("Drone strike reported this morning").Collect()
	if len(got) != 0 {
		t.Errorf("expected no candidates, got %v", texts(got))
	}

	// A sentence-initial span preceded by a cue in the previous clause is
	// different from one at text start.
	got = Scan("Evacuations underway in Rafah. Casualties unconfirmed.").Collect()
	if len(got) != 1 || got[0].Text != "Rafah" {
		t.Errorf("expected [Rafah], got %v", texts(got))
	}
}

func TestScan_OrganizationsFiltered(t *testing.T) {
	got := Scan("Statement released by the Defense Ministry this evening").Collect()
	for _, c := range got {
		if c.Text == "Defense Ministry" {
			t.Error("organization span must not be emitted")
		}
	}

	got = Scan("Units of the Wagner Group seen moving").Collect()
	if len(got) != 0 {
		t.Errorf("expected no candidates, got %v", texts(got))
	}
}

func TestScan_PersonsFiltered(t *testing.T) {
	for _, text := range []string{
		"Talks held with President Aoun yesterday",
		"Briefing given by Gen Brown at noon",
		"Remarks from Minister Katz overnight",
	} {
		if got := Scan(text).Collect(); len(got) != 0 {
			t.Errorf("%q: expected no candidates, got %v", text, texts(got))
		}
	}
}

func TestScan_AcronymsSkipped(t *testing.T) {
	got := Scan("Strikes claimed by the IDF near Tyre").Collect()

	want := []string{"Tyre"}
	if !reflect.DeepEqual(texts(got), want) {
		t.Errorf("expected %v, got %v", want, texts(got))
	}
}

func TestScan_Deduplicates(t *testing.T) {
	got := Scan("Blasts in Kyiv; air defense active over Kyiv; residents of Kyiv sheltering").Collect()

	want := []string{"Kyiv"}
	if !reflect.DeepEqual(texts(got), want) {
		t.Errorf("expected one Kyiv, got %v", texts(got))
	}
}

func TestScan_ConsumeOnce(t *testing.T) {
	s := Scan("Shelling reported in Kharkiv and near Bakhmut")

	first, ok := s.Next()
	if !ok || first.Text != "Kharkiv" {
		t.Fatalf("expected Kharkiv first, got %+v ok=%v", first, ok)
	}
	second, ok := s.Next()
	if !ok || second.Text != "Bakhmut" {
		t.Fatalf("expected Bakhmut second, got %+v ok=%v", second, ok)
	}
	if _, ok := s.Next(); ok {
		t.Error("scanner must be exhausted after its final candidate")
	}
	// Exhaustion is permanent: the scanner never restarts.
	if _, ok := s.Next(); ok {
		t.Error("exhausted scanner must stay exhausted")
	}
}

func TestScan_EmptyAndLowercaseText(t *testing.T) {
	for _, text := range []string{"", "   ", "no capital letters anywhere here"} {
		if got := Scan(text).Collect(); len(got) != 0 {
			t.Errorf("%q: expected no candidates, got %v", text, texts(got))
		}
	}
}

func TestScan_BareCueWordNotAPlace(t *testing.T) {
	got := Scan("Convoy seen moving North of the river").Collect()
	for _, c := range got {
		if c.Text == "North" {
			t.Error("a capitalized cue word alone is not a place name")
		}
	}
}
