package domain

import "testing"

func TestDNAGender(t *testing.T) {
	cases := []struct {
		name string
		dna  DNA
		want Gender
	}{
		{name: "zero code", dna: DNA{}, want: GenderMale},
		{name: "odd first byte", dna: DNA{1}, want: GenderFemale},
		{name: "only low bit counts", dna: DNA{0xFE, 0xFF, 0xFF}, want: GenderMale},
		{name: "other bytes ignored", dna: DNA{0x03, 0x00}, want: GenderFemale},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.dna.Gender(); got != tc.want {
				t.Fatalf("expected %s, got %s", tc.want, got)
			}
			if got := (Kitty{DNA: tc.dna}).Gender(); got != tc.want {
				t.Fatalf("kitty gender mismatch: expected %s, got %s", tc.want, got)
			}
		})
	}
}

func TestDNAString(t *testing.T) {
	dna := DNA{59, 250, 138, 82, 209, 39, 141, 109, 163, 238, 183, 145, 235, 168, 18, 122}
	if got := dna.String(); got != "3bfa8a52d1278d6da3eeb791eba8127a" {
		t.Fatalf("unexpected hex rendering %q", got)
	}
}

func TestRandomnessFunc(t *testing.T) {
	var seen []byte
	src := RandomnessFunc(func(subject []byte) Seed {
		seen = append([]byte(nil), subject...)
		return Seed{7}
	})
	if got := src.Random([]byte("subject")); got[0] != 7 {
		t.Fatalf("unexpected seed %v", got)
	}
	if string(seen) != "subject" {
		t.Fatalf("subject not forwarded: %q", seen)
	}
}

func TestEventKindsAndSubjects(t *testing.T) {
	price := PriceOf(0)
	events := []struct {
		event Event
		kind  EventKind
	}{
		{KittyCreated{Owner: 1, KittyID: 4}, EventKittyCreated},
		{KittyBred{Owner: 1, KittyID: 4}, EventKittyBred},
		{KittyPriceUpdated{Owner: 1, KittyID: 4, Price: price}, EventKittyPriceUpdated},
		{KittyTransferred{From: 1, To: 2, KittyID: 4}, EventKittyTransferred},
		{KittySold{Owner: 1, Buyer: 2, KittyID: 4, Price: 10}, EventKittySold},
	}
	for _, tc := range events {
		if tc.event.Kind() != tc.kind {
			t.Fatalf("expected kind %s, got %s", tc.kind, tc.event.Kind())
		}
		if tc.event.Subject() != 4 {
			t.Fatalf("expected subject 4 for %s, got %d", tc.kind, tc.event.Subject())
		}
	}
	if price == nil || *price != 0 {
		t.Fatalf("expected present zero price")
	}
}
