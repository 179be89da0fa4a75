package pricing

import (
	"math"
	"testing"
)

func TestChargerCount(t *testing.T) {
	tests := []struct {
		radios int
		want   int
	}{
		{0, 1},
		{1, 1},
		{5, 1},
		{6, 2},
		{10, 2},
		{11, 3},
		{100, 20},
		{101, 21},
	}
	for _, tt := range tests {
		got := ChargerCount(tt.radios)
		if got != tt.want {
			t.Errorf("ChargerCount(%d) = %d, want %d", tt.radios, got, tt.want)
		}
		want := int(math.Max(1, math.Ceil(float64(tt.radios)/5)))
		if got != want {
			t.Errorf("ChargerCount(%d) = %d, formula gives %d", tt.radios, got, want)
		}
	}
}

func TestAccessoriesFor(t *testing.T) {
	a := AccessoriesFor(12)
	if a.Batteries != 12 || a.BeltClips != 12 || a.Chargers != 3 {
		t.Fatalf("AccessoriesFor(12) = %+v", a)
	}
}

func TestLicensingFee(t *testing.T) {
	tests := []struct {
		name      string
		sites     int
		interSite bool
		want      float64
	}{
		{"single site", 1, false, 800},
		{"three sites", 3, false, 1100},
		{"three linked sites", 3, true, 1500},
		{"single linked", 1, true, 1200},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := LicensingFee(tt.sites, tt.interSite); got != tt.want {
				t.Errorf("LicensingFee() = %f, want %f", got, tt.want)
			}
		})
	}
}

func TestSingleSiteLaborHours(t *testing.T) {
	tests := []struct {
		name      string
		repeaters int
		users     int
		want      float64
	}{
		{"floor applies", 0, 1, 4},
		{"one repeater ten users", 1, 10, 13},  // 2 + 8 + ceil(2.5)
		{"two repeaters 100 users", 2, 100, 43}, // 2 + 16 + 25
		{"no repeater 9 users", 0, 9, 5},        // 2 + 3
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SingleSiteLaborHours(tt.repeaters, tt.users); got != tt.want {
				t.Errorf("SingleSiteLaborHours() = %f, want %f", got, tt.want)
			}
		})
	}
}

func TestMultiSiteLaborHours(t *testing.T) {
	if got := MultiSiteLaborHours(3, true); got != 50 {
		t.Errorf("3 linked sites = %f, want 50", got)
	}
	if got := MultiSiteLaborHours(2, false); got != 32 {
		t.Errorf("2 sites = %f, want 32", got)
	}
}

func TestTotals(t *testing.T) {
	b := Totals(10000, 20)
	if b.Parts != 10000 || b.Labor != 1700 || b.Tax != 936 || b.Amount != 12636 {
		t.Fatalf("Totals() = %+v", b)
	}
	// amount == (parts + labor) * 1.08 within a cent
	for _, in := range []struct{ parts, hours float64 }{{1234.57, 13}, {99.99, 4}, {2500.10, 50.5}} {
		b := Totals(in.parts, in.hours)
		want := (b.Parts + b.Labor) * (1 + TaxRate)
		if math.Abs(b.Amount-want) > 0.01 {
			t.Errorf("Totals(%v) amount = %f, want %f", in, b.Amount, want)
		}
	}
}

func TestLineTotal(t *testing.T) {
	if got := LineTotal(19.99, 3); got != 59.97 {
		t.Errorf("LineTotal = %f, want 59.97", got)
	}
}

func TestProfile(t *testing.T) {
	p, ok := Profile("ip_site_connect")
	if !ok || p.Name != SystemIPSiteConnect || p.MaxUsersPerSite != 250 {
		t.Fatalf("Profile(ip_site_connect) = %+v, %v", p, ok)
	}
	if _, ok := Profile("tetra"); ok {
		t.Error("unknown system resolved")
	}
	if !IsBasic("Conventional") || !IsBasic("basic analog") {
		t.Error("conventional should be basic")
	}
	if IsBasic("Capacity Max") {
		t.Error("Capacity Max is not basic")
	}
	if rate, ok := LinkingRate("Linked Capacity Plus"); !ok || rate != 3500 {
		t.Errorf("LinkingRate(LCP) = %f, %v", rate, ok)
	}
	if _, ok := LinkingRate("Capacity Plus"); ok {
		t.Error("Capacity Plus should not link sites")
	}
	if got := p.RepeatersFor(120); got != 3 {
		t.Errorf("RepeatersFor(120) = %d, want 3", got)
	}
}
