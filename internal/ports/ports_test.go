package ports

import (
	"context"
	"net"
	"testing"
)

func freeProbe(ctx context.Context, port int) bool { return true }

func busyProbe(ctx context.Context, port int) bool { return false }

func TestOffsetFor(t *testing.T) {
	tests := []struct {
		name    string
		version string
		want    int
	}{
		{name: "listed 2.4", version: "2.4", want: 0},
		{name: "listed 2.5", version: "2.5", want: 5},
		{name: "listed 2.6", version: "2.6", want: 10},
		{name: "listed 2.7", version: "2.7", want: 15},
		{name: "patch release reduces to minor", version: "2.6.7", want: 10},
		{name: "unlisted minor keeps spacing", version: "2.8", want: 20},
		{name: "double digit minor", version: "2.10", want: 30},
		{name: "other major falls back", version: "3.0", want: 0},
		{name: "bare major falls back", version: "2", want: 0},
		{name: "non numeric minor falls back", version: "2.x", want: 0},
		{name: "garbage falls back", version: "snapshot", want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := OffsetFor(tt.version); got != tt.want {
				t.Errorf("OffsetFor(%q) = %d, want %d", tt.version, got, tt.want)
			}
		})
	}
}

func TestAllocateDefaultsWhenFree(t *testing.T) {
	got := Allocate(context.Background(), "2.6", false, freeProbe)
	want := Allocation{LDAPPort: 389, LDAPSPort: 636}
	if got != want {
		t.Errorf("Allocate with free defaults = %+v, want %+v", got, want)
	}
}

func TestAllocateDefaultsForFirstInstance(t *testing.T) {
	// The first registered instance keeps the defaults even when something
	// is already bound to them: the occupier is taken to be a previous run
	// of the same instance.
	got := Allocate(context.Background(), "2.6", true, busyProbe)
	want := Allocation{LDAPPort: 389, LDAPSPort: 636}
	if got != want {
		t.Errorf("Allocate for first instance = %+v, want %+v", got, want)
	}
}

func TestAllocateAlternatePair(t *testing.T) {
	tests := []struct {
		name    string
		version string
		want    Allocation
	}{
		{name: "2.4 base pair", version: "2.4", want: Allocation{LDAPPort: 3389, LDAPSPort: 6363}},
		{name: "2.5 offset 5", version: "2.5", want: Allocation{LDAPPort: 3394, LDAPSPort: 6368}},
		{name: "2.6 offset 10", version: "2.6", want: Allocation{LDAPPort: 3399, LDAPSPort: 6373}},
		{name: "2.7 offset 15", version: "2.7", want: Allocation{LDAPPort: 3404, LDAPSPort: 6378}},
		{name: "unparseable uses base pair", version: "trunk", want: Allocation{LDAPPort: 3389, LDAPSPort: 6363}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Allocate(context.Background(), tt.version, false, busyProbe)
			if got != tt.want {
				t.Errorf("Allocate(%q) = %+v, want %+v", tt.version, got, tt.want)
			}
		})
	}
}

func TestAllocateIsDeterministic(t *testing.T) {
	first := Allocate(context.Background(), "2.6", false, busyProbe)
	for i := 0; i < 10; i++ {
		if got := Allocate(context.Background(), "2.6", false, busyProbe); got != first {
			t.Fatalf("Allocate changed between calls: got %+v, want %+v", got, first)
		}
	}
}

func TestAllocateNilProbeUsesBindProbe(t *testing.T) {
	// With a nil prober the real bind probe runs. Binding 389 needs
	// privileges, so on an unprivileged test run the probe reports the
	// default as unavailable and the alternate pair comes back; on a
	// privileged run the defaults come back. Both are valid outcomes,
	// the call just must not panic.
	got := Allocate(context.Background(), "2.4", false, nil)
	wantDefault := Allocation{LDAPPort: 389, LDAPSPort: 636}
	wantAlt := Allocation{LDAPPort: 3389, LDAPSPort: 6363}
	if got != wantDefault && got != wantAlt {
		t.Errorf("Allocate with nil probe = %+v, want %+v or %+v", got, wantDefault, wantAlt)
	}
}

func TestBindProbe(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("reserve port: %v", err)
	}
	port := ln.Addr().(*net.TCPAddr).Port

	if BindProbe(context.Background(), port) {
		t.Errorf("BindProbe(%d) = true while port is held", port)
	}

	ln.Close()

	if !BindProbe(context.Background(), port) {
		t.Errorf("BindProbe(%d) = false after release", port)
	}
}
