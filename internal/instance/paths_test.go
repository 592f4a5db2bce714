package instance

import (
	"strings"
	"testing"
)

func TestNewIdentity(t *testing.T) {
	tests := []struct {
		name     string
		version  string
		variant  string
		wantName string
		wantErr  bool
	}{
		{name: "plain", version: "2.6", variant: "ssl30", wantName: "2.6-ssl30"},
		{name: "v prefix stripped", version: "v2.6", variant: "ssl30", wantName: "2.6-ssl30"},
		{name: "patch version", version: "2.6.7", variant: "ssl11", wantName: "2.6.7-ssl11"},
		{name: "default variant", version: "2.5", variant: "", wantName: "2.5-ssl30"},
		{name: "empty version", version: "", variant: "ssl30", wantErr: true},
		{name: "whitespace version", version: "   ", variant: "ssl30", wantErr: true},
		{name: "version with separator", version: "2.6/../2.5", variant: "ssl30", wantErr: true},
		{name: "dot-leading version", version: "..", variant: "ssl30", wantErr: true},
		{name: "variant with separator", version: "2.6", variant: "ssl30/evil", wantErr: true},
		{name: "variant with space", version: "2.6", variant: "ssl 30", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := NewIdentity(tt.version, tt.variant)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("NewIdentity(%q, %q) expected error, got %v", tt.version, tt.variant, id)
				}
				return
			}
			if err != nil {
				t.Fatalf("NewIdentity(%q, %q) unexpected error: %v", tt.version, tt.variant, err)
			}
			if got := id.Name(); got != tt.wantName {
				t.Errorf("Name() = %q; want %q", got, tt.wantName)
			}
		})
	}
}

func TestResolveLayout(t *testing.T) {
	id := Identity{Version: "2.6", Variant: "ssl30"}

	paths, err := Resolve(id, "/srv/slaplab")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	if !strings.Contains(paths.DataDir, "data/2.6-ssl30") {
		t.Errorf("DataDir incorrect: %s", paths.DataDir)
	}
	if !strings.Contains(paths.BootstrapConf, "etc/2.6-ssl30/slapd-bootstrap.conf") {
		t.Errorf("BootstrapConf incorrect: %s", paths.BootstrapConf)
	}
	if !strings.Contains(paths.CertFile, "etc/2.6-ssl30/ssl/server.crt") {
		t.Errorf("CertFile incorrect: %s", paths.CertFile)
	}
	if !strings.Contains(paths.ConfigDir, "etc/2.6-ssl30/slapd.d") {
		t.Errorf("ConfigDir incorrect: %s", paths.ConfigDir)
	}
	if !strings.Contains(paths.StateFile, "run/2.6-ssl30/instance.state") {
		t.Errorf("StateFile incorrect: %s", paths.StateFile)
	}
	if !strings.Contains(paths.SocketPath, "run/2.6-ssl30/ldapi") {
		t.Errorf("SocketPath incorrect: %s", paths.SocketPath)
	}
}

func TestResolveDeterministicAndDisjoint(t *testing.T) {
	a1, err := Resolve(Identity{Version: "2.6", Variant: "ssl30"}, "/root-a")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	a2, err := Resolve(Identity{Version: "2.6", Variant: "ssl30"}, "/root-a")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if a1 != a2 {
		t.Errorf("identical inputs produced different layouts:\n%+v\n%+v", a1, a2)
	}

	b, err := Resolve(Identity{Version: "2.6", Variant: "ssl11"}, "/root-a")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if a1.DataDir == b.DataDir || a1.EtcDir == b.EtcDir || a1.RunDir == b.RunDir {
		t.Errorf("distinct identities share directories: %+v vs %+v", a1, b)
	}
}

func TestResolveRejectsEmptyVersion(t *testing.T) {
	if _, err := Resolve(Identity{Variant: "ssl30"}, "/root"); err == nil {
		t.Error("Resolve with empty version should fail")
	}
}

func TestEncodeSocketPath(t *testing.T) {
	got := EncodeSocketPath("/srv/slaplab/run/2.6-ssl30/ldapi")
	want := "%2Fsrv%2Fslaplab%2Frun%2F2.6-ssl30%2Fldapi"
	if got != want {
		t.Errorf("EncodeSocketPath = %q; want %q", got, want)
	}
	if strings.Contains(got, "/") {
		t.Errorf("encoded path still contains a separator: %q", got)
	}
}
