package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/hashicorp/go-hclog"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		src     string
		want    Options
		wantErr bool
	}{
		{
			name: "empty keeps defaults",
			src:  "",
			want: Default(),
		},
		{
			name: "overrides",
			src: `
output_dir: out
use_fixed_buffers: true
byte_addressable: true
number_configurations: 4
log_level: debug
`,
			want: Options{
				OutputDir:            "out",
				EmitSource:           true,
				UseFixedBuffers:      true,
				ByteAddressable:      true,
				NumberConfigurations: 4,
				LogLevel:             "debug",
			},
		},
		{
			name:    "bad configuration count",
			src:     "number_configurations: 0",
			wantErr: true,
		},
		{
			name:    "bad level",
			src:     "log_level: loud",
			wantErr: true,
		},
		{
			name:    "emit without dir",
			src:     "output_dir: \"\"",
			wantErr: true,
		},
		{
			name:    "not yaml",
			src:     "output_dir: [",
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse([]byte(tt.src))
			if (err != nil) != tt.wantErr {
				t.Fatalf("Parse() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Parse() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestLoad(t *testing.T) {
	got, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(Default(), got); diff != "" {
		t.Errorf("Load(\"\") mismatch (-want +got):\n%s", diff)
	}

	path := filepath.Join(t.TempDir(), "versat.yaml")
	if err := os.WriteFile(path, []byte("emit_source: false\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	got, err = Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if got.EmitSource {
		t.Errorf("EmitSource = true, want false")
	}
	if got.Level() != hclog.Info {
		t.Errorf("Level() = %v, want %v", got.Level(), hclog.Info)
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Errorf("Load of a missing file succeeded")
	}
}
