package channel

import (
	"testing"

	"markad/internal/config"
	"markad/internal/media/frame"
	"markad/internal/testsupport"
)

func TestResolveFoldsNames(t *testing.T) {
	cfg := testsupport.NewConfig(t,
		testsupport.WithChannel("Das Erste HD", config.ChannelProfile{SnapWindowSeconds: 6, BroadcastAspect: "16:9"}),
		testsupport.WithChannel("kabel eins", config.ChannelProfile{ColorInsensitiveLogo: true, DisableLogo: true}),
	)
	tests := []struct {
		name      string
		channel   string
		known     bool
		snap      float64
		aspect    frame.Ratio
		logo      bool
		colorless bool
	}{
		{name: "case and spacing", channel: "  das  ERSTE hd ", known: true, snap: 6, aspect: frame.Ratio16x9, logo: true},
		{name: "logo disabled", channel: "Kabel Eins", known: true, snap: 12, aspect: frame.Ratio4x3, colorless: true},
		{name: "unknown", channel: "ZDF", snap: 12, aspect: frame.Ratio4x3, logo: true},
		{name: "empty", channel: "", snap: 12, aspect: frame.Ratio4x3, logo: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Resolve(cfg, tt.channel)
			if p.Known != tt.known {
				t.Fatalf("known = %v", p.Known)
			}
			if got := p.SnapWindowSeconds(cfg); got != tt.snap {
				t.Fatalf("snap window = %v", got)
			}
			if got := p.BroadcastAspect(cfg); !got.Equal(tt.aspect) {
				t.Fatalf("aspect = %s", got)
			}
			if got := p.LogoEnabled(cfg); got != tt.logo {
				t.Fatalf("logo enabled = %v", got)
			}
			if p.ColorInsensitiveLogo != tt.colorless {
				t.Fatalf("color insensitive = %v", p.ColorInsensitiveLogo)
			}
		})
	}
}

func TestKey(t *testing.T) {
	if Key("Straße  TV") != Key("STRASSE tv") {
		t.Fatalf("%q != %q", Key("Straße  TV"), Key("STRASSE tv"))
	}
}
