package venue

import (
	"testing"

	"github.com/arkin-run/arkin/internal/bus"
)

func TestNewGatewayDryRunSkipsSignerInit(t *testing.T) {
	b := bus.New(nil)
	g, err := NewGateway(Config{DryRun: true, RESTURL: "http://unused.invalid", WSURL: "ws://unused.invalid"}, b, nil)
	if err != nil {
		t.Fatalf("unexpected error constructing dry-run gateway: %v", err)
	}
	if g.Name() != "venue_gateway" {
		t.Fatalf("unexpected service name %q", g.Name())
	}
}

func TestNewGatewayRejectsInvalidPrivateKey(t *testing.T) {
	b := bus.New(nil)
	_, err := NewGateway(Config{DryRun: false, PrivateKey: "not-hex", ChainID: 1, RESTURL: "http://unused.invalid"}, b, nil)
	if err == nil {
		t.Fatal("expected error constructing live gateway with invalid private key")
	}
}
