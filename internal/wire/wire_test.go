package wire

import "testing"

func TestDescriptorAddr(t *testing.T) {
	d := Descriptor{IP: "10.0.0.5", Port: "9090"}
	if got := d.Addr(); got != "10.0.0.5:9090" {
		t.Errorf("Addr() = %q, want %q", got, "10.0.0.5:9090")
	}
}
