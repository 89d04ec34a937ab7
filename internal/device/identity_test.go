package device

import (
	"errors"
	"net"
	"strings"
	"testing"
)

func TestNewIdentity(t *testing.T) {
	mac := net.HardwareAddr{0xaa, 0xbb, 0xcc, 0x0d, 0xee, 0xff}

	tests := []struct {
		name    string
		label   string
		mac     net.HardwareAddr
		wantID  string
		wantErr error
	}{
		{name: "default label", label: "myDevice_", mac: mac, wantID: "myDevice_AA:BB:CC:0D:EE:FF"},
		{name: "custom label", label: "rack7-", mac: mac, wantID: "rack7-AA:BB:CC:0D:EE:FF"},
		{name: "empty label", label: "", mac: mac, wantErr: ErrInvalidLabel},
		{name: "wildcard label", label: "dev+", mac: mac, wantErr: ErrInvalidLabel},
		{name: "overlong label", label: strings.Repeat("x", 200), mac: mac, wantErr: ErrInvalidLabel},
		{name: "no mac", label: "myDevice_", mac: nil, wantErr: ErrNoHardwareAddress},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := NewIdentity(tt.label, tt.mac)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("NewIdentity() error = %v, want %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			if id.ID() != tt.wantID {
				t.Errorf("ID() = %q, want %q", id.ID(), tt.wantID)
			}
			if id.String() != tt.wantID {
				t.Errorf("String() = %q, want %q", id.String(), tt.wantID)
			}
			if id.Label() != tt.label {
				t.Errorf("Label() = %q, want %q", id.Label(), tt.label)
			}
		})
	}
}

func TestIdentity_CopiesHardwareAddr(t *testing.T) {
	mac := net.HardwareAddr{1, 2, 3, 4, 5, 6}
	id, err := NewIdentity("d_", mac)
	if err != nil {
		t.Fatalf("NewIdentity() error = %v", err)
	}

	mac[0] = 0xff
	if id.MAC() != "01:02:03:04:05:06" {
		t.Errorf("MAC() = %q after caller mutation, want 01:02:03:04:05:06", id.MAC())
	}
}
