package model

import "testing"

func TestParseProtocol(t *testing.T) {
	cases := map[string]struct {
		want Protocol
		ok   bool
	}{
		"http":     {ProtocolHTTP, true},
		"HTTP":     {ProtocolHTTP, true},
		"Socks4":   {ProtocolSOCKS4, true},
		" socks5 ": {ProtocolSOCKS5, true},
		"ftp":      {0, false},
		"":         {0, false},
		"socks":    {0, false},
	}
	for in, tc := range cases {
		got, ok := ParseProtocol(in)
		if ok != tc.ok || got != tc.want {
			t.Errorf("ParseProtocol(%q) = (%v, %v), want (%v, %v)", in, got, ok, tc.want, tc.ok)
		}
	}
}

func TestAddressString(t *testing.T) {
	a := Address{Host: "1.2.3.4", Port: 8080}
	if a.String() != "1.2.3.4:8080" {
		t.Errorf("Expected '1.2.3.4:8080', got '%s'", a.String())
	}
}
