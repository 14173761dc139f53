package netio

import "testing"

func TestSplitEndpointURI(t *testing.T) {
	cases := []struct {
		uri      string
		wantHost string
		wantPort int
	}{
		{"rtp://localhost:5000", "localhost", 5000},
		{"127.0.0.1:5000", "127.0.0.1", 5000},
		{"rtcp://example.com:7000", "example.com", 7000},
	}

	for _, c := range cases {
		host, port, err := splitEndpointURI(c.uri)
		if err != nil {
			t.Fatalf("splitEndpointURI(%q): %+v", c.uri, err)
		}
		if host != c.wantHost || port != c.wantPort {
			t.Fatalf("splitEndpointURI(%q) = (%q, %d), want (%q, %d)", c.uri, host, port, c.wantHost, c.wantPort)
		}
	}
}

func TestSplitEndpointURIMalformed(t *testing.T) {
	if _, _, err := splitEndpointURI("not-a-valid-endpoint"); err == nil {
		t.Fatalf("splitEndpointURI on a malformed endpoint succeeded")
	}
}
