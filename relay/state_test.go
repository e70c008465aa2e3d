package relay

import "testing"

func TestConnStateString(t *testing.T) {
	cases := map[ConnState]string{
		StateDisconnected: "DISCONNECTED",
		StateConnecting:   "CONNECTING",
		StateConnected:    "CONNECTED",
		ConnState(42):     "UNKNOWN",
		ConnState(-1):     "UNKNOWN",
	}
	for state, want := range cases {
		if got := state.String(); got != want {
			t.Errorf("ConnState(%d) = %q, want %q", int(state), got, want)
		}
	}
}
