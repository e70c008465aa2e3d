package relay

import (
	"artemis/models"
	"errors"
	"testing"
)

func TestTranslate(t *testing.T) {
	tests := []struct {
		name     string
		in       string
		wantType models.MessageType
		forward  bool
		wantErr  bool
	}{
		{"register becomes connect", `{"type":"REGISTER","deviceId":"A","username":"alice"}`, models.MsgConnect, true, false},
		{"connect passes", `{"type":"USER_CONNECTED","deviceId":"A","username":"alice"}`, models.MsgConnect, true, false},
		{"disconnect passes", `{"type":"USER_DISCONNECT","deviceId":"A"}`, models.MsgDisconnect, true, false},
		{"gps passes", `{"type":"GPS","deviceId":"A","lat":1,"lon":2}`, models.MsgGPS, true, false},
		{"imu passes", `{"type":"IMU","deviceId":"A","accel":{"x":0,"y":0,"z":9.8}}`, models.MsgIMU, true, false},
		{"sharing passes", `{"type":"ENABLE_SHARING","deviceId":"A","enabled":true}`, models.MsgSharing, true, false},
		{"registered ack ignored", `{"type":"REGISTERED","deviceId":"A"}`, "", false, false},
		{"unknown ignored", `{"type":"BATTERY","deviceId":"A"}`, "", false, false},
		{"not json", `{oops`, "", false, true},
		{"no device id", `{"type":"GPS","lat":1,"lon":2}`, "", false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, forward, err := Translate([]byte(tt.in))
			if tt.wantErr {
				if !errors.Is(err, ErrMalformed) {
					t.Fatalf("expected ErrMalformed, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if forward != tt.forward {
				t.Fatalf("forward = %v, want %v", forward, tt.forward)
			}
			if !forward {
				return
			}
			msg, err := models.ParseMessage(out)
			if err != nil {
				t.Fatalf("output does not parse: %v", err)
			}
			if msg.Type != tt.wantType || msg.DeviceID != "A" {
				t.Fatalf("unexpected output %s", out)
			}
		})
	}
}

func TestTranslateKeepsPayload(t *testing.T) {
	out, _, err := Translate([]byte(`{"type":"GPS","deviceId":"A","username":"alice","lat":27.7,"lon":85.3,"speed":1.5,"timestamp":1700000000000}`))
	if err != nil {
		t.Fatal(err)
	}
	msg, _ := models.ParseMessage(out)
	if msg.Username != "alice" || *msg.Lat != 27.7 || *msg.Lon != 85.3 || *msg.Speed != 1.5 || *msg.Timestamp != 1700000000000 {
		t.Fatalf("payload not preserved: %s", out)
	}
}
