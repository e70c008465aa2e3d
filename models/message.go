package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

type MessageType string

// Ingest message types, as forwarded by the relay or posted by a gateway.
const (
	MsgConnect    MessageType = "USER_CONNECTED"
	MsgDisconnect MessageType = "USER_DISCONNECT"
	MsgGPS        MessageType = "GPS"
	MsgIMU        MessageType = "IMU"
	MsgSharing    MessageType = "ENABLE_SHARING"
)

// DefaultUsername labels devices that announce themselves without one.
const DefaultUsername = "Unknown"

var (
	ErrMissingDeviceID = errors.New("missing deviceId")
	ErrMissingField    = errors.New("missing field")
	ErrUnknownType     = errors.New("unknown message type")
)

// Message is the wire form of every ingest message. Which fields are
// meaningful depends on Type; optional numbers are pointers so absence can
// be told apart from zero.
type Message struct {
	Type     MessageType `json:"type"`
	DeviceID string      `json:"deviceId"`
	Username string      `json:"username,omitempty"`

	Lat      *float64 `json:"lat,omitempty"`
	Lon      *float64 `json:"lon,omitempty"`
	Alt      *float64 `json:"alt,omitempty"`
	Speed    *float64 `json:"speed,omitempty"`
	Accuracy *float64 `json:"accuracy,omitempty"`

	Accel *Vector3 `json:"accel,omitempty"`
	Gyro  *Vector3 `json:"gyro,omitempty"`
	Mag   *Vector3 `json:"mag,omitempty"`
	Alpha *float64 `json:"alpha,omitempty"`
	Beta  *float64 `json:"beta,omitempty"`
	Gamma *float64 `json:"gamma,omitempty"`

	Enabled   *bool  `json:"enabled,omitempty"`
	Timestamp *int64 `json:"timestamp,omitempty"`
}

// ParseMessage decodes a JSON ingest message. It does not validate it.
func ParseMessage(data []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return Message{}, fmt.Errorf("decode message: %w", err)
	}
	return msg, nil
}

// Known reports whether t is one of the ingest message types.
func (t MessageType) Known() bool {
	switch t {
	case MsgConnect, MsgDisconnect, MsgGPS, MsgIMU, MsgSharing:
		return true
	}
	return false
}

// Validate checks the fields every message type requires.
func (m Message) Validate() error {
	if !m.Type.Known() {
		return fmt.Errorf("%w: %q", ErrUnknownType, m.Type)
	}
	if m.DeviceID == "" {
		return ErrMissingDeviceID
	}
	switch m.Type {
	case MsgGPS:
		_, err := m.GpsSample(time.Time{})
		return err
	case MsgIMU:
		_, err := m.ImuSample(time.Time{})
		return err
	case MsgSharing:
		if m.Enabled == nil {
			return fmt.Errorf("%w: enabled", ErrMissingField)
		}
	}
	return nil
}

// GpsSample builds the sample carried by a GPS message. A missing timestamp
// defaults to arrival.
func (m Message) GpsSample(arrival time.Time) (GpsSample, error) {
	if m.Lat == nil || m.Lon == nil {
		return GpsSample{}, fmt.Errorf("%w: lat/lon", ErrMissingField)
	}
	s := GpsSample{
		Lat:       *m.Lat,
		Lon:       *m.Lon,
		Alt:       valueOr(m.Alt),
		Speed:     valueOr(m.Speed),
		Accuracy:  valueOr(m.Accuracy),
		Timestamp: m.timestampOr(arrival),
	}
	if err := s.Validate(); err != nil {
		return GpsSample{}, err
	}
	return s, nil
}

// ImuSample builds the sample carried by an IMU message.
func (m Message) ImuSample(arrival time.Time) (ImuSample, error) {
	if m.Accel == nil || m.Gyro == nil || m.Mag == nil {
		return ImuSample{}, fmt.Errorf("%w: accel/gyro/mag", ErrMissingField)
	}
	s := ImuSample{
		Accel:     *m.Accel,
		Gyro:      *m.Gyro,
		Mag:       *m.Mag,
		Alpha:     cloneFloat(m.Alpha),
		Beta:      cloneFloat(m.Beta),
		Gamma:     cloneFloat(m.Gamma),
		Timestamp: m.timestampOr(arrival),
	}
	if err := s.Validate(); err != nil {
		return ImuSample{}, err
	}
	return s, nil
}

func (m Message) timestampOr(arrival time.Time) int64 {
	if m.Timestamp != nil {
		return *m.Timestamp
	}
	return arrival.UnixMilli()
}

func valueOr(f *float64) float64 {
	if f == nil {
		return 0
	}
	return *f
}
