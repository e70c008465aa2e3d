package models

import "time"

type EventType string

// Events delivered to subscribers. Names match what dashboards listen for.
const (
	EventSnapshot           EventType = "snapshot"
	EventDeviceRegistered   EventType = "device_registered"
	EventDeviceDisconnected EventType = "device_disconnected"
	EventGpsUpdate          EventType = "gps_update"
	EventImuUpdate          EventType = "imu_update"
	EventSharingChanged     EventType = "sharing_status_changed"
)

// Event is one broadcast to subscribers. Only the fields of its Type are set.
type Event struct {
	Type     EventType     `json:"type"`
	DeviceID string        `json:"deviceId,omitempty"`
	Username string        `json:"username,omitempty"`
	Device   *DeviceState  `json:"device,omitempty"`
	Devices  []DeviceState `json:"devices,omitempty"`
	Gps      *GpsSample    `json:"gps,omitempty"`
	Imu      *ImuSample    `json:"imu,omitempty"`
	Enabled  *bool         `json:"enabled,omitempty"`
	Time     time.Time     `json:"ts"`
}

func SnapshotEvent(devices []DeviceState, at time.Time) Event {
	return Event{Type: EventSnapshot, Devices: devices, Time: at}
}

func DeviceRegisteredEvent(d DeviceState, at time.Time) Event {
	return Event{Type: EventDeviceRegistered, DeviceID: d.DeviceID, Username: d.Username, Device: &d, Time: at}
}

func DeviceDisconnectedEvent(deviceID, username string, at time.Time) Event {
	return Event{Type: EventDeviceDisconnected, DeviceID: deviceID, Username: username, Time: at}
}

func GpsUpdateEvent(deviceID, username string, s GpsSample, at time.Time) Event {
	return Event{Type: EventGpsUpdate, DeviceID: deviceID, Username: username, Gps: &s, Time: at}
}

func ImuUpdateEvent(deviceID, username string, s ImuSample, at time.Time) Event {
	return Event{Type: EventImuUpdate, DeviceID: deviceID, Username: username, Imu: &s, Time: at}
}

func SharingChangedEvent(deviceID, username string, enabled bool, at time.Time) Event {
	return Event{Type: EventSharingChanged, DeviceID: deviceID, Username: username, Enabled: &enabled, Time: at}
}
