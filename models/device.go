package models

import "time"

type DeviceStatus string

const (
	StatusOnline  DeviceStatus = "online"
	StatusOffline DeviceStatus = "offline"
)

// DeviceState is the presence record of one device.
type DeviceState struct {
	DeviceID       string       `json:"deviceId"`
	Username       string       `json:"username"`
	Status         DeviceStatus `json:"status"`
	ConnectedAt    time.Time    `json:"connectedAt"`
	LastSeen       time.Time    `json:"lastSeen"`
	Gps            *GpsSample   `json:"gps"`
	Imu            *ImuSample   `json:"imu"`
	SharingEnabled bool         `json:"dataSharingEnabled"`
}

// Clone returns a copy that shares no memory with d.
func (d *DeviceState) Clone() DeviceState {
	c := *d
	if d.Gps != nil {
		gps := *d.Gps
		c.Gps = &gps
	}
	if d.Imu != nil {
		imu := *d.Imu
		imu.Alpha = cloneFloat(d.Imu.Alpha)
		imu.Beta = cloneFloat(d.Imu.Beta)
		imu.Gamma = cloneFloat(d.Imu.Gamma)
		c.Imu = &imu
	}
	return c
}

func cloneFloat(f *float64) *float64 {
	if f == nil {
		return nil
	}
	v := *f
	return &v
}
