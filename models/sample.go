package models

import (
	"fmt"
	"math"
	"time"
)

type SampleType string

const (
	SampleGPS SampleType = "GPS"
	SampleIMU SampleType = "IMU"
)

// Vector3 is a three-axis sensor reading.
type Vector3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

func (v Vector3) finite() bool {
	return isFinite(v.X) && isFinite(v.Y) && isFinite(v.Z)
}

// GpsSample is a position fix. Timestamp is unix milliseconds.
type GpsSample struct {
	Lat       float64 `json:"lat"`
	Lon       float64 `json:"lon"`
	Alt       float64 `json:"alt"`
	Speed     float64 `json:"speed"`    // km/h
	Accuracy  float64 `json:"accuracy"` // meters
	Timestamp int64   `json:"timestamp"`
}

// Validate rejects non-finite values and coordinates outside WGS84 bounds.
func (s GpsSample) Validate() error {
	for name, v := range map[string]float64{
		"lat": s.Lat, "lon": s.Lon, "alt": s.Alt, "speed": s.Speed, "accuracy": s.Accuracy,
	} {
		if !isFinite(v) {
			return fmt.Errorf("%s is not finite", name)
		}
	}
	if s.Lat < -90 || s.Lat > 90 {
		return fmt.Errorf("lat %v out of range", s.Lat)
	}
	if s.Lon < -180 || s.Lon > 180 {
		return fmt.Errorf("lon %v out of range", s.Lon)
	}
	if s.Speed < 0 {
		return fmt.Errorf("negative speed %v", s.Speed)
	}
	if s.Accuracy < 0 {
		return fmt.Errorf("negative accuracy %v", s.Accuracy)
	}
	return nil
}

// ImuSample is one inertial reading. Orientation angles are optional.
type ImuSample struct {
	Accel     Vector3  `json:"accel"`
	Gyro      Vector3  `json:"gyro"`
	Mag       Vector3  `json:"mag"`
	Alpha     *float64 `json:"alpha,omitempty"`
	Beta      *float64 `json:"beta,omitempty"`
	Gamma     *float64 `json:"gamma,omitempty"`
	Timestamp int64    `json:"timestamp"`
}

func (s ImuSample) Validate() error {
	if !s.Accel.finite() {
		return fmt.Errorf("accel is not finite")
	}
	if !s.Gyro.finite() {
		return fmt.Errorf("gyro is not finite")
	}
	if !s.Mag.finite() {
		return fmt.Errorf("mag is not finite")
	}
	for name, v := range map[string]*float64{"alpha": s.Alpha, "beta": s.Beta, "gamma": s.Gamma} {
		if v != nil && !isFinite(*v) {
			return fmt.Errorf("%s is not finite", name)
		}
	}
	return nil
}

// HistoryEntry is one recorded sample. Exactly one of Gps and Imu is set.
type HistoryEntry struct {
	Type       SampleType `json:"type"`
	Gps        *GpsSample `json:"gps,omitempty"`
	Imu        *ImuSample `json:"imu,omitempty"`
	RecordedAt time.Time  `json:"recordedAt"`
}

func NewGpsEntry(s GpsSample, at time.Time) HistoryEntry {
	return HistoryEntry{Type: SampleGPS, Gps: &s, RecordedAt: at}
}

func NewImuEntry(s ImuSample, at time.Time) HistoryEntry {
	return HistoryEntry{Type: SampleIMU, Imu: &s, RecordedAt: at}
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
