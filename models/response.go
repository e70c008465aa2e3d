package models

type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Message string      `json:"message,omitempty"`
}

func SuccessResponse(data interface{}) APIResponse {
	return APIResponse{
		Success: true,
		Data:    data,
	}
}

func ErrorResponse(err string) APIResponse {
	return APIResponse{
		Success: false,
		Error:   err,
	}
}

func MessageResponse(message string) APIResponse {
	return APIResponse{
		Success: true,
		Message: message,
	}
}

// DeviceList is the payload of the device listing endpoint.
type DeviceList struct {
	Devices []DeviceState `json:"devices"`
	Total   int           `json:"total"`
}

// DeviceHistory is the payload of the history endpoint.
type DeviceHistory struct {
	DeviceID string         `json:"deviceId"`
	History  []HistoryEntry `json:"history"`
}
