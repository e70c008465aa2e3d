package relay

import (
	"artemis/models"
	"encoding/json"
	"errors"
	"fmt"
)

var ErrMalformed = errors.New("malformed device message")

// deviceTypes maps the device-side message dialect onto ingest types.
// REGISTERED acknowledgements and anything unlisted are not forwarded.
var deviceTypes = map[models.MessageType]models.MessageType{
	"REGISTER":           models.MsgConnect,
	models.MsgConnect:    models.MsgConnect,
	models.MsgDisconnect: models.MsgDisconnect,
	models.MsgGPS:        models.MsgGPS,
	models.MsgIMU:        models.MsgIMU,
	models.MsgSharing:    models.MsgSharing,
}

// Translate converts one device-side frame into an ingest message. It
// returns forward=false for frames that are well-formed but not telemetry.
func Translate(raw []byte) (out []byte, forward bool, err error) {
	msg, err := models.ParseMessage(raw)
	if err != nil {
		return nil, false, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	ingestType, ok := deviceTypes[msg.Type]
	if !ok {
		return nil, false, nil
	}
	msg.Type = ingestType
	if msg.DeviceID == "" {
		return nil, false, fmt.Errorf("%w: %s without deviceId", ErrMalformed, ingestType)
	}

	out, err = json.Marshal(msg)
	if err != nil {
		return nil, false, fmt.Errorf("encode %s: %w", ingestType, err)
	}
	return out, true, nil
}
