package camera

import (
	"errors"
	"fmt"
	"strconv"
)

// Status fields in the order the daemon is queried.
const (
	FieldCameraName              = "camera_name"
	FieldLensName                = "lens_name"
	FieldShutterSpeed            = "current_shutter_speed"
	FieldAperture                = "current_aperture"
	FieldISO                     = "current_iso"
	FieldAutoBracketMode         = "auto_bracket_mode"
	FieldAutoBracketPictureCount = "auto_bracket_picture_count"
	FieldBufMask                 = "bufmask"
)

var StatusFields = []string{
	FieldCameraName,
	FieldLensName,
	FieldShutterSpeed,
	FieldAperture,
	FieldISO,
	FieldAutoBracketMode,
	FieldAutoBracketPictureCount,
	FieldBufMask,
}

var (
	ErrStatusUpdate   = errors.New("cannot update status")
	ErrMalformedReply = errors.New("malformed reply")
)

// StatusRecord is one session's view of the camera. It is rebuilt on every
// status session and never merged with an earlier one.
type StatusRecord struct {
	CameraName              string            `json:"camera_name"`
	LensName                string            `json:"lens_name"`
	ShutterSpeed            string            `json:"current_shutter_speed"`
	Aperture                string            `json:"current_aperture"`
	ISO                     string            `json:"current_iso"`
	AutoBracketMode         int               `json:"auto_bracket_mode"`
	AutoBracketPictureCount int               `json:"auto_bracket_picture_count"`
	BufMask                 int               `json:"bufmask"`
	Raw                     map[string]string `json:"-"`
}

// ShutterCount returns how many shutter commands one trigger needs.
func (s *StatusRecord) ShutterCount() int {
	return ShutterCount(s.AutoBracketMode, s.AutoBracketPictureCount)
}

// UpdateStatus asks the daemon to refresh its cached camera status.
func UpdateStatus(ch *LineChannel) error {
	reply, err := ch.Roundtrip(CmdUpdateStatus)
	if err != nil {
		return err
	}
	if !replyOK(reply) {
		return ErrStatusUpdate
	}
	return nil
}

// QueryStatus sends get_<field> for each field and keeps the reply from offset
// 2 on: a one digit code and one separator precede the value. Field replies
// are not checked for a success code.
func QueryStatus(ch *LineChannel, fields []string) (map[string]string, error) {
	values := make(map[string]string, len(fields))
	for _, field := range fields {
		reply, err := ch.Roundtrip("get_" + field)
		if err != nil {
			return nil, err
		}
		if len(reply) < 2 {
			return nil, fmt.Errorf("%w to get_%s: %q", ErrMalformedReply, field, reply)
		}
		values[field] = reply[2:]
	}
	return values, nil
}

// ReadStatus refreshes the daemon's status and reads every status field.
func ReadStatus(ch *LineChannel) (*StatusRecord, error) {
	if err := UpdateStatus(ch); err != nil {
		return nil, err
	}
	values, err := QueryStatus(ch, StatusFields)
	if err != nil {
		return nil, err
	}
	return newStatusRecord(values)
}

func newStatusRecord(values map[string]string) (*StatusRecord, error) {
	record := &StatusRecord{
		CameraName:   values[FieldCameraName],
		LensName:     values[FieldLensName],
		ShutterSpeed: values[FieldShutterSpeed],
		Aperture:     values[FieldAperture],
		ISO:          values[FieldISO],
		Raw:          values,
	}

	ints := []struct {
		field string
		dst   *int
	}{
		{FieldAutoBracketMode, &record.AutoBracketMode},
		{FieldAutoBracketPictureCount, &record.AutoBracketPictureCount},
		{FieldBufMask, &record.BufMask},
	}
	for _, f := range ints {
		v, err := strconv.Atoi(values[f.field])
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", f.field, err)
		}
		*f.dst = v
	}
	return record, nil
}
