// Package protocol defines the JSON bodies exchanged on POST /activate.
package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Status values carried in every activation response.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Fixed response messages.
const (
	MessageActivated     = "Activation Validated"
	MessageNoKey         = "No key provided"
	MessageInternalError = "Internal Server Error"
)

// ActivateRequest is the activation body. It binds from JSON or from a
// form-encoded body.
type ActivateRequest struct {
	Key Key `json:"key" form:"key"`
}

// Key is a hardware key as sent by a device. In JSON it may be any scalar:
// numbers and true keep their literal text, while false, null and zero
// decode to the empty key.
type Key string

// UnmarshalJSON accepts strings, numbers and booleans. Objects and arrays
// are rejected.
func (k *Key) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return fmt.Errorf("protocol: empty key")
	}

	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*k = Key(s)
	case 't':
		*k = "true"
	case 'f', 'n':
		*k = ""
	case '{', '[':
		return fmt.Errorf("protocol: key must be a scalar, got %s", data)
	default:
		f, err := strconv.ParseFloat(string(data), 64)
		if err != nil {
			return fmt.Errorf("protocol: invalid key %s: %w", data, err)
		}
		if f == 0 {
			*k = ""
		} else {
			*k = Key(data)
		}
	}
	return nil
}

// ActivateResponse is the activation reply. TotalUsers is only present on
// success.
type ActivateResponse struct {
	Status     string `json:"status"`
	Message    string `json:"message"`
	TotalUsers *int64 `json:"total_users,omitempty"`
}

// Success builds the reply for a validated activation.
func Success(total int64) ActivateResponse {
	return ActivateResponse{Status: StatusSuccess, Message: MessageActivated, TotalUsers: &total}
}

// Failure builds an error reply with msg.
func Failure(msg string) ActivateResponse {
	return ActivateResponse{Status: StatusError, Message: msg}
}

// OK reports whether the reply signals success.
func (r ActivateResponse) OK() bool { return r.Status == StatusSuccess }
