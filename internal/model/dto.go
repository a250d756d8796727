package model

// ========== Device DTOs ==========

// RegisterDeviceRequest is bound without `binding:"required"` so the
// service can report which field is missing.
type RegisterDeviceRequest struct {
	Identifier string `json:"identifier"`
	Msisdn     string `json:"msisdn"`
	Type       string `json:"type"` // android, ios, ...
}

// ========== Call DTOs ==========

// Subscriber is the called party as described by the telephony platform.
type Subscriber struct {
	Msisdn string `json:"msisdn"`
}

// IncomingCallRequest is the registration-free incoming call webhook.
type IncomingCallRequest struct {
	Session    string     `json:"session"`
	Dnid       string     `json:"dnid"`
	CallerID   string     `json:"caller-id"`
	Endpoint   string     `json:"endpoint"`
	Domain     string     `json:"domain"`
	Subscriber Subscriber `json:"subscriber"`
}

// CallNotification is the data payload pushed to the device.
type CallNotification struct {
	Session    string `json:"session"`
	CallerID   string `json:"callerId"`
	RingingURL string `json:"ringingURL"`
}

// Data flattens the notification into the push provider's data map.
func (n CallNotification) Data() map[string]string {
	return map[string]string{
		"session":    n.Session,
		"callerId":   n.CallerID,
		"ringingURL": n.RingingURL,
	}
}

type DialRequest struct {
	Msisdn      string `json:"msisdn"`
	Destination string `json:"destination"`
}

type DialResponse struct {
	Session string `json:"session"`
}

// ========== Common ==========

type StatusResponse struct {
	Status  bool   `json:"status"`
	Message string `json:"message,omitempty"`
}
