package messaging

// ConnectionChecker reports broker connectivity.
type ConnectionChecker interface {
	IsConnected() bool
}

// HealthStatus represents the health state of a messaging connection.
type HealthStatus struct {
	Connected bool   `json:"connected"`
	Error     string `json:"error,omitempty"`
}

// CheckHealth reports whether c is connected. A nil checker is unhealthy.
func CheckHealth(c ConnectionChecker) HealthStatus {
	if c == nil {
		return HealthStatus{Error: "client is nil"}
	}
	if !c.IsConnected() {
		return HealthStatus{Error: "not connected to message broker"}
	}
	return HealthStatus{Connected: true}
}
