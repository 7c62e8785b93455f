package server

import "time"

// APIError is the canonical error envelope returned by JSON endpoints.
type APIError struct {
	Error string `json:"error"`
}

// HealthResponse is returned by GET /health. Status is "healthy" when
// connected with a non-empty parameter catalog, "degraded" when connected
// but the catalog is still empty (mid-discovery), "unhealthy" when
// disconnected. ParametersCount is the catalog's entry count.
// Grounded on main.py:health().
type HealthResponse struct {
	Status              string    `json:"status"`
	ControllerConnected bool      `json:"controller_connected"`
	ParametersCount     int       `json:"parameters_count"`
	LastUpdate          time.Time `json:"last_update,omitempty"`
}

// ParametersResponse is returned by GET /parameters: the full cache
// snapshot keyed by stored index (stringified for JSON), since name alone
// does not uniquely identify a parameter — the controller and panel address
// spaces may both define a parameter with the same name at different
// indices, and both must coexist in the response.
type ParametersResponse struct {
	Parameters map[string]ParameterDTO `json:"parameters"`
	Count      int                     `json:"count"`
}

// ParameterDTO is a frontend-friendly view of one cached parameter.
type ParameterDTO struct {
	StoredIndex int    `json:"stored_index"`
	Name        string `json:"name"`
	Unit        string `json:"unit,omitempty"`
	Value       any    `json:"value"`
	UpdatedAt   int64  `json:"updated_at"`
}

// WriteParamRequest is the POST /parameters/{name} request body.
type WriteParamRequest struct {
	Value any `json:"value"`
}

// WriteParamResponse confirms a successful write with the old and new
// value, per spec.md §6.
type WriteParamResponse struct {
	Name     string `json:"name"`
	OldValue any    `json:"old_value"`
	NewValue any    `json:"new_value"`
}

// AlarmDTO is a frontend-friendly view of one alarm.
type AlarmDTO struct {
	Code     int     `json:"code"`
	FromDate string  `json:"from_date"`
	ToDate   *string `json:"to_date,omitempty"`
}

// AlarmsResponse is returned by GET /alarms.
type AlarmsResponse struct {
	Alarms []AlarmDTO `json:"alarms"`
	Count  int        `json:"count"`
}
