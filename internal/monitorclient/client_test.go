package monitorclient

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestGetHealthDecodesResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(Health{Status: "healthy", ControllerConnected: true, ParametersCount: 3})
	}))
	defer srv.Close()

	c := New(srv.URL)
	h, err := c.GetHealth()
	if err != nil {
		t.Fatalf("GetHealth: %v", err)
	}
	if h.Status != "healthy" || h.ParametersCount != 3 {
		t.Fatalf("unexpected health: %+v", h)
	}
}

func TestWriteParameterReturnsNewValue(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/parameters/Setpoint" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"name": "Setpoint", "old_value": 5.0, "new_value": 7.5,
		})
	}))
	defer srv.Close()

	c := New(srv.URL)
	v, err := c.WriteParameter("Setpoint", 7.5)
	if err != nil {
		t.Fatalf("WriteParameter: %v", err)
	}
	if v.(float64) != 7.5 {
		t.Fatalf("expected 7.5, got %v", v)
	}
}

func TestRefreshParameterDecodesUpdatedValue(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/parameters/Room_Temp/refresh" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		if r.Method != http.MethodPost {
			t.Fatalf("expected POST, got %s", r.Method)
		}
		_ = json.NewEncoder(w).Encode(Parameter{Name: "Room_Temp", Unit: "C", Value: 21.5})
	}))
	defer srv.Close()

	c := New(srv.URL)
	p, err := c.RefreshParameter("Room_Temp")
	if err != nil {
		t.Fatalf("RefreshParameter: %v", err)
	}
	if p.Name != "Room_Temp" || p.Value.(float64) != 21.5 {
		t.Fatalf("unexpected refreshed parameter: %+v", p)
	}
}

func TestRefreshParameterPropagatesAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "parameter not found: Bogus"})
	}))
	defer srv.Close()

	c := New(srv.URL)
	_, err := c.RefreshParameter("Bogus")
	if err == nil {
		t.Fatal("expected error")
	}
	apiErr, ok := err.(*APIError)
	if !ok {
		t.Fatalf("expected *APIError, got %T", err)
	}
	if apiErr.Status != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", apiErr.Status)
	}
}

func TestWriteParameterPropagatesAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "value out of range"})
	}))
	defer srv.Close()

	c := New(srv.URL)
	_, err := c.WriteParameter("Setpoint", 999.0)
	if err == nil {
		t.Fatal("expected error")
	}
	apiErr, ok := err.(*APIError)
	if !ok {
		t.Fatalf("expected *APIError, got %T", err)
	}
	if apiErr.Status != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", apiErr.Status)
	}
}
