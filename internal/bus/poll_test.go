package bus

import (
	"context"
	"encoding/binary"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/econext/gm3-gateway/internal/model"
	"github.com/econext/gm3-gateway/internal/protocol"
)

func grantTokenInBackground(ft *fakeTransport) {
	go func() {
		payload := make([]byte, 2)
		binary.LittleEndian.PutUint16(payload, protocol.GetTokenFunc)
		ft.frames <- protocol.Frame{
			Destination: protocol.SourceAddress,
			Source:      protocol.PanelAddress,
			Command:     protocol.ServiceCmd,
			Payload:     payload,
		}
	}()
}

// getParamsReply builds a GET_PARAMS_RESPONSE payload for a single float
// value, matching ParseGetParamsResponse's expected layout.
func getParamsReply(firstIndex uint16, value float32) []byte {
	buf := make([]byte, 4)
	buf[0] = 0x01
	binary.LittleEndian.PutUint16(buf[1:3], firstIndex)
	buf[3] = 0x00 // leading separator
	v := make([]byte, 4)
	binary.LittleEndian.PutUint32(v, math.Float32bits(value))
	buf = append(buf, v...)
	buf = append(buf, 0x00) // trailing separator
	return buf
}

func TestPollAllParamsSingleBatch(t *testing.T) {
	ft := newFakeTransport()
	h, c, cat := testHandler(t, ft)

	entry, err := model.NewCatalogEntry(model.CatalogEntry{
		StoredIndex: 0, WireIndex: 0, Space: model.Controller, Name: "Room_Temp", Type: protocol.Float,
	})
	if err != nil {
		t.Fatalf("catalog entry: %v", err)
	}
	cat.ReplaceAll([]model.CatalogEntry{entry})

	ft.respond = func(sent protocol.Frame, push func(protocol.Frame)) {
		if sent.Command != protocol.GetParams {
			return
		}
		push(protocol.Frame{
			Destination: protocol.SourceAddress,
			Source:      protocol.DefaultControllerAddress,
			Command:     protocol.GetParamsResponse,
			Payload:     getParamsReply(0, 21.5),
		})
	}
	grantTokenInBackground(ft)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	n, err := h.PollAllParams(ctx)
	if err != nil {
		t.Fatalf("PollAllParams: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 param read, got %d", n)
	}
	p, ok := c.Get(0)
	if !ok {
		t.Fatal("expected parameter 0 to be cached")
	}
	if p.Name != "Room_Temp" {
		t.Fatalf("unexpected cached name: %s", p.Name)
	}
}

func TestRefreshParamUnknownNameIsValidationError(t *testing.T) {
	ft := newFakeTransport()
	h, _, _ := testHandler(t, ft)

	_, err := h.RefreshParam(context.Background(), "Nonexistent")
	if err == nil {
		t.Fatal("expected an error for an unknown parameter")
	}
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected a *ValidationError, got %T: %v", err, err)
	}
}

func TestRefreshParamControllerSpace(t *testing.T) {
	ft := newFakeTransport()
	h, c, cat := testHandler(t, ft)

	entry, _ := model.NewCatalogEntry(model.CatalogEntry{
		StoredIndex: 0, WireIndex: 0, Space: model.Controller, Name: "Room_Temp", Type: protocol.Float,
	})
	cat.ReplaceAll([]model.CatalogEntry{entry})

	var destinations []uint16
	ft.respond = func(sent protocol.Frame, push func(protocol.Frame)) {
		if sent.Command != protocol.GetParams {
			return
		}
		destinations = append(destinations, sent.Destination)
		push(protocol.Frame{
			Destination: protocol.SourceAddress,
			Source:      protocol.DefaultControllerAddress,
			Command:     protocol.GetParamsResponse,
			Payload:     getParamsReply(0, 22.5),
		})
	}
	grantTokenInBackground(ft)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	p, err := h.RefreshParam(ctx, "Room_Temp")
	if err != nil {
		t.Fatalf("RefreshParam: %v", err)
	}
	if p.Name != "Room_Temp" || p.Value.(float64) != 22.5 {
		t.Fatalf("unexpected refreshed parameter: %+v", p)
	}
	if len(destinations) != 1 || destinations[0] == protocol.PanelAddress {
		t.Fatalf("expected a single controller-addressed request, got %v", destinations)
	}
	if cached, ok := c.Get(0); !ok || cached.Value.(float64) != 22.5 {
		t.Fatalf("expected cache updated with refreshed value, got %+v ok=%v", cached, ok)
	}
}

func TestRefreshParamPanelSpace(t *testing.T) {
	ft := newFakeTransport()
	h, c, cat := testHandler(t, ft)

	entry, _ := model.NewCatalogEntry(model.CatalogEntry{
		StoredIndex: model.PanelStoreOffset, WireIndex: 0, Space: model.Panel, Name: "Panel_Brightness", Type: protocol.Float,
	})
	cat.ReplaceAll([]model.CatalogEntry{entry})

	var destinations []uint16
	ft.respond = func(sent protocol.Frame, push func(protocol.Frame)) {
		if sent.Command != protocol.GetParams {
			return
		}
		destinations = append(destinations, sent.Destination)
		push(protocol.Frame{
			Destination: protocol.SourceAddress,
			Source:      protocol.PanelAddress,
			Command:     protocol.GetParamsResponse,
			Payload:     getParamsReply(0, 5.0),
		})
	}
	grantTokenInBackground(ft)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	p, err := h.RefreshParam(ctx, "Panel_Brightness")
	if err != nil {
		t.Fatalf("RefreshParam: %v", err)
	}
	if p.Name != "Panel_Brightness" {
		t.Fatalf("unexpected refreshed parameter: %+v", p)
	}
	if len(destinations) != 1 || destinations[0] != protocol.PanelAddress {
		t.Fatalf("expected the request addressed to the panel, got %v", destinations)
	}
	if _, ok := c.Get(model.PanelStoreOffset); !ok {
		t.Fatal("expected panel parameter cached at its panel-offset index")
	}
}

func TestRefreshParamNoResponse(t *testing.T) {
	ft := newFakeTransport()
	h, _, cat := testHandler(t, ft)

	entry, _ := model.NewCatalogEntry(model.CatalogEntry{
		StoredIndex: 0, WireIndex: 0, Space: model.Controller, Name: "Room_Temp", Type: protocol.Float,
	})
	cat.ReplaceAll([]model.CatalogEntry{entry})

	grantTokenInBackground(ft)

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	_, err := h.RefreshParam(ctx, "Room_Temp")
	if err == nil {
		t.Fatal("expected an error when the controller never responds")
	}
}

func TestPollAllParamsEmptyCatalogIsNoop(t *testing.T) {
	ft := newFakeTransport()
	h, _, _ := testHandler(t, ft)

	n, err := h.PollAllParams(context.Background())
	if err != nil {
		t.Fatalf("PollAllParams: %v", err)
	}
	if n != 0 {
		t.Fatalf("expected 0 reads against empty catalog, got %d", n)
	}
	if len(ft.sent) != 0 {
		t.Fatalf("expected no frames sent against empty catalog, got %d", len(ft.sent))
	}
}

func TestPollAllParamsSplitsAcrossAddressSpaceBoundary(t *testing.T) {
	ft := newFakeTransport()
	h, c, cat := testHandler(t, ft)

	controllerEntry, _ := model.NewCatalogEntry(model.CatalogEntry{
		StoredIndex: 0, WireIndex: 0, Space: model.Controller, Name: "Ctrl", Type: protocol.Float,
	})
	panelEntry, _ := model.NewCatalogEntry(model.CatalogEntry{
		StoredIndex: model.PanelStoreOffset, WireIndex: 0, Space: model.Panel, Name: "Panel", Type: protocol.Float,
	})
	cat.ReplaceAll([]model.CatalogEntry{controllerEntry, panelEntry})

	var destinations []uint16
	ft.respond = func(sent protocol.Frame, push func(protocol.Frame)) {
		if sent.Command != protocol.GetParams {
			return
		}
		destinations = append(destinations, sent.Destination)
		src := protocol.DefaultControllerAddress
		if sent.Destination == protocol.PanelAddress {
			src = protocol.PanelAddress
		}
		push(protocol.Frame{
			Destination: protocol.SourceAddress,
			Source:      src,
			Command:     protocol.GetParamsResponse,
			Payload:     getParamsReply(0, 1.0),
		})
	}
	grantTokenInBackground(ft)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	n, err := h.PollAllParams(ctx)
	if err != nil {
		t.Fatalf("PollAllParams: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 params read across both batches, got %d", n)
	}
	if len(destinations) != 2 {
		t.Fatalf("expected two separate GET_PARAMS requests (one per address space), got %d", len(destinations))
	}
	if _, ok := c.Get(0); !ok {
		t.Fatal("expected controller param cached")
	}
	if _, ok := c.Get(model.PanelStoreOffset); !ok {
		t.Fatal("expected panel param cached")
	}
}
