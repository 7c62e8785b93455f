package bus

import (
	"context"
	"encoding/binary"
	"testing"

	"github.com/econext/gm3-gateway/internal/model"
	"github.com/econext/gm3-gateway/internal/protocol"
)

// withRangeReply builds a minimal GET_PARAMS_STRUCT_WITH_RANGE response
// payload for a single entry, with both range bounds absent.
func withRangeReply(firstIndex uint16, name string, typ protocol.DataType, writable bool) []byte {
	buf := make([]byte, 3)
	buf[0] = 0x01 // params_no
	binary.LittleEndian.PutUint16(buf[1:3], firstIndex)

	buf = append(buf, []byte(name)...)
	buf = append(buf, 0x00)
	buf = append(buf, []byte("C")...)
	buf = append(buf, 0x00)

	typeByte := byte(typ)
	if writable {
		typeByte |= 0x20
	}
	extraByte := byte(0x40 | 0x80) // both min and max absent
	buf = append(buf, typeByte, extraByte)
	buf = append(buf, 0x00, 0x00, 0x00, 0x00) // unused range words

	return buf
}

// noRangeReply builds a minimal GET_PARAMS_STRUCT response payload for a
// single entry (panel address space, no range data ever present).
func noRangeReply(firstIndex uint16, name string, typ protocol.DataType, writable bool) []byte {
	buf := make([]byte, 3)
	buf[0] = 0x01
	binary.LittleEndian.PutUint16(buf[1:3], firstIndex)

	buf = append(buf, []byte(name)...)
	buf = append(buf, 0x00)
	buf = append(buf, []byte("C")...)
	buf = append(buf, 0x00)

	typeByte := byte(typ)
	if writable {
		typeByte |= 0x20
	}
	buf = append(buf, 0x00, typeByte) // exponent byte, type byte
	return buf
}

func TestDiscoverParamsSingleBatchThenNoData(t *testing.T) {
	ft := newFakeTransport()
	h, _, cat := testHandler(t, ft)

	regulatorDone := false
	ft.respond = func(sent protocol.Frame, push func(protocol.Frame)) {
		switch sent.Command {
		case protocol.GetParamsStructWithRange:
			if !regulatorDone {
				regulatorDone = true
				push(protocol.Frame{
					Destination: protocol.SourceAddress,
					Source:      protocol.DefaultControllerAddress,
					Command:     protocol.GetParamsStructWithRangeResponse,
					Payload:     withRangeReply(0, "Room_Temp", protocol.Float, false),
				})
				return
			}
			push(protocol.Frame{
				Destination: protocol.SourceAddress,
				Source:      protocol.DefaultControllerAddress,
				Command:     protocol.NoData,
			})
		case protocol.GetParamsStruct:
			push(protocol.Frame{
				Destination: protocol.SourceAddress,
				Source:      protocol.PanelAddress,
				Command:     protocol.NoData,
			})
		}
	}

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

	count, err := h.DiscoverParams(context.Background())
	if err != nil {
		t.Fatalf("DiscoverParams: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 catalog entry, got %d", count)
	}
	entry, ok := cat.GetByName("Room_Temp")
	if !ok {
		t.Fatal("expected Room_Temp in catalog")
	}
	if entry.Space != model.Controller {
		t.Fatalf("expected controller space, got %v", entry.Space)
	}
}

func TestDiscoverParamsEmptyKeepsExistingCatalog(t *testing.T) {
	ft := newFakeTransport()
	h, _, cat := testHandler(t, ft)

	seed, err := model.NewCatalogEntry(model.CatalogEntry{
		StoredIndex: 5, WireIndex: 5, Space: model.Controller, Name: "Seed", Type: protocol.Float,
	})
	if err != nil {
		t.Fatalf("seed entry: %v", err)
	}
	cat.ReplaceAll([]model.CatalogEntry{seed})

	ft.respond = func(sent protocol.Frame, push func(protocol.Frame)) {
		push(protocol.Frame{Destination: protocol.SourceAddress, Source: protocol.DefaultControllerAddress, Command: protocol.NoData})
	}

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

	count, err := h.DiscoverParams(context.Background())
	if err != nil {
		t.Fatalf("DiscoverParams: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected existing catalog of size 1 to survive, got %d", count)
	}
}

// TestDiscoverParamsPanelEmptyKeepsExistingPanelEntries checks that a pass
// which finds fresh controller entries but nothing new on the panel side
// replaces only the controller space, leaving a previously-discovered panel
// entry in place rather than wiping the whole catalog.
func TestDiscoverParamsPanelEmptyKeepsExistingPanelEntries(t *testing.T) {
	ft := newFakeTransport()
	h, _, cat := testHandler(t, ft)

	existingPanel, err := model.NewCatalogEntry(model.CatalogEntry{
		StoredIndex: model.PanelStoreOffset, WireIndex: 0, Space: model.Panel, Name: "Panel_Brightness", Type: protocol.Float,
	})
	if err != nil {
		t.Fatalf("seed entry: %v", err)
	}
	cat.ReplaceSpace(model.Panel, []model.CatalogEntry{existingPanel})

	regulatorDone := false
	ft.respond = func(sent protocol.Frame, push func(protocol.Frame)) {
		switch sent.Command {
		case protocol.GetParamsStructWithRange:
			if !regulatorDone {
				regulatorDone = true
				push(protocol.Frame{
					Destination: protocol.SourceAddress,
					Source:      protocol.DefaultControllerAddress,
					Command:     protocol.GetParamsStructWithRangeResponse,
					Payload:     withRangeReply(0, "Room_Temp", protocol.Float, false),
				})
				return
			}
			push(protocol.Frame{Destination: protocol.SourceAddress, Source: protocol.DefaultControllerAddress, Command: protocol.NoData})
		case protocol.GetParamsStruct:
			push(protocol.Frame{Destination: protocol.SourceAddress, Source: protocol.PanelAddress, Command: protocol.NoData})
		}
	}

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

	count, err := h.DiscoverParams(context.Background())
	if err != nil {
		t.Fatalf("DiscoverParams: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 1 new controller entry plus the surviving panel entry, got %d", count)
	}
	if _, ok := cat.GetByName("Room_Temp"); !ok {
		t.Fatal("expected the new controller entry to be present")
	}
	if _, ok := cat.GetByName("Panel_Brightness"); !ok {
		t.Fatal("expected the existing panel entry to survive an empty panel discovery pass")
	}
}
