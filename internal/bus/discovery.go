package bus

import (
	"context"
	"encoding/binary"

	"github.com/econext/gm3-gateway/internal/model"
	"github.com/econext/gm3-gateway/internal/protocol"
)

// discoveryBatchSize is how many struct entries are requested per wire
// call during discovery.
const discoveryBatchSize = 100

// discoveryMaxRetries bounds how many consecutive empty replies a single
// address-space walk tolerates before giving up on that space — generous,
// since the token has no expiry timer of its own.
const discoveryMaxRetries = 10

// fetchParamStructs requests one batch of struct metadata starting at
// startIndex. endOfRange is true when the controller explicitly signals
// there is nothing more at this index (NO_DATA/ERROR). Grounded on
// handler.py:fetch_param_structs.
func (h *Handler) fetchParamStructs(ctx context.Context, startIndex uint16, count byte, destination *uint16, withRange bool) (entries []protocol.StructEntry, endOfRange bool, err error) {
	payload := protocol.BuildStructRequest(startIndex, count)

	sendCmd, expectCmd := protocol.GetParamsStructWithRange, protocol.GetParamsStructWithRangeResponse
	if !withRange {
		sendCmd, expectCmd = protocol.GetParamsStruct, protocol.GetParamsStructResponse
	}

	validate := func(f protocol.Frame) bool {
		if len(f.Payload) < 3 {
			return false
		}
		first := binary.LittleEndian.Uint16(f.Payload[1:3])
		return first == startIndex
	}

	resp, err := h.exchange(ctx, sendCmd, payload, expectCmd, []protocol.Command{protocol.NoData, protocol.Error}, validate, destination)
	if err != nil {
		return nil, false, err
	}
	if resp == nil {
		return nil, false, nil
	}
	if resp.Command == protocol.NoData || resp.Command == protocol.Error {
		return nil, true, nil
	}

	if withRange {
		entries, err = protocol.ParseStructResponseWithRange(resp.Payload)
	} else {
		entries, err = protocol.ParseStructResponseNoRange(resp.Payload)
	}
	return entries, false, err
}

// discoverAddressSpace walks one address space (controller or panel) a
// batch at a time until the controller signals end-of-range, returning
// the catalog entries discovered. Grounded on
// handler.py:_discover_address_space.
func (h *Handler) discoverAddressSpace(ctx context.Context, label string, space model.AddressSpace, storeOffset int, destination *uint16, withRange bool) []model.CatalogEntry {
	var wireIndex uint16
	resendCounter := 0
	batches := 0
	var collected []model.CatalogEntry

	for {
		entries, endOfRange, err := h.fetchParamStructs(ctx, wireIndex, discoveryBatchSize, destination, withRange)
		if err != nil {
			h.Logger.Printf("bus: %s discovery error at wire index %d: %v", label, wireIndex, err)
			return collected
		}

		if endOfRange {
			h.Logger.Printf("bus: finished %s discovery (NO_DATA at wire index %d, %d batches)", label, wireIndex, batches)
			return collected
		}

		if len(entries) == 0 {
			resendCounter++
			if resendCounter > discoveryMaxRetries {
				h.Logger.Printf("bus: too many failures for %s at index %d after %d retries", label, wireIndex, discoveryMaxRetries)
				return collected
			}
			h.Logger.Printf("bus: no response for %s index %d, retrying (%d/%d)", label, wireIndex, resendCounter, discoveryMaxRetries)
			continue
		}
		resendCounter = 0
		batches++

		for _, e := range entries {
			ce, err := model.NewCatalogEntry(model.CatalogEntry{
				StoredIndex: e.Index + storeOffset,
				WireIndex:   e.Index,
				Space:       space,
				Name:        e.Name,
				Unit:        e.Unit,
				Type:        e.Type,
				Writable:    e.Writable,
				MinValue:    e.MinValue,
				MaxValue:    e.MaxValue,
				MinParamRef: refToInt(e.MinParamRef),
				MaxParamRef: refToInt(e.MaxParamRef),
			})
			if err != nil {
				h.Logger.Printf("bus: skipping invalid catalog entry from %s discovery: %v", label, err)
				continue
			}
			collected = append(collected, ce)
		}

		lastWire := entries[len(entries)-1].Index
		wireIndex = uint16(lastWire + 1)
	}
}

func refToInt(ref *uint16) *int {
	if ref == nil {
		return nil
	}
	v := int(*ref)
	return &v
}

// DiscoverParams performs a full discovery pass: controller address space
// (WITH_RANGE) followed by panel address space (WITHOUT_RANGE), all under
// a single token grant. Each address space is replaced independently, so a
// pass where one space comes back empty leaves the other space's existing
// catalog entries untouched. Grounded on handler.py:discover_params.
func (h *Handler) DiscoverParams(ctx context.Context) (int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.waitForToken(ctx); err != nil {
		h.Logger.Printf("bus: failed to get token during discovery: %v", err)
		return h.catalog.Count(), nil
	}

	h.transport.ResetRx()

	controllerEntries := h.discoverAddressSpace(ctx, "regulator", model.Controller, 0, nil, true)
	h.Logger.Printf("bus: regulator discovery found %d params", len(controllerEntries))

	panelDest := protocol.PanelAddress
	panelEntries := h.discoverAddressSpace(ctx, "panel", model.Panel, model.PanelStoreOffset, &panelDest, false)
	h.Logger.Printf("bus: panel discovery found %d params", len(panelEntries))

	if h.hasToken {
		h.returnToken()
	}

	// Each address space is replaced independently: a pass where one space
	// comes back empty (e.g. the panel didn't answer this time) must not
	// wipe out the other space's already-known entries. ReplaceSpace's
	// empty-input no-op gives each space that guarantee on its own.
	h.catalog.ReplaceSpace(model.Controller, controllerEntries)
	h.catalog.ReplaceSpace(model.Panel, panelEntries)

	if len(controllerEntries) > 0 || len(panelEntries) > 0 {
		h.Logger.Printf("bus: discovery complete: %d regulator, %d panel parameters", len(controllerEntries), len(panelEntries))
	} else {
		h.Logger.Printf("bus: parameter discovery returned no results, keeping existing catalog")
	}

	return h.catalog.Count(), nil
}
