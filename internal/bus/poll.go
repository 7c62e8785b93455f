package bus

import (
	"context"
	"encoding/binary"
	"fmt"
	"sort"
	"time"

	"github.com/econext/gm3-gateway/internal/model"
	"github.com/econext/gm3-gateway/internal/protocol"
)

// fetchParamValues requests one batch of live values starting at the given
// wire index. Grounded on handler.py:fetch_param_values.
func (h *Handler) fetchParamValues(ctx context.Context, startIndex uint16, count byte, destination *uint16, storeOffset int) ([]protocol.ValueEntry, error) {
	payload := protocol.BuildGetParamsRequest(startIndex, count)

	validate := func(f protocol.Frame) bool {
		if len(f.Payload) < 3 {
			return false
		}
		first := binary.LittleEndian.Uint16(f.Payload[1:3])
		return first == startIndex
	}

	resp, err := h.exchange(ctx, protocol.GetParams, payload, protocol.GetParamsResponse, nil, validate, destination)
	if err != nil {
		return nil, err
	}
	if resp == nil {
		return nil, nil
	}

	return protocol.ParseGetParamsResponse(resp.Payload, storeOffset, func(storedIndex int) (protocol.DataType, bool) {
		e, ok := h.catalog.Get(storedIndex)
		if !ok {
			return 0, false
		}
		return e.Type, true
	})
}

// toParameters converts raw decoded values into cache-ready Parameters
// carrying name, unit, value and timestamp only. The entry's type,
// writability and min/max bounds are not copied, and min/max references
// are not resolved here; only the write path resolves them
// (catalog.ResolveMinMax).
func (h *Handler) toParameters(values []protocol.ValueEntry, now time.Time) []model.Parameter {
	params := make([]model.Parameter, 0, len(values))
	for _, v := range values {
		entry, ok := h.catalog.Get(v.StoredIndex)
		if !ok || entry.Name == "" {
			continue
		}
		params = append(params, model.Parameter{
			StoredIndex: v.StoredIndex,
			Name:        entry.Name,
			Unit:        entry.UnitString(),
			Value:       v.Value,
			UpdatedAt:   now.Unix(),
		})
	}
	return params
}

// RefreshParam re-reads a single named parameter on demand, independent of
// the regular poll cycle, and updates the cache with whatever comes back.
// Grounded on handler.py:read_params, generalized to resolve the
// controller/panel address space from the catalog entry rather than
// always targeting the controller.
func (h *Handler) RefreshParam(ctx context.Context, name string) (model.Parameter, error) {
	entry, ok := h.catalog.GetByName(name)
	if !ok {
		return model.Parameter{}, validationErrorf("unknown parameter %q", name)
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.waitForToken(ctx); err != nil {
		return model.Parameter{}, err
	}
	defer func() {
		if h.hasToken {
			h.returnToken()
		}
	}()

	var dest *uint16
	storeOffset := 0
	wireIndex := entry.WireIndex
	if entry.Space == model.Panel {
		panelAddr := protocol.PanelAddress
		dest = &panelAddr
		storeOffset = model.PanelStoreOffset
	}

	values, err := h.fetchParamValues(ctx, uint16(wireIndex), 1, dest, storeOffset)
	if err != nil {
		return model.Parameter{}, err
	}
	now := time.Now()
	params := h.toParameters(values, now)
	if len(params) == 0 {
		return model.Parameter{}, fmt.Errorf("bus: no response refreshing %q", name)
	}
	h.cache.SetMany(params, now)
	return params[0], nil
}

// PollAllParams reads every known parameter in contiguous batches,
// respecting the 255-count wire limit, the params-per-request cap, and the
// address-space boundary between controller (<10000) and panel (>=10000)
// indices, retrying a failed batch up to RetryAttempts times before
// skipping past it. Returns the number of parameters successfully read.
// Grounded on handler.py:poll_all_params.
func (h *Handler) PollAllParams(ctx context.Context) (int, error) {
	if h.catalog.Count() == 0 {
		return 0, nil
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.waitForToken(ctx); err != nil {
		return 0, err
	}
	defer func() {
		if h.hasToken {
			h.returnToken()
		}
	}()

	all := h.catalog.All()
	indices := make([]int, 0, len(all))
	for idx := range all {
		indices = append(indices, idx)
	}
	sort.Ints(indices)

	totalRead := 0
	currentPos := 0

	for currentPos < len(indices) {
		startIndex := indices[currentPos]

		batchEnd := currentPos + 1
		limit := currentPos + h.cfg.ParamsPerRequest
		if limit > len(indices) {
			limit = len(indices)
		}
		for batchEnd < limit {
			if indices[batchEnd]-startIndex >= 255 {
				break
			}
			if (startIndex < model.PanelStoreOffset) != (indices[batchEnd] < model.PanelStoreOffset) {
				break
			}
			batchEnd++
		}
		count := indices[batchEnd-1] - startIndex + 1

		isPanel := startIndex >= model.PanelStoreOffset
		var dest *uint16
		storeOffset := 0
		wireIndex := startIndex
		if isPanel {
			panelAddr := protocol.PanelAddress
			dest = &panelAddr
			storeOffset = model.PanelStoreOffset
			wireIndex = startIndex - model.PanelStoreOffset
		}

		var values []protocol.ValueEntry
		for attempt := 0; attempt < RetryAttempts; attempt++ {
			v, err := h.fetchParamValues(ctx, uint16(wireIndex), byte(count), dest, storeOffset)
			if err != nil {
				h.Logger.Printf("bus: poll batch at %d failed: %v", startIndex, err)
				continue
			}
			if len(v) > 0 {
				values = v
				break
			}
		}

		if len(values) == 0 {
			currentPos = batchEnd
			continue
		}

		now := time.Now()
		params := h.toParameters(values, now)
		if len(params) > 0 {
			h.cache.SetMany(params, now)
			totalRead += len(params)
		}

		lastReturnedIndex := values[len(values)-1].StoredIndex
		newPos := currentPos
		for newPos < len(indices) && indices[newPos] <= lastReturnedIndex {
			newPos++
		}
		if newPos <= currentPos {
			newPos = currentPos + 1
		}
		currentPos = newPos
	}

	return totalRead, nil
}
