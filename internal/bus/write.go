package bus

import (
	"context"
	"fmt"
	"time"

	"github.com/econext/gm3-gateway/internal/catalog"
	"github.com/econext/gm3-gateway/internal/model"
	"github.com/econext/gm3-gateway/internal/protocol"
)

// ValidationError reports a rejected write: unknown parameter, read-only
// parameter, or a value outside the resolved min/max range. RefreshParam
// also returns it for an unknown name. The HTTP layer recognizes it without
// string matching (SPEC_FULL.md §1.3) and maps it to 400 on the write
// endpoint and to 404 on the refresh endpoint.
type ValidationError struct {
	msg string
}

func (e *ValidationError) Error() string { return e.msg }

func validationErrorf(format string, args ...any) *ValidationError {
	return &ValidationError{msg: fmt.Sprintf(format, args...)}
}

// WriteParam resolves name against the cache and catalog, validates value
// against its (possibly dynamic) range, and issues a MODIFY_PARAM request,
// updating the cache only once the controller acknowledges the write.
// Grounded on handler.py:write_param.
func (h *Handler) WriteParam(ctx context.Context, name string, value any) error {
	param, ok := h.cache.GetByName(name)
	if !ok {
		return validationErrorf("parameter not found: %s", name)
	}

	entry, ok := h.catalog.Get(param.StoredIndex)
	if !ok {
		return validationErrorf("no structure info for parameter: %s", name)
	}

	if !entry.Writable {
		return validationErrorf("parameter is read-only: %s", name)
	}

	min, max := catalog.ResolveMinMax(entry, h.cache)
	if fv, ferr := toFloat(value); ferr == nil {
		if min != nil && fv < *min {
			return validationErrorf("value %v below minimum %v for %s", value, *min, name)
		}
		if max != nil && fv > *max {
			return validationErrorf("value %v above maximum %v for %s", value, *max, name)
		}
	}

	payload, err := protocol.BuildModifyParamRequest(uint16(entry.WireIndex), entry.Type, value)
	if err != nil {
		return validationErrorf("cannot encode value %v for %s: %v", value, name, err)
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	var resp *protocol.Frame
	func() {
		defer func() {
			if h.hasToken {
				h.returnToken()
			}
		}()

		if werr := h.waitForToken(ctx); werr != nil {
			err = werr
			return
		}
		resp, err = h.exchange(ctx, protocol.ModifyParam, payload, protocol.ModifyParamResponse, nil, nil, nil)
	}()
	if err != nil {
		return err
	}

	if resp == nil {
		h.Logger.Printf("bus: failed to write parameter %s", name)
		return fmt.Errorf("bus: write not acknowledged for %s", name)
	}

	h.cache.Set(model.Parameter{
		StoredIndex: param.StoredIndex,
		Name:        param.Name,
		Unit:        param.Unit,
		Value:       value,
		UpdatedAt:   time.Now().Unix(),
	}, time.Now())
	h.Logger.Printf("bus: parameter %s set to %v", name, value)
	return nil
}

func toFloat(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case int64:
		return float64(n), nil
	case int:
		return float64(n), nil
	case uint64:
		return float64(n), nil
	case bool:
		if n {
			return 1, nil
		}
		return 0, nil
	default:
		return 0, fmt.Errorf("value %v (%T) is not numeric", v, v)
	}
}
