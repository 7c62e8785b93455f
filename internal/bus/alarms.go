package bus

import (
	"context"
	"encoding/binary"
	"sort"

	"github.com/econext/gm3-gateway/internal/model"
	"github.com/econext/gm3-gateway/internal/protocol"
)

// decodeAlarmDate decodes a 7-byte GM3 timestamp: LE16 year, month, day,
// hour, minute, second. All-0xFF means "no date" (null/end marker), and
// obviously-invalid month/day also decode to nil rather than erroring —
// matching handler.py:_decode_alarm_date's defensive parsing.
func decodeAlarmDate(data []byte) (model.AlarmDate, bool) {
	if len(data) < 7 {
		return model.AlarmDate{}, false
	}
	allFF := true
	for _, b := range data[:7] {
		if b != 0xFF {
			allFF = false
			break
		}
	}
	if allFF {
		return model.AlarmDate{}, false
	}

	year := int(int16(binary.LittleEndian.Uint16(data[0:2])))
	month, day, hour, minute, second := int(data[2]), int(data[3]), int(data[4]), int(data[5]), int(data[6])

	if year < 1 || month < 1 || month > 12 || day < 1 || day > 31 {
		return model.AlarmDate{}, false
	}

	return model.AlarmDate{Year: year, Month: month, Day: day, Hour: hour, Minute: minute, Second: second}, true
}

// ReadAlarms sequentially reads the controller's alarm log from the panel,
// one SERVICE request per slot, stopping at the first null-date entry or
// once the bus stops answering. Returns alarms sorted newest-first.
// Grounded on handler.py:read_alarms.
func (h *Handler) ReadAlarms(ctx context.Context) ([]model.Alarm, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	var alarms []model.Alarm

	func() {
		defer func() {
			if h.hasToken {
				h.returnToken()
			}
		}()

		if err := h.waitForToken(ctx); err != nil {
			h.Logger.Printf("bus: failed to get token for alarm read: %v", err)
			return
		}

		for slot := 0; ; slot++ {
			payload := append(append([]byte(nil), protocol.AlarmRequestPrefix...), byte(slot&0xFF))
			panelDest := protocol.PanelAddress
			resp, err := h.exchange(ctx, protocol.ServiceCmd, payload, protocol.ServiceAns, nil, nil, &panelDest)
			if err != nil {
				h.Logger.Printf("bus: alarm read error at slot %d: %v", slot, err)
				return
			}
			if resp == nil || len(resp.Payload) < 15 {
				h.Logger.Printf("bus: no alarm response at slot %d, stopping", slot)
				return
			}

			code := int(resp.Payload[0])
			fromDate, ok := decodeAlarmDate(resp.Payload[1:8])
			if !ok {
				h.Logger.Printf("bus: null alarm at slot %d, end of list", slot)
				return
			}
			toDate, hasToDate := decodeAlarmDate(resp.Payload[8:15])

			alarm := model.Alarm{Code: code, FromDate: fromDate}
			if hasToDate {
				alarm.ToDate = &toDate
			}
			alarms = append(alarms, alarm)
		}
	}()

	sort.Slice(alarms, func(i, j int) bool {
		return alarms[j].FromDate.Before(alarms[i].FromDate)
	})

	h.setAlarms(alarms)
	h.Logger.Printf("bus: read %d alarms from controller", len(alarms))
	return alarms, nil
}
