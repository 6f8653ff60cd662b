package simulator

import (
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/dmitrijs2005/atmadmin/internal/client/models"
)

// Lookup ids as seeded on the server.
const (
	levelDebug    int64 = 1
	levelInfo     int64 = 2
	levelWarn     int64 = 3
	levelError    int64 = 4
	levelCritical int64 = 5
)

const (
	eventCashWithdrawal     int64 = 1
	eventDeposit            int64 = 2
	eventBalanceInquiry     int64 = 3
	eventPayment            int64 = 4
	eventSystemBoot         int64 = 5
	eventSystemShutdown     int64 = 6
	eventComponentFailure   int64 = 7
	eventLowCash            int64 = 8
	eventTamperDetected     int64 = 9
	eventInvalidPIN         int64 = 10
	eventCardJammed         int64 = 11
	eventPrinterError       int64 = 12
	eventCommunicationError int64 = 13
)

type event struct {
	message string
	level   int64
	kind    int64 // 0 when the event has no type
	alert   bool
	payload func(r *rand.Rand) map[string]any
}

func fixed(p map[string]any) func(*rand.Rand) map[string]any {
	return func(*rand.Rand) map[string]any {
		out := make(map[string]any, len(p))
		for k, v := range p {
			out[k] = v
		}
		return out
	}
}

var catalogue = []event{
	{"Successful cash withdrawal", levelInfo, eventCashWithdrawal, false, func(r *rand.Rand) map[string]any {
		return map[string]any{
			"amount":             (r.IntN(491) + 10) * 100,
			"currency":           "RUB",
			"card_last_4_digits": fmt.Sprint(r.IntN(9000) + 1000),
		}
	}},
	{"System boot sequence initiated", levelInfo, eventSystemBoot, false, fixed(map[string]any{"firmware_version": "v2.3.1"})},
	{"System shutdown requested by operator", levelInfo, eventSystemShutdown, false, fixed(map[string]any{"reason": "scheduled_maintenance"})},
	{"Balance inquiry performed", levelInfo, eventBalanceInquiry, false, fixed(map[string]any{"account_type": "savings"})},
	{"Cash deposit accepted", levelInfo, eventDeposit, false, func(r *rand.Rand) map[string]any {
		return map[string]any{
			"amount":      (r.IntN(96) + 5) * 100,
			"currency":    "RUB",
			"envelope_id": fmt.Sprintf("DEP%d", r.IntN(90000)+10000),
		}
	}},
	{"Payment processed for utility bill", levelInfo, eventPayment, false, func(r *rand.Rand) map[string]any {
		return map[string]any{"provider_id": "UtilityCo", "amount": r.IntN(1951) + 50}
	}},
	{"Card jammed in reader", levelError, eventCardJammed, true, fixed(map[string]any{"error_code": "CJ-001", "reader_status": "blocked"})},
	{"Printer error: out of paper", levelError, eventPrinterError, true, fixed(map[string]any{"printer_id": "P1", "status_code": "PAPER_EMPTY"})},
	{"Component failure: keypad unresponsive", levelError, eventComponentFailure, true, fixed(map[string]any{"component": "keypad", "details": "no_input_detected"})},
	{"Communication error with processing center", levelError, eventCommunicationError, true, fixed(map[string]any{"host": "10.0.1.55", "port": 8443, "error": "timeout"})},
	{"Multiple invalid PIN attempts", levelWarn, eventInvalidPIN, true, fixed(map[string]any{"attempts": 3, "card_retained": false})},
	{"Tamper sensor activated: casing opened", levelCritical, eventTamperDetected, true, fixed(map[string]any{"sensor_id": "casing_main_door", "severity": "high"})},
	{"Low cash level in cassette A1", levelWarn, eventLowCash, true, func(r *rand.Rand) map[string]any {
		return map[string]any{"cassette_id": "A1-RUB-5000", "remaining_notes": r.IntN(41) + 10}
	}},
	{"Unspecified operational warning", levelWarn, 0, false, fixed(map[string]any{"details": "Minor sensor fluctuation detected."})},
	{"Routine maintenance check passed", levelDebug, 0, false, fixed(map[string]any{"check_module": "dispenser_self_test"})},
}

// randomEvent picks a catalogue entry and renders it for atmID at now.
func randomEvent(r *rand.Rand, atmID int64, now time.Time) models.LogInput {
	e := catalogue[r.IntN(len(catalogue))]
	payload := e.payload(r)
	payload["timestamp_details"] = map[string]any{"sec": now.Second(), "ms": now.Nanosecond() / int(time.Millisecond)}

	in := models.LogInput{
		EventTimestamp: now.UTC(),
		Message:        fmt.Sprintf("%s (ATM_ID: %d)", e.message, atmID),
		LogLevelID:     e.level,
		IsAlert:        e.alert,
		Payload:        payload,
	}
	if e.kind != 0 {
		kind := e.kind
		in.EventTypeID = &kind
	}
	return in
}
