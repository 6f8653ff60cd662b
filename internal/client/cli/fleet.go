package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/dmitrijs2005/atmadmin/internal/client/api"
	"github.com/dmitrijs2005/atmadmin/internal/client/models"
	"github.com/dmitrijs2005/atmadmin/internal/client/transport"
)

const atmUsage = "atm add uid=<uid> [location=..] [ip=..] [status=<id>] | atm edit <id> key=value... | atm rm <id>"

// atmInput builds a create/update body from uid=, location=, ip= and
// status= assignments. Unnamed fields stay nil.
func atmInput(args []string) (models.ATMInput, error) {
	var in models.ATMInput
	fields, err := ParseAssignments(args)
	if err != nil {
		return in, fmt.Errorf("%w: %v", errBadArgs, err)
	}
	for k, v := range fields {
		switch k {
		case "uid":
			in.UID = &v
		case "location":
			in.LocationDescription = &v
		case "ip":
			in.IPAddress = &v
		case "status":
			id, err := strconv.ParseInt(v, 10, 64)
			if err != nil || id < 1 {
				return in, fmt.Errorf("%w: %q is not a status id", errBadArgs, v)
			}
			in.StatusID = &id
		default:
			return in, fmt.Errorf("%w: unknown field %q", errBadArgs, k)
		}
	}
	return in, nil
}

func emptyInput(in models.ATMInput) bool {
	return in.UID == nil && in.LocationDescription == nil && in.IPAddress == nil && in.StatusID == nil
}

// ATM creates, edits or deletes a device. Only admins and superadmins
// may; an open device list is reloaded afterwards.
func (a *App) ATM(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("%w: usage: %s", errBadArgs, atmUsage)
	}
	u, _ := a.currentUser()
	if !api.CanManageATMs(u) {
		return errNotAllowed
	}

	switch args[0] {
	case "add":
		in, err := atmInput(args[1:])
		if err != nil {
			return err
		}
		if in.UID == nil || *in.UID == "" {
			return fmt.Errorf("%w: uid is required", errBadArgs)
		}
		atm, err := a.api.CreateATM(ctx, in)
		if err != nil {
			return err
		}
		printlnFn(fmt.Sprintf("ATM %d (%s) created.", atm.ID, atm.UID))
	case "edit":
		id, err := parseID(args[1:], "atm edit <id> key=value...")
		if err != nil {
			return err
		}
		in, err := atmInput(args[2:])
		if err != nil {
			return err
		}
		if emptyInput(in) {
			return fmt.Errorf("%w: nothing to change", errBadArgs)
		}
		if _, err := a.api.UpdateATM(ctx, id, in); err != nil {
			return atmNotFound(id, err)
		}
		printlnFn(fmt.Sprintf("ATM %d updated.", id))
	case "rm":
		id, err := parseID(args[1:], "atm rm <id>")
		if err != nil {
			return err
		}
		if err := a.api.DeleteATM(ctx, id); err != nil {
			return atmNotFound(id, err)
		}
		printlnFn(fmt.Sprintf("ATM %d deleted.", id))
	default:
		return fmt.Errorf("%w: usage: %s", errBadArgs, atmUsage)
	}
	return a.reloadATMs(ctx)
}

func atmNotFound(id int64, err error) error {
	if errors.Is(err, transport.ErrNotFound) {
		return fmt.Errorf("ATM %d not found", id)
	}
	return err
}

func (a *App) reloadATMs(ctx context.Context) error {
	a.mu.Lock()
	s := a.atms
	a.mu.Unlock()
	if s == nil {
		return nil
	}
	if err := s.fetch(ctx); err != nil {
		return err
	}
	s.render(a.out)
	return nil
}

func (a *App) Levels(ctx context.Context) error {
	levels, err := a.api.LogLevels(ctx)
	if err != nil {
		return err
	}
	for _, l := range levels {
		severity := "-"
		if l.SeverityOrder != nil {
			severity = strconv.Itoa(*l.SeverityOrder)
		}
		fmt.Fprintf(a.out, "%d\t%s\t%s\n", l.ID, l.Name, severity)
	}
	return nil
}

func (a *App) Types(ctx context.Context) error {
	types, err := a.api.EventTypes(ctx)
	if err != nil {
		return err
	}
	for _, et := range types {
		fmt.Fprintf(a.out, "%d\t%s\t%s\t%s\n", et.ID, et.Name, orDash(et.Category), orDash(et.Description))
	}
	return nil
}

// Log prints one log entry with its payload.
func (a *App) Log(ctx context.Context, args []string) error {
	id, err := parseID(args, "log <log-id>")
	if err != nil {
		return err
	}
	l, err := a.api.GetLog(ctx, id)
	if err != nil {
		if errors.Is(err, transport.ErrNotFound) {
			return fmt.Errorf("log %d not found", id)
		}
		return err
	}

	event := "-"
	if l.EventType != nil {
		event = l.EventType.Name
	}
	fmt.Fprintf(a.out, "Log %d (atm %d)\n  time:     %s\n  level:    %s\n  event:    %s\n  message:  %s\n",
		l.ID, l.ATMID, fmtTime(l.EventTimestamp), l.LogLevel.Name, event, l.Message)
	if l.IsAlert {
		ack := "no"
		if l.Acknowledged() {
			ack = "at " + fmtTime(*l.AcknowledgedAt)
			if l.AcknowledgedByUserID != nil {
				ack += fmt.Sprintf(" by user %d", *l.AcknowledgedByUserID)
			}
		}
		fmt.Fprintf(a.out, "  alert:    acknowledged %s\n", ack)
	}
	if len(l.Payload) > 0 && string(l.Payload) != "null" {
		var buf bytes.Buffer
		if err := json.Indent(&buf, l.Payload, "  ", "  "); err != nil {
			buf.Reset()
			buf.Write(l.Payload)
		}
		fmt.Fprintf(a.out, "  payload:  %s\n", buf.String())
	}
	return nil
}
