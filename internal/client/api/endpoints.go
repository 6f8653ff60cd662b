package api

import (
	"net/url"
	"strconv"

	"github.com/dmitrijs2005/atmadmin/internal/client/listing"
	"github.com/dmitrijs2005/atmadmin/internal/client/models"
	"github.com/dmitrijs2005/atmadmin/internal/client/transport"
)

func identity(keys ...string) map[string]string {
	m := make(map[string]string, len(keys))
	for _, k := range keys {
		m[k] = k
	}
	return m
}

func ATMEndpoint() listing.Endpoint[models.ATM] {
	return listing.Endpoint[models.ATM]{
		Path:    PathATMs,
		Filters: identity("status_id", "location", "atm_uid"),
		SortKeys: map[string]listing.Accessor[models.ATM]{
			"id":                   func(a models.ATM) any { return a.ID },
			"atm_uid":              func(a models.ATM) any { return a.UID },
			"location_description": func(a models.ATM) any { return a.LocationDescription },
			"ip_address":           func(a models.ATM) any { return a.IPAddress },
			"status.name":          func(a models.ATM) any { return a.Status.Name },
			"created_at":           func(a models.ATM) any { return a.CreatedAt },
		},
		DefaultSort:  "id",
		DefaultOrder: listing.Asc,
	}
}

func LogEndpoint(doer transport.Doer, atmID int64) listing.Endpoint[models.LogEntry] {
	return listing.Endpoint[models.LogEntry]{
		Path:    PathLogs,
		Params:  url.Values{"atm_id": {strconv.FormatInt(atmID, 10)}},
		Filters: identity("log_level_id", "event_type_id", "is_alert", "start_time", "end_time", "message"),
		SortKeys: map[string]listing.Accessor[models.LogEntry]{
			"id":              func(l models.LogEntry) any { return l.ID },
			"event_timestamp": func(l models.LogEntry) any { return l.EventTimestamp },
			"recorded_at":     func(l models.LogEntry) any { return l.RecordedAt },
			"log_level.name":  func(l models.LogEntry) any { return l.LogLevel.Name },
			"event_type.name": func(l models.LogEntry) any {
				if l.EventType == nil {
					return nil
				}
				return l.EventType.Name
			},
		},
		DefaultSort:  "event_timestamp",
		DefaultOrder: listing.Desc,
		ParentExists: listing.ParentCheck(doer, atmPath(atmID)),
	}
}

func UserEndpoint() listing.Endpoint[models.User] {
	return listing.Endpoint[models.User]{
		Path:    PathUsers,
		Filters: map[string]string{},
		SortKeys: map[string]listing.Accessor[models.User]{
			"id":         func(u models.User) any { return u.ID },
			"username":   func(u models.User) any { return u.Username },
			"email":      func(u models.User) any { return u.Email },
			"role":       func(u models.User) any { return string(u.Role) },
			"created_at": func(u models.User) any { return u.CreatedAt },
		},
		DefaultSort:  "id",
		DefaultOrder: listing.Asc,
	}
}
