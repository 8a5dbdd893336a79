package event

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// timestampFormat is the human-readable form appended to normalized text,
// e.g. "14:03:07 21.11.2023".
const timestampFormat = "15:04:05 02.01.2006"

// Normalized is the embedding-ready rendition of a Record.
type Normalized struct {
	// Text is the single sentence handed to the embedding model.
	Text string
	// TimestampISO is the resolved event time as local ISO-8601.
	TimestampISO string
	// TimestampFormatted is the resolved event time as "HH:MM:SS DD.MM.YYYY".
	TimestampFormatted string
	// EffectiveMs is the resolved event time in milliseconds since epoch,
	// used for the stored document id.
	EffectiveMs int64
	// TimestampInvalid reports that a supplied timestamp could not be
	// parsed and the resolved fields fell back to the server clock.
	TimestampInvalid bool
	// TimestampFromEvent reports that the resolved time came from a valid
	// timestamp carried by the event rather than the server clock.
	TimestampFromEvent bool
}

// Normalize turns a validated Record into one deterministic sentence plus
// the resolved timestamp fields. now is the server's local clock reading;
// it decides the resolved time whenever the event carries no usable origin
// timestamp. Normalize never fails: a malformed timestamp degrades to an
// inline marker instead of aborting the ingestion.
func Normalize(r Record, now time.Time) Normalized {
	var sb strings.Builder
	sb.WriteString(r.Description)

	// The value clause quotes the event descriptor, which exporters
	// pre-render from the raw value (e.g. "on", "21.5 °C").
	switch r.DataType {
	case TypeBoolean:
		sb.WriteString(" is ")
		sb.WriteString(r.EventType)
	default: // number, string, mixed
		sb.WriteString(": ")
		sb.WriteString(r.EventType)
	}

	if loc := r.EffectiveLocation(); !locationSuppressed(loc) {
		fmt.Fprintf(&sb, " at location '%s'", loc)
	}

	n := Normalized{}
	ms, supplied, valid, raw := parseTimestamp(r.Timestamp)
	switch {
	case supplied && valid:
		n.TimestampFromEvent = true
		t := time.UnixMilli(ms).In(now.Location())
		n.TimestampFormatted = t.Format(timestampFormat)
		n.TimestampISO = t.Format(time.RFC3339)
		n.EffectiveMs = ms
		sb.WriteString(" at ")
		sb.WriteString(n.TimestampFormatted)
	case supplied && !valid:
		// Keep the event but mark the defect inline and resolve the
		// metadata timestamps from the server clock.
		n.TimestampInvalid = true
		n.TimestampFormatted = now.Format(timestampFormat)
		n.TimestampISO = now.Format(time.RFC3339)
		n.EffectiveMs = now.UnixMilli()
		fmt.Fprintf(&sb, " (invalid timestamp: %s)", raw)
	default:
		n.TimestampFormatted = now.Format(timestampFormat)
		n.TimestampISO = now.Format(time.RFC3339)
		n.EffectiveMs = now.UnixMilli()
		fmt.Fprintf(&sb, " (captured at %s)", n.TimestampFormatted)
	}

	n.Text = sb.String()
	return n
}

// locationSuppressed reports whether a location label is one of the
// placeholder values that must never appear in normalized text.
func locationSuppressed(loc string) bool {
	switch strings.ToLower(loc) {
	case "", DefaultLocation, "not specified":
		return true
	}
	return false
}

// parseTimestamp interprets the raw timestamp payload.
// supplied is false for an absent key, explicit null, or zero (an exporter
// sending 0 means "no origin time"). valid is true only when the payload is
// a non-zero JSON number; anything else is reported with its rendered raw
// form for the inline marker.
func parseTimestamp(rawJSON json.RawMessage) (ms int64, supplied, valid bool, raw string) {
	if len(rawJSON) == 0 || string(rawJSON) == "null" {
		return 0, false, false, ""
	}

	var num float64
	if err := json.Unmarshal(rawJSON, &num); err == nil {
		if num == 0 {
			return 0, false, false, ""
		}
		return int64(num), true, true, ""
	}

	var v any
	if err := json.Unmarshal(rawJSON, &v); err != nil {
		return 0, true, false, string(rawJSON)
	}
	return 0, true, false, fmt.Sprintf("%v", v)
}
