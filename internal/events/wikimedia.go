package events

import (
	"errors"
	"fmt"
	"time"

	"github.com/pulsewatch/pulsewatch/internal/database"
)

// normalizeWikimedia maps a Wikimedia recentchange item into a canonical Event.
// See https://stream.wikimedia.org/v2/stream/recentchange for the feed shape.
func normalizeWikimedia(raw map[string]interface{}) (*database.Event, error) {
	changeType := ExtractString(raw, "type")
	if changeType == "" {
		return nil, errors.New("wikimedia item missing type")
	}

	title := ExtractString(raw, "title")
	user := ExtractString(raw, "user")
	wiki := ExtractString(raw, "wiki")
	serverName := ExtractString(raw, "server_name")

	timestamp := time.Now().UTC()
	if ts, ok := ExtractInt(raw, "timestamp"); ok {
		timestamp = time.Unix(int64(ts), 0).UTC()
	}

	tags := []string{"wikimedia", changeType}
	if wiki != "" {
		tags = append(tags, wiki)
	}
	if ExtractBool(raw, "bot") {
		tags = append(tags, "bot")
	} else {
		tags = append(tags, "human")
	}
	if ExtractBool(raw, "minor") {
		tags = append(tags, "minor")
	}
	if ns, ok := ExtractInt(raw, "namespace"); ok {
		tags = append(tags, fmt.Sprintf("ns-%d", ns))
	}

	metadata := database.JSONB{
		"wiki":        wiki,
		"server_name": serverName,
		"user":        user,
	}
	if delta, ok := WikimediaEditDelta(raw); ok {
		metadata["edit_delta_bytes"] = delta
	}

	summary := fmt.Sprintf("%s %s on %s", user, changeType, serverName)
	if title != "" {
		summary = fmt.Sprintf("%s: %s by %s on %s", changeType, truncate(title, 120), user, serverName)
	}

	return &database.Event{
		Source:    database.EventSourceWikimedia,
		Type:      changeType,
		Timestamp: timestamp,
		Raw:       database.JSONB(raw),
		Tags:      database.StringList(tags),
		Status:    database.EventStatusPending,
		Severity:  database.SeverityLow,
		Service:   serverName,
		Summary:   summary,
		Metadata:  metadata,
	}, nil
}

// WikimediaEditDelta returns the absolute byte-size change of an edit, false
// if the item carries no length information (log entries, categorization).
func WikimediaEditDelta(raw map[string]interface{}) (int, bool) {
	oldLen, okOld := ExtractInt(raw, "length.old")
	newLen, okNew := ExtractInt(raw, "length.new")
	if !okOld && !okNew {
		return 0, false
	}
	delta := newLen - oldLen
	if delta < 0 {
		delta = -delta
	}
	return delta, true
}
