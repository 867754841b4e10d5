package termux

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ArionMiles/txdetect/pkg/api"
)

// termuxTimeLayout is how Termux:API prints received/posted times.
const termuxTimeLayout = time.DateTime

// timestamp accepts either epoch milliseconds or a local "2006-01-02 15:04:05" string,
// depending on the Termux:API version.
type timestamp struct {
	millis int64
	local  string
}

func (ts *timestamp) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}
	if data[0] == '"' {
		return json.Unmarshal(data, &ts.local)
	}
	ms, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return fmt.Errorf("parsing timestamp %s: %w", data, err)
	}
	ts.millis = ms
	return nil
}

func (ts timestamp) resolve(loc *time.Location) (time.Time, error) {
	if ts.millis != 0 {
		return time.UnixMilli(ts.millis), nil
	}
	if ts.local == "" {
		return time.Time{}, errors.New("missing timestamp")
	}
	return time.ParseInLocation(termuxTimeLayout, ts.local, loc)
}

// smsMessage is one entry of termux-sms-list output.
type smsMessage struct {
	ID       int64     `json:"_id"`
	ThreadID int64     `json:"threadid"`
	Type     string    `json:"type"`
	Read     bool      `json:"read"`
	Number   string    `json:"number"`
	Received timestamp `json:"received"`
	Body     string    `json:"body"`
}

// notification is one entry of termux-notification-list output.
type notification struct {
	ID          int       `json:"id"`
	Tag         string    `json:"tag"`
	Key         string    `json:"key"`
	Group       string    `json:"group"`
	PackageName string    `json:"packageName"`
	Title       string    `json:"title"`
	Content     string    `json:"content"`
	Lines       []string  `json:"lines"`
	When        timestamp `json:"when"`
}

// identity distinguishes a re-posted notification that reuses its key.
func (n notification) identity() string {
	when := n.When.local
	if n.When.millis != 0 {
		when = strconv.FormatInt(n.When.millis, 10)
	}
	return n.Key + "|" + when + "|" + n.Content
}

func (n notification) raw(loc *time.Location) (api.RawNotification, error) {
	posted, err := n.When.resolve(loc)
	if err != nil {
		return api.RawNotification{}, err
	}
	return api.RawNotification{
		AppPackage:  n.PackageName,
		Title:       n.Title,
		Text:        n.Content,
		BigText:     strings.Join(n.Lines, "\n"),
		TimestampMs: posted.UnixMilli(),
	}, nil
}
