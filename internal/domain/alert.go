package domain

import (
	"encoding/json"
	"net/netip"
	"time"

	"github.com/google/uuid"
)

type AlertLevel string

const (
	AlertLevelInfo     AlertLevel = "INFO"
	AlertLevelWarning  AlertLevel = "WARNING"
	AlertLevelCritical AlertLevel = "CRITICAL"
)

type AlertKind string

const (
	AlertKindBruteForce AlertKind = "BRUTE_FORCE"
	AlertKindBanList    AlertKind = "BAN_LIST"
)

// Alert is one operator notification. Subject and Body are what the mail
// dispatcher sends; the remaining fields feed the journal and metrics.
type Alert struct {
	ID        string            `json:"id"`
	Timestamp time.Time         `json:"timestamp"`
	Kind      AlertKind         `json:"kind"`
	Level     AlertLevel        `json:"level"`
	Source    string            `json:"source,omitempty"`
	SourceIP  netip.Addr        `json:"source_ip,omitzero"`
	Count     int               `json:"count,omitempty"`
	Subject   string            `json:"subject"`
	Body      string            `json:"body"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

func NewAlert(kind AlertKind, level AlertLevel, subject, body string) *Alert {
	return &Alert{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC(),
		Kind:      kind,
		Level:     level,
		Subject:   subject,
		Body:      body,
		Metadata:  make(map[string]string),
	}
}

// WithSource sets the offending source token, and SourceIP when the token
// is a valid address.
func (a *Alert) WithSource(source string, count int) *Alert {
	a.Source = source
	a.Count = count
	if addr, err := netip.ParseAddr(source); err == nil {
		a.SourceIP = addr
	}
	return a
}

func (a *Alert) AddMetadata(key, value string) {
	if a.Metadata == nil {
		a.Metadata = make(map[string]string)
	}
	a.Metadata[key] = value
}

func (a *Alert) ToJSON() ([]byte, error) {
	return json.Marshal(a)
}

func (a *Alert) IPString() string {
	if !a.SourceIP.IsValid() {
		return "unknown"
	}
	return a.SourceIP.String()
}
