package notify

import (
	"context"
	"log"
	"time"
)

// Alert carries everything an operator needs to locate a failed node.
type Alert struct {
	NodeID   string
	NodeName string
	IP       string
	Provider string
	Region   string
	Time     time.Time
}

// Notifier delivers alerts out of band. Fire-and-forget from the monitor's
// point of view; failures are logged, never propagated.
type Notifier interface {
	Alert(ctx context.Context, a Alert) error
}

// LogNotifier is the fallback sink when no mail transport is configured.
type LogNotifier struct{}

func (LogNotifier) Alert(ctx context.Context, a Alert) error {
	log.Printf("ALERT: node %s (%s) on %s/%s is DOWN at %s",
		a.NodeName, a.IP, a.Provider, a.Region, a.Time.Format(time.RFC3339))
	return nil
}
