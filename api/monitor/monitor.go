package monitor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/GEMDevEng/GradientLab/api/hub"
	"github.com/GEMDevEng/GradientLab/api/model"
	"github.com/GEMDevEng/GradientLab/api/notify"
	"github.com/GEMDevEng/GradientLab/api/ops"
)

// Store is the slice of the fleet store the monitor needs.
type Store interface {
	ListActiveNodes(ctx context.Context) ([]model.NodeVM, error)
	UpdateNodeFields(ctx context.Context, id string, fields map[string]interface{}) error
}

type Broadcaster interface {
	Publish(nodeID string, evt hub.Event)
}

// Monitor periodically probes every node's status endpoint, records the
// outcome in the node's bounded uptime history, attempts one bounded
// recovery for nodes found down, and alerts when recovery fails. A single
// node's failure never aborts the sweep for the others, and the loop only
// ends on shutdown.
type Monitor struct {
	Store    Store
	Ops      ops.Channel
	Notifier notify.Notifier
	WS       Broadcaster

	Interval      time.Duration // default 5m
	ProbeTimeout  time.Duration // default 10s
	RecoveryGrace time.Duration // default 10s
	Client        *http.Client

	inFlight atomic.Bool
}

// Run starts the polling loop. It blocks until ctx is cancelled.
func (m *Monitor) Run(ctx context.Context) {
	if m.Interval == 0 {
		m.Interval = 5 * time.Minute
	}
	if m.ProbeTimeout == 0 {
		m.ProbeTimeout = 10 * time.Second
	}
	if m.RecoveryGrace == 0 {
		m.RecoveryGrace = 10 * time.Second
	}
	if m.Client == nil {
		m.Client = &http.Client{Timeout: m.ProbeTimeout}
	}

	ticker := time.NewTicker(m.Interval)
	defer ticker.Stop()

	// Run once immediately on start
	m.Sweep(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Sweep(ctx)
		}
	}
}

// Sweep checks every active node once. Exactly one sweep runs at a time;
// an overrunning sweep causes the next tick to be skipped, not stacked.
func (m *Monitor) Sweep(ctx context.Context) {
	if !m.inFlight.CompareAndSwap(false, true) {
		log.Println("monitor: previous sweep still running, skipping")
		return
	}
	defer m.inFlight.Store(false)

	nodes, err := m.Store.ListActiveNodes(ctx)
	if err != nil {
		log.Printf("monitor: list nodes: %v", err)
		return
	}

	var wg sync.WaitGroup
	for _, nv := range nodes {
		wg.Add(1)
		go func(nv model.NodeVM) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					log.Printf("monitor: node %s check panicked: %v", nv.Node.ID, r)
				}
			}()
			m.checkOne(ctx, nv)
		}(nv)
	}
	wg.Wait()
}

func (m *Monitor) checkOne(ctx context.Context, nv model.NodeVM) {
	node := nv.Node
	addr := nv.VM.IPAddress
	if addr == "" {
		log.Printf("monitor: node %s has no recorded endpoint, skipping", node.ID)
		return
	}

	up := m.probe(ctx, addr)

	if !up {
		log.Printf("monitor: node %s (%s) is DOWN, attempting recovery", node.Name, addr)
		_, err := m.Ops.Run(ctx, addr, ops.RestartCommand)
		switch {
		case errors.Is(err, model.ErrRecoveryChannelUnavailable):
			// Cannot even reach the host: skip the recovery wait and alert
			// right away.
			log.Printf("monitor: node %s recovery channel unavailable: %v", node.ID, err)
			m.alert(ctx, nv)
		case ctx.Err() != nil:
			return
		default:
			if err != nil {
				log.Printf("monitor: restart command on %s: %v", addr, err)
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(m.RecoveryGrace):
			}
			up = m.probe(ctx, addr)
			if !up {
				log.Printf("monitor: node %s (%s) still DOWN after restart", node.Name, addr)
				m.alert(ctx, nv)
			}
		}
	}

	sample := model.SampleStopped
	status := model.NodeUnreachable
	if up {
		sample = model.SampleRunning
		status = model.NodeRunning
	}

	// Cancelled mid-flight: persist nothing, the node keeps its prior status.
	if ctx.Err() != nil {
		return
	}

	node.AppendUptime(sample)
	now := time.Now()
	fields := map[string]interface{}{
		"status":            status,
		"uptime_history":    node.UptimeHistory,
		"uptime_percentage": node.UptimePercentage,
		"last_checked_at":   now,
	}
	if err := m.Store.UpdateNodeFields(ctx, node.ID, fields); err != nil {
		log.Printf("monitor: update node %s: %v", node.ID, err)
		return
	}

	// Every outcome is published, up or down; consumers de-duplicate if
	// they care.
	m.WS.Publish(node.ID, hub.Event{Type: "node.status", Payload: map[string]interface{}{
		"nodeId":           node.ID,
		"status":           status,
		"uptimePercentage": node.UptimePercentage,
		"checkedAt":        now.Format(time.RFC3339),
	}})
}

// probe hits the node's status page; Up means reachable and reporting
// running=true. Transport failures count as down.
func (m *Monitor) probe(ctx context.Context, addr string) bool {
	ctx, cancel := context.WithTimeout(ctx, m.ProbeTimeout)
	defer cancel()

	url := fmt.Sprintf("http://%s/status.json", addr)
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return false
	}
	resp, err := m.Client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return false
	}
	var status struct {
		Running bool `json:"running"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return false
	}
	return status.Running
}

func (m *Monitor) alert(ctx context.Context, nv model.NodeVM) {
	a := notify.Alert{
		NodeID:   nv.Node.ID,
		NodeName: nv.Node.Name,
		IP:       nv.VM.IPAddress,
		Provider: nv.VM.Provider,
		Region:   nv.VM.Region,
		Time:     time.Now(),
	}
	if err := m.Notifier.Alert(ctx, a); err != nil {
		log.Printf("monitor: alert for node %s: %v", nv.Node.ID, err)
	}
}
