package model

import (
	"math"
	"time"
)

type NodeStatus string

const (
	NodeDeploying   NodeStatus = "deploying"
	NodeRunning     NodeStatus = "running"
	NodeStopped     NodeStatus = "stopped"
	NodeUnreachable NodeStatus = "unreachable"
)

// Uptime history samples. The history arrays are a structural contract:
// bounded, most-recent-last, oldest evicted first.
const (
	SampleRunning = "running"
	SampleStopped = "stopped"

	UptimeHistoryCap = 1000
	PocHistoryCap    = 100
)

type PocTap struct {
	Timestamp time.Time `json:"timestamp"`
	Success   bool      `json:"success"`
}

// Node is the Sentry Node workload running on a VM. Exactly one VM owns
// each node; deleting the VM cascades.
type Node struct {
	ID               string     `json:"id"`
	VMID             string     `json:"vmId"`
	Name             string     `json:"name"`
	Status           NodeStatus `json:"status"`
	UptimePercentage float64    `json:"uptimePercentage"`
	UptimeHistory    []string   `json:"uptimeHistory"`
	PocHistory       []PocTap   `json:"pocHistory"`
	PocSuccessRate   float64    `json:"pocSuccessRate"`
	LastCheckedAt    *time.Time `json:"lastCheckedAt,omitempty"`
	CreatedAt        time.Time  `json:"createdAt"`
	UpdatedAt        time.Time  `json:"updatedAt"`
}

// AppendUptime records one monitor sweep outcome and recomputes the
// derived percentage. History is FIFO-truncated at UptimeHistoryCap.
func (n *Node) AppendUptime(sample string) {
	n.UptimeHistory = append(n.UptimeHistory, sample)
	if len(n.UptimeHistory) > UptimeHistoryCap {
		n.UptimeHistory = n.UptimeHistory[len(n.UptimeHistory)-UptimeHistoryCap:]
	}
	up := 0
	for _, s := range n.UptimeHistory {
		if s == SampleRunning {
			up++
		}
	}
	n.UptimePercentage = round2(100 * float64(up) / float64(len(n.UptimeHistory)))
}

// AppendPocTap records one proof-of-capability tap outcome, FIFO-truncated
// at PocHistoryCap, and recomputes the success rate.
func (n *Node) AppendPocTap(tap PocTap) {
	n.PocHistory = append(n.PocHistory, tap)
	if len(n.PocHistory) > PocHistoryCap {
		n.PocHistory = n.PocHistory[len(n.PocHistory)-PocHistoryCap:]
	}
	ok := 0
	for _, t := range n.PocHistory {
		if t.Success {
			ok++
		}
	}
	n.PocSuccessRate = round2(100 * float64(ok) / float64(len(n.PocHistory)))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// NodeVM pairs a node with its owning VM, as returned by the store for
// the monitor sweep.
type NodeVM struct {
	Node Node
	VM   VM
}
