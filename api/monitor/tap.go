package monitor

import (
	"context"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/GEMDevEng/GradientLab/api/hub"
	"github.com/GEMDevEng/GradientLab/api/model"
	"github.com/GEMDevEng/GradientLab/api/ops"
)

// DefaultTapSchedule fires the proof-of-capability tap every six hours.
const DefaultTapSchedule = "0 */6 * * *"

// TapRunner periodically runs the POC tap script on every active node and
// records the outcome in the node's bounded tap history.
type TapRunner struct {
	Store    Store
	Ops      ops.Channel
	WS       Broadcaster
	Schedule string

	cron     *cron.Cron
	inFlight atomic.Bool
}

// Start registers the tap job and begins the scheduler. Stop with Stop.
func (t *TapRunner) Start() error {
	if t.Schedule == "" {
		t.Schedule = DefaultTapSchedule
	}
	t.cron = cron.New()
	_, err := t.cron.AddFunc(t.Schedule, func() {
		t.SweepTaps(context.Background())
	})
	if err != nil {
		return err
	}
	t.cron.Start()
	log.Printf("tap: scheduled %q", t.Schedule)
	return nil
}

// Stop halts the scheduler and waits for a running sweep to finish.
func (t *TapRunner) Stop() {
	if t.cron == nil {
		return
	}
	<-t.cron.Stop().Done()
}

// SweepTaps taps every active node once. Like the health sweep, at most
// one tap sweep runs at a time and nodes are isolated from each other.
func (t *TapRunner) SweepTaps(ctx context.Context) {
	if !t.inFlight.CompareAndSwap(false, true) {
		log.Println("tap: previous sweep still running, skipping")
		return
	}
	defer t.inFlight.Store(false)

	nodes, err := t.Store.ListActiveNodes(ctx)
	if err != nil {
		log.Printf("tap: list nodes: %v", err)
		return
	}

	var wg sync.WaitGroup
	for _, nv := range nodes {
		wg.Add(1)
		go func(nv model.NodeVM) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					log.Printf("tap: node %s tap panicked: %v", nv.Node.ID, r)
				}
			}()
			t.tapOne(ctx, nv)
		}(nv)
	}
	wg.Wait()
}

func (t *TapRunner) tapOne(ctx context.Context, nv model.NodeVM) {
	node := nv.Node
	addr := nv.VM.IPAddress
	if addr == "" {
		return
	}

	out, err := t.Ops.Run(ctx, addr, ops.PocTapCommand)
	success := err == nil
	if err != nil {
		log.Printf("tap: node %s (%s): %v", node.Name, addr, err)
	} else if out != "" {
		log.Printf("tap: node %s: %s", node.Name, out)
	}

	if ctx.Err() != nil {
		return
	}

	now := time.Now()
	node.AppendPocTap(model.PocTap{Timestamp: now, Success: success})
	fields := map[string]interface{}{
		"poc_history":      node.PocHistory,
		"poc_success_rate": node.PocSuccessRate,
	}
	if err := t.Store.UpdateNodeFields(ctx, node.ID, fields); err != nil {
		log.Printf("tap: update node %s: %v", node.ID, err)
		return
	}

	t.WS.Publish(node.ID, hub.Event{Type: "node.poc", Payload: map[string]interface{}{
		"nodeId":         node.ID,
		"success":        success,
		"pocSuccessRate": node.PocSuccessRate,
		"tappedAt":       now.Format(time.RFC3339),
	}})
}
