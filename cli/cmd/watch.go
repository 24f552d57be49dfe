package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"

	"github.com/GEMDevEng/GradientLab/cli/style"
)

var watchCmd = &cobra.Command{
	Use:   "watch [node-id...]",
	Short: "Tail the realtime status stream",
	Long: `Connects to the status hub, authenticates, and prints events as they
arrive. With node ids, subscribes to those nodes (catching up on each
node's last known state); without, follows your own fleet's events.`,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

type wsEvent struct {
	Type    string          `json:"type"`
	NodeID  string          `json:"nodeId,omitempty"`
	UserID  string          `json:"userId,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

func runWatch(cmd *cobra.Command, args []string) error {
	wsURL := strings.Replace(apiURL, "https://", "wss://", 1)
	wsURL = strings.Replace(wsURL, "http://", "ws://", 1) + "/ws"

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		return fmt.Errorf("connect %s: %w", wsURL, err)
	}
	defer conn.Close()

	if err := conn.WriteJSON(map[string]string{"action": "authenticate", "token": apiToken}); err != nil {
		return err
	}
	for _, nodeID := range args {
		if err := conn.WriteJSON(map[string]string{"action": "subscribe", "nodeId": nodeID}); err != nil {
			return err
		}
	}

	fmt.Println(style.DimText.Render("watching " + wsURL + " (ctrl-c to stop)"))

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)
	go func() {
		<-interrupt
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		time.Sleep(200 * time.Millisecond)
		os.Exit(0)
	}()

	for {
		var evt wsEvent
		if err := conn.ReadJSON(&evt); err != nil {
			return fmt.Errorf("stream closed: %w", err)
		}
		printEvent(evt)
	}
}

func printEvent(evt wsEvent) {
	ts := style.DimText.Render(time.Now().Format("15:04:05"))

	var typeStyle = style.Val
	switch {
	case strings.HasSuffix(evt.Type, "deleted"):
		typeStyle = style.Unhealthy
	case evt.Type == "node.status", evt.Type == "vm.status_changed":
		typeStyle = style.Warning
	case strings.HasSuffix(evt.Type, "created"):
		typeStyle = style.Healthy
	}

	subject := evt.NodeID
	if subject == "" {
		subject = evt.UserID
	}

	payload := string(evt.Payload)
	if payload == "" || payload == "null" {
		payload = style.DimText.Render("—")
	}
	fmt.Printf("%s  %s  %s  %s\n", ts, typeStyle.Render(padRight(evt.Type, 18)), subject, payload)
}
