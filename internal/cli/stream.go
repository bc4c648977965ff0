package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/mcoot/gamerelay/internal/protocol"
)

func newStreamCmd() *cobra.Command {
	var jsonOutput, hello bool
	var pingEvery time.Duration

	cmd := &cobra.Command{
		Use:   "stream <id>",
		Short: "Open the relay stream of a game and print received frames",
		Long: `Connect to the game's relay stream and print frames as they arrive.

The token must belong to a player of the game. With --hello a HELO frame is
sent once connected; with --ping a PING frame is sent periodically.

Press Ctrl+C to disconnect.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return streamFrames(cmd.Context(), args[0], jsonOutput, hello, pingEvery)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output frames as JSON lines")
	cmd.Flags().BoolVar(&hello, "hello", false, "Send HELO after connecting")
	cmd.Flags().DurationVar(&pingEvery, "ping", 0, "Send PING at this interval, 0 to disable")

	return cmd
}

// FrameEvent is a received frame as printed by the stream command
type FrameEvent struct {
	Time     time.Time `json:"time"`
	Type     string    `json:"type"`
	ClientID string    `json:"client_id"`
	Flags    string    `json:"flags"`
	Body     string    `json:"body,omitempty"`
}

func streamFrames(ctx context.Context, gameID string, jsonOutput, hello bool, pingEvery time.Duration) error {
	session, err := hubClient.AttachGame(ctx, gameID)
	if err != nil {
		return err
	}
	if err := hubClient.StartStream(); err != nil {
		return err
	}
	defer hubClient.StopStream(2 * time.Second)

	if !jsonOutput {
		fmt.Printf("Connected to game %s (%s)\n", session.GameID, session.URL)
	}
	if hello {
		if err := hubClient.Send(protocol.Hello{Envelope: protocol.To(protocol.DefaultClientID)}); err != nil {
			return err
		}
	}

	var ping <-chan time.Time
	if pingEvery > 0 {
		ticker := time.NewTicker(pingEvery)
		defer ticker.Stop()
		ping = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			if !jsonOutput {
				fmt.Println("\nDisconnected")
			}
			return nil
		case now := <-ping:
			if err := hubClient.Send(protocol.NewPing(protocol.To(protocol.DefaultClientID), now)); err != nil {
				return err
			}
		default:
		}

		m, ok := hubClient.Receive(true, 200*time.Millisecond)
		if !ok {
			continue
		}
		printFrame(m, jsonOutput)
	}
}

func printFrame(m protocol.Message, jsonOutput bool) {
	now := time.Now()
	env := m.Routing()
	body, _ := m.Body()

	if jsonOutput {
		evt := FrameEvent{
			Time:     now,
			Type:     m.Type(),
			ClientID: env.ClientID,
			Flags:    env.Flags,
			Body:     string(body),
		}
		jsonData, _ := json.Marshal(evt)
		fmt.Println(string(jsonData))
		return
	}

	timestamp := now.Format("2006-01-02 15:04:05")
	displayData := describe(m, body)
	// Truncate data if it's too long for display
	if len(displayData) > 100 {
		displayData = displayData[:100] + "..."
	}
	fmt.Printf("[%s] %s[%s] %s\n", timestamp, m.Type(), env.ClientID, displayData)
}

// describe renders the payload of the well-known types, raw bytes otherwise
func describe(m protocol.Message, body []byte) string {
	switch v := m.(type) {
	case protocol.Ping:
		return fmt.Sprintf("t=%.3f", v.Seconds())
	case protocol.Pong:
		return fmt.Sprintf("t=%.3f rtt=%s", v.Seconds(), time.Since(v.Time).Round(time.Millisecond))
	case protocol.Heartbeat:
		return fmt.Sprintf("seq=%d", v.Sequence)
	default:
		return fmt.Sprintf("%q", body)
	}
}
