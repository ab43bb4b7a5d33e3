package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

const (
	// Re-fetch cadence when no hints arrive (covers missed/dropped hints)
	pollInterval = 5 * time.Second
	// Delay between receiving a hint and re-fetching, to cover replication lag
	hintRefetchDelay = 500 * time.Millisecond
)

func newWatchCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "watch <code>",
		Short: "Watch a room for changes",
		Long: `Connect to the room's SSE endpoint and follow its state in real-time.

Hints are advisory: on every hint the watcher re-fetches the authoritative
room state from the API. It also polls every 5 seconds regardless, so the
view stays correct even if the event stream drops.

Events include:
  - member_joined: A player joined the room
  - member_left: A player left the room
  - room_updated: Room state changed (created, started, finished, cancelled)

Press Ctrl+C to disconnect.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return watchRoom(args[0], jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output events as JSON lines")

	return cmd
}

// SSEEvent represents a parsed SSE event
type SSEEvent struct {
	Time  time.Time `json:"time"`
	Event string    `json:"event"`
	Data  string    `json:"data"`
}

func watchRoom(code string, jsonOutput bool) error {
	room, err := resolveRoom(code)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle interrupt
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	if !jsonOutput {
		fmt.Printf("Watching room %s\n", room.Code)
		printRoomLine(room)
	}

	// Stream hints in the background; polling below covers a dead stream
	hints := make(chan SSEEvent, 16)
	go func() {
		defer close(hints)
		if err := streamEvents(ctx, room.ID, hints); err != nil && ctx.Err() == nil {
			if !jsonOutput {
				fmt.Fprintf(os.Stderr, "event stream unavailable (%s), polling only\n", err)
			}
		}
	}()

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	last := room
	for {
		select {
		case <-ctx.Done():
			if !jsonOutput {
				fmt.Println("\nDisconnected")
			}
			return nil
		case evt, ok := <-hints:
			if !ok {
				hints = nil // stream closed, keep polling
				continue
			}
			if jsonOutput {
				data, _ := json.Marshal(evt)
				fmt.Println(string(data))
			}
			time.Sleep(hintRefetchDelay)
			last = refetch(code, last, jsonOutput)
		case <-ticker.C:
			last = refetch(code, last, jsonOutput)
		}
	}
}

// refetch pulls the current room state and reports changes since prev
func refetch(code string, prev Room, jsonOutput bool) Room {
	room, err := resolveRoom(code)
	if err != nil {
		if !jsonOutput {
			fmt.Fprintf(os.Stderr, "refetch failed: %s\n", err)
		}
		return prev
	}

	if !jsonOutput && (room.Status != prev.Status || room.PlayersCount != prev.PlayersCount) {
		printRoomLine(room)
	}
	return room
}

func printRoomLine(r Room) {
	timestamp := time.Now().Format("2006-01-02 15:04:05")
	fmt.Printf("[%s] %s: %s, %d/%d players\n", timestamp, r.Code, r.Status, r.PlayersCount, r.MaxPlayers)
}

// streamEvents connects to the SSE endpoint and forwards parsed events
func streamEvents(ctx context.Context, roomID string, out chan<- SSEEvent) error {
	url := strings.TrimSuffix(cfg.ServerURL, "/") + "/api/v1/rooms/" + roomID + "/events"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	httpClient := &http.Client{
		Timeout: 0, // No timeout for SSE
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("connection failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	// Parse SSE stream
	scanner := bufio.NewScanner(resp.Body)
	var currentEvent string
	var dataLines []string

	for scanner.Scan() {
		line := scanner.Text()

		if strings.HasPrefix(line, "event: ") {
			currentEvent = strings.TrimPrefix(line, "event: ")
		} else if strings.HasPrefix(line, "data: ") {
			dataLines = append(dataLines, strings.TrimPrefix(line, "data: "))
		} else if line == "" {
			// End of event
			if currentEvent != "" && currentEvent != "connected" {
				select {
				case out <- SSEEvent{
					Time:  time.Now(),
					Event: currentEvent,
					Data:  strings.Join(dataLines, "\n"),
				}:
				case <-ctx.Done():
					return nil
				}
			}
			currentEvent = ""
			dataLines = nil
		}
	}

	if err := scanner.Err(); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("stream error: %w", err)
	}

	return nil
}
