package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// Output handles formatting output based on the configured format
type Output struct {
	format string
}

// NewOutput creates a new Output formatter
func NewOutput(format string) *Output {
	return &Output{format: format}
}

// Print outputs data in the configured format
func (o *Output) Print(data any) {
	if o.format == "json" {
		o.printJSON(data)
	} else {
		o.printText(data)
	}
}

// PrintError outputs an error
func (o *Output) PrintError(err error) {
	if o.format == "json" {
		errData := map[string]any{
			"error": map[string]string{
				"message": err.Error(),
			},
		}
		data, _ := json.Marshal(errData)
		fmt.Fprintln(os.Stderr, string(data))
	} else {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
	}
}

// PrintMessage outputs a simple message
func (o *Output) PrintMessage(msg string) {
	if o.format == "json" {
		data, _ := json.Marshal(map[string]string{"message": msg})
		fmt.Println(string(data))
	} else {
		fmt.Println(msg)
	}
}

func (o *Output) printJSON(data any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(data)
}

func (o *Output) printText(data any) {
	switch v := data.(type) {
	case User:
		o.printUser(v)
	case AuthResult:
		o.printAuthResult(v)
	case Room:
		o.printRoom(v)
	case RoomResult:
		o.printRoom(v.Room)
	case CreateRoomResult:
		o.printCreateRoomResult(v)
	case PlayersResult:
		o.printPlayersResult(v)
	case HealthResult:
		o.printHealthResult(v)
	default:
		// Fallback to JSON for unknown types
		o.printJSON(data)
	}
}

// User response type (matches API)
type User struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	IsGuest     bool   `json:"is_guest"`
}

// AuthResult combines user and token
type AuthResult struct {
	User         User   `json:"user"`
	SessionToken string `json:"session_token"`
}

// Room response type
type Room struct {
	ID           string     `json:"id"`
	Code         string     `json:"code"`
	HostID       string     `json:"host_id"`
	MaxPlayers   int        `json:"max_players"`
	PlayersCount int        `json:"players_count"`
	Status       string     `json:"status"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

// RoomResult wraps a room
type RoomResult struct {
	Room Room `json:"room"`
}

// CreateRoomResult includes the host's membership
type CreateRoomResult struct {
	Room       Room       `json:"room"`
	Membership RoomPlayer `json:"membership"`
}

// RoomPlayer is a roster entry
type RoomPlayer struct {
	UserID     string     `json:"user_id"`
	Role       string     `json:"role"`
	JoinedAt   time.Time  `json:"joined_at"`
	LastSeenAt *time.Time `json:"last_seen_at,omitempty"`
}

// PlayersResult is the roster listing
type PlayersResult struct {
	Players []RoomPlayer `json:"players"`
}

// HealthResult response type
type HealthResult struct {
	Status string `json:"status"`
}

func (o *Output) printUser(u User) {
	guestStr := "no"
	if u.IsGuest {
		guestStr = "yes"
	}
	fmt.Printf("User: %s (%s)\n", u.DisplayName, u.ID)
	fmt.Printf("Guest: %s\n", guestStr)
}

func (o *Output) printAuthResult(a AuthResult) {
	o.printUser(a.User)
	fmt.Printf("Token: %s\n", a.SessionToken)
}

func (o *Output) printRoom(r Room) {
	fmt.Printf("Room: %s\n", r.Code)
	fmt.Printf("ID: %s\n", r.ID)
	fmt.Printf("Status: %s\n", r.Status)
	fmt.Printf("Players: %d/%d\n", r.PlayersCount, r.MaxPlayers)
	if r.ExpiresAt != nil {
		fmt.Printf("Expires: %s\n", r.ExpiresAt.Format(time.RFC3339))
	}
}

func (o *Output) printCreateRoomResult(c CreateRoomResult) {
	o.printRoom(c.Room)
	fmt.Printf("Your role: %s\n", c.Membership.Role)
}

func (o *Output) printPlayersResult(p PlayersResult) {
	fmt.Printf("Players (%d):\n", len(p.Players))
	for _, m := range p.Players {
		hostStr := ""
		if m.Role == "HOST" {
			hostStr = " [host]"
		}
		fmt.Printf("  - %s%s (joined %s)\n", m.UserID, hostStr, m.JoinedAt.Format("15:04:05"))
	}
}

func (o *Output) printHealthResult(h HealthResult) {
	fmt.Printf("Status: %s\n", h.Status)
}
