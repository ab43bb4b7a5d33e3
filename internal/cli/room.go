package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newRoomCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "room",
		Short: "Room management commands",
	}

	cmd.AddCommand(newRoomCreateCmd())
	cmd.AddCommand(newRoomGetCmd())
	cmd.AddCommand(newRoomJoinCmd())
	cmd.AddCommand(newRoomLeaveCmd())
	cmd.AddCommand(newRoomStartCmd())
	cmd.AddCommand(newRoomCancelCmd())
	cmd.AddCommand(newRoomFinishCmd())
	cmd.AddCommand(newRoomPlayersCmd())

	return cmd
}

// resolveRoom looks up a room by its share code
func resolveRoom(code string) (Room, error) {
	var result RoomResult
	if err := client.Get(fmt.Sprintf("/api/v1/rooms/code/%s", code), &result); err != nil {
		return Room{}, err
	}
	return result.Room, nil
}

func newRoomCreateCmd() *cobra.Command {
	var maxPlayers, expiresMinutes int

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a new room",
		RunE: func(cmd *cobra.Command, args []string) error {
			req := map[string]int{}
			if maxPlayers > 0 {
				req["max_players"] = maxPlayers
			}
			if expiresMinutes > 0 {
				req["expires_minutes"] = expiresMinutes
			}

			var result CreateRoomResult

			if err := client.Post("/api/v1/rooms", req, &result); err != nil {
				return err
			}

			out := NewOutput(cfg.Output)
			out.Print(result)
			return nil
		},
	}

	cmd.Flags().IntVar(&maxPlayers, "max-players", 0, "Max players (default: server default)")
	cmd.Flags().IntVar(&expiresMinutes, "expires", 0, "Expiry in minutes (default: no expiry)")

	return cmd
}

func newRoomGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <code>",
		Short: "Get room details by code",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			room, err := resolveRoom(args[0])
			if err != nil {
				return err
			}

			out := NewOutput(cfg.Output)
			out.Print(room)
			return nil
		},
	}
}

func newRoomJoinCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "join <code>",
		Short: "Join a room by code",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			code := args[0]

			var result RoomResult

			if err := client.Post(fmt.Sprintf("/api/v1/rooms/code/%s/join", code), nil, &result); err != nil {
				return err
			}

			out := NewOutput(cfg.Output)
			out.Print(result)
			return nil
		},
	}
}

func newRoomLeaveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "leave <code>",
		Short: "Leave a room",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			room, err := resolveRoom(args[0])
			if err != nil {
				return err
			}

			if err := client.Post(fmt.Sprintf("/api/v1/rooms/%s/leave", room.ID), nil, nil); err != nil {
				return err
			}

			out := NewOutput(cfg.Output)
			out.PrintMessage(fmt.Sprintf("Left room %s", room.Code))
			return nil
		},
	}
}

func newRoomStartCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "start <code>",
		Short: "Start the game (host only)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			room, err := resolveRoom(args[0])
			if err != nil {
				return err
			}

			var result RoomResult

			if err := client.Post(fmt.Sprintf("/api/v1/rooms/%s/start", room.ID), nil, &result); err != nil {
				return err
			}

			out := NewOutput(cfg.Output)
			out.Print(result)
			return nil
		},
	}
}

func newRoomCancelCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <code>",
		Short: "Cancel a waiting room (host only)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			room, err := resolveRoom(args[0])
			if err != nil {
				return err
			}

			if err := client.Delete(fmt.Sprintf("/api/v1/rooms/%s", room.ID)); err != nil {
				return err
			}

			out := NewOutput(cfg.Output)
			out.PrintMessage(fmt.Sprintf("Cancelled room %s", room.Code))
			return nil
		},
	}
}

func newRoomFinishCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "finish <code>",
		Short: "Finish a game in progress",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			room, err := resolveRoom(args[0])
			if err != nil {
				return err
			}

			var result RoomResult

			if err := client.Post(fmt.Sprintf("/api/v1/rooms/%s/finish", room.ID), nil, &result); err != nil {
				return err
			}

			out := NewOutput(cfg.Output)
			out.Print(result)
			return nil
		},
	}
}

func newRoomPlayersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "players <code>",
		Short: "List the room roster",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			room, err := resolveRoom(args[0])
			if err != nil {
				return err
			}

			var result PlayersResult

			if err := client.Get(fmt.Sprintf("/api/v1/rooms/%s/players", room.ID), &result); err != nil {
				return err
			}

			out := NewOutput(cfg.Output)
			out.Print(result)
			return nil
		},
	}
}
