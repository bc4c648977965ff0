package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/mcoot/gamerelay/internal/api/response"
	"github.com/mcoot/gamerelay/internal/client"
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
	case client.Session:
		o.printSession(v)
	case response.Game:
		o.printGame(v)
	case []response.Game:
		for i, g := range v {
			if i > 0 {
				fmt.Println()
			}
			o.printGame(g)
		}
	case response.LoginResponse:
		o.printLogin(v)
	case response.Token:
		o.printToken(v)
	case []response.Token:
		for _, t := range v {
			o.printToken(t)
		}
	case response.User:
		o.printUser(v)
	case response.Status:
		o.printStatus(v)
	default:
		// Fallback to JSON for unknown types
		o.printJSON(data)
	}
}

func (o *Output) printPlayer(p response.Player) {
	masterStr := ""
	if p.IsMaster {
		masterStr = " [master]"
	}
	fmt.Printf("  - %s (%s)%s\n", p.Alias, p.PlayerID, masterStr)
}

func (o *Output) printSession(s client.Session) {
	fmt.Printf("Game: %s (%s)\n", s.GameName, s.GameID)
	fmt.Printf("URL: %s\n", s.URL)
	fmt.Printf("Player: %s (%s)\n", s.Player.Alias, s.Player.PlayerID)
	if s.Player.Token != "" {
		fmt.Printf("Stream Token: %s\n", s.Player.Token)
	}
}

func (o *Output) printGame(g response.Game) {
	fmt.Printf("Game: %s (%s)\n", g.GameName, g.GameID)
	fmt.Printf("State: %s\n", g.State)
	fmt.Printf("URL: %s\n", g.URL)
	fmt.Printf("Created: %s\n", g.CreatedAt.Format(time.RFC3339))
	if len(g.Options) > 0 {
		opts := make([]string, 0, len(g.Options))
		for k, v := range g.Options {
			opts = append(opts, fmt.Sprintf("%s=%v", k, v))
		}
		fmt.Printf("Options: %s\n", strings.Join(opts, ", "))
	}
	fmt.Printf("Players (%d):\n", len(g.Players))
	for _, p := range g.Players {
		o.printPlayer(p)
	}
}

func (o *Output) printLogin(l response.LoginResponse) {
	fmt.Printf("User: %s\n", l.UserID)
	fmt.Printf("Token: %s\n", l.Token)
	fmt.Printf("Lifespan: %s\n", time.Duration(l.Lifespan*float64(time.Second)))
	fmt.Printf("Permissions: %s\n", strings.Join(l.Permissions, "/"))
}

func (o *Output) printToken(t response.Token) {
	validStr := "valid"
	if !t.Valid {
		validStr = "revoked"
	}
	fmt.Printf("%s  %s  %s  %s  %s\n", t.Token, t.CreatedAt, time.Duration(t.Lifespan*float64(time.Second)), validStr, strings.Join(t.Permissions, "/"))
	if t.Note != "" {
		fmt.Printf("    note: %s\n", t.Note)
	}
}

func (o *Output) printUser(u response.User) {
	yesNo := func(b bool) string {
		if b {
			return "yes"
		}
		return "no"
	}
	fmt.Printf("User: %s (%s)\n", u.Username, u.UserID)
	if u.Email != "" {
		fmt.Printf("Email: %s\n", u.Email)
	}
	fmt.Printf("Enabled: %s\n", yesNo(u.Enabled))
	fmt.Printf("Verified: %s\n", yesNo(u.Verified))
	fmt.Printf("Permissions: %s\n", strings.Join(u.Permissions, "/"))
}

func (o *Output) printStatus(s response.Status) {
	fmt.Printf("Status: %s\n", s.Status)
	if s.Games != nil {
		fmt.Printf("Games: %d\n", *s.Games)
	}
	if s.Tokens != nil {
		fmt.Printf("Tokens: %d\n", *s.Tokens)
	}
	if s.Users != nil {
		fmt.Printf("Users: %d\n", *s.Users)
	}
}
