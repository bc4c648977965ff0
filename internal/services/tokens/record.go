package tokens

import (
	"fmt"
	"time"

	"github.com/mcoot/gamerelay/internal/dependencies/clock"
	"github.com/mcoot/gamerelay/internal/model"
)

// localTimeLayout accepts timestamps written without a zone, read as UTC
const localTimeLayout = "2006-01-02T15:04:05.999999999"

// Record is the token file line format, also used by the internal API
type Record struct {
	Token       string   `json:"token"`
	CreatedAt   string   `json:"created_at"`
	Lifespan    float64  `json:"lifespan"`
	Valid       bool     `json:"valid"`
	Note        string   `json:"note"`
	Permissions []string `json:"permissions"`
	Temporary   bool     `json:"temporary,omitempty"`
	UserID      string   `json:"user_id,omitempty"`
}

// RecordFromModel converts a token into its file representation
func RecordFromModel(t model.Token) Record {
	perms := []string(t.Permissions)
	if perms == nil {
		perms = []string{}
	}
	return Record{
		Token:       string(t.ID),
		CreatedAt:   t.CreatedAt.UTC().Format(time.RFC3339Nano),
		Lifespan:    t.Lifespan.Seconds(),
		Valid:       t.Valid,
		Note:        t.Note,
		Permissions: perms,
		Temporary:   t.Temporary,
		UserID:      string(t.UserID),
	}
}

// ToModel parses a file record
func (r Record) ToModel() (model.Token, error) {
	if r.Token == "" {
		return model.Token{}, fmt.Errorf("record has no token")
	}
	created, err := parseTimestamp(r.CreatedAt)
	if err != nil {
		return model.Token{}, err
	}
	return model.Token{
		ID:          model.TokenID(r.Token),
		CreatedAt:   created,
		Lifespan:    clock.FromSeconds(r.Lifespan),
		Permissions: model.NewPermissions(r.Permissions...),
		Note:        r.Note,
		UserID:      model.UserID(r.UserID),
		Temporary:   r.Temporary,
		Valid:       r.Valid,
	}, nil
}

func parseTimestamp(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	t, err := time.ParseInLocation(localTimeLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse created_at %q: %w", s, err)
	}
	return t, nil
}
