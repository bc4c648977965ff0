package users

import (
	"fmt"

	"github.com/mcoot/gamerelay/internal/dependencies/clock"
	"github.com/mcoot/gamerelay/internal/model"
)

// Record is the users file line format
type Record struct {
	UserID      string   `json:"user_id"`
	Username    string   `json:"username"`
	PasswordSHA string   `json:"password_sha"`
	Email       string   `json:"email"`
	CreatedAt   float64  `json:"created_at"`
	Enabled     bool     `json:"enabled"`
	Verified    bool     `json:"verified"`
	Permissions []string `json:"permissions"`
}

func recordFromModel(u model.User) Record {
	perms := []string(u.Permissions)
	if perms == nil {
		perms = []string{}
	}
	return Record{
		UserID:      string(u.ID),
		Username:    u.Username,
		PasswordSHA: u.PasswordHash,
		Email:       u.Email,
		CreatedAt:   clock.EpochSeconds(u.CreatedAt),
		Enabled:     u.Enabled,
		Verified:    u.Verified,
		Permissions: perms,
	}
}

func (r Record) toModel() (model.User, error) {
	if r.UserID == "" || r.Username == "" {
		return model.User{}, fmt.Errorf("record is missing user_id or username")
	}
	return model.User{
		ID:           model.UserID(r.UserID),
		Username:     r.Username,
		PasswordHash: r.PasswordSHA,
		Email:        r.Email,
		Permissions:  model.NewPermissions(r.Permissions...),
		Enabled:      r.Enabled,
		Verified:     r.Verified,
		CreatedAt:    clock.FromEpochSeconds(r.CreatedAt),
	}, nil
}
