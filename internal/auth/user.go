// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Courtside Contributors

package auth

import (
	"bytes"
	"encoding/json"
	"slices"
	"strings"
	"time"
)

// Role is a league role. A user's primary role is its Type; Roles lists
// any additional grants.
type Role string

// League roles.
const (
	RolePlayer  Role = "player"
	RoleCoach   Role = "coach"
	RoleReferee Role = "referee"
	RoleAdmin   Role = "admin"
	RoleLeague  Role = "league"
)

func normalizeRole(r Role) Role {
	return Role(strings.ToLower(strings.TrimSpace(string(r))))
}

// UserID is a backend identifier. The API sends numeric ids for some
// deployments and strings for others; both decode into the same value.
type UserID string

// UnmarshalJSON accepts a JSON string or number.
func (id *UserID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = UserID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*id = UserID(n.String())
	return nil
}

func (id UserID) String() string { return string(id) }

// PlayerInfo is present when the user is registered on a team roster.
type PlayerInfo struct {
	TeamID       string `json:"team_id,omitempty"`
	TeamName     string `json:"team_name,omitempty"`
	JerseyNumber int    `json:"jersey_number,omitempty"`
	Position     string `json:"position,omitempty"`
}

// CoachInfo is present for coaching staff.
type CoachInfo struct {
	TeamID   string `json:"team_id,omitempty"`
	TeamName string `json:"team_name,omitempty"`
	License  string `json:"license,omitempty"`
}

// RefereeInfo is present for certified referees.
type RefereeInfo struct {
	LicenseLevel   string     `json:"license_level,omitempty"`
	CertifiedUntil *time.Time `json:"certified_until,omitempty"`
}

// User is the authenticated account as returned by the league API.
type User struct {
	ID        UserID       `json:"id"`
	Email     string       `json:"email"`
	Name      string       `json:"name"`
	Type      Role         `json:"user_type"`
	Roles     []Role       `json:"roles,omitempty"`
	Phone     string       `json:"phone,omitempty"`
	AvatarURL string       `json:"avatar_url,omitempty"`
	LeagueID  string       `json:"league_id,omitempty"`
	Player    *PlayerInfo  `json:"player,omitempty"`
	Coach     *CoachInfo   `json:"coach,omitempty"`
	Referee   *RefereeInfo `json:"referee,omitempty"`
}

// HasRole reports whether role is the user's type or one of its grants.
// Comparison ignores case and surrounding space.
func (u *User) HasRole(role Role) bool {
	if u == nil {
		return false
	}
	role = normalizeRole(role)
	if role == "" {
		return false
	}
	if normalizeRole(u.Type) == role {
		return true
	}
	return slices.ContainsFunc(u.Roles, func(r Role) bool { return normalizeRole(r) == role })
}

// HasAnyRole reports whether the user holds at least one of roles.
func (u *User) HasAnyRole(roles ...Role) bool {
	return slices.ContainsFunc(roles, u.HasRole)
}

// Clone returns a deep copy. Clone of nil is nil.
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	out := *u
	out.Roles = slices.Clone(u.Roles)
	if u.Player != nil {
		p := *u.Player
		out.Player = &p
	}
	if u.Coach != nil {
		c := *u.Coach
		out.Coach = &c
	}
	if u.Referee != nil {
		r := *u.Referee
		if u.Referee.CertifiedUntil != nil {
			until := *u.Referee.CertifiedUntil
			r.CertifiedUntil = &until
		}
		out.Referee = &r
	}
	return &out
}

// UserPatch is a partial profile update. Nil fields are left unchanged.
type UserPatch struct {
	Name      *string
	Email     *string
	Phone     *string
	AvatarURL *string
	Player    *PlayerInfo
	Coach     *CoachInfo
	Referee   *RefereeInfo
}

// IsEmpty reports whether the patch changes nothing.
func (p UserPatch) IsEmpty() bool {
	return p.Name == nil && p.Email == nil && p.Phone == nil && p.AvatarURL == nil &&
		p.Player == nil && p.Coach == nil && p.Referee == nil
}

// Apply returns a copy of u with the patch merged in.
func (u *User) Apply(p UserPatch) *User {
	out := u.Clone()
	if out == nil {
		return nil
	}
	if p.Name != nil {
		out.Name = *p.Name
	}
	if p.Email != nil {
		out.Email = *p.Email
	}
	if p.Phone != nil {
		out.Phone = *p.Phone
	}
	if p.AvatarURL != nil {
		out.AvatarURL = *p.AvatarURL
	}
	if p.Player != nil {
		player := *p.Player
		out.Player = &player
	}
	if p.Coach != nil {
		coach := *p.Coach
		out.Coach = &coach
	}
	if p.Referee != nil {
		out.Referee = (&User{Referee: p.Referee}).Clone().Referee
	}
	return out
}
