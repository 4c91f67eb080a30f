// Package domain contains core concepts of the relay.
// This file defines the Group entity and its membership invariants.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// groupIDLength keeps ids short enough to type in a client.
const groupIDLength = 8

// Group is a named, server-lifetime collection of usernames.
// The creator is always a member while the group exists.
// Membership mutation is not synchronized here; the Directory owns that.
type Group struct {
	ID         string
	Name       string
	Creator    string
	CreateTime time.Time

	members []string
}

// NewGroup builds a group with a fresh opaque id, folding the creator
// into the member list if absent. Duplicate member names collapse.
func NewGroup(name, creator string, members []string) *Group {
	g := &Group{
		ID:         uuid.NewString()[:groupIDLength],
		Name:       name,
		Creator:    creator,
		CreateTime: time.Now().UTC(),
	}
	g.AddMember(creator)
	for _, m := range members {
		g.AddMember(m)
	}
	return g
}

func (g *Group) AddMember(username string) {
	if username == "" || g.HasMember(username) {
		return
	}
	g.members = append(g.members, username)
}

func (g *Group) RemoveMember(username string) {
	for i, m := range g.members {
		if m == username {
			g.members = append(g.members[:i], g.members[i+1:]...)
			return
		}
	}
}

func (g *Group) HasMember(username string) bool {
	for _, m := range g.members {
		if m == username {
			return true
		}
	}
	return false
}

// Members returns a copy; callers may not mutate membership directly.
func (g *Group) Members() []string {
	out := make([]string, len(g.members))
	copy(out, g.members)
	return out
}

func (g *Group) Empty() bool {
	return len(g.members) == 0
}

// GroupInfo is the wire representation of a Group.
type GroupInfo struct {
	GroupID    string   `json:"groupId"`
	GroupName  string   `json:"groupName"`
	Creator    string   `json:"creator"`
	Members    []string `json:"members"`
	CreateTime int64    `json:"createTime"`
}

func (g *Group) Info() GroupInfo {
	return GroupInfo{
		GroupID:    g.ID,
		GroupName:  g.Name,
		Creator:    g.Creator,
		Members:    g.Members(),
		CreateTime: g.CreateTime.UnixMilli(),
	}
}
