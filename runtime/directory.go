package runtime

import (
	"sort"
	"sync"

	"github.com/samber/lo"

	"chat-relay/domain"
)

// Directory maps group ids to groups. Membership is independent of who is
// online; the directory never touches the registry. The *domain.Group
// values never leave the lock: every accessor hands out a snapshot, so a
// caller can walk a member list while other sessions mutate membership.
type Directory struct {
	mu     sync.RWMutex
	groups map[string]*domain.Group
}

func NewDirectory() *Directory {
	return &Directory{groups: make(map[string]*domain.Group)}
}

// CreateGroup stores a fresh group. The constructor folds the creator
// into the member list, so the creator-in-members invariant holds from
// the first moment the group is observable.
func (d *Directory) CreateGroup(name, creator string, members []string) domain.GroupInfo {
	group := domain.NewGroup(name, creator, members)
	d.mu.Lock()
	defer d.mu.Unlock()
	d.groups[group.ID] = group
	return group.Info()
}

func (d *Directory) Group(groupID string) (domain.GroupInfo, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	g, ok := d.groups[groupID]
	if !ok {
		return domain.GroupInfo{}, false
	}
	return g.Info(), true
}

// Members returns a copy of the current member list.
func (d *Directory) Members(groupID string) ([]string, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	g, ok := d.groups[groupID]
	if !ok {
		return nil, false
	}
	return g.Members(), true
}

func (d *Directory) AddMember(groupID, username string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	g, ok := d.groups[groupID]
	if !ok {
		return false
	}
	g.AddMember(username)
	return true
}

// RemoveMember drops the user from the group and deletes the group the
// moment its membership empties. No orphan groups survive.
func (d *Directory) RemoveMember(groupID, username string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	g, ok := d.groups[groupID]
	if !ok {
		return false
	}
	g.RemoveMember(username)
	if g.Empty() {
		delete(d.groups, groupID)
	}
	return true
}

func (d *Directory) IsMember(groupID, username string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	g, ok := d.groups[groupID]
	return ok && g.HasMember(username)
}

// GroupsForUser returns every group the user belongs to, ordered by
// creation time so the client's group list is stable across logins.
func (d *Directory) GroupsForUser(username string) []domain.GroupInfo {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var matched []*domain.Group
	for _, g := range d.groups {
		if g.HasMember(username) {
			matched = append(matched, g)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreateTime.Before(matched[j].CreateTime)
	})
	return lo.Map(matched, func(g *domain.Group, _ int) domain.GroupInfo {
		return g.Info()
	})
}

func (d *Directory) Count() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.groups)
}
