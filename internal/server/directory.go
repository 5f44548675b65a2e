// Package server tracks which connections have claimed a display name via
// the directory type, the authoritative list of logged-in users.
package server

// directory maps connection identities to display names. It is owned by the
// hub goroutine; every mutation happens inside the hub's event loop, so no
// lock is needed.
//
// Users are kept in login order in a plain slice. Lookups are linear scans,
// which is fine at the scale of a single relay process and keeps the roster
// broadcast in a stable order.
type directory struct {
	users []UserRef
}

func newDirectory() *directory {
	return &directory{}
}

// login registers a display name for the given identity. It fails when
// either value is empty or when the name is already claimed by a logged-in
// user (case-sensitive exact match). The directory is left untouched on
// failure.
func (d *directory) login(identity, userName string) (UserRef, bool) {
	if identity == "" || userName == "" {
		return UserRef{}, false
	}
	if _, ok := d.findByDisplayName(userName); ok {
		return UserRef{}, false
	}
	user := UserRef{Identity: identity, UserName: userName}
	d.users = append(d.users, user)
	return user, true
}

// remove drops the user owning identity. Removing an identity that never
// logged in is a no-op, so the disconnect path can call it unconditionally.
func (d *directory) remove(identity string) {
	for i, u := range d.users {
		if u.Identity == identity {
			d.users = append(d.users[:i], d.users[i+1:]...)
			return
		}
	}
}

func (d *directory) findByDisplayName(userName string) (UserRef, bool) {
	for _, u := range d.users {
		if u.UserName == userName {
			return u, true
		}
	}
	return UserRef{}, false
}

func (d *directory) findByIdentity(identity string) (UserRef, bool) {
	for _, u := range d.users {
		if u.Identity == identity {
			return u, true
		}
	}
	return UserRef{}, false
}

// snapshot copies the current roster for broadcasting.
func (d *directory) snapshot() []UserRef {
	out := make([]UserRef, len(d.users))
	copy(out, d.users)
	return out
}

func (d *directory) size() int {
	return len(d.users)
}
