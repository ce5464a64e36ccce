package chathub

// RoomSet maintains the conversation-scoped broadcast groups. Join and
// leave are idempotent; a connection's active room set is exactly the
// conversations it has joined and not yet left. Owned by the hub
// goroutine, so no locking is needed here.
type RoomSet struct {
	rooms map[string]map[Client]struct{}
}

func NewRoomSet() *RoomSet {
	return &RoomSet{rooms: make(map[string]map[Client]struct{})}
}

// Join subscribes c to the conversation's room. Joining a room the
// connection is already a member of is a no-op.
func (r *RoomSet) Join(conversationID string, c Client) {
	members, ok := r.rooms[conversationID]
	if !ok {
		members = make(map[Client]struct{})
		r.rooms[conversationID] = members
	}
	members[c] = struct{}{}
}

// Leave unsubscribes c. Leaving a room the connection never joined is
// a no-op.
func (r *RoomSet) Leave(conversationID string, c Client) {
	members, ok := r.rooms[conversationID]
	if !ok {
		return
	}
	delete(members, c)
	if len(members) == 0 {
		delete(r.rooms, conversationID)
	}
}

// Members returns the connections currently subscribed to the room.
func (r *RoomSet) Members(conversationID string) []Client {
	members := r.rooms[conversationID]
	out := make([]Client, 0, len(members))
	for c := range members {
		out = append(out, c)
	}
	return out
}

// Contains reports whether c is a member of the conversation's room.
func (r *RoomSet) Contains(conversationID string, c Client) bool {
	_, ok := r.rooms[conversationID][c]
	return ok
}

// RemoveClient drops c from every room it belongs to. Called when the
// connection closes; room membership never outlives the connection.
func (r *RoomSet) RemoveClient(c Client) {
	for id, members := range r.rooms {
		delete(members, c)
		if len(members) == 0 {
			delete(r.rooms, id)
		}
	}
}
