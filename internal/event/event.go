package event

// Names of real-time events exchanged with clients.
const (
	// client -> server
	GetChatList      = "getChatList"
	JoinChat         = "joinChat"
	LeaveChat        = "leaveChat"
	SendMessage      = "sendMessage"
	StartChatByEmail = "startChatByEmail"

	// server -> client
	ChatListInitial = "chatListInitial"
	ChatJoined      = "chatJoined"
	ChatLeft        = "chatLeft"
	Message         = "message"
	ChatUpdated     = "chatUpdated"
	ChatCreated     = "chatCreated"
	Error           = "error"
)

type Scope int

const (
	// ScopeRoom targets every connection joined to a conversation room.
	ScopeRoom Scope = iota
	// ScopeUser targets a user's personal channel, joined at
	// authentication, regardless of room membership.
	ScopeUser
)

// Event is a pending emission. The conversation service returns these
// instead of touching the transport; only the gateway layer performs the
// actual socket writes.
type Event struct {
	Scope   Scope
	Target  string
	Name    string
	Payload any
}

func ToRoom(chatID, name string, payload any) Event {
	return Event{Scope: ScopeRoom, Target: chatID, Name: name, Payload: payload}
}

func ToUser(userID, name string, payload any) Event {
	return Event{Scope: ScopeUser, Target: userID, Name: name, Payload: payload}
}
