package cache

// Key scheme for the assembled chat read model.

func ConversationKey(chatID string) string {
	return "conversation:" + chatID
}

func ConversationListKey(userID string) string {
	return "conversation-list:" + userID
}
