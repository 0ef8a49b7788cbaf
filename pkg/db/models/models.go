package models

// All lists every model the worker reads or writes, in dependency order.
func All() []any {
	return []any{
		&Persona{},
		&Pet{},
		&ChatRoom{},
		&ChatMessage{},
		&DeviceToken{},
		&UserActivity{},
		&PushNotification{},
	}
}
