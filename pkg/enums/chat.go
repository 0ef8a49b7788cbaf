package enums

import "fmt"

// MessageSender distinguishes user-authored from pet-authored chat messages.
type MessageSender string

const (
	MessageSenderUser MessageSender = "USER"
	MessageSenderPet  MessageSender = "PET"
)

func (s MessageSender) IsValid() bool {
	return s == MessageSenderUser || s == MessageSenderPet
}

func ParseMessageSender(value string) (MessageSender, error) {
	s := MessageSender(value)
	if s.IsValid() {
		return s, nil
	}
	return "", fmt.Errorf("invalid message sender %q", value)
}
