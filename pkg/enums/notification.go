package enums

import "fmt"

// NotificationType is the variant tag of a push notification.
type NotificationType string

const (
	NotificationTypeInactivityMessage  NotificationType = "INACTIVITY_MESSAGE"
	NotificationTypeNewMessage         NotificationType = "NEW_MESSAGE"
	NotificationTypeSystemAnnouncement NotificationType = "SYSTEM_ANNOUNCEMENT"
	NotificationTypePetStatusChange    NotificationType = "PET_STATUS_CHANGE"
)

var validNotificationTypes = []NotificationType{
	NotificationTypeInactivityMessage,
	NotificationTypeNewMessage,
	NotificationTypeSystemAnnouncement,
	NotificationTypePetStatusChange,
}

func (n NotificationType) String() string {
	return string(n)
}

// IsValid checks whether the given type matches the canonical enum.
func (n NotificationType) IsValid() bool {
	for _, candidate := range validNotificationTypes {
		if candidate == n {
			return true
		}
	}
	return false
}

// ParseNotificationType converts raw strings into NotificationType.
func ParseNotificationType(value string) (NotificationType, error) {
	for _, candidate := range validNotificationTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid notification type %q", value)
}

// NotificationStatus is the lifecycle state of a push notification.
type NotificationStatus string

const (
	NotificationStatusPending  NotificationStatus = "PENDING"
	NotificationStatusSent     NotificationStatus = "SENT"
	NotificationStatusFailed   NotificationStatus = "FAILED"
	NotificationStatusReceived NotificationStatus = "RECEIVED"
)

var validNotificationStatuses = []NotificationStatus{
	NotificationStatusPending,
	NotificationStatusSent,
	NotificationStatusFailed,
	NotificationStatusReceived,
}

// NotificationStatuses returns every status in lifecycle order.
func NotificationStatuses() []NotificationStatus {
	out := make([]NotificationStatus, len(validNotificationStatuses))
	copy(out, validNotificationStatuses)
	return out
}

func (s NotificationStatus) String() string {
	return string(s)
}

func (s NotificationStatus) IsValid() bool {
	for _, candidate := range validNotificationStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transitions are allowed.
func (s NotificationStatus) IsTerminal() bool {
	return s == NotificationStatusFailed || s == NotificationStatusReceived
}

func ParseNotificationStatus(value string) (NotificationStatus, error) {
	for _, candidate := range validNotificationStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid notification status %q", value)
}

// FailureReason prefixes the failure_reason column of a failed delivery.
type FailureReason string

const (
	FailureReasonNoDestination    FailureReason = "NO_DESTINATION"
	FailureReasonTransportFailure FailureReason = "TRANSPORT_FAILURE"
)

func (r FailureReason) String() string {
	return string(r)
}

// WithDetail renders the reason with a human readable suffix.
func (r FailureReason) WithDetail(detail string) string {
	if detail == "" {
		return string(r)
	}
	return fmt.Sprintf("%s: %s", r, detail)
}

// CandidateReason explains why a notification candidate was emitted.
type CandidateReason string

const (
	CandidateReasonUserInactive CandidateReason = "USER_INACTIVE"
)
