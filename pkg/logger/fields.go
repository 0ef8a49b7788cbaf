package logger

import "context"

// Field names shared by the HTTP surface, the consumers and the cron jobs.
const (
	FieldRequestID      = "request_id"
	FieldUserID         = "user_id"
	FieldNotificationID = "notification_id"
	FieldEventID        = "event_id"
	FieldJob            = "job"
)

func (l *Logger) WithRequestID(ctx context.Context, requestID string) context.Context {
	return l.WithField(ctx, FieldRequestID, requestID)
}

func (l *Logger) WithUserID(ctx context.Context, userID string) context.Context {
	return l.WithField(ctx, FieldUserID, userID)
}

func (l *Logger) WithNotificationID(ctx context.Context, notificationID string) context.Context {
	return l.WithField(ctx, FieldNotificationID, notificationID)
}

func (l *Logger) WithEventID(ctx context.Context, eventID string) context.Context {
	return l.WithField(ctx, FieldEventID, eventID)
}

func (l *Logger) WithJob(ctx context.Context, job string) context.Context {
	return l.WithField(ctx, FieldJob, job)
}
