package enums

// NotificationType identifies a notification template.
type NotificationType string

const (
	NotificationTypeNewMatch       NotificationType = "new-match"
	NotificationTypeHighScoreMatch NotificationType = "high-score-match"
	NotificationTypeMatchPresented NotificationType = "match-presented"
	NotificationTypeMatchAccepted  NotificationType = "match-accepted"
	NotificationTypeMatchRejected  NotificationType = "match-rejected"
	NotificationTypeRequestUpdated NotificationType = "request-updated"
)

var notificationTypes = newSet("notification type",
	NotificationTypeNewMatch,
	NotificationTypeHighScoreMatch,
	NotificationTypeMatchPresented,
	NotificationTypeMatchAccepted,
	NotificationTypeMatchRejected,
	NotificationTypeRequestUpdated,
)

func (n NotificationType) IsValid() bool { return notificationTypes.has(n) }

func ParseNotificationType(value string) (NotificationType, error) {
	return notificationTypes.parse(value)
}

// NotificationChannel is a delivery route for a rendered notification.
type NotificationChannel string

const (
	NotificationChannelInApp NotificationChannel = "in_app"
	NotificationChannelEmail NotificationChannel = "email"
)

var notificationChannels = newSet("notification channel", NotificationChannelInApp, NotificationChannelEmail)

func (c NotificationChannel) IsValid() bool { return notificationChannels.has(c) }

func ParseNotificationChannel(value string) (NotificationChannel, error) {
	return notificationChannels.parse(value)
}
