package types

// Notification kinds published to the notifications channel.
const (
	NotificationWelcome      = "welcome"
	NotificationCancellation = "cancellation"
)

// Notification is the payload handed off to the mail worker. Delivery
// is best-effort and never blocks the request that produced it.
type Notification struct {
	Kind  string `json:"kind"`
	Email string `json:"email"`
	Name  string `json:"name"`
}
