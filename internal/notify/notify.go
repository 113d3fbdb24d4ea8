// Package notify provides the delivery channel contract, the concrete
// channel implementations, and the fan-out dispatch manager.
package notify

// channels are split across ntfy.go, pushbullet.go, fcm.go, chat.go,
// system.go and email.go to keep implementations focused.
