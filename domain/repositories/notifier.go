package repositories

import "github.com/satriahrh/mirrorvoice/domain"

// Notifier delivers notifications to the display layer. Notify must not block.
type Notifier interface {
	Notify(n domain.Notification)
}

// NotifierFunc adapts a function to Notifier
type NotifierFunc func(n domain.Notification)

func (f NotifierFunc) Notify(n domain.Notification) { f(n) }
