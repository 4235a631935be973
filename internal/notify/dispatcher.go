package notify

import "log"

// Dispatcher decouples notification delivery from the financial state
// machine: sends are queued and handled by a worker goroutine, and a full
// queue drops rather than blocks. A lost notification never rolls back a
// money transition.
type Dispatcher struct {
	sender Sender
	queue  chan Message
}

func NewDispatcher(sender Sender) *Dispatcher {
	d := &Dispatcher{
		sender: sender,
		queue:  make(chan Message, 100),
	}

	go d.worker()
	return d
}

func (d *Dispatcher) worker() {
	for m := range d.queue {
		if err := d.sender.Send(m); err != nil {
			log.Println("notify error:", err)
		}
	}
}

func (d *Dispatcher) Notify(recipientID uint, kind Kind, ctxData map[string]any) {
	select {
	case d.queue <- Message{RecipientID: recipientID, Kind: kind, Context: ctxData}:
	default:
		log.Println("notify queue full, dropping message")
	}
}
