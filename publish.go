package redmonster

// Publishes JSON-encoded messages about written files on the status
// port, so monitoring clients can follow a run.

import (
	"fmt"

	zmq "github.com/pebbe/zmq4"
)

// RunStatusPublisher forwards any message from its input channel to the
// ZMQ publisher socket, until abort closes.
func RunStatusPublisher(updates <-chan FileUpdate, portstatus int, abort <-chan struct{}) {
	pub, err := zmq.NewSocket(zmq.PUB)
	if err != nil {
		ProblemLogger.Printf("could not create status socket: %v", err)
		return
	}
	defer pub.Close()
	hostname := fmt.Sprintf("tcp://*:%d", portstatus)
	if err := pub.Bind(hostname); err != nil {
		ProblemLogger.Printf("could not bind status socket to %s: %v", hostname, err)
		return
	}

	for {
		select {
		case <-abort:
			return
		case update := <-updates:
			if _, err := pub.SendMessage(update.Tag, update.Message); err != nil {
				ProblemLogger.Printf("could not publish %s update: %v", update.Tag, err)
			}
		}
	}
}
