/*
Package events provides an in-process broker for timer lifecycle events.

The registry, recovery engine and keep-alive controller publish events; the
HTTP API streams them to presentation clients over server-sent events so a UI
can stay in sync without polling.

Publishing is best effort. A full queue or a stopped broker drops the event
instead of blocking the publisher, and a slow subscriber misses events rather
than stalling the others.

	broker := events.NewBroker()
	broker.Start()
	defer broker.Stop()

	sub := broker.Subscribe()
	defer broker.Unsubscribe(sub)

	for ev := range sub {
		fmt.Println(ev.Type, ev.TabID)
	}

Subscribe takes optional filters; an event is delivered only when every
filter matches:

	sub := broker.Subscribe(events.ForTab("7"), events.OfType(events.EventTimerFired))
*/
package events
