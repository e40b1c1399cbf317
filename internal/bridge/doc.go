/*
Package bridge keeps content views alive on one dedicated worker goroutine
while the host's frame loop drives them from another.

# Overview

The worker goroutine is locked to an OS thread and owns every Engine the
Toolkit creates. The host never calls an Engine. It talks to a view through a
Handle, which appends commands to the view's Mailbox and, once per host frame,
takes a Snapshot of the results the worker wrote back.

	host goroutine                         worker goroutine (locked thread)
	--------------                         --------------------------------
	Handle.Navigate/Resize/...  --append-->  Mailbox  --take-->  View -> Engine
	Handle.Poll  <--drain + snapshot--      Mailbox  <--publish-- View

# Service Loop

Each iteration the worker:

 1. snapshots the registry size under the registry lock
 2. services every registered Mailbox in registration order: drain under the
    Mailbox lock, apply to the View with no lock held, publish under the lock
 3. pumps the Toolkit once
 4. removes marked Mailboxes under the registry lock and destroys their Views
    after releasing it
 5. logs registry size changes

Between iterations the worker sleeps for at most the idle interval and is
woken early by any Handle enqueue.

# Locking

The registry lock may be taken before a Mailbox lock, never after. Mailbox
methods never call back into the Host while holding their own lock.

# Lifecycle

	host := bridge.NewHost(bridge.Options{Toolkit: engine.NewFactory(cfg, logger)})
	if err := host.Start(); err != nil {
		return err
	}
	defer host.Stop()

	h, err := host.NewHandle()
	if err != nil {
		return err
	}
	defer h.Release()

	h.Navigate("about:blank")
	reqID, _ := h.EvaluateScript("2+2")

	// once per host frame
	snap := h.Poll()
*/
package bridge
