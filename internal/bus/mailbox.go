package bus

// mailbox is the channel pair behind one entity: a broadcast ring for
// entity → subscribers and a bounded queue for subscribers → entity.
// Both halves are safe for concurrent use without external locking.
type mailbox struct {
	out *broadcast
	in  *feedback
}

func newMailbox(capacity int) *mailbox {
	return &mailbox{
		out: newBroadcast(capacity),
		in:  newFeedback(capacity),
	}
}

func (m *mailbox) close() {
	m.out.close()
	m.in.close()
}
