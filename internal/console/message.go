package console

// msgKind discriminates the mailbox message variants.
type msgKind uint8

const (
	msgInvalid msgKind = iota

	// msgWrite queues payload for the output ring; wrote fires once every
	// byte has been pushed.
	msgWrite

	// msgRead asks for exactly count ring bytes; read fires with the
	// filtered result.
	msgRead

	// msgAdvance carries nothing. It wakes the worker so it re-examines
	// ring state after the remote side signalled activity.
	msgAdvance
)

type message struct {
	kind    msgKind
	payload []byte             // msgWrite
	count   int                // msgRead
	wrote   *oneshot[struct{}] // msgWrite
	read    *oneshot[[]byte]   // msgRead
}
