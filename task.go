package netio

// taskKind selects which loop-thread handler processes a task. The teacher's
// source uses a function-pointer-per-task; here a tagged variant with a
// single dispatch point keeps the input/output fields type-safe (see
// spec.md §9, Design Notes: "Task polymorphism").
type taskKind int

const (
	taskAddUDPReceiver taskKind = iota
	taskAddUDPSender
	taskRemovePort
	taskResolve
)

type taskState int32

const (
	taskPending taskState = iota
	taskSucceeded
	taskFailed
)

func (s taskState) String() string {
	switch s {
	case taskPending:
		return "pending"
	case taskSucceeded:
		return "succeeded"
	case taskFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// task is created by the caller with newTask and lives for the duration of
// one runTask call. Only the fields relevant to kind are read by the matching
// handler.
type task struct {
	kind  taskKind
	state taskState

	// taskAddUDPReceiver
	receiverConfig *UDPReceiverConfig
	receiverWriter PacketWriter

	// taskAddUDPSender
	senderConfig *UDPSenderConfig
	senderWriter PacketWriter // out

	// taskRemovePort
	removeTarget Port

	// taskResolve
	resolveReq *resolveRequest

	// set by the add_* handlers, used by the caller to wait on the close
	// protocol when the add fails.
	port Port
}

func newTask(kind taskKind) *task {
	return &task{kind: kind, state: taskPending}
}
