// Kunhua Huang 2026

package extension

import "fmt"

// Event is what a tracing host reports to its extensions. The values
// follow the host's own list, so a module can switch on them directly.
type Event int

const (
	// GuestPath: a path argument is about to be translated.
	GuestPath Event = iota
	// HostPath: a canonicalized host path is accessed during translation.
	HostPath
	// SyscallEnterStart: a syscall is entered, nothing handled yet.
	SyscallEnterStart
	// SyscallEnterEnd: a syscall is entered and was handled by the host.
	SyscallEnterEnd
	// SyscallExitStart: a syscall exits, nothing handled yet.
	SyscallExitStart
	// SyscallExitEnd: a syscall exits and was handled by the host.
	SyscallExitEnd
	NewStatus
	InheritParent
	InheritChild
	// Initialization: data1 carries the module argument, here its path.
	Initialization
	Removed
	PrintConfig
	PrintUsage
)

func (e Event) String() string {
	switch e {
	case GuestPath:
		return "GUEST_PATH"
	case HostPath:
		return "HOST_PATH"
	case SyscallEnterStart:
		return "SYSCALL_ENTER_START"
	case SyscallEnterEnd:
		return "SYSCALL_ENTER_END"
	case SyscallExitStart:
		return "SYSCALL_EXIT_START"
	case SyscallExitEnd:
		return "SYSCALL_EXIT_END"
	case NewStatus:
		return "NEW_STATUS"
	case InheritParent:
		return "INHERIT_PARENT"
	case InheritChild:
		return "INHERIT_CHILD"
	case Initialization:
		return "INITIALIZATION"
	case Removed:
		return "REMOVED"
	case PrintConfig:
		return "PRINT_CONFIG"
	case PrintUsage:
		return "PRINT_USAGE"
	default:
		return fmt.Sprintf("unknown(%d)", int(e))
	}
}

// Handle identifies the extension instance an event is delivered to.
type Handle uintptr
