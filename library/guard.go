package library

// Operation names a request that changes a book's status.
type Operation string

const (
	OpLend      Operation = "lend"
	OpReturn    Operation = "return"
	OpRemove    Operation = "remove"
	OpSetStatus Operation = "set status"
)

// CheckTransition decides whether op may move a book from current to target.
//
// Only lending moves a book to BORROWED and only a return moves it back to
// AVAILABLE. Administrative changes may set any other status but never touch
// a BORROWED book, since that would orphan its open transaction.
func CheckTransition(op Operation, bookID int64, current, target BookStatus) error {
	reject := func() error {
		return &TransitionError{Op: op, BookID: bookID, Status: current, Target: target}
	}
	switch op {
	case OpLend:
		if current != StatusAvailable || target != StatusBorrowed {
			return reject()
		}
	case OpReturn:
		if current != StatusBorrowed || target != StatusAvailable {
			return reject()
		}
	case OpRemove:
		if current == StatusBorrowed || target != StatusRemoved {
			return reject()
		}
	case OpSetStatus:
		if current == StatusBorrowed || target == StatusBorrowed {
			return reject()
		}
	default:
		return reject()
	}
	return nil
}
