package mockutil

// CallLog records arguments of calls made against a mock, in order.
type CallLog[T any] []T

func (c CallLog[T]) Times() int {
	return len(c)
}
