package poker

import "errors"

// Rejections returned by the handlers. None of them is sent to the client;
// room_not_found and room_full are replied to before the error is returned.
var (
	ErrRoomNotFound   = errors.New("room not found")
	ErrRoomFull       = errors.New("room full")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrInvalidPayload = errors.New("invalid payload")
	ErrPrecondition   = errors.New("precondition failed")
)

// errNoChange tells mutate to skip the write and the broadcast.
var errNoChange = errors.New("no change")

// IsRejection reports whether err is an expected, silently dropped rejection
// rather than an operational failure.
func IsRejection(err error) bool {
	return errors.Is(err, ErrRoomNotFound) ||
		errors.Is(err, ErrRoomFull) ||
		errors.Is(err, ErrUnauthorized) ||
		errors.Is(err, ErrInvalidPayload) ||
		errors.Is(err, ErrPrecondition)
}
