package job

// messages.go maps technical errors to user-facing messages with stable
// codes. Users quote the code when reporting a problem; the full technical
// error only appears in server logs.
//
//	SPL001 - Empty input: the file needs a header and at least one data row
//	SPL002 - Decode failure: no supported text encoding fits the file
//	SPL003 - Too large: the file exceeds the configured size limit
//	SPL004 - Cancelled: the job was cancelled or timed out
//	SPL005 - Not found: unknown or expired job ID
//	SPL006 - Busy: all split slots are occupied
//	SPL007 - Write failure: a chunk could not be written
//	SPL000 - Anything else

import (
	"context"
	"errors"

	"github.com/infernocod3s/csv-splitter/internal/split"
)

// UserMessage is a user-facing rendering of an error.
type UserMessage struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
}

// MapError converts any error from the split pipeline into a UserMessage.
func MapError(err error) UserMessage {
	var decodeErr *split.DecodeError
	var sinkErr *split.SinkError

	switch {
	case errors.Is(err, split.ErrEmptyInput):
		return UserMessage{
			Code:    "SPL001",
			Message: "The file must contain a header row and at least one data row.",
			Action:  "Check that the file is not empty and has data below the header.",
		}
	case errors.As(err, &decodeErr):
		return UserMessage{
			Code:    "SPL002",
			Message: "The file could not be decoded as text.",
			Action:  "Save the file as UTF-8 CSV and try again.",
		}
	case errors.Is(err, ErrTooLarge):
		return UserMessage{
			Code:    "SPL003",
			Message: "The file exceeds the maximum allowed size.",
			Action:  "Split the file manually or raise the configured limit.",
		}
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return UserMessage{
			Code:    "SPL004",
			Message: "The split was cancelled before it finished.",
			Action:  "Start a new split; already downloaded parts stay valid.",
		}
	case errors.Is(err, ErrNotFound):
		return UserMessage{
			Code:    "SPL005",
			Message: "No split job with that ID exists (it may have expired).",
			Action:  "Upload the file again to start a new split.",
		}
	case errors.Is(err, ErrTooManyJobs):
		return UserMessage{
			Code:    "SPL006",
			Message: "The server is busy with other splits right now.",
			Action:  "Wait a moment and try again.",
		}
	case errors.As(err, &sinkErr):
		return UserMessage{
			Code:    "SPL007",
			Message: "A part file could not be written.",
			Action:  "Check free disk space on the server and retry.",
		}
	default:
		return UserMessage{
			Code:    "SPL000",
			Message: "The split failed unexpectedly.",
			Action:  "Try again; if the problem persists, report code SPL000.",
		}
	}
}
