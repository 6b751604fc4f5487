package wire

import (
	"errors"

	"github.com/jackc/pgx/v5/pgproto3"

	"github.com/martinsk/mskql/internal/errs"
)

// errSessionDone signals the read loop to close the connection without
// sending anything further — used for CancelRequest handling and other
// paths with no client waiting on a response.
var errSessionDone = errors.New("wire: session done")

func errorResponseFor(err error) *pgproto3.ErrorResponse {
	e := errs.AsEngineError(err)
	return &pgproto3.ErrorResponse{
		Severity: "ERROR",
		Code:     e.Code,
		Message:  e.Message,
		Detail:   e.Detail,
		Position: int32(e.Position),
	}
}

// sendError writes an ErrorResponse for err without flushing — callers
// flush as part of the broader message batch (e.g. before ReadyForQuery).
func (s *Session) sendError(err error) {
	s.backend.Send(errorResponseFor(err))
}
