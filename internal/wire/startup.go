package wire

import (
	"github.com/jackc/pgx/v5/pgproto3"
)

const sslRequestCode = 80877103

// handleStartup performs the startup handshake (spec §4.6): answers any
// number of leading SSLRequests with 'N', then parses the real startup
// parameters and completes the AuthenticationOk/ParameterStatus/
// BackendKeyData/ReadyForQuery sequence.
func (s *Session) handleStartup() error {
	for {
		msg, err := s.backend.ReceiveStartupMessage()
		if err != nil {
			return err
		}
		switch m := msg.(type) {
		case *pgproto3.SSLRequest:
			if _, err := s.conn.Write([]byte("N")); err != nil {
				return err
			}
			continue
		case *pgproto3.GSSEncRequest:
			if _, err := s.conn.Write([]byte("N")); err != nil {
				return err
			}
			continue
		case *pgproto3.CancelRequest:
			// Cancellation is handled out-of-band by a fresh connection in
			// real deployments; here there is nothing yet to cancel.
			return errSessionDone
		case *pgproto3.StartupMessage:
			return s.completeStartup(m)
		default:
			return errSessionDone
		}
	}
}

func (s *Session) completeStartup(m *pgproto3.StartupMessage) error {
	s.log.Info().Str("user", m.Parameters["user"]).Str("database", m.Parameters["database"]).Msg("session startup")

	msgs := []pgproto3.BackendMessage{
		&pgproto3.AuthenticationOk{},
		&pgproto3.ParameterStatus{Name: "server_version", Value: "14.0 (mskql)"},
		&pgproto3.ParameterStatus{Name: "server_encoding", Value: "UTF8"},
		&pgproto3.ParameterStatus{Name: "client_encoding", Value: "UTF8"},
		&pgproto3.ParameterStatus{Name: "DateStyle", Value: "ISO, MDY"},
		&pgproto3.ParameterStatus{Name: "IntervalStyle", Value: "postgres"},
		&pgproto3.ParameterStatus{Name: "TimeZone", Value: "UTC"},
		&pgproto3.ParameterStatus{Name: "integer_datetimes", Value: "on"},
		&pgproto3.ParameterStatus{Name: "standard_conforming_strings", Value: "on"},
		&pgproto3.BackendKeyData{ProcessID: s.processID, SecretKey: s.secretKey},
		&pgproto3.ReadyForQuery{TxStatus: s.tx.State().StatusByte()},
	}
	for _, bm := range msgs {
		s.backend.Send(bm)
	}
	return s.backend.Flush()
}
