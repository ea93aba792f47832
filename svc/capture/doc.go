// Package capture implements the measurement-capture session engine.
//
// A designer issues a session for an existing client or as a quick scan.
// The session is addressed publicly by a short link code and lives for a
// fixed window. A capture device resolves the code and submits a flat map
// of body measurements; the Manager validates the payload, completes the
// session and hands the accepted set to the client ledger, creating a new
// client first when the session was a quick scan.
//
// Lifecycle:
//
//	pending ──complete──▶ completed
//	   │ ╲───fail──────▶ failed
//	   │  ╲──expire────▶ expired
//	   ▼
//	processing (same exits as pending; never accepts a submission)
//
// Expiry is evaluated on every read. Sweeper only refreshes stored statuses
// and retries ledger hand-offs that failed after a session completed.
//
// Basic usage:
//
//	m, err := capture.NewManager(capture.NewMemoryStore(), clientsSvc, capture.DefaultConfig())
//	issued, err := m.Issue(ctx, capture.IssueRequest{OwnerID: owner, ClientID: &clientID})
//	out, err := m.Submit(ctx, issued.Session.LinkCode, capture.Submission{
//		Measurements: map[string]any{"bust": 92, "waist": 70},
//	})
package capture
