package capture_test

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/fitcapture/pkg/linkcode"
	"github.com/dmitrymomot/fitcapture/svc/capture"
	"github.com/dmitrymomot/fitcapture/svc/clients"
)

func TestSubmit_ExistingClient(t *testing.T) {
	t.Parallel()
	f := setup(t)
	ctx := context.Background()
	ada := f.client(t, "Ada")

	issued := f.issue(t, &ada.ID)
	assert.Equal(t, "Ada", issued.SubjectName)
	assert.Equal(t, base.Add(24*time.Hour), issued.Session.ExpiresAt)

	out, err := f.m.Submit(ctx, issued.Session.LinkCode, capture.Submission{
		Measurements: map[string]any{"bust": 92.0, "waist": 70},
	})
	require.NoError(t, err)
	assert.Equal(t, capture.StatusCompleted, out.Status)
	assert.Equal(t, map[string]float64{"bust": 92, "waist": 70}, out.Measurements)
	require.NotNil(t, out.ClientID)
	assert.Equal(t, ada.ID, *out.ClientID)
	assert.NoError(t, out.LedgerErr)
	assert.NotNil(t, out.Session.LedgerAppliedAt)

	ledger := f.ledger(t, ada.ID)
	require.NotNil(t, ledger.Current)
	assert.Equal(t, map[string]float64{"bust": 92, "waist": 70}, ledger.Current.Values)
	assert.Equal(t, clients.ProvenanceCaptureSession, ledger.Current.Provenance)
	assert.InDelta(t, 0.85, ledger.Current.Confidence, 1e-9)
	assert.Empty(t, ledger.History)

	stored := f.stored(t, issued.Session.LinkCode)
	assert.Equal(t, capture.StatusCompleted, stored.Status)
	require.NotNil(t, stored.MeasuredAt)
	assert.Equal(t, base, *stored.MeasuredAt)
}

func TestSubmit_SecondSessionArchivesPrevious(t *testing.T) {
	t.Parallel()
	f := setup(t)
	ctx := context.Background()
	ada := f.client(t, "Ada")

	first := f.issue(t, &ada.ID)
	_, err := f.m.Submit(ctx, first.Session.LinkCode, capture.Submission{
		Measurements: map[string]any{"bust": 92, "waist": 70},
	})
	require.NoError(t, err)

	f.clk.Advance(time.Hour)
	second := f.issue(t, &ada.ID)
	_, err = f.m.Submit(ctx, second.Session.LinkCode, capture.Submission{
		Measurements: map[string]any{"bust": 93, "waist": 71},
	})
	require.NoError(t, err)

	ledger := f.ledger(t, ada.ID)
	assert.Equal(t, map[string]float64{"bust": 93, "waist": 71}, ledger.Current.Values)
	require.Len(t, ledger.History, 1)
	assert.Equal(t, map[string]float64{"bust": 92, "waist": 70}, ledger.History[0].Values)
	assert.Equal(t, first.Session.ID.String(), ledger.History[0].SourceID)
	require.NotNil(t, ledger.LastMeasuredAt)
	assert.Equal(t, base.Add(time.Hour), *ledger.LastMeasuredAt)
}

func TestSubmit_GuestPromotion(t *testing.T) {
	t.Parallel()
	f := setup(t)
	ctx := context.Background()

	issued := f.issue(t, nil)
	assert.Equal(t, capture.QuickScanSubject, issued.SubjectName)
	assert.True(t, issued.Session.Guest)

	out, err := f.m.Submit(ctx, issued.Session.LinkCode, capture.Submission{
		Measurements: map[string]any{"bust": 88},
		Guest:        &capture.GuestDetails{Name: " chidi ", Contact: "+234 800 000 0000", Gender: "male"},
	})
	require.NoError(t, err)
	require.NoError(t, out.PromotionErr)
	require.NotNil(t, out.ClientID)

	chidi, err := f.clients.Get(ctx, f.owner, *out.ClientID)
	require.NoError(t, err)
	assert.Equal(t, "Chidi", chidi.Name)
	assert.Equal(t, "+234 800 000 0000", chidi.Contact)
	require.NotNil(t, chidi.OriginSessionID)
	assert.Equal(t, issued.Session.ID, *chidi.OriginSessionID)
	require.NotNil(t, chidi.Measurements.Current)
	assert.Equal(t, map[string]float64{"bust": 88}, chidi.Measurements.Current.Values)
	assert.Empty(t, chidi.Measurements.History)

	stored := f.stored(t, issued.Session.LinkCode)
	require.NotNil(t, stored.ClientID)
	assert.Equal(t, chidi.ID, *stored.ClientID)
	assert.Equal(t, "Chidi", stored.GuestName)
	assert.NotNil(t, stored.PromotedAt)

	assert.Equal(t, []string{
		capture.EventSessionIssued,
		capture.EventSessionCompleted,
		capture.EventClientPromoted,
	}, f.pub.Types())
}

func TestSubmit_AfterExpiry(t *testing.T) {
	t.Parallel()
	f := setup(t)
	ctx := context.Background()
	ada := f.client(t, "Ada")
	issued := f.issue(t, &ada.ID)

	f.clk.Advance(24*time.Hour + time.Second)
	_, err := f.m.Submit(ctx, issued.Session.LinkCode, capture.Submission{
		Measurements: map[string]any{"bust": 92},
	})
	assert.ErrorIs(t, err, capture.ErrSessionExpired)

	res, err := f.m.Resolve(ctx, issued.Session.LinkCode)
	require.NoError(t, err)
	assert.Equal(t, string(capture.StatusExpired), res.Status)
	assert.NotEmpty(t, res.Message)
	assert.Equal(t, capture.StatusExpired, f.stored(t, issued.Session.LinkCode).Status)
	assert.Nil(t, f.ledger(t, ada.ID).Current)
}

func TestSubmit_ExpiresAtBoundary(t *testing.T) {
	t.Parallel()
	f := setup(t)
	issued := f.issue(t, nil)

	f.clk.Advance(24 * time.Hour)
	_, err := f.m.Submit(context.Background(), issued.Session.LinkCode, capture.Submission{
		Measurements: map[string]any{"bust": 92},
	})
	assert.ErrorIs(t, err, capture.ErrSessionExpired)
}

func TestSubmit_NonNumericValue(t *testing.T) {
	t.Parallel()
	f := setup(t)
	ctx := context.Background()
	issued := f.issue(t, nil)
	code := issued.Session.LinkCode

	_, err := f.m.Submit(ctx, code, capture.Submission{Measurements: map[string]any{"bust": "ninety"}})
	require.ErrorIs(t, err, capture.ErrInvalidMeasurementValue)
	var merr *capture.MeasurementError
	require.ErrorAs(t, err, &merr)
	assert.Equal(t, "bust", merr.Field)

	res, err := f.m.Resolve(ctx, code)
	require.NoError(t, err)
	assert.Equal(t, string(capture.StatusPending), res.Status)
	assert.True(t, res.Guest)

	out, err := f.m.Submit(ctx, code, capture.Submission{Measurements: map[string]any{"bust": 90}})
	require.NoError(t, err)
	assert.Equal(t, capture.StatusCompleted, out.Status)
}

func TestSubmit_RejectsWholePayload(t *testing.T) {
	t.Parallel()
	f := setup(t)
	ctx := context.Background()
	ada := f.client(t, "Ada")
	issued := f.issue(t, &ada.ID)

	_, err := f.m.Submit(ctx, issued.Session.LinkCode, capture.Submission{
		Measurements: map[string]any{"bust": 92, "waist": map[string]any{"value": 70}},
	})
	require.ErrorIs(t, err, capture.ErrInvalidMeasurementValue)

	assert.Nil(t, f.ledger(t, ada.ID).Current)
	stored := f.stored(t, issued.Session.LinkCode)
	assert.Equal(t, capture.StatusPending, stored.Status)
	assert.Nil(t, stored.Measurements)
}

func TestSubmit_SingleUse(t *testing.T) {
	t.Parallel()
	f := setup(t)
	ctx := context.Background()
	ada := f.client(t, "Ada")
	issued := f.issue(t, &ada.ID)
	code := issued.Session.LinkCode

	_, err := f.m.Submit(ctx, code, capture.Submission{Measurements: map[string]any{"bust": 92}})
	require.NoError(t, err)

	_, err = f.m.Submit(ctx, code, capture.Submission{Measurements: map[string]any{"bust": 99}})
	require.ErrorIs(t, err, capture.ErrInvalidState)
	var serr *capture.StateError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, capture.StatusCompleted, serr.Status)

	assert.Equal(t, map[string]float64{"bust": 92}, f.stored(t, code).Measurements)
	assert.Empty(t, f.ledger(t, ada.ID).History)

	_, err = f.m.Fail(ctx, f.owner, code, "late")
	assert.ErrorIs(t, err, capture.ErrInvalidState)
}

func TestSubmit_ConcurrentSubmissionsCompleteOnce(t *testing.T) {
	t.Parallel()
	f := setup(t)
	ctx := context.Background()
	ada := f.client(t, "Ada")
	issued := f.issue(t, &ada.ID)

	const n = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.m.Submit(ctx, issued.Session.LinkCode, capture.Submission{
				Measurements: map[string]any{"bust": 90 + i},
			})
			if err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
				return
			}
			assert.ErrorIs(t, err, capture.ErrInvalidState)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded)
	ledger := f.ledger(t, ada.ID)
	require.NotNil(t, ledger.Current)
	assert.Empty(t, ledger.History)
}

func TestSubmit_ImplausibleValueFailsSession(t *testing.T) {
	t.Parallel()
	f := setup(t)
	ctx := context.Background()
	ada := f.client(t, "Ada")
	issued := f.issue(t, &ada.ID)

	_, err := f.m.Submit(ctx, issued.Session.LinkCode, capture.Submission{
		Measurements: map[string]any{"bust": 92, "waist": 700},
	})
	require.ErrorIs(t, err, capture.ErrImplausibleMeasurement)
	var merr *capture.MeasurementError
	require.ErrorAs(t, err, &merr)
	assert.Equal(t, "waist", merr.Field)

	stored := f.stored(t, issued.Session.LinkCode)
	assert.Equal(t, capture.StatusFailed, stored.Status)
	assert.NotEmpty(t, stored.FailureReason)
	assert.Nil(t, stored.Measurements)
	assert.Nil(t, f.ledger(t, ada.ID).Current)

	res, err := f.m.Resolve(ctx, issued.Session.LinkCode)
	require.NoError(t, err)
	assert.Equal(t, string(capture.StatusFailed), res.Status)
	assert.Contains(t, f.pub.Types(), capture.EventSessionFailed)
}

func TestSubmit_ProcessingSessionRejectsIntake(t *testing.T) {
	t.Parallel()
	f := setup(t)
	ctx := context.Background()
	issued := f.issue(t, nil)

	_, err := f.store.Update(ctx, issued.Session.ID, func(s *capture.Session) error {
		s.Status = capture.StatusProcessing
		return nil
	})
	require.NoError(t, err)

	_, err = f.m.Submit(ctx, issued.Session.LinkCode, capture.Submission{Measurements: map[string]any{"bust": 90}})
	assert.ErrorIs(t, err, capture.ErrInvalidState)

	f.clk.Advance(25 * time.Hour)
	res, err := f.m.Resolve(ctx, issued.Session.LinkCode)
	require.NoError(t, err)
	assert.Equal(t, string(capture.StatusExpired), res.Status)
}

func TestSubmit_DerivedHeight(t *testing.T) {
	t.Parallel()
	f := setup(t)
	issued := f.issue(t, nil)

	out, err := f.m.Submit(context.Background(), issued.Session.LinkCode, capture.Submission{
		Measurements: map[string]any{"height_mm": 1720, "bust": 88},
		Confidence:   ptr(0.97),
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"height": 172, "bust": 88}, out.Measurements)
	require.NotNil(t, out.Session.Confidence)
	assert.InDelta(t, 0.97, *out.Session.Confidence, 1e-9)
}

func TestSubmit_InvalidConfidence(t *testing.T) {
	t.Parallel()
	f := setup(t)
	issued := f.issue(t, nil)

	_, err := f.m.Submit(context.Background(), issued.Session.LinkCode, capture.Submission{
		Measurements: map[string]any{"bust": 88},
		Confidence:   ptr(1.5),
	})
	var merr *capture.MeasurementError
	require.ErrorAs(t, err, &merr)
	assert.Equal(t, "confidence", merr.Field)
	assert.Equal(t, capture.StatusPending, f.stored(t, issued.Session.LinkCode).Status)
}

func TestSubmit_UnknownCode(t *testing.T) {
	t.Parallel()
	f := setup(t)
	_, err := f.m.Submit(context.Background(), "NOPE2345", capture.Submission{Measurements: map[string]any{"bust": 88}})
	assert.ErrorIs(t, err, capture.ErrSessionNotFound)
}

func TestSubmit_IncompleteGuestDetails(t *testing.T) {
	t.Parallel()
	f := setup(t)
	issued := f.issue(t, nil)

	_, err := f.m.Submit(context.Background(), issued.Session.LinkCode, capture.Submission{
		Measurements: map[string]any{"bust": 88},
		Guest:        &capture.GuestDetails{Name: "Chidi"},
	})
	assert.ErrorIs(t, err, capture.ErrGuestDetailsIncomplete)
	assert.Equal(t, capture.StatusPending, f.stored(t, issued.Session.LinkCode).Status)
}

func TestPromote_RetryAfterFailure(t *testing.T) {
	t.Parallel()
	f := setup(t)
	ctx := context.Background()
	issued := f.issue(t, nil)
	code := issued.Session.LinkCode

	f.dir.failCreate.Store(true)
	out, err := f.m.Submit(ctx, code, capture.Submission{
		Measurements: map[string]any{"bust": 88},
		Guest:        &capture.GuestDetails{Name: "Chidi", Contact: "chidi@example.com"},
	})
	require.NoError(t, err)
	assert.ErrorIs(t, out.PromotionErr, capture.ErrPromotionFailed)
	assert.Equal(t, capture.StatusCompleted, out.Status)
	assert.Nil(t, out.ClientID)

	stored := f.stored(t, code)
	assert.Equal(t, capture.StatusCompleted, stored.Status)
	assert.Equal(t, map[string]float64{"bust": 88}, stored.Measurements)
	assert.True(t, stored.AwaitingPromotion())

	f.dir.failCreate.Store(false)
	promoted, err := f.m.Promote(ctx, f.owner, code, nil)
	require.NoError(t, err)
	require.NotNil(t, promoted.ClientID)

	again, err := f.m.Promote(ctx, f.owner, code, nil)
	require.NoError(t, err)
	assert.Equal(t, *promoted.ClientID, *again.ClientID)

	n, err := f.clients.Count(ctx, f.owner)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestPromote_DetailsSuppliedLater(t *testing.T) {
	t.Parallel()
	f := setup(t)
	ctx := context.Background()
	issued := f.issue(t, nil)
	code := issued.Session.LinkCode

	out, err := f.m.Submit(ctx, code, capture.Submission{Measurements: map[string]any{"bust": 88}})
	require.NoError(t, err)
	assert.Nil(t, out.ClientID)
	assert.NoError(t, out.PromotionErr)

	_, err = f.m.Promote(ctx, f.owner, code, nil)
	assert.ErrorIs(t, err, capture.ErrGuestDetailsIncomplete)

	_, err = f.m.Promote(ctx, uuid.New(), code, &capture.GuestDetails{Name: "Chidi", Contact: "x"})
	assert.ErrorIs(t, err, capture.ErrSessionNotFound)

	promoted, err := f.m.Promote(ctx, f.owner, code, &capture.GuestDetails{Name: "chidi okeke", Contact: "chidi@example.com"})
	require.NoError(t, err)
	require.NotNil(t, promoted.ClientID)
	assert.Equal(t, "Chidi Okeke", promoted.SubjectName)
}

func TestPromote_Rejections(t *testing.T) {
	t.Parallel()
	f := setup(t)
	ctx := context.Background()
	ada := f.client(t, "Ada")

	named := f.issue(t, &ada.ID)
	_, err := f.m.Promote(ctx, f.owner, named.Session.LinkCode, nil)
	assert.ErrorIs(t, err, capture.ErrNotGuestSession)

	guest := f.issue(t, nil)
	_, err = f.m.Promote(ctx, f.owner, guest.Session.LinkCode, nil)
	assert.ErrorIs(t, err, capture.ErrInvalidState)
}

func TestReconcile_AppliesMissedLedgerUpdate(t *testing.T) {
	t.Parallel()
	f := setup(t)
	ctx := context.Background()
	ada := f.client(t, "Ada")
	issued := f.issue(t, &ada.ID)
	code := issued.Session.LinkCode

	f.dir.failApply.Store(true)
	out, err := f.m.Submit(ctx, code, capture.Submission{Measurements: map[string]any{"bust": 92}})
	require.NoError(t, err)
	assert.ErrorIs(t, out.LedgerErr, capture.ErrLedgerApplyFailed)
	assert.Nil(t, f.ledger(t, ada.ID).Current)
	assert.True(t, f.stored(t, code).AwaitingLedger())

	f.dir.failApply.Store(false)
	s, err := f.m.Reconcile(ctx, f.owner, code)
	require.NoError(t, err)
	assert.NotNil(t, s.LedgerAppliedAt)

	_, err = f.m.Reconcile(ctx, f.owner, code)
	require.NoError(t, err)

	ledger := f.ledger(t, ada.ID)
	assert.Equal(t, map[string]float64{"bust": 92}, ledger.Current.Values)
	assert.Empty(t, ledger.History)
}

func TestIssue_ExpiresOtherLiveSessionOfClient(t *testing.T) {
	t.Parallel()
	f := setup(t)
	ctx := context.Background()
	ada := f.client(t, "Ada")
	grace := f.client(t, "Grace")

	first := f.issue(t, &ada.ID)
	other := f.issue(t, &grace.ID)
	guest := f.issue(t, nil)
	second := f.issue(t, &ada.ID)
	assert.Equal(t, []uuid.UUID{first.Session.ID}, second.Expired)

	res, err := f.m.Resolve(ctx, first.Session.LinkCode)
	require.NoError(t, err)
	assert.Equal(t, string(capture.StatusExpired), res.Status)

	_, err = f.m.Submit(ctx, first.Session.LinkCode, capture.Submission{Measurements: map[string]any{"bust": 92}})
	assert.ErrorIs(t, err, capture.ErrSessionExpired)

	for _, live := range []*capture.Issued{other, guest, second} {
		assert.Equal(t, capture.StatusPending, f.stored(t, live.Session.LinkCode).Status)
	}
}

func TestIssue_ConcurrentForSameClient(t *testing.T) {
	t.Parallel()
	f := setup(t)
	ctx := context.Background()
	ada := f.client(t, "Ada")

	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.m.Issue(ctx, capture.IssueRequest{OwnerID: f.owner, ClientID: &ada.ID})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	pending, err := f.m.ListForOwner(ctx, capture.ListFilter{OwnerID: f.owner, Status: capture.StatusPending})
	require.NoError(t, err)
	assert.Len(t, pending, 1)

	all, err := f.m.ListForOwner(ctx, capture.ListFilter{OwnerID: f.owner})
	require.NoError(t, err)
	assert.Len(t, all, 10)
}

func TestIssue_Rejections(t *testing.T) {
	t.Parallel()
	f := setup(t)
	ctx := context.Background()
	ada := f.client(t, "Ada")

	_, err := f.m.Issue(ctx, capture.IssueRequest{})
	assert.ErrorIs(t, err, capture.ErrInvalidIssueRequest)

	_, err = f.m.Issue(ctx, capture.IssueRequest{OwnerID: uuid.New(), ClientID: &ada.ID})
	assert.ErrorIs(t, err, clients.ErrClientNotFound)
}

func TestIssue_LinkAndQRCode(t *testing.T) {
	t.Parallel()
	cfg := capture.DefaultConfig()
	cfg.PublicURL = "https://fit.example.com/m/"
	f := setupWithConfig(t, cfg)

	issued := f.issue(t, nil)
	assert.Equal(t, "https://fit.example.com/m/"+issued.Session.LinkCode, issued.Link)
	assert.True(t, strings.HasPrefix(issued.QRCode, "data:image/png;base64,"))
	assert.Len(t, issued.Session.LinkCode, 8)
}

func TestIssue_CodeCollisionRetries(t *testing.T) {
	t.Parallel()
	// Every Generate call reads 16 bytes: two identical draws then a fresh one.
	random := bytes.NewReader(append(make([]byte, 32), bytes.Repeat([]byte{1}, 16)...))
	f := setup(t, capture.WithCodeGenerator(linkcode.New(linkcode.WithRandom(random))))

	first := f.issue(t, nil)
	second := f.issue(t, nil)
	assert.Equal(t, "AAAAAAAA", first.Session.LinkCode)
	assert.Equal(t, "BBBBBBBB", second.Session.LinkCode)
}

func TestIssue_CodeSpaceExhausted(t *testing.T) {
	t.Parallel()
	random := bytes.NewReader(make([]byte, 16*3))
	f := setup(t, capture.WithCodeGenerator(linkcode.New(linkcode.WithRandom(random), linkcode.WithMaxAttempts(2))))

	f.issue(t, nil)
	_, err := f.m.Issue(context.Background(), capture.IssueRequest{OwnerID: f.owner})
	assert.ErrorIs(t, err, capture.ErrCodeSpaceExhausted)
}

func TestIssue_CodesAreUnique(t *testing.T) {
	t.Parallel()
	f := setup(t)
	ctx := context.Background()

	seen := make(map[string]struct{})
	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			issued, err := f.m.Issue(ctx, capture.IssueRequest{OwnerID: f.owner})
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			seen[issued.Session.LinkCode] = struct{}{}
			mu.Unlock()
		}()
	}
	wg.Wait()
	assert.Len(t, seen, 50)
}

func TestResolve(t *testing.T) {
	t.Parallel()
	f := setup(t)
	ctx := context.Background()
	ada := f.client(t, "Ada")
	issued := f.issue(t, &ada.ID)

	res, err := f.m.Resolve(ctx, "  "+strings.ToLower(issued.Session.LinkCode)+" ")
	require.NoError(t, err)
	assert.Equal(t, string(capture.StatusPending), res.Status)
	assert.Equal(t, "Ada", res.SubjectName)
	assert.Equal(t, "female", res.SubjectGender)
	assert.False(t, res.Guest)
	require.NotNil(t, res.ExpiresAt)
	assert.Equal(t, issued.Session.ExpiresAt, *res.ExpiresAt)

	res, err = f.m.Resolve(ctx, "ZZZZZZZZ")
	require.NoError(t, err)
	assert.Equal(t, capture.ResolutionInvalid, res.Status)

	res, err = f.m.Resolve(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, capture.ResolutionInvalid, res.Status)
}

func TestFail(t *testing.T) {
	t.Parallel()
	f := setup(t)
	ctx := context.Background()
	issued := f.issue(t, nil)
	code := issued.Session.LinkCode

	_, err := f.m.Fail(ctx, uuid.New(), code, "blurry capture")
	assert.ErrorIs(t, err, capture.ErrSessionNotFound)

	s, err := f.m.Fail(ctx, f.owner, code, " blurry capture ")
	require.NoError(t, err)
	assert.Equal(t, capture.StatusFailed, s.Status)
	assert.Equal(t, "blurry capture", s.FailureReason)

	_, err = f.m.Submit(ctx, code, capture.Submission{Measurements: map[string]any{"bust": 88}})
	assert.ErrorIs(t, err, capture.ErrInvalidState)

	_, err = f.m.Fail(ctx, f.owner, code, "again")
	assert.ErrorIs(t, err, capture.ErrInvalidState)

	expiring := f.issue(t, nil)
	f.clk.Advance(48 * time.Hour)
	_, err = f.m.Fail(ctx, f.owner, expiring.Session.LinkCode, "late")
	assert.ErrorIs(t, err, capture.ErrSessionExpired)
}

func TestSweep(t *testing.T) {
	t.Parallel()
	f := setup(t)
	ctx := context.Background()
	ada := f.client(t, "Ada")

	completed := f.issue(t, &ada.ID)
	f.dir.failApply.Store(true)
	_, err := f.m.Submit(ctx, completed.Session.LinkCode, capture.Submission{Measurements: map[string]any{"bust": 92}})
	require.NoError(t, err)
	f.dir.failApply.Store(false)

	stale := []*capture.Issued{f.issue(t, nil), f.issue(t, nil)}
	f.clk.Advance(25 * time.Hour)
	fresh := f.issue(t, nil)

	res, err := f.m.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Expired)
	assert.Equal(t, 1, res.Reconciled)

	for _, s := range stale {
		assert.Equal(t, capture.StatusExpired, f.stored(t, s.Session.LinkCode).Status)
	}
	assert.Equal(t, capture.StatusPending, f.stored(t, fresh.Session.LinkCode).Status)
	assert.Equal(t, capture.StatusCompleted, f.stored(t, completed.Session.LinkCode).Status)
	assert.Equal(t, map[string]float64{"bust": 92}, f.ledger(t, ada.ID).Current.Values)

	res, err = f.m.Sweep(ctx)
	require.NoError(t, err)
	assert.Zero(t, res.Expired)
	assert.Zero(t, res.Reconciled)
}

func TestIssuedThisMonth(t *testing.T) {
	t.Parallel()
	f := setup(t)
	ctx := context.Background()

	f.issue(t, nil)
	f.issue(t, nil)
	f.clk.Advance(30 * 24 * time.Hour) // into April
	f.issue(t, nil)

	n, err := f.m.IssuedThisMonth(ctx, f.owner)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = f.m.CountIssuedSince(ctx, f.owner, base)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
}

func TestNewManager_InvalidConfig(t *testing.T) {
	t.Parallel()
	cfg := capture.DefaultConfig()
	cfg.DefaultConfidence = 2
	_, err := capture.NewManager(capture.NewMemoryStore(), nil, cfg)
	assert.Error(t, err)
}

func TestSweep_GuestWithoutDetailsDoesNotBlockBatch(t *testing.T) {
	t.Parallel()
	cfg := capture.DefaultConfig()
	cfg.SweepBatch = 1
	f := setupWithConfig(t, cfg)
	ctx := context.Background()

	guest := f.issue(t, nil)
	_, err := f.m.Submit(ctx, guest.Session.LinkCode, capture.Submission{Measurements: map[string]any{"waist": 70}})
	require.NoError(t, err)

	f.clk.Advance(time.Minute)
	ada := f.client(t, "Ada")
	issued := f.issue(t, &ada.ID)
	f.dir.failApply.Store(true)
	_, err = f.m.Submit(ctx, issued.Session.LinkCode, capture.Submission{Measurements: map[string]any{"bust": 92}})
	require.NoError(t, err)
	f.dir.failApply.Store(false)

	res, err := f.m.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Reconciled)
	assert.Equal(t, map[string]float64{"bust": 92}, f.ledger(t, ada.ID).Current.Values)

	s := f.stored(t, guest.Session.LinkCode)
	assert.True(t, s.AwaitingPromotion())
	assert.False(t, s.Promotable())
}

func TestListForOwner_StatusFilterAfterExpiry(t *testing.T) {
	t.Parallel()
	f := setup(t)
	ctx := context.Background()

	f.issue(t, nil)
	f.issue(t, nil)
	f.clk.Advance(25 * time.Hour)
	fresh := f.issue(t, nil)

	pending, err := f.m.ListForOwner(ctx, capture.ListFilter{OwnerID: f.owner, Status: capture.StatusPending})
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, fresh.Session.ID, pending[0].ID)

	expired, err := f.m.ListForOwner(ctx, capture.ListFilter{OwnerID: f.owner, Status: capture.StatusExpired})
	require.NoError(t, err)
	assert.Len(t, expired, 2)
}

type countingStore struct {
	capture.Store
	mu      sync.Mutex
	lookups int
}

func (s *countingStore) GetByCode(ctx context.Context, code string) (*capture.Session, error) {
	s.mu.Lock()
	s.lookups++
	s.mu.Unlock()
	return s.Store.GetByCode(ctx, code)
}

func TestResolve_MalformedCodeSkipsStore(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := &countingStore{Store: capture.NewMemoryStore()}
	m, err := capture.NewManager(store, nil, capture.DefaultConfig())
	require.NoError(t, err)

	for _, code := range []string{"", "ABC", "O0O0O0O0", "ABCDEFGHJ", "ABCD-EFG"} {
		res, err := m.Resolve(ctx, code)
		require.NoError(t, err)
		assert.Equal(t, capture.ResolutionInvalid, res.Status, code)
	}
	assert.Zero(t, store.lookups)

	_, err = m.Submit(ctx, "ab cdefgh", capture.Submission{Measurements: map[string]any{"bust": 90}})
	assert.ErrorIs(t, err, capture.ErrSessionNotFound)
	assert.Zero(t, store.lookups)

	res, err := m.Resolve(ctx, "abcdefgh")
	require.NoError(t, err)
	assert.Equal(t, capture.ResolutionInvalid, res.Status)
	assert.Equal(t, 1, store.lookups)
}

func TestRecordManual(t *testing.T) {
	t.Parallel()
	f := setup(t)
	ctx := context.Background()
	ada := f.client(t, "Ada")

	c, err := f.m.RecordManual(ctx, f.owner, ada.ID, map[string]any{"height_cm": 168, "Waist": 70})
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"height": 168, "waist": 70}, c.Measurements.Current.Values)
	assert.Equal(t, clients.ProvenanceManual, c.Measurements.Current.Provenance)

	_, err = f.m.RecordManual(ctx, f.owner, ada.ID, map[string]any{"bust": 90, "shoe_color": 3})
	assert.ErrorIs(t, err, capture.ErrInvalidMeasurementValue)

	_, err = f.m.RecordManual(ctx, f.owner, ada.ID, map[string]any{"bust": 9000})
	assert.ErrorIs(t, err, capture.ErrImplausibleMeasurement)

	_, err = f.m.RecordManual(ctx, uuid.New(), ada.ID, map[string]any{"bust": 90})
	assert.ErrorIs(t, err, clients.ErrClientNotFound)

	assert.Equal(t, map[string]float64{"height": 168, "waist": 70}, f.ledger(t, ada.ID).Current.Values)
}
