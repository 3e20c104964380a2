package verifier

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gatepass/internal/guestpass/models"
	passstore "gatepass/internal/guestpass/store/pass"
	"gatepass/pkg/domain"
	"gatepass/pkg/requestcontext"
)

const (
	testProject = domain.ProjectID("proj-1")
	testPass    = domain.PassID("GP-1755432000000-ABCDE")
	testToken   = "token-secret-1"
)

func newVerifier(t *testing.T) (*Verifier, *passstore.MemoryStore) {
	t.Helper()
	passes := passstore.NewMemoryStore()
	v, err := New(passes)
	require.NoError(t, err)
	return v, passes
}

func seedPass(t *testing.T, passes *passstore.MemoryStore, validUntil time.Time) {
	t.Helper()
	err := passes.Save(context.Background(), &models.GuestPass{
		ID:                testPass,
		ProjectID:         testProject,
		UserID:            "user-1",
		Unit:              "A-101",
		GuestName:         "Visitor",
		Purpose:           "family visit",
		ValidFrom:         validUntil.Add(-2 * time.Hour),
		ValidUntil:        validUntil,
		CreatedAt:         validUntil.Add(-2 * time.Hour),
		VerificationToken: testToken,
	})
	require.NoError(t, err)
}

func redeemReq(token string) models.RedeemRequest {
	return models.RedeemRequest{
		ProjectID:         testProject,
		PassID:            testPass,
		VerificationToken: token,
	}
}

func atTime(t time.Time) context.Context {
	return requestcontext.WithTime(context.Background(), t)
}

func TestRedeem_Success(t *testing.T) {
	v, passes := newVerifier(t)
	now := time.Date(2026, 8, 17, 12, 0, 0, 0, time.UTC)
	seedPass(t, passes, now.Add(time.Hour))

	result, err := v.Redeem(atTime(now), redeemReq(testToken))
	require.NoError(t, err)
	assert.Equal(t, testPass, result.PassID)
	assert.Equal(t, "Visitor", result.GuestName)
	assert.Equal(t, "family visit", result.Purpose)
	assert.Equal(t, now, result.UsedAt)

	stored, err := passes.FindByPublicID(context.Background(), testProject, testPass)
	require.NoError(t, err)
	assert.True(t, stored.Used)
	require.NotNil(t, stored.UsedAt)
	assert.Equal(t, now, *stored.UsedAt)
}

func TestRedeem_FailureOrder(t *testing.T) {
	now := time.Date(2026, 8, 17, 12, 0, 0, 0, time.UTC)

	t.Run("unknown pass", func(t *testing.T) {
		v, _ := newVerifier(t)

		_, err := v.Redeem(atTime(now), redeemReq(testToken))
		var redeemErr *RedeemError
		require.ErrorAs(t, err, &redeemErr)
		assert.Equal(t, domain.OutcomeNotFound, redeemErr.Outcome)
	})

	t.Run("wrong token reported before prior use", func(t *testing.T) {
		v, passes := newVerifier(t)
		seedPass(t, passes, now.Add(time.Hour))
		require.NoError(t, passes.MarkUsed(context.Background(), testProject, testPass, now.Add(-time.Minute)))

		_, err := v.Redeem(atTime(now), redeemReq("wrong-token"))
		var redeemErr *RedeemError
		require.ErrorAs(t, err, &redeemErr)
		assert.Equal(t, domain.OutcomeInvalidToken, redeemErr.Outcome)
	})

	t.Run("already used carries the original consumption time", func(t *testing.T) {
		v, passes := newVerifier(t)
		seedPass(t, passes, now.Add(time.Hour))
		usedAt := now.Add(-10 * time.Minute)
		require.NoError(t, passes.MarkUsed(context.Background(), testProject, testPass, usedAt))

		_, err := v.Redeem(atTime(now), redeemReq(testToken))
		var redeemErr *RedeemError
		require.ErrorAs(t, err, &redeemErr)
		assert.Equal(t, domain.OutcomeAlreadyUsed, redeemErr.Outcome)
		require.NotNil(t, redeemErr.UsedAt)
		assert.Equal(t, usedAt, *redeemErr.UsedAt)
	})

	t.Run("prior use reported before expiry", func(t *testing.T) {
		v, passes := newVerifier(t)
		seedPass(t, passes, now.Add(-time.Hour)) // expired
		require.NoError(t, passes.MarkUsed(context.Background(), testProject, testPass, now.Add(-90*time.Minute)))

		_, err := v.Redeem(atTime(now), redeemReq(testToken))
		var redeemErr *RedeemError
		require.ErrorAs(t, err, &redeemErr)
		assert.Equal(t, domain.OutcomeAlreadyUsed, redeemErr.Outcome)
	})

	t.Run("expired pass", func(t *testing.T) {
		v, passes := newVerifier(t)
		seedPass(t, passes, now.Add(-time.Second))

		_, err := v.Redeem(atTime(now), redeemReq(testToken))
		var redeemErr *RedeemError
		require.ErrorAs(t, err, &redeemErr)
		assert.Equal(t, domain.OutcomeExpired, redeemErr.Outcome)
	})

	t.Run("pass valid exactly until the boundary", func(t *testing.T) {
		v, passes := newVerifier(t)
		seedPass(t, passes, now)

		// now == valid_until is still valid; expiry requires now > valid_until.
		_, err := v.Redeem(atTime(now), redeemReq(testToken))
		require.NoError(t, err)
	})

	t.Run("soft-deleted pass still redeems", func(t *testing.T) {
		// Deletion only removes the pass from quota counting and listings;
		// a guest holding a valid credential is still admitted.
		v, passes := newVerifier(t)
		seedPass(t, passes, now.Add(time.Hour))
		require.NoError(t, passes.Delete(context.Background(), testProject, testPass))

		result, err := v.Redeem(atTime(now), redeemReq(testToken))
		require.NoError(t, err)
		assert.Equal(t, testPass, result.PassID)

		stored, err := passes.FindByPublicID(context.Background(), testProject, testPass)
		require.NoError(t, err)
		assert.True(t, stored.Used)
	})
}

// Scenario: two gate stations scan the same pass at the same moment. The
// compare-and-set on the store admits exactly one.
func TestRedeem_ConcurrentAttemptsAdmitOne(t *testing.T) {
	v, passes := newVerifier(t)
	now := time.Date(2026, 8, 17, 12, 0, 0, 0, time.UTC)
	seedPass(t, passes, now.Add(time.Hour))

	const attempts = 16
	var wg sync.WaitGroup
	results := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := v.Redeem(atTime(now), redeemReq(testToken))
			results[i] = err
		}(i)
	}
	wg.Wait()

	successes := 0
	for _, err := range results {
		if err == nil {
			successes++
			continue
		}
		var redeemErr *RedeemError
		require.ErrorAs(t, err, &redeemErr)
		assert.Equal(t, domain.OutcomeAlreadyUsed, redeemErr.Outcome)
	}
	assert.Equal(t, 1, successes, "exactly one attempt may consume the pass")
}

func TestRedeem_ValidatesRequest(t *testing.T) {
	v, _ := newVerifier(t)

	_, err := v.Redeem(context.Background(), models.RedeemRequest{ProjectID: testProject, PassID: testPass})
	require.Error(t, err)

	_, err = v.Redeem(context.Background(), models.RedeemRequest{ProjectID: testProject, VerificationToken: testToken})
	require.Error(t, err)
}
