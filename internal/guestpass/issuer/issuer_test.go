package issuer

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gatepass/internal/guestpass/issuelock"
	"gatepass/internal/guestpass/models"
	"gatepass/internal/guestpass/policy"
	"gatepass/internal/guestpass/quota"
	"gatepass/internal/guestpass/renderer"
	passstore "gatepass/internal/guestpass/store/pass"
	policystore "gatepass/internal/guestpass/store/policy"
	usagestore "gatepass/internal/guestpass/store/usage"
	userstore "gatepass/internal/guestpass/store/user"
	"gatepass/pkg/domain"
	dErrors "gatepass/pkg/domain-errors"
	"gatepass/pkg/requestcontext"
)

const (
	testProject = domain.ProjectID("proj-1")
	testUser    = domain.UserID("user-1")
	testUnit    = domain.UnitID("A-101")
)

type fixture struct {
	issuer   *Issuer
	passes   *passstore.MemoryStore
	policies *policystore.MemoryStore
	usage    *usagestore.MemoryStore
	objects  *renderer.MemoryObjectStore
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	users := userstore.NewMemoryStore()
	require.NoError(t, users.Put(ctx, &models.User{
		ID:   testUser,
		Name: "Dana Resident",
		Memberships: []models.Membership{
			{ProjectID: testProject, Unit: testUnit, Role: domain.RoleOwner},
		},
	}))

	policies := policystore.NewMemoryStore()
	passes := passstore.NewMemoryStore()
	usage := usagestore.NewMemoryStore()
	objects := renderer.NewMemoryObjectStore()

	resolver, err := policy.New(users, policies)
	require.NoError(t, err)
	counter, err := quota.New(passes)
	require.NoError(t, err)
	credentialRenderer, err := renderer.New(objects)
	require.NoError(t, err)

	iss, err := New(resolver, counter, passes, policies, usage, credentialRenderer,
		WithIssueLock(issuelock.NewMemoryLock()),
	)
	require.NoError(t, err)

	return &fixture{issuer: iss, passes: passes, policies: policies, usage: usage, objects: objects}
}

func issueReq() models.IssueRequest {
	return models.IssueRequest{
		ProjectID: testProject,
		UserID:    testUser,
		UserName:  "Dana Resident",
		GuestName: "Visitor",
		Purpose:   "family visit",
	}
}

func atTime(t time.Time) context.Context {
	return requestcontext.WithTime(context.Background(), t)
}

func TestIssue_CreatesPassAndCredential(t *testing.T) {
	f := newFixture(t)
	now := time.Date(2026, 8, 17, 12, 0, 0, 0, time.UTC)
	ctx := atTime(now)

	result, err := f.issuer.Issue(ctx, issueReq())
	require.NoError(t, err)

	pass := result.Pass
	assert.Regexp(t, `^GP-\d+-[A-Z2-9]{5}$`, pass.ID.String())
	assert.Equal(t, testUnit, pass.Unit)
	assert.Equal(t, now, pass.CreatedAt)
	assert.Equal(t, now.Add(2*time.Hour), pass.ValidUntil, "default validity is two hours")
	assert.NotEmpty(t, pass.VerificationToken)
	assert.False(t, pass.Used)
	assert.NotEmpty(t, result.CredentialURL)

	// The stored credential must round-trip the token exactly.
	key := "guestPasses/" + testProject.String() + "/" + pass.ID.String() + ".json"
	body, ok := f.objects.Get(key)
	require.True(t, ok, "credential payload stored under %s", key)
	var payload models.CredentialPayload
	require.NoError(t, json.Unmarshal(body, &payload))
	assert.Equal(t, pass.VerificationToken, payload.VerificationToken)
	assert.Equal(t, pass.ValidUntil.UTC().Format(time.RFC3339), payload.ValidUntil)

	stored, err := f.passes.FindByPublicID(context.Background(), testProject, pass.ID)
	require.NoError(t, err)
	assert.Equal(t, pass.VerificationToken, stored.VerificationToken)
}

func TestIssue_ProjectValidityWindow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.policies.PutProjectPolicy(ctx, &models.ProjectPolicy{
		ProjectID:             testProject,
		ValidityDurationHours: 6,
	}))

	now := time.Date(2026, 8, 17, 12, 0, 0, 0, time.UTC)
	result, err := f.issuer.Issue(atTime(now), issueReq())
	require.NoError(t, err)
	assert.Equal(t, now.Add(6*time.Hour), result.Pass.ValidUntil)
}

func TestIssue_QuotaBoundary(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	limit := 3
	require.NoError(t, f.policies.PutUnitPolicy(ctx, &models.UnitPolicy{
		ProjectID:    testProject,
		Unit:         testUnit,
		MonthlyLimit: &limit,
	}))

	base := time.Date(2026, 8, 10, 9, 0, 0, 0, time.UTC)
	var issued []domain.PassID
	for i := 0; i < limit; i++ {
		result, err := f.issuer.Issue(atTime(base.Add(time.Duration(i)*time.Minute)), issueReq())
		require.NoError(t, err)
		issued = append(issued, result.Pass.ID)
	}

	// At the limit: used == limit denies with the reached reason.
	_, err := f.issuer.Issue(atTime(base.Add(time.Hour)), issueReq())
	var denied *EligibilityDenied
	require.ErrorAs(t, err, &denied)
	assert.Equal(t, domain.ReasonLimitReached, denied.Result.Reason)
	assert.Equal(t, limit, denied.Result.UsedThisMonth)
	assert.Equal(t, limit, denied.Result.MonthlyLimit)

	// Redeeming a pass does not free up quota within the month.
	require.NoError(t, f.passes.MarkUsed(ctx, testProject, issued[0], base.Add(2*time.Hour)))
	_, err = f.issuer.Issue(atTime(base.Add(3*time.Hour)), issueReq())
	require.ErrorAs(t, err, &denied)
	assert.Equal(t, domain.ReasonLimitReached, denied.Result.Reason)

	// A new month resets the window.
	nextMonth := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	result, err := f.issuer.Issue(atTime(nextMonth), issueReq())
	require.NoError(t, err)
	assert.NotNil(t, result.Pass)
}

func TestEligibility_QuotaFields(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	limit := 5
	require.NoError(t, f.policies.PutUnitPolicy(ctx, &models.UnitPolicy{
		ProjectID:    testProject,
		Unit:         testUnit,
		MonthlyLimit: &limit,
	}))

	now := time.Date(2026, 8, 10, 9, 0, 0, 0, time.UTC)
	_, err := f.issuer.Issue(atTime(now), issueReq())
	require.NoError(t, err)
	_, err = f.issuer.Issue(atTime(now.Add(time.Minute)), issueReq())
	require.NoError(t, err)

	result, err := f.issuer.Eligibility(atTime(now.Add(time.Hour)), testProject, testUser)
	require.NoError(t, err)
	assert.True(t, result.Allowed)
	assert.Equal(t, 2, result.UsedThisMonth)
	assert.Equal(t, 5, result.MonthlyLimit)
	assert.Equal(t, 3, result.RemainingQuota)
}

func TestIssue_DeniedUserGetsStructuredResult(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.policies.PutProjectPolicy(context.Background(), &models.ProjectPolicy{
		ProjectID:     testProject,
		BlockAllUsers: true,
	}))

	_, err := f.issuer.Issue(context.Background(), issueReq())
	var denied *EligibilityDenied
	require.ErrorAs(t, err, &denied)
	assert.Equal(t, domain.ReasonProjectBlocked, denied.Result.Reason)
	assert.NotEmpty(t, denied.Result.Message)
}

func TestIssue_UpdatesUnitUsageAggregate(t *testing.T) {
	f := newFixture(t)
	now := time.Date(2026, 8, 17, 12, 0, 0, 0, time.UTC)

	_, err := f.issuer.Issue(atTime(now), issueReq())
	require.NoError(t, err)
	_, err = f.issuer.Issue(atTime(now.Add(time.Minute)), issueReq())
	require.NoError(t, err)

	aggregate, err := f.usage.UnitUsage(context.Background(), testProject, testUnit, "2026-08")
	require.NoError(t, err)
	assert.Equal(t, 2, aggregate.UsedThisMonth)
	assert.Equal(t, testUser, aggregate.LastPassCreatedBy)
	assert.Equal(t, "Dana Resident", aggregate.LastPassCreatedByName)
}

func TestIssue_ValidatesRequest(t *testing.T) {
	f := newFixture(t)

	req := issueReq()
	req.GuestName = ""
	_, err := f.issuer.Issue(context.Background(), req)
	assert.Equal(t, dErrors.CodeInvalidInput, dErrors.CodeOf(err))

	req = issueReq()
	req.Purpose = ""
	_, err = f.issuer.Issue(context.Background(), req)
	assert.Equal(t, dErrors.CodeInvalidInput, dErrors.CodeOf(err))
}

// Two requests racing for the last slot of the month must not both succeed:
// the per-user lock serializes them, so the loser sees either the conflict or
// the recomputed limit_reached denial.
func TestIssue_ConcurrentRequestsRespectTheLimit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	limit := 1
	require.NoError(t, f.policies.PutUnitPolicy(ctx, &models.UnitPolicy{
		ProjectID:    testProject,
		Unit:         testUnit,
		MonthlyLimit: &limit,
	}))

	now := time.Date(2026, 8, 17, 12, 0, 0, 0, time.UTC)
	const attempts = 8

	var wg sync.WaitGroup
	results := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := f.issuer.Issue(atTime(now.Add(time.Duration(i)*time.Millisecond)), issueReq())
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
		var denied *EligibilityDenied
		conflicted := dErrors.Is(err, dErrors.CodeConflict)
		limitReached := errors.As(err, &denied) && denied.Result.Reason == domain.ReasonLimitReached
		assert.True(t, conflicted || limitReached, "unexpected failure: %v", err)
	}
	assert.Equal(t, 1, successes, "exactly one request may claim the last slot")

	count, err := f.passes.CountActive(ctx, testProject, models.ScopeUser, testUser.String(), quota.PeriodStart(now))
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}
