//go:build integration

package usage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"golang.org/x/sync/errgroup"

	"gatepass/pkg/platform/sentinel"
	"gatepass/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *PostgresStore
}

func TestPostgresStoreSuite(t *testing.T) {
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.postgres = containers.GetManager().GetPostgres(s.T())
	s.store = NewPostgres(s.postgres.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(context.Background(), "unit_usage"))
}

func (s *PostgresStoreSuite) TestIncrementUpsert() {
	ctx := context.Background()
	now := time.Date(2026, 8, 17, 12, 0, 0, 0, time.UTC)

	s.Require().NoError(s.store.IncrementUsed(ctx, "proj-1", "A-101", "2026-08", "user-1", "Dana", now))
	s.Require().NoError(s.store.IncrementUsed(ctx, "proj-1", "A-101", "2026-08", "user-2", "Sam", now.Add(time.Minute)))

	usage, err := s.store.UnitUsage(ctx, "proj-1", "A-101", "2026-08")
	s.Require().NoError(err)
	s.Equal(2, usage.UsedThisMonth)
	s.Equal("Sam", usage.LastPassCreatedByName)

	_, err = s.store.UnitUsage(ctx, "proj-1", "A-101", "2026-09")
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestConcurrentIncrements() {
	ctx := context.Background()
	now := time.Now().UTC()

	const writers = 20
	var g errgroup.Group
	for i := 0; i < writers; i++ {
		g.Go(func() error {
			return s.store.IncrementUsed(ctx, "proj-1", "A-101", "2026-08", "user-1", "Dana", now)
		})
	}
	s.Require().NoError(g.Wait())

	usage, err := s.store.UnitUsage(ctx, "proj-1", "A-101", "2026-08")
	s.Require().NoError(err)
	s.Equal(writers, usage.UsedThisMonth, "upsert must not lose increments")
}

func (s *PostgresStoreSuite) TestSetUsedOverwrites() {
	ctx := context.Background()
	now := time.Now().UTC()

	s.Require().NoError(s.store.IncrementUsed(ctx, "proj-1", "A-101", "2026-08", "user-1", "Dana", now))
	s.Require().NoError(s.store.SetUsed(ctx, "proj-1", "A-101", "2026-08", 7, now))

	usage, err := s.store.UnitUsage(ctx, "proj-1", "A-101", "2026-08")
	s.Require().NoError(err)
	s.Equal(7, usage.UsedThisMonth)
}
