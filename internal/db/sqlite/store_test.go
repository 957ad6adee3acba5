package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"serotonyl.ru/tokenarena/internal/common"
	"serotonyl.ru/tokenarena/internal/features/account"
	"serotonyl.ru/tokenarena/internal/features/quest"
	"serotonyl.ru/tokenarena/internal/features/staking"
	"serotonyl.ru/tokenarena/internal/features/wager"
)

var now = time.Date(2026, 8, 3, 15, 0, 0, 0, time.UTC)

func openStore(t *testing.T) *Store {
	t.Helper()
	logger, _ := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	s, err := Open(context.Background(), logger, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestCreateGetRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)

	acc := account.New("player-1", now)
	j := account.NewJournal(acc, now)
	require.NoError(t, j.Mint(account.BalanceSpendable, decimal.RequireFromString("1000.5"), account.ReasonSignupGrant, ""))
	require.NoError(t, j.Transfer(account.BalanceSpendable, account.BalanceStaked, decimal.NewFromInt(300), account.ReasonStake, "p1"))
	acc.Positions = []staking.Position{{
		ID: "p1", PackageID: "core-30", Amount: decimal.NewFromInt(300), StartTime: now,
		DurationDays: 30, APRPercent: decimal.NewFromInt(25), EarlyExitPenaltyPercent: decimal.NewFromInt(10),
	}}
	def := quest.DefaultDefinitions(24 * time.Hour)[0]
	acc.QuestState(def)

	require.NoError(t, s.Create(ctx, acc, j.Entries()))
	assert.EqualValues(t, 1, acc.Version)
	assert.ErrorIs(t, s.Create(ctx, account.New("player-1", now), nil), common.ErrAccountExists)

	got, err := s.Get(ctx, "player-1")
	require.NoError(t, err)
	assert.EqualValues(t, 1, got.Version)
	assert.Equal(t, "700.5", got.Spendable.String())
	assert.Equal(t, "300", got.Staked.String())
	require.Len(t, got.Positions, 1)
	assert.True(t, got.Positions[0].StartTime.Equal(now))
	assert.Equal(t, quest.StatusVerified, got.Quests[def.Kind].Status)
	require.NoError(t, got.Validate())

	entries, err := s.Entries(ctx, "player-1")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, account.EntryMint, entries[0].Kind)
	assert.Equal(t, "1000.5", entries[0].Amount.String())
	assert.Equal(t, "p1", entries[1].Ref)

	_, err = s.Get(ctx, "ghost")
	assert.ErrorIs(t, err, common.ErrAccountNotFound)
}

func TestConditionalUpdate(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)
	require.NoError(t, s.Create(ctx, account.New("p", now), nil))

	a, err := s.Get(ctx, "p")
	require.NoError(t, err)
	stale, err := s.Get(ctx, "p")
	require.NoError(t, err)

	a.WagerCredit = decimal.NewFromInt(5)
	require.NoError(t, s.Update(ctx, a, 1, nil))
	assert.EqualValues(t, 2, a.Version)

	stale.WagerCredit = decimal.NewFromInt(500)
	assert.ErrorIs(t, s.Update(ctx, stale, 1, nil), common.ErrConcurrentModification)
	assert.EqualValues(t, 1, stale.Version)

	got, err := s.Get(ctx, "p")
	require.NoError(t, err)
	assert.Equal(t, "5", got.WagerCredit.String())
	assert.EqualValues(t, 2, got.Version)
}

func TestRoundAndStakerQueries(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)

	a := account.New("a", now)
	a.PendingRound = &wager.Round{ID: "round-a", Bet: decimal.NewFromInt(1), Deadline: now.Add(-time.Second)}
	a.Escrow = decimal.NewFromInt(1)
	require.NoError(t, s.Create(ctx, a, nil))

	b := account.New("b", now)
	b.PendingRound = &wager.Round{ID: "round-b", Bet: decimal.NewFromInt(1), Deadline: now.Add(time.Hour)}
	b.Escrow = decimal.NewFromInt(1)
	b.Positions = []staking.Position{{ID: "x", Amount: decimal.NewFromInt(2)}}
	b.Staked = decimal.NewFromInt(2)
	require.NoError(t, s.Create(ctx, b, nil))

	ids, err := s.ListExpiredRounds(ctx, now, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, ids)

	// раунд рассчитан: переезжает в last_round и пропадает из просроченных
	got, err := s.Get(ctx, "a")
	require.NoError(t, err)
	got.LastRound = got.PendingRound
	got.PendingRound = nil
	got.Escrow = decimal.Zero
	require.NoError(t, s.Update(ctx, got, got.Version, nil))

	ids, err = s.ListExpiredRounds(ctx, now, 10)
	require.NoError(t, err)
	assert.Empty(t, ids)

	found, err := s.FindByRound(ctx, "round-a")
	require.NoError(t, err)
	assert.Equal(t, "a", found.ID)
	_, err = s.FindByRound(ctx, "nope")
	assert.ErrorIs(t, err, common.ErrRoundNotFound)

	stakers, err := s.ListStakers(ctx, "", 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, stakers)
}

func TestCancelledContext(t *testing.T) {
	s := openStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Get(ctx, "p")
	require.Error(t, err)
	assert.NotErrorIs(t, err, common.ErrStoreUnavailable)
}
