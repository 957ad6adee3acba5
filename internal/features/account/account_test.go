package account

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"serotonyl.ru/tokenarena/internal/common"
	"serotonyl.ru/tokenarena/internal/features/quest"
	"serotonyl.ru/tokenarena/internal/features/staking"
	"serotonyl.ru/tokenarena/internal/features/wager"
)

var now = time.Date(2026, 7, 1, 10, 0, 0, 0, time.UTC)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestJournalMovesBalances(t *testing.T) {
	acc := New("u1", now)
	j := NewJournal(acc, now)

	require.NoError(t, j.Mint(BalanceSpendable, d("100"), ReasonSignupGrant, ""))
	require.NoError(t, j.Transfer(BalanceSpendable, BalanceStaked, d("40"), ReasonStake, "p1"))
	require.NoError(t, j.Burn(BalanceStaked, d("4"), ReasonEarlyExitPenalty, "p1"))
	require.NoError(t, j.Transfer(BalanceSpendable, BalanceWager, decimal.Zero, ReasonConvert, ""))

	assert.Equal(t, "60", acc.Spendable.String())
	assert.Equal(t, "36", acc.Staked.String())
	require.Len(t, j.Entries(), 3)

	groups := map[string]bool{}
	for _, e := range j.Entries() {
		groups[e.GroupID] = true
		assert.Equal(t, "u1", e.AccountID)
	}
	assert.Len(t, groups, 1)

	minted, burned := HouseFlow(j.Entries())
	assert.True(t, acc.Total().Equal(minted.Sub(burned)))
}

func TestJournalRejectsOverdraft(t *testing.T) {
	acc := New("u1", now)
	acc.WagerCredit = d("50")
	j := NewJournal(acc, now)

	err := j.Transfer(BalanceWager, BalanceEscrow, d("100"), ReasonBetReserve, "r1")
	assert.ErrorIs(t, err, common.ErrInsufficientFunds)
	assert.Equal(t, "50", acc.WagerCredit.String())
	assert.True(t, acc.Escrow.IsZero())
	assert.Empty(t, j.Entries())

	assert.ErrorIs(t, j.Mint(BalanceWager, d("-1"), ReasonConvert, ""), common.ErrInvalidAmount)
	assert.Error(t, j.Mint(BalanceHouse, d("1"), ReasonConvert, ""))
}

func TestValidate(t *testing.T) {
	acc := New("u1", now)
	require.NoError(t, acc.Validate())

	acc.Staked = d("10")
	assert.ErrorIs(t, acc.Validate(), common.ErrInvariantViolation)

	acc.Positions = []staking.Position{{ID: "p", Amount: d("10")}}
	require.NoError(t, acc.Validate())

	acc.Escrow = d("5")
	assert.ErrorIs(t, acc.Validate(), common.ErrInvariantViolation)
	acc.PendingRound = &wager.Round{ID: "r", Bet: d("5")}
	require.NoError(t, acc.Validate())

	acc.Spendable = d("-0.01")
	assert.ErrorIs(t, acc.Validate(), common.ErrInvariantViolation)
}

func TestCloneIsDeep(t *testing.T) {
	acc := New("u1", now)
	acc.Positions = []staking.Position{{ID: "p", Amount: d("1")}}
	acc.Staked = d("1")
	def := quest.DefaultDefinitions(time.Hour)[1]
	acc.QuestState(def)
	acc.PendingRound = &wager.Round{ID: "r", Opponent: wager.Opponent{History: []wager.Move{wager.MoveRock}}}

	c := acc.Clone()
	c.Positions[0].Amount = d("2")
	c.Quests[def.Kind].ClaimCount = 7
	c.PendingRound.Opponent.History[0] = wager.MovePaper

	assert.Equal(t, "1", acc.Positions[0].Amount.String())
	assert.Equal(t, 0, acc.Quests[def.Kind].ClaimCount)
	assert.Equal(t, wager.MoveRock, acc.PendingRound.Opponent.History[0])
}

func TestPublicHidesSealedMove(t *testing.T) {
	acc := New("u1", now)
	acc.PendingRound = &wager.Round{ID: "r", OpponentMove: wager.MovePaper, Salt: "s", Commitment: "c"}
	acc.LastRound = &wager.Round{ID: "old", OpponentMove: wager.MoveRock, Salt: "s0"}

	pub := acc.Public()
	assert.Empty(t, pub.PendingRound.OpponentMove)
	assert.Empty(t, pub.PendingRound.Salt)
	assert.Equal(t, "c", pub.PendingRound.Commitment)
	assert.Equal(t, wager.MoveRock, pub.LastRound.OpponentMove)

	assert.Equal(t, wager.MovePaper, acc.PendingRound.OpponentMove)
	assert.Nil(t, New("u2", now).Public().PendingRound)
}

func TestMemoryStoreVersioning(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	acc := New("u1", now)
	require.NoError(t, s.Create(ctx, acc, nil))
	assert.ErrorIs(t, s.Create(ctx, New("u1", now), nil), common.ErrAccountExists)

	a, err := s.Get(ctx, "u1")
	require.NoError(t, err)
	assert.EqualValues(t, 1, a.Version)

	b, err := s.Get(ctx, "u1")
	require.NoError(t, err)

	j := NewJournal(a, now)
	require.NoError(t, j.Mint(BalanceSpendable, d("10"), ReasonQuestReward, "q"))
	require.NoError(t, s.Update(ctx, a, 1, j.Entries()))
	assert.EqualValues(t, 2, a.Version)

	b.Spendable = d("999")
	assert.ErrorIs(t, s.Update(ctx, b, 1, nil), common.ErrConcurrentModification)

	got, err := s.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "10", got.Spendable.String())
	assert.Len(t, s.Entries("u1"), 1)

	_, err = s.Get(ctx, "nobody")
	assert.ErrorIs(t, err, common.ErrAccountNotFound)
}

func TestMemoryStoreQueries(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	pending := New("a", now)
	pending.PendingRound = &wager.Round{ID: "r-a", Deadline: now.Add(-time.Second), Bet: d("1")}
	pending.Escrow = d("1")
	require.NoError(t, s.Create(ctx, pending, nil))

	fresh := New("b", now)
	fresh.PendingRound = &wager.Round{ID: "r-b", Deadline: now.Add(time.Minute), Bet: d("1")}
	fresh.Escrow = d("1")
	fresh.LastRound = &wager.Round{ID: "r-old"}
	fresh.Positions = []staking.Position{{ID: "p", Amount: d("5")}}
	fresh.Staked = d("5")
	require.NoError(t, s.Create(ctx, fresh, nil))

	staker := New("c", now)
	staker.Positions = []staking.Position{{ID: "p", Amount: d("5")}}
	staker.Staked = d("5")
	require.NoError(t, s.Create(ctx, staker, nil))

	ids, err := s.ListExpiredRounds(ctx, now, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, ids)

	found, err := s.FindByRound(ctx, "r-old")
	require.NoError(t, err)
	assert.Equal(t, "b", found.ID)
	_, err = s.FindByRound(ctx, "missing")
	assert.ErrorIs(t, err, common.ErrRoundNotFound)

	ids, err = s.ListStakers(ctx, "", 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, ids)
	ids, err = s.ListStakers(ctx, "b", 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"c"}, ids)
}

func TestStoreErrorMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want error
	}{
		{"serialization failure", &pgconn.PgError{Code: "40001"}, common.ErrConcurrentModification},
		{"deadlock", &pgconn.PgError{Code: "40P01"}, common.ErrConcurrentModification},
		{"check violation", &pgconn.PgError{Code: "23514"}, common.ErrInvariantViolation},
		{"connection refused", errors.New("dial tcp: connection refused"), common.ErrStoreUnavailable},
		{"cancelled", context.Canceled, context.Canceled},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.ErrorIs(t, storeError("op", tc.err), tc.want)
		})
	}

	assert.True(t, isUniqueViolation(&pgconn.PgError{Code: "23505"}))
	assert.False(t, isUniqueViolation(errors.New("boom")))
}

func TestParseBalance(t *testing.T) {
	b, err := ParseBalance("wager_credit")
	require.NoError(t, err)
	assert.Equal(t, BalanceWager, b)

	_, err = ParseBalance("house")
	assert.Error(t, err)
}
