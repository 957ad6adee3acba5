package wager

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"serotonyl.ru/tokenarena/internal/common"
)

func TestResolve(t *testing.T) {
	cases := []struct {
		player, opponent Move
		want             Outcome
	}{
		{MoveRock, MoveScissors, OutcomeWin},
		{MoveScissors, MovePaper, OutcomeWin},
		{MovePaper, MoveRock, OutcomeWin},
		{MoveRock, MovePaper, OutcomeLose},
		{MoveScissors, MoveRock, OutcomeLose},
		{MovePaper, MoveScissors, OutcomeLose},
		{MoveRock, MoveRock, OutcomeDraw},
		{MovePaper, MovePaper, OutcomeDraw},
		{MoveScissors, MoveScissors, OutcomeDraw},
	}
	for _, tc := range cases {
		t.Run(string(tc.player)+"_vs_"+string(tc.opponent), func(t *testing.T) {
			assert.Equal(t, tc.want, Resolve(tc.player, tc.opponent))
		})
	}
}

func TestSettleOutcomeDoesNotDependOnBet(t *testing.T) {
	rules := DefaultRules(decimal.RequireFromString("0.05"))
	for _, raw := range []string{"0.00000001", "1", "50", "100", "12345.678"} {
		bet := decimal.RequireFromString(raw)
		for _, mode := range []Mode{ModeBot, ModePvP} {
			p, err := rules.For(mode)
			require.NoError(t, err)
			assert.Equal(t, OutcomeWin, Settle(bet, MoveRock, MoveScissors, p, rules.Scale).Outcome, raw)
			assert.Equal(t, OutcomeDraw, Settle(bet, MoveRock, MoveRock, p, rules.Scale).Outcome, raw)
			assert.Equal(t, OutcomeLose, Settle(bet, MoveRock, MovePaper, p, rules.Scale).Outcome, raw)
		}
	}
}

func TestSettlePayouts(t *testing.T) {
	rules := DefaultRules(decimal.RequireFromString("0.05"))
	bet := decimal.NewFromInt(100)

	t.Run("bot win pays the bet without fee", func(t *testing.T) {
		s := Settle(bet, MovePaper, MoveRock, rules.Bot, rules.Scale)
		assert.True(t, s.Payout.Equal(bet))
		assert.True(t, s.Fee.IsZero())
		assert.True(t, s.Minted.IsZero())
	})

	t.Run("pvp win pays double minus platform fee", func(t *testing.T) {
		s := Settle(bet, MovePaper, MoveRock, rules.PvP, rules.Scale)
		assert.Equal(t, "190", s.Payout.String())
		assert.Equal(t, "10", s.Fee.String())
		assert.Equal(t, "100", s.Minted.String())
	})

	t.Run("draw refunds", func(t *testing.T) {
		s := Settle(bet, MovePaper, MovePaper, rules.PvP, rules.Scale)
		assert.True(t, s.Refund.Equal(bet))
		assert.True(t, s.Payout.IsZero())
	})

	t.Run("lose burns the bet", func(t *testing.T) {
		s := Settle(bet, MovePaper, MoveScissors, rules.PvP, rules.Scale)
		assert.True(t, s.Burned.Equal(bet))
		assert.True(t, s.Payout.IsZero())
	})

	t.Run("multiplier below one burns the shortfall", func(t *testing.T) {
		p := PayoutRules{Multiplier: decimal.RequireFromString("0.9"), FeeRate: decimal.Zero}
		s := Settle(bet, MovePaper, MoveRock, p, 8)
		assert.Equal(t, "10", s.Burned.String())
		assert.Equal(t, "90", s.Payout.String())
	})
}

func TestSettleEmptiesEscrow(t *testing.T) {
	rules := DefaultRules(decimal.RequireFromString("0.07"))
	bet := decimal.RequireFromString("33.33333333")
	for _, mode := range []Mode{ModeBot, ModePvP} {
		p, _ := rules.For(mode)
		for _, opp := range Moves {
			s := Settle(bet, MoveRock, opp, p, rules.Scale)
			left := bet.Add(s.Minted).Sub(s.Burned).Sub(s.Fee).Sub(s.Payout).Sub(s.Refund)
			assert.True(t, left.IsZero(), "mode=%s opponent=%s left=%s", mode, opp, left)
		}
	}
}

func TestRulesValidate(t *testing.T) {
	require.NoError(t, DefaultRules(decimal.RequireFromString("0.05")).Validate())

	bad := DefaultRules(decimal.NewFromInt(1))
	assert.Error(t, bad.Validate())

	bad = DefaultRules(decimal.Zero)
	bad.Bot.Multiplier = decimal.Zero
	assert.Error(t, bad.Validate())

	_, err := bad.For(Mode("tournament"))
	assert.ErrorIs(t, err, common.ErrInvalidMode)
}

func TestParseMoveAndMode(t *testing.T) {
	m, err := ParseMove(" Rock ")
	require.NoError(t, err)
	assert.Equal(t, MoveRock, m)

	_, err = ParseMove("lizard")
	assert.ErrorIs(t, err, common.ErrInvalidMove)

	mode, err := ParseMode("PVP")
	require.NoError(t, err)
	assert.Equal(t, ModePvP, mode)

	_, err = ParseMode("")
	assert.ErrorIs(t, err, common.ErrInvalidMode)
}

func TestCommitment(t *testing.T) {
	salt, err := NewSalt()
	require.NoError(t, err)
	assert.Len(t, salt, saltBytes*2)

	c := Commit("round-1", MoveScissors, salt)
	assert.Len(t, c, 64)
	assert.True(t, VerifyCommitment(c, "round-1", MoveScissors, salt))
	assert.False(t, VerifyCommitment(c, "round-1", MoveRock, salt))
	assert.False(t, VerifyCommitment(c, "round-2", MoveScissors, salt))
	assert.False(t, VerifyCommitment(c, "round-1", MoveScissors, salt+"00"))
}

func TestRandomOpponents(t *testing.T) {
	ctx := context.Background()
	p := NewRandomOpponents([]string{"alpha", "beta"}, 4)

	bot, err := p.FindOpponent(ctx, ModeBot)
	require.NoError(t, err)
	assert.Equal(t, BotName, bot.Name)
	assert.Len(t, bot.History, 4)

	seen := map[Move]bool{}
	for i := 0; i < 300; i++ {
		opp, err := p.FindOpponent(ctx, ModePvP)
		require.NoError(t, err)
		assert.Contains(t, []string{"alpha", "beta"}, opp.Name)
		for _, m := range opp.History {
			assert.True(t, m.Valid())
			seen[m] = true
		}
	}
	assert.Len(t, seen, 3)
}

func TestScriptedOpponentsRepeatLastMove(t *testing.T) {
	ctx := context.Background()
	p := NewScriptedOpponents("script", MoveRock, MovePaper)

	var got []Move
	for i := 0; i < 4; i++ {
		m, err := p.DrawMove(ctx)
		require.NoError(t, err)
		got = append(got, m)
	}
	assert.Equal(t, []Move{MoveRock, MovePaper, MovePaper, MovePaper}, got)
}
