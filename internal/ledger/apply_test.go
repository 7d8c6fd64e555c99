package ledger

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2025, 3, 14, 10, 0, 0, 0, time.UTC)

func TestApply(t *testing.T) {
	t.Run("purchase credits and stamps last purchase", func(t *testing.T) {
		next, tx, err := apply(Ledger{ID: 1, Balance: 5}, Entry{Kind: KindPurchase, Amount: 25, Reference: "pay_1"}, fixedNow)
		require.NoError(t, err)

		assert.Equal(t, int64(30), next.Balance)
		assert.Equal(t, int64(25), next.TotalPurchased)
		require.NotNil(t, next.LastPurchaseAt)
		assert.Equal(t, int64(5), tx.BalanceBefore)
		assert.Equal(t, int64(30), tx.BalanceAfter)
		require.NotNil(t, tx.Reference)
		assert.Equal(t, "pay_1", *tx.Reference)
	})

	t.Run("used debits and stamps last usage", func(t *testing.T) {
		missionID := 7
		next, tx, err := apply(Ledger{Balance: 15}, Entry{Kind: KindUsed, Amount: 15, Link: Link{MissionID: &missionID}}, fixedNow)
		require.NoError(t, err)

		assert.Equal(t, int64(0), next.Balance)
		assert.Equal(t, int64(15), next.TotalUsed)
		require.NotNil(t, next.LastUsageAt)
		assert.Equal(t, &missionID, tx.MissionID)
		assert.Nil(t, tx.Reference)
	})

	t.Run("expired counts as used without touching last usage", func(t *testing.T) {
		next, _, err := apply(Ledger{Balance: 10}, Entry{Kind: KindExpired, Amount: 4}, fixedNow)
		require.NoError(t, err)

		assert.Equal(t, int64(6), next.Balance)
		assert.Equal(t, int64(4), next.TotalUsed)
		assert.Nil(t, next.LastUsageAt)
	})

	t.Run("refund credits total refunded", func(t *testing.T) {
		next, _, err := apply(Ledger{Balance: 1}, Entry{Kind: KindRefund, Amount: 10}, fixedNow)
		require.NoError(t, err)

		assert.Equal(t, int64(11), next.Balance)
		assert.Equal(t, int64(10), next.TotalRefunded)
		assert.Equal(t, int64(0), next.TotalPurchased)
	})

	t.Run("underflow is rejected and state untouched", func(t *testing.T) {
		l := Ledger{Balance: 12}
		next, _, err := apply(l, Entry{Kind: KindUsed, Amount: 15}, fixedNow)

		assert.ErrorIs(t, err, ErrInsufficientBalance)
		assert.Equal(t, l, next)
	})

	t.Run("non-positive amounts rejected", func(t *testing.T) {
		_, _, err := apply(Ledger{}, Entry{Kind: KindPurchase, Amount: 0}, fixedNow)
		assert.ErrorIs(t, err, ErrInvalidAmount)

		_, _, err = apply(Ledger{Balance: 10}, Entry{Kind: KindUsed, Amount: -3}, fixedNow)
		assert.ErrorIs(t, err, ErrInvalidAmount)
	})

	t.Run("unknown kind rejected", func(t *testing.T) {
		_, _, err := apply(Ledger{}, Entry{Kind: "bonus", Amount: 1}, fixedNow)
		assert.ErrorIs(t, err, ErrInvalidKind)
	})
}

// Random operation sequences must keep the balance identity and replay to the
// same state.
func TestApplyRandomSequencesReplay(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	kinds := []Kind{KindPurchase, KindUsed, KindRefund, KindExpired}

	for run := 0; run < 50; run++ {
		var l Ledger
		var log []Transaction
		for i := 0; i < 200; i++ {
			e := Entry{Kind: kinds[rng.Intn(len(kinds))], Amount: int64(rng.Intn(30) + 1)}
			next, tx, err := apply(l, e, fixedNow)
			if err != nil {
				require.ErrorIs(t, err, ErrInsufficientBalance)
				continue
			}
			tx.ID = int64(len(log) + 1)
			l = next
			log = append(log, tx)

			require.GreaterOrEqual(t, l.Balance, int64(0))
			require.Equal(t, l.TotalPurchased+l.TotalRefunded-l.TotalUsed, l.Balance)
		}

		totals, err := Fold(log)
		require.NoError(t, err)
		assert.True(t, totals.Matches(&l))
		assert.Equal(t, len(log), totals.Transactions)
	}
}

func TestFoldDetectsBrokenChain(t *testing.T) {
	log := []Transaction{
		{ID: 1, Kind: KindPurchase, Amount: 25, BalanceBefore: 0, BalanceAfter: 25},
		{ID: 2, Kind: KindUsed, Amount: 10, BalanceBefore: 20, BalanceAfter: 10},
	}

	_, err := Fold(log)
	assert.ErrorIs(t, err, ErrChainBroken)
}

func TestFoldDetectsWrongSnapshot(t *testing.T) {
	log := []Transaction{
		{ID: 1, Kind: KindPurchase, Amount: 25, BalanceBefore: 0, BalanceAfter: 24},
	}

	_, err := Fold(log)
	assert.ErrorIs(t, err, ErrChainBroken)
}

func TestMetadataScan(t *testing.T) {
	var m Metadata
	require.NoError(t, m.Scan([]byte(`{"package":"pro"}`)))
	assert.Equal(t, "pro", m["package"])

	require.NoError(t, m.Scan(nil))
	assert.Nil(t, m)

	assert.Error(t, m.Scan(42))

	v, err := Metadata(nil).Value()
	require.NoError(t, err)
	assert.Equal(t, []byte("{}"), v)
}
