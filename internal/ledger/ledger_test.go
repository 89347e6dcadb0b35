package ledger

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/arkin-run/arkin/internal/arkerr"
	"github.com/arkin-run/arkin/pkg/types"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func newTestLedger() (*Ledger, types.Tradable, types.Account, types.Account) {
	l := New()
	usdt := &types.Asset{ID: uuid.New(), Symbol: "USDT", Type: types.AssetStable}
	asset := types.AssetTradable(usdt)

	venueAcct := types.Account{ID: uuid.New(), Asset: asset, Owner: types.OwnerVenue, Type: types.AccountSpot}
	userAcct := types.Account{ID: uuid.New(), Asset: asset, Owner: types.OwnerUser, Type: types.AccountSpot}
	l.OpenAccount(venueAcct)
	l.OpenAccount(userAcct)
	return l, asset, venueAcct, userAcct
}

func TestDepositWithdrawRoundTrip(t *testing.T) {
	l, asset, venue, user := newTestLedger()
	now := time.Now()

	if err := l.Deposit(now, venue.ID, user.ID, asset, d("100")); err != nil {
		t.Fatal(err)
	}
	bal, _ := l.Balance(user.ID)
	if !bal.Equal(d("100")) {
		t.Fatalf("want 100, got %v", bal)
	}

	gid := uuid.New()
	withdraw := types.TransferGroup{
		GroupID: gid,
		Transfers: []types.Transfer{{
			ID: uuid.New(), EventTime: now.Add(time.Minute), GroupID: gid,
			DebitAccount: user.ID, CreditAccount: venue.ID,
			Asset: asset, Amount: d("40"), Type: types.TransferWithdrawal,
		}},
	}
	if err := l.Post(withdraw); err != nil {
		t.Fatal(err)
	}

	bal, _ = l.Balance(user.ID)
	if !bal.Equal(d("60")) {
		t.Fatalf("want 60, got %v", bal)
	}
	venueBal, _ := l.Balance(venue.ID)
	if !venueBal.Equal(d("-60")) {
		t.Fatalf("want venue mirror -60, got %v", venueBal)
	}
}

func TestPostRejectsOverdraftOnUserAccount(t *testing.T) {
	l, asset, venue, user := newTestLedger()
	gid := uuid.New()
	group := types.TransferGroup{
		GroupID: gid,
		Transfers: []types.Transfer{{
			ID: uuid.New(), EventTime: time.Now(), GroupID: gid,
			DebitAccount: user.ID, CreditAccount: venue.ID,
			Asset: asset, Amount: d("10"), Type: types.TransferWithdrawal,
		}},
	}
	err := l.Post(group)
	if !errors.Is(err, arkerr.ErrInsufficientBalance) {
		t.Fatalf("expected insufficient balance, got %v", err)
	}
}

func TestPostRejectsGroupAtomically(t *testing.T) {
	l, asset, venue, user := newTestLedger()
	if err := l.Deposit(time.Now(), venue.ID, user.ID, asset, d("10")); err != nil {
		t.Fatal(err)
	}

	other := &types.Asset{ID: uuid.New(), Symbol: "BTC"}
	otherAsset := types.AssetTradable(other)
	otherUser := types.Account{ID: uuid.New(), Asset: otherAsset, Owner: types.OwnerUser, Type: types.AccountSpot}
	l.OpenAccount(otherUser)

	gid := uuid.New()
	group := types.TransferGroup{
		GroupID: gid,
		Transfers: []types.Transfer{
			{ID: uuid.New(), EventTime: time.Now(), GroupID: gid, DebitAccount: user.ID, CreditAccount: venue.ID, Asset: asset, Amount: d("5"), Type: types.TransferAdjustment},
			{ID: uuid.New(), EventTime: time.Now(), GroupID: gid, DebitAccount: otherUser.ID, CreditAccount: venue.ID, Asset: otherAsset, Amount: d("999"), Type: types.TransferAdjustment},
		},
	}
	if err := l.Post(group); err == nil {
		t.Fatal("expected the invalid second leg to reject the whole group")
	}

	bal, _ := l.Balance(user.ID)
	if !bal.Equal(d("10")) {
		t.Fatalf("expected first leg not applied (partial application forbidden), got %v", bal)
	}
}

func TestTradeWithCommission(t *testing.T) {
	l := New()
	quote := &types.Asset{ID: uuid.New(), Symbol: "USDT"}
	base := &types.Asset{ID: uuid.New(), Symbol: "BTC"}
	inst := &types.Instrument{ID: uuid.New(), Symbol: "BTC-USDT", Type: types.InstrumentSpot, QuoteAsset: quote, BaseAsset: base}

	userQuote := types.Account{ID: uuid.New(), Asset: types.AssetTradable(quote), Owner: types.OwnerUser, Type: types.AccountSpot}
	venueQuote := types.Account{ID: uuid.New(), Asset: types.AssetTradable(quote), Owner: types.OwnerVenue, Type: types.AccountSpot}
	userBase := types.Account{ID: uuid.New(), Asset: types.InstrumentTradable(inst), Owner: types.OwnerUser, Type: types.AccountInstrument}
	venueBase := types.Account{ID: uuid.New(), Asset: types.InstrumentTradable(inst), Owner: types.OwnerVenue, Type: types.AccountInstrument}
	userComm := types.Account{ID: uuid.New(), Asset: types.AssetTradable(quote), Owner: types.OwnerUser, Type: types.AccountSpot}
	venueComm := types.Account{ID: uuid.New(), Asset: types.AssetTradable(quote), Owner: types.OwnerVenue, Type: types.AccountSpot}

	for _, a := range []types.Account{userQuote, venueQuote, userBase, venueBase, userComm, venueComm} {
		l.OpenAccount(a)
	}
	// seed quote so the buy doesn't overdraft
	if err := l.Deposit(time.Now(), venueQuote.ID, userQuote.ID, types.AssetTradable(quote), d("100000")); err != nil {
		t.Fatal(err)
	}
	if err := l.Deposit(time.Now(), venueComm.ID, userComm.ID, types.AssetTradable(quote), d("100")); err != nil {
		t.Fatal(err)
	}

	err := l.Trade(TradeLegs{
		At: time.Now(), Instrument: inst, Side: types.Buy,
		Price: d("50000"), Quantity: d("1"),
		QuoteAccount: userQuote.ID, VenueQuoteMirror: venueQuote.ID,
		BaseAccount: userBase.ID, VenueBaseMirror: venueBase.ID,
		Commission: d("10"), CommissionAsset: types.AssetTradable(quote),
		UserCommAccount: userComm.ID, VenueCommAccount: venueComm.ID,
	})
	if err != nil {
		t.Fatal(err)
	}

	qbal, _ := l.Balance(userQuote.ID)
	if !qbal.Equal(d("50000")) {
		t.Fatalf("want user quote 50000, got %v", qbal)
	}
	bbal, _ := l.Balance(userBase.ID)
	if !bbal.Equal(d("1")) {
		t.Fatalf("want user base 1, got %v", bbal)
	}
	cbal, _ := l.Balance(userComm.ID)
	if !cbal.Equal(d("90")) {
		t.Fatalf("want user commission balance 90, got %v", cbal)
	}
}

func TestBalanceAtReplaysHistory(t *testing.T) {
	l, asset, venue, user := newTestLedger()
	t0 := time.Now()
	if err := l.Deposit(t0, venue.ID, user.ID, asset, d("10")); err != nil {
		t.Fatal(err)
	}
	if err := l.Deposit(t0.Add(time.Hour), venue.ID, user.ID, asset, d("5")); err != nil {
		t.Fatal(err)
	}

	mid := l.BalanceAt(user.ID, t0.Add(30*time.Minute))
	if !mid.Equal(d("10")) {
		t.Fatalf("want 10 at midpoint, got %v", mid)
	}
	final := l.BalanceAt(user.ID, t0.Add(2*time.Hour))
	if !final.Equal(d("15")) {
		t.Fatalf("want 15 at end, got %v", final)
	}
}

func TestConservationViolationIsFatal(t *testing.T) {
	l, asset, venue, user := newTestLedger()
	if err := l.Deposit(time.Now(), venue.ID, user.ID, asset, d("10")); err != nil {
		t.Fatal(err)
	}

	// Directly corrupt an account balance to simulate drift, bypassing
	// post(), and verify the next post's recheck catches it.
	l.mu.Lock()
	acct := l.accounts[user.ID]
	acct.Balance = acct.Balance.Add(d("1000"))
	l.accounts[user.ID] = acct
	l.mu.Unlock()

	gid := uuid.New()
	group := types.TransferGroup{
		GroupID: gid,
		Transfers: []types.Transfer{{
			ID: uuid.New(), EventTime: time.Now(), GroupID: gid,
			DebitAccount: venue.ID, CreditAccount: user.ID,
			Asset: asset, Amount: d("1"), Type: types.TransferDeposit,
		}},
	}
	err := l.Post(group)
	if !errors.Is(err, arkerr.ErrConservationViolation) {
		t.Fatalf("expected conservation violation, got %v", err)
	}
}
