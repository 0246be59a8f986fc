package core

import "github.com/colonycast/hub/internal/domain"

// CreditViewer adds coins to a viewer's ledger entry, creating the entry on
// first accrual. Returns the new balance.
func (s *Store) CreditViewer(id domain.SessionID, username string, amount float64) (float64, error) {
	st, ok := s.get(id)
	if !ok {
		return 0, ErrSessionNotFound
	}
	now := s.now()
	st.mu.Lock()
	defer st.mu.Unlock()
	led, ok := st.viewers[username]
	if !ok {
		led = &domain.ViewerLedger{WatchStart: now}
		st.viewers[username] = led
	}
	led.Coins += amount
	led.LastSeen = now
	return led.Coins, nil
}

// ChargeViewer deducts coins, failing with ErrInsufficientFunds when the
// balance does not cover the amount.
func (s *Store) ChargeViewer(id domain.SessionID, username string, amount float64) (float64, error) {
	st, ok := s.get(id)
	if !ok {
		return 0, ErrSessionNotFound
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	led, ok := st.viewers[username]
	if !ok || led.Coins < amount {
		var balance float64
		if ok {
			balance = led.Coins
		}
		return balance, ErrInsufficientFunds
	}
	led.Coins -= amount
	return led.Coins, nil
}

// Balance reports a viewer's current coins; unknown viewers hold zero.
func (s *Store) Balance(id domain.SessionID, username string) float64 {
	st, ok := s.get(id)
	if !ok {
		return 0
	}
	st.mu.RLock()
	defer st.mu.RUnlock()
	if led, ok := st.viewers[username]; ok {
		return led.Coins
	}
	return 0
}

// CoinRate returns the session's coins-per-minute accrual rate.
func (s *Store) CoinRate(id domain.SessionID) float64 {
	st, ok := s.get(id)
	if !ok {
		return 0
	}
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.economy.CoinRate
}

// ActionCosts returns a copy of the session's price list.
func (s *Store) ActionCosts(id domain.SessionID) (map[string]float64, bool) {
	st, ok := s.get(id)
	if !ok {
		return nil, false
	}
	st.mu.RLock()
	defer st.mu.RUnlock()
	return copyCosts(st.economy.ActionCosts), true
}
