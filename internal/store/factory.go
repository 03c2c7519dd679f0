package store

import "echoform.app/echoform/core/db"

// Stores bundles all store implementations over one querier. The querier may
// be the pool or a transaction; the same store code runs in both.
type Stores struct {
	q db.Querier
}

func NewStores(q db.Querier) *Stores {
	return &Stores{q: q}
}

func (s *Stores) Accounts() AccountStore {
	return &accountStore{q: s.q}
}

func (s *Stores) Instances() InstanceStore {
	return &instanceStore{q: s.q}
}

func (s *Stores) Responses() ResponseStore {
	return &responseStore{q: s.q}
}

func (s *Stores) Webhooks() WebhookStore {
	return &webhookStore{q: s.q}
}

func (s *Stores) Claims() ClaimStore {
	return &claimStore{q: s.q}
}
