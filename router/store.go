package router

import (
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

type reportKey struct {
	chainID uint64
	vault   common.Address
}

// ReportStore holds the latest trusted StoredSharePrice per (chainID, vault)
// key. A record is replaced only by a strictly fresher one; equal timestamps
// keep the first writer so retried submissions are idempotent. The mutex is
// held across the read-compare-write so concurrent puts for the same key
// linearize by the freshness rule, never by wall-clock arrival.
type ReportStore struct {
	mu      sync.RWMutex
	records map[reportKey]StoredSharePrice
	// freshest record per vault across all chains
	byVault map[common.Address]StoredSharePrice
}

func NewReportStore() *ReportStore {
	return &ReportStore{
		records: make(map[reportKey]StoredSharePrice),
		byVault: make(map[common.Address]StoredSharePrice),
	}
}

// Put stores rec if it is the first record for its key or strictly fresher
// than the existing one. It reports whether the record was written.
func (s *ReportStore) Put(rec StoredSharePrice) bool {
	key := reportKey{chainID: rec.ChainID, vault: rec.VaultAddress}
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.records[key]; ok && existing.LastUpdate >= rec.LastUpdate {
		return false
	}
	s.records[key] = rec

	if best, ok := s.byVault[rec.VaultAddress]; !ok || rec.LastUpdate > best.LastUpdate {
		s.byVault[rec.VaultAddress] = rec
	}
	return true
}

func (s *ReportStore) Latest(chainID uint64, vault common.Address) (StoredSharePrice, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[reportKey{chainID: chainID, vault: vault}]
	return rec, ok
}

// LatestAny returns the freshest stored record for a vault across every
// source chain.
func (s *ReportStore) LatestAny(vault common.Address) (StoredSharePrice, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.byVault[vault]
	return rec, ok
}

func (s *ReportStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}
