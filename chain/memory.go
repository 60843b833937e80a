package chain

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/ckbwallet/cellwallet/cell"
	"github.com/ckbwallet/cellwallet/dao"
	"github.com/ckbwallet/cellwallet/pkg/ckbunit"
)

// MemoryOracle serves headers from memory. It backs offline signing, where
// the headers a transaction depends on are supplied by the caller.
type MemoryOracle struct {
	mu       sync.RWMutex
	byHash   map[cell.Hash]*Header
	byNumber map[uint64]*Header
	tip      *Header
}

// A compile-time assertion to ensure MemoryOracle implements Oracle.
var _ Oracle = (*MemoryOracle)(nil)

// NewMemoryOracle returns an oracle holding the given headers. The highest
// header becomes the tip.
func NewMemoryOracle(headers ...*Header) *MemoryOracle {
	m := &MemoryOracle{
		byHash:   make(map[cell.Hash]*Header),
		byNumber: make(map[uint64]*Header),
	}
	for _, h := range headers {
		m.AddHeader(h)
	}

	return m
}

// AddHeader stores a header, moving the tip if it is higher.
func (m *MemoryOracle) AddHeader(h *Header) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.byHash[h.Hash] = h
	m.byNumber[h.Number] = h
	if m.tip == nil || h.Number > m.tip.Number {
		m.tip = h
	}
}

// TipHeader implements Oracle.
func (m *MemoryOracle) TipHeader(_ context.Context) (*Header, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.tip == nil {
		return nil, fmt.Errorf("%w: no tip", ErrHeaderNotFound)
	}

	return m.tip, nil
}

// HeaderByHash implements Oracle.
func (m *MemoryOracle) HeaderByHash(_ context.Context,
	hash cell.Hash) (*Header, error) {

	m.mu.RLock()
	defer m.mu.RUnlock()

	h, ok := m.byHash[hash]
	if !ok {
		return nil, fmt.Errorf("%w: %v", ErrHeaderNotFound, hash)
	}

	return h, nil
}

// HeaderByNumber implements Oracle.
func (m *MemoryOracle) HeaderByNumber(_ context.Context,
	number uint64) (*Header, error) {

	m.mu.RLock()
	defer m.mu.RUnlock()

	h, ok := m.byNumber[number]
	if !ok {
		return nil, fmt.Errorf("%w: block %d", ErrHeaderNotFound,
			number)
	}

	return h, nil
}

// LocalDaoCalculator computes DAO withdraw amounts from headers instead of
// asking a node.
type LocalDaoCalculator struct {
	Oracle Oracle
}

// A compile-time assertion to ensure LocalDaoCalculator implements
// DaoCalculator.
var _ DaoCalculator = (*LocalDaoCalculator)(nil)

// MaximumWithdraw implements DaoCalculator.
func (l *LocalDaoCalculator) MaximumWithdraw(ctx context.Context,
	deposit *cell.Cell, withdrawBlockHash cell.Hash) (ckbunit.Capacity,
	error) {

	depositHeader, err := l.Oracle.HeaderByHash(ctx, deposit.BlockHash)
	if err != nil {
		return 0, fmt.Errorf("deposit header: %w", err)
	}

	withdrawHeader, err := l.Oracle.HeaderByHash(ctx, withdrawBlockHash)
	if err != nil {
		return 0, fmt.Errorf("withdraw header: %w", err)
	}

	return dao.MaximumWithdraw(
		&deposit.Output, deposit.Data, depositHeader.Dao,
		withdrawHeader.Dao,
	)
}

type jsonHeader struct {
	Hash      cell.Hash `json:"hash"`
	Number    uint64    `json:"number"`
	Epoch     uint64    `json:"epoch"`
	Timestamp uint64    `json:"timestamp"`
	Dao       string    `json:"dao"`
}

// MarshalJSON implements json.Marshaler.
func (h Header) MarshalJSON() ([]byte, error) {
	return json.Marshal(jsonHeader{
		Hash:      h.Hash,
		Number:    h.Number,
		Epoch:     h.Epoch.Pack(),
		Timestamp: h.Timestamp,
		Dao:       cell.EncodeHex(h.Dao),
	})
}

// UnmarshalJSON implements json.Unmarshaler.
func (h *Header) UnmarshalJSON(b []byte) error {
	var j jsonHeader
	if err := json.Unmarshal(b, &j); err != nil {
		return err
	}

	daoField, err := cell.DecodeHex(j.Dao)
	if err != nil {
		return err
	}
	if len(daoField) != dao.HeaderDaoSize {
		return fmt.Errorf("%w: %d bytes", dao.ErrInvalidDaoField,
			len(daoField))
	}

	*h = Header{
		Hash:      j.Hash,
		Number:    j.Number,
		Epoch:     dao.ParseEpoch(j.Epoch),
		Timestamp: j.Timestamp,
		Dao:       daoField,
	}

	return nil
}
