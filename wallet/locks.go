package wallet

import (
	"fmt"

	"github.com/ckbwallet/cellwallet/cell"
	"github.com/ckbwallet/cellwallet/keymgr"
	"github.com/ckbwallet/cellwallet/netparams"
	"github.com/ckbwallet/cellwallet/pkg/ckbhash"
	"github.com/ckbwallet/cellwallet/script"
	"github.com/lightningnetwork/lnd/fn/v2"
)

// lockOwner is the wallet address able to unlock a lock.
type lockOwner struct {
	kind    script.Kind
	address keymgr.AddressInfo

	// multisig is the single key config of a time locked multisig
	// lock.
	multisig *script.MultisigConfig
}

// lockIndex maps the locks the wallet can unlock to their owning address.
type lockIndex struct {
	params     *netparams.Params
	addresses  []keymgr.AddressInfo
	byBlake160 map[[ckbhash.Blake160Size]byte]keymgr.AddressInfo
	byMultisig map[[ckbhash.Blake160Size]byte]keymgr.AddressInfo
}

func newLockIndex(addrs []keymgr.AddressInfo,
	params *netparams.Params) *lockIndex {

	l := &lockIndex{
		params:     params,
		addresses:  addrs,
		byBlake160: make(map[[ckbhash.Blake160Size]byte]keymgr.AddressInfo),
		byMultisig: make(map[[ckbhash.Blake160Size]byte]keymgr.AddressInfo),
	}
	for _, a := range addrs {
		l.byBlake160[a.Blake160] = a

		cfg := script.NewSingleKeyConfig(a.Blake160)
		l.byMultisig[cfg.Hash()] = a
	}

	return l
}

// owner finds the address that unlocks lock.
func (l *lockIndex) owner(lock *cell.Script) (lockOwner, error) {
	kind := script.Classify(lock, l.params)

	var (
		addr  keymgr.AddressInfo
		found bool
	)
	switch kind {
	case script.KindDefault:
		var key [ckbhash.Blake160Size]byte
		copy(key[:], lock.Args)
		addr, found = l.byBlake160[key]

	case script.KindAnyoneCanPay:
		args, err := script.ParseAcpArgs(lock.Args)
		if err != nil {
			return lockOwner{}, err
		}
		addr, found = l.byBlake160[args.Blake160]

	case script.KindMultisig:
		hash, _, err := script.ParseMultisigArgs(lock.Args)
		if err != nil {
			return lockOwner{}, err
		}

		addr, found = l.byMultisig[hash]
		if found {
			cfg := script.NewSingleKeyConfig(addr.Blake160)

			return lockOwner{kind: kind, address: addr, multisig: &cfg},
				nil
		}

	case script.KindCheque:
		args, err := script.ParseChequeArgs(lock.Args)
		if err != nil {
			return lockOwner{}, err
		}

		match := FindSignPathForCheque(
			l.addresses, args.ReceiverLockHashPrefix,
			args.SenderLockHashPrefix, l.params,
		)
		addr, found = match.UnwrapOr(keymgr.AddressInfo{}), match.IsSome()

	case script.KindSUDT, script.KindDAO, script.KindUnknown:
		return lockOwner{}, fmt.Errorf("%w: %v lock %v",
			script.ErrUnsupportedLock, kind, lock.Hash())
	}

	if !found {
		return lockOwner{}, fmt.Errorf("%w: %v lock %v",
			ErrPrivateKeyNotFound, kind, lock.Hash())
	}

	return lockOwner{kind: kind, address: addr}, nil
}

// placeholder returns the zeroed witness lock for lock.
func (l *lockIndex) placeholder(lock *cell.Script) ([]byte, error) {
	o, err := l.owner(lock)
	if err != nil {
		return nil, err
	}

	return script.WitnessPlaceholder(o.kind, o.multisig)
}

// defaultLockPrefix returns the cheque prefix of an address's default lock
// hash.
func defaultLockPrefix(a keymgr.AddressInfo,
	params *netparams.Params) [ckbhash.Blake160Size]byte {

	lock := script.DefaultLock(a.Blake160, params)
	return script.LockHashPrefix(lock.Hash())
}

// findByPrefix returns the first address whose default lock hash starts
// with prefix.
func findByPrefix(addrs []keymgr.AddressInfo,
	prefix [ckbhash.Blake160Size]byte,
	params *netparams.Params) fn.Option[keymgr.AddressInfo] {

	for _, a := range addrs {
		if defaultLockPrefix(a, params) == prefix {
			return fn.Some(a)
		}
	}

	return fn.None[keymgr.AddressInfo]()
}

// FindSignPathForCheque returns the address that signs for a cheque. The
// receiver is searched first, then the sender: only the receiver may claim
// and only the sender may withdraw, so a wallet holding both keys signs as
// the receiver. None means the wallet is neither.
func FindSignPathForCheque(addrs []keymgr.AddressInfo, receiverPrefix,
	senderPrefix [ckbhash.Blake160Size]byte,
	params *netparams.Params) fn.Option[keymgr.AddressInfo] {

	receiver := findByPrefix(addrs, receiverPrefix, params)
	if receiver.IsSome() {
		return receiver
	}

	return findByPrefix(addrs, senderPrefix, params)
}
