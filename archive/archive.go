// Package archive persists finished path traces for later triage. Records are stored in a bbolt
// database keyed by path identity and encoded with CBOR; a metadata bucket carries the archive
// format version, checked for compatibility on open.
package archive

import (
	"time"

	"github.com/Masterminds/semver"
	"github.com/fxamacker/cbor"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.etcd.io/bbolt"

	"github.com/kestrelsec/kestrel/logging"
	"github.com/kestrelsec/kestrel/path"
)

// FormatVersion is the archive format written by this package. Archives with a different major
// version are rejected on open.
const FormatVersion = "1.0.0"

var (
	recordsBucket = []byte("records")
	metaBucket    = []byte("meta")
	versionKey    = []byte("format-version")
)

// logger is the package's sub-logger.
var logger = logging.GlobalLogger.NewSubLogger("module", "archive")

// PathRecord is the persisted summary of one finished path.
type PathRecord struct {
	// ID is the path's identity.
	ID string

	// FinalAddr is the path's address when it was archived. FinalAddrOK is false when the
	// instruction pointer was symbolic.
	FinalAddr   uint64
	FinalAddrOK bool

	// AddrTrace is the path's address trace, root to leaf.
	AddrTrace []uint64

	// Trace is the path's run descriptions, root to leaf.
	Trace []string

	// Length and ExtraLength are the path's step counters at archive time.
	Length      int
	ExtraLength int

	// CallStackDigest is the structural hash of the path's call stack.
	CallStackDigest []byte

	// PendingMerges is the number of unconsumed merge ledger records.
	PendingMerges int
}

// Archive is a store of path records backed by a single database file. It is safe for
// concurrent use.
type Archive struct {
	db *bbolt.DB
}

// Open opens or creates an archive at the given file, verifying format compatibility.
func Open(file string) (*Archive, error) {
	db, err := bbolt.Open(file, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, errors.Wrap(err, "opening archive database")
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(recordsBucket); err != nil {
			return err
		}
		meta, err := tx.CreateBucketIfNotExists(metaBucket)
		if err != nil {
			return err
		}

		stored := meta.Get(versionKey)
		if stored == nil {
			return meta.Put(versionKey, []byte(FormatVersion))
		}
		return checkFormatVersion(string(stored))
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	logger.Debug("opened archive", logging.StructuredLogInfo{"file": file})
	return &Archive{db: db}, nil
}

// checkFormatVersion verifies a stored format version is compatible with this package.
func checkFormatVersion(stored string) error {
	v, err := semver.NewVersion(stored)
	if err != nil {
		return errors.Wrapf(err, "parsing archive format version %q", stored)
	}
	constraint, err := semver.NewConstraint("^" + FormatVersion)
	if err != nil {
		return err
	}
	if !constraint.Check(v) {
		return errors.Errorf("archive format %s is not compatible with %s", stored, FormatVersion)
	}
	return nil
}

// Close closes the underlying database.
func (a *Archive) Close() error {
	logger.Debug("closing archive")
	return a.db.Close()
}

// SavePath summarizes a path into a record and stores it under the path's identity,
// overwriting any previous record for the same path.
func (a *Archive) SavePath(p *path.Path) (uuid.UUID, error) {
	digest := p.CallStack().Digest()
	rec := &PathRecord{
		ID:              p.ID.String(),
		AddrTrace:       path.Materialize(p.AddrTrace()),
		Trace:           path.Materialize(p.Trace()),
		Length:          p.Length(),
		ExtraLength:     p.ExtraLength(),
		CallStackDigest: digest[:],
		PendingMerges:   len(p.Ledger().Records),
	}
	if addr, err := p.Addr(); err == nil {
		rec.FinalAddr, rec.FinalAddrOK = addr, true
	}

	if err := a.put(p.ID, rec); err != nil {
		return uuid.Nil, err
	}
	return p.ID, nil
}

// put encodes and stores one record.
func (a *Archive) put(id uuid.UUID, rec *PathRecord) error {
	data, err := cbor.Marshal(rec, cbor.EncOptions{})
	if err != nil {
		return errors.Wrap(err, "encoding path record")
	}
	return a.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(recordsBucket).Put(id[:], data)
	})
}

// Record fetches the record stored for the given path identity. found is false when no record
// exists.
func (a *Archive) Record(id uuid.UUID) (rec *PathRecord, found bool, err error) {
	err = a.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(recordsBucket).Get(id[:])
		if data == nil {
			return nil
		}
		found = true
		rec = &PathRecord{}
		return cbor.Unmarshal(data, rec)
	})
	if err != nil {
		return nil, false, errors.Wrap(err, "reading path record")
	}
	return rec, found, nil
}

// Records visits every stored record. Returning an error from fn stops the walk.
func (a *Archive) Records(fn func(*PathRecord) error) error {
	return a.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(recordsBucket).ForEach(func(_, data []byte) error {
			rec := &PathRecord{}
			if err := cbor.Unmarshal(data, rec); err != nil {
				return errors.Wrap(err, "decoding path record")
			}
			return fn(rec)
		})
	})
}

// Count returns the number of stored records.
func (a *Archive) Count() (int, error) {
	count := 0
	err := a.db.View(func(tx *bbolt.Tx) error {
		count = tx.Bucket(recordsBucket).Stats().KeyN
		return nil
	})
	return count, err
}
