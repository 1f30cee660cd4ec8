package dbbadger

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/dgraph-io/badger/v3"
	"github.com/dgraph-io/badger/v3/options"
	log "github.com/sirupsen/logrus"
	"github.com/timshannon/badgerhold/v4"
	"github.com/vcard-network/depositd/internal/core/domain"
	"github.com/vcard-network/depositd/internal/core/ports"
)

const (
	gcInterval     = 30 * time.Minute
	gcDiscardRatio = 0.5
)

type repoManager struct {
	store             *badgerhold.Store
	depositRepository *depositRepositoryImpl
	stopGC            chan struct{}
}

// NewRepoManager opens (or creates if not exists) the badger store on disk.
// An empty baseDbDir makes the store in-memory.
func NewRepoManager(baseDbDir string, logger badger.Logger) (ports.RepoManager, error) {
	return newRepoManager(baseDbDir, logger)
}

func newRepoManager(baseDbDir string, logger badger.Logger) (*repoManager, error) {
	var dbDir string
	if len(baseDbDir) > 0 {
		dbDir = filepath.Join(baseDbDir, "deposits")
	}

	store, err := createDb(dbDir, logger)
	if err != nil {
		return nil, fmt.Errorf("opening deposits db: %w", err)
	}

	depositRepository, err := newDepositRepositoryImpl(store)
	if err != nil {
		store.Close()
		return nil, err
	}

	r := &repoManager{
		store:             store,
		depositRepository: depositRepository,
		stopGC:            make(chan struct{}),
	}
	if len(dbDir) > 0 {
		go r.runValueLogGC()
	}
	return r, nil
}

func (r *repoManager) DepositRepository() domain.DepositRepository {
	return r.depositRepository
}

func (r *repoManager) Close() {
	close(r.stopGC)
	if err := r.depositRepository.close(); err != nil {
		log.WithError(err).Warn("failed to release derivation index sequence")
	}
	r.store.Close()
}

func (r *repoManager) runValueLogGC() {
	ticker := time.NewTicker(gcInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.stopGC:
			return
		case <-ticker.C:
			if err := r.store.Badger().RunValueLogGC(gcDiscardRatio); err != nil &&
				err != badger.ErrNoRewrite {
				log.WithError(err).Error("badger value log gc failed")
			}
		}
	}
}

func createDb(dbDir string, logger badger.Logger) (*badgerhold.Store, error) {
	isInMemory := len(dbDir) <= 0

	opts := badger.DefaultOptions(dbDir)
	opts.Logger = logger

	if isInMemory {
		opts.InMemory = true
	} else {
		opts.Compression = options.ZSTD
	}

	return badgerhold.Open(badgerhold.Options{
		Encoder:          badgerhold.DefaultEncode,
		Decoder:          badgerhold.DefaultDecode,
		SequenceBandwith: 100,
		Options:          opts,
	})
}
