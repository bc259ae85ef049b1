package scan

import (
	"database/sql"

	"github.com/avenlon/sitepulse/errors"
	"github.com/avenlon/sitepulse/options"
)

// Option store keys. Each is an independent slot; there are no cross-key
// transactions, so records are always written whole.
const (
	optActiveScan  = "sitepulse_active_scan"
	optLastScan    = "sitepulse_last_scan"
	optScanHistory = "sitepulse_scan_history"
	optSettings    = "sitepulse_settings"
)

// HistoryLimit bounds the history ledger; the oldest records are silently
// dropped on append.
const HistoryLimit = 100

// Store persists the engine's state in the options store: the single active
// job record, the last-run snapshot, the history ledger, and settings.
type Store struct {
	opts *options.Store
}

// NewStore creates a scan store over the given database
func NewStore(db *sql.DB) *Store {
	return &Store{opts: options.NewStore(db)}
}

// ActiveJob returns the active job record, or nil if none exists.
func (s *Store) ActiveJob() (*Job, error) {
	var job Job
	found, err := s.opts.Get(optActiveScan, &job)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load active scan")
	}
	if !found {
		return nil, nil
	}
	return &job, nil
}

// SaveJob persists the active job record, replacing any previous state.
func (s *Store) SaveJob(job *Job) error {
	if err := s.opts.Set(optActiveScan, job); err != nil {
		return errors.Wrapf(err, "failed to persist scan %s", job.ID)
	}
	return nil
}

// DeleteActiveJob removes the active job record, freeing the single-flight
// slot.
func (s *Store) DeleteActiveJob() error {
	if err := s.opts.Delete(optActiveScan); err != nil {
		return errors.Wrap(err, "failed to delete active scan")
	}
	return nil
}

// LastRun returns the most recent completed scan, or nil if none exists.
func (s *Store) LastRun() (*ScanRecord, error) {
	var rec ScanRecord
	found, err := s.opts.Get(optLastScan, &rec)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load last scan")
	}
	if !found {
		return nil, nil
	}
	return &rec, nil
}

// SetLastRun overwrites the last-run record.
func (s *Store) SetLastRun(rec *ScanRecord) error {
	if err := s.opts.Set(optLastScan, rec); err != nil {
		return errors.Wrapf(err, "failed to persist last scan %s", rec.ScanID)
	}
	return nil
}

// ClearLastRun removes the last-run record.
func (s *Store) ClearLastRun() error {
	if err := s.opts.Delete(optLastScan); err != nil {
		return errors.Wrap(err, "failed to clear last scan")
	}
	return nil
}

// History returns the scan history, newest first.
func (s *Store) History() ([]ScanRecord, error) {
	var history []ScanRecord
	if _, err := s.opts.Get(optScanHistory, &history); err != nil {
		return nil, errors.Wrap(err, "failed to load scan history")
	}
	return history, nil
}

// AppendHistory prepends a record to the history ledger, truncating to
// HistoryLimit entries.
func (s *Store) AppendHistory(rec ScanRecord) error {
	history, err := s.History()
	if err != nil {
		return err
	}

	history = append([]ScanRecord{rec}, history...)
	if len(history) > HistoryLimit {
		history = history[:HistoryLimit]
	}

	if err := s.opts.Set(optScanHistory, history); err != nil {
		return errors.Wrapf(err, "failed to append scan %s to history", rec.ScanID)
	}
	return nil
}

// GetScanRecord looks up a history record by scan ID.
func (s *Store) GetScanRecord(scanID string) (*ScanRecord, error) {
	history, err := s.History()
	if err != nil {
		return nil, err
	}
	for i := range history {
		if history[i].ScanID == scanID {
			return &history[i], nil
		}
	}
	return nil, errors.NewNotFoundError("scan record %s", scanID)
}

// DeleteScanRecord removes a history record by scan ID. If the removed record
// is also the current last-run record, the last-run slot is cleared entirely
// (not replaced by the next-most-recent). Returns whether a deletion occurred.
func (s *Store) DeleteScanRecord(scanID string) (bool, error) {
	history, err := s.History()
	if err != nil {
		return false, err
	}

	idx := -1
	for i := range history {
		if history[i].ScanID == scanID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return false, nil
	}

	history = append(history[:idx], history[idx+1:]...)
	if err := s.opts.Set(optScanHistory, history); err != nil {
		return false, errors.Wrapf(err, "failed to persist history after deleting %s", scanID)
	}

	lastRun, err := s.LastRun()
	if err != nil {
		return false, err
	}
	if lastRun != nil && lastRun.ScanID == scanID {
		if err := s.ClearLastRun(); err != nil {
			return false, err
		}
	}

	return true, nil
}

// Settings returns the persisted settings merged over defaults.
func (s *Store) Settings() (Settings, error) {
	settings := DefaultSettings()
	if _, err := s.opts.Get(optSettings, &settings); err != nil {
		return settings, errors.Wrap(err, "failed to load settings")
	}
	return settings, nil
}

// SaveSettings persists the settings record whole.
func (s *Store) SaveSettings(settings Settings) error {
	if err := s.opts.Set(optSettings, settings); err != nil {
		return errors.Wrap(err, "failed to persist settings")
	}
	return nil
}
