// ABOUTME: Batch runner for the filing repair over stored profiles
// ABOUTME: Supports dry runs and keeps a backup of every document it rewrites
package repair

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/harperreed/taxdesk/db"
	"github.com/harperreed/taxdesk/metrics"
	"github.com/rs/zerolog"
)

// Options controls a repair run.
type Options struct {
	DryRun bool
	Backup *Backup
}

// Summary aggregates a run over many users.
type Summary struct {
	Users   int      `json:"users"`
	Changed int      `json:"changed"`
	Fixed   int      `json:"fixed"`
	Dropped int      `json:"dropped"`
	Errors  []string `json:"errors"`
	Results []Result `json:"results"`
}

// Repairer runs RepairProfile against stored profiles.
type Repairer struct {
	profiles *db.ProfileRepository
	opts     Options
	log      zerolog.Logger
	metrics  *metrics.Metrics
}

// New creates a repairer.
func New(profiles *db.ProfileRepository, opts Options, log zerolog.Logger, m *metrics.Metrics) *Repairer {
	return &Repairer{profiles: profiles, opts: opts, log: log, metrics: m}
}

// FixUser repairs one user's filings. Only read and write failures are errors.
func (r *Repairer) FixUser(ctx context.Context, userID string) (Result, error) {
	raw, err := r.profiles.Get(ctx, userID)
	if err != nil {
		return Result{UserID: userID}, err
	}

	out, res, err := RepairProfile(raw)
	res.UserID = userID
	if err != nil {
		return res, err
	}
	if !res.Changed {
		return res, nil
	}

	log := r.log.With().Str("user_id", userID).Int("fixed", res.Fixed).Int("dropped", res.Dropped).Logger()
	if r.opts.DryRun {
		log.Info().Msg("would rewrite profile")
		return res, nil
	}

	if r.opts.Backup != nil {
		r.opts.Backup.Save(userID, raw)
	}
	if err := r.profiles.Put(ctx, userID, out); err != nil {
		return res, err
	}
	r.metrics.FilingsRepaired(res.Fixed, res.Dropped)
	log.Info().Msg("profile repaired")
	return res, nil
}

// FixAll repairs every stored profile. A user whose profile cannot be read or
// written is recorded in Errors and the run continues.
func (r *Repairer) FixAll(ctx context.Context) (Summary, error) {
	sum := Summary{Errors: []string{}, Results: []Result{}}

	ids, err := r.profiles.UserIDs(ctx)
	if err != nil {
		return sum, err
	}

	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		sum.Users++

		res, err := r.FixUser(ctx, id)
		if err != nil {
			sum.Errors = append(sum.Errors, fmt.Sprintf("user %s: %v", id, err))
			continue
		}
		for _, e := range res.Errors {
			sum.Errors = append(sum.Errors, fmt.Sprintf("user %s: %s", id, e))
		}
		sum.Fixed += res.Fixed
		sum.Dropped += res.Dropped
		if res.Changed {
			sum.Changed++
		}
		sum.Results = append(sum.Results, res)
	}
	return sum, nil
}

// Backup collects original profile documents before they are rewritten.
type Backup struct {
	mu   sync.Mutex
	docs map[string]json.RawMessage
}

// NewBackup returns an empty backup.
func NewBackup() *Backup {
	return &Backup{docs: map[string]json.RawMessage{}}
}

// Save records the original document for userID. The first save wins.
func (b *Backup) Save(userID string, raw []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.docs[userID]; ok {
		return
	}
	b.docs[userID] = append(json.RawMessage(nil), raw...)
}

// Len returns the number of saved documents.
func (b *Backup) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.docs)
}

// WriteTo writes the backup as a JSON object of userId to profile, keys sorted.
func (b *Backup) WriteTo(w io.Writer) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	cw := &countingWriter{w: w}
	enc := json.NewEncoder(cw)
	enc.SetIndent("", "  ")
	if err := enc.Encode(b.docs); err != nil {
		return cw.n, fmt.Errorf("failed to write backup: %w", err)
	}
	return cw.n, nil
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
