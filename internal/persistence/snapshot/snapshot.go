// Package snapshot writes and reads point-in-time copies of the counter
// state: every rule record and every objective with its scores.
package snapshot

import (
	"bufio"
	"encoding/gob"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/zstd"

	"countercraft.ai/internal/counters/rules"
	"countercraft.ai/internal/counters/score"
)

const Version = 1

type Header struct {
	Version   int    `json:"version"`
	Tick      uint64 `json:"tick"`
	CreatedAt string `json:"created_at"`
	Rules     int    `json:"rules"`
	Scores    int    `json:"scores"`
}

type SnapshotV1 struct {
	Header Header `json:"header"`

	Rules      []RuleV1      `json:"rules"`
	Objectives []ObjectiveV1 `json:"objectives"`
}

// RuleV1 is a stored rule record, kept raw so a restore goes through the
// same decode path as any other stored record.
type RuleV1 struct {
	Kind string `json:"kind"`
	Name string `json:"name"`
	Raw  string `json:"raw"`
}

type ObjectiveV1 struct {
	ID          string    `json:"id"`
	DisplayName string    `json:"display_name"`
	Scores      []ScoreV1 `json:"scores"`
}

type ScoreV1 struct {
	ActorID string `json:"actor_id"`
	Value   int32  `json:"value"`
}

// Source is a score backend that can list the holders of an objective.
type Source interface {
	score.Backend
	Standings(objectiveID string) []score.Entry
}

// Capture copies every rule record of repo and every score of src.
func Capture(repo *rules.Repository, src Source, tick uint64) (SnapshotV1, error) {
	snap := SnapshotV1{Header: Header{
		Version:   Version,
		Tick:      tick,
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
	}}
	for _, k := range rules.Kinds {
		recs, err := repo.List(k)
		if err != nil {
			return SnapshotV1{}, err
		}
		for _, r := range recs {
			snap.Rules = append(snap.Rules, RuleV1{Kind: string(r.Kind), Name: r.Name, Raw: string(r.Raw)})
		}
	}
	objs, err := src.Objectives()
	if err != nil {
		return SnapshotV1{}, fmt.Errorf("list objectives: %w", err)
	}
	for _, o := range objs {
		ov := ObjectiveV1{ID: o.ID, DisplayName: o.DisplayName}
		for _, e := range src.Standings(o.ID) {
			ov.Scores = append(ov.Scores, ScoreV1{ActorID: e.ActorID, Value: e.Value})
		}
		snap.Header.Scores += len(ov.Scores)
		snap.Objectives = append(snap.Objectives, ov)
	}
	snap.Header.Rules = len(snap.Rules)
	return snap, nil
}

// Restore writes snap into repo and dst. Existing records and scores with
// the same keys are overwritten; nothing else is removed.
func Restore(snap SnapshotV1, repo *rules.Repository, dst score.Backend) error {
	for _, r := range snap.Rules {
		k, ok := rules.ParseKind(r.Kind)
		if !ok {
			return fmt.Errorf("rule %s: unknown kind %q", r.Name, r.Kind)
		}
		if err := repo.Put(k, r.Name, []byte(r.Raw)); err != nil {
			return fmt.Errorf("restore %s: %w", rules.Key(k, r.Name), err)
		}
	}
	for _, o := range snap.Objectives {
		if _, ok, err := dst.Objective(o.ID); err != nil {
			return err
		} else if !ok {
			if err := dst.AddObjective(score.Objective{ID: o.ID, DisplayName: o.DisplayName}); err != nil {
				return fmt.Errorf("restore objective %s: %w", o.ID, err)
			}
		}
		for _, s := range o.Scores {
			if err := dst.SetScore(o.ID, s.ActorID, s.Value); err != nil {
				return fmt.Errorf("restore score %s/%s: %w", o.ID, s.ActorID, err)
			}
		}
	}
	return nil
}

// WriteSnapshot writes a JSON header line followed by the gob-encoded
// snapshot, zstd-compressed.
func WriteSnapshot(path string, snap SnapshotV1) (err error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer func() { err = errors.Join(err, f.Close()) }()

	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}
	defer func() { err = errors.Join(err, enc.Close()) }()

	bw := bufio.NewWriterSize(enc, 256*1024)
	defer func() { err = errors.Join(err, bw.Flush()) }()

	hb, _ := json.Marshal(snap.Header)
	if _, err := bw.Write(hb); err != nil {
		return err
	}
	if err := bw.WriteByte('\n'); err != nil {
		return err
	}

	if err := gob.NewEncoder(bw).Encode(&snap); err != nil {
		return fmt.Errorf("gob encode: %w", err)
	}
	return nil
}

func ReadSnapshot(path string) (SnapshotV1, error) {
	var snap SnapshotV1
	f, err := os.Open(path)
	if err != nil {
		return snap, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return snap, err
	}
	defer dec.Close()

	br := bufio.NewReaderSize(dec, 256*1024)

	hb, err := br.ReadBytes('\n')
	if err != nil {
		return snap, fmt.Errorf("read header: %w", err)
	}
	var h Header
	if err := json.Unmarshal(hb, &h); err != nil {
		return snap, fmt.Errorf("header: %w", err)
	}
	if h.Version != Version {
		return snap, fmt.Errorf("unsupported snapshot version %d", h.Version)
	}

	if err := gob.NewDecoder(br).Decode(&snap); err != nil {
		return snap, fmt.Errorf("gob decode: %w", err)
	}
	return snap, nil
}

// ReadHeader reads only the header line.
func ReadHeader(path string) (Header, error) {
	var h Header
	f, err := os.Open(path)
	if err != nil {
		return h, err
	}
	defer f.Close()
	dec, err := zstd.NewReader(f)
	if err != nil {
		return h, err
	}
	defer dec.Close()
	hb, err := bufio.NewReader(dec).ReadBytes('\n')
	if err != nil {
		return h, fmt.Errorf("read header: %w", err)
	}
	err = json.Unmarshal(hb, &h)
	return h, err
}
