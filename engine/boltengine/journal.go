package boltengine

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/lightningnetwork/lnd/clock"
)

const (
	// segmentPrefix is the file name prefix of journal segments.
	segmentPrefix = "log."

	// segmentDigits is the zero padded width of a segment number.
	segmentDigits = 10

	logFilePermission = 0600
)

// segmentName returns the file name of segment seq.
func segmentName(seq uint64) string {
	return fmt.Sprintf("%s%0*d", segmentPrefix, segmentDigits, seq)
}

// parseSegmentName returns the segment number encoded in name.
func parseSegmentName(name string) (uint64, bool) {
	if !strings.HasPrefix(name, segmentPrefix) {
		return 0, false
	}
	digits := strings.TrimPrefix(name, segmentPrefix)
	if len(digits) != segmentDigits {
		return 0, false
	}
	seq, err := strconv.ParseUint(digits, 10, 64)
	if err != nil {
		return 0, false
	}

	return seq, true
}

// listSegments returns the segment numbers found in dir in ascending order.
func listSegments(dir string) ([]uint64, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	seqs := make([]uint64, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if seq, ok := parseSegmentName(entry.Name()); ok {
			seqs = append(seqs, seq)
		}
	}
	sort.Slice(seqs, func(i, j int) bool { return seqs[i] < seqs[j] })

	return seqs, nil
}

// recoveryState is what a journal scan learned about previous runs.
type recoveryState struct {
	lastLSN         uint64
	checkpointSeq   uint64
	checkpointTime  time.Time
	sinceCheckpoint int
	sinceBytes      int64

	// tornSeq and tornOffset locate a damaged tail, if any.
	tornSeq    uint64
	tornOffset int64
}

// scanSegments replays every segment in order, tracking the last checkpoint.
func scanSegments(dir string, seqs []uint64) (*recoveryState, error) {
	state := &recoveryState{}
	for _, seq := range seqs {
		f, err := os.Open(filepath.Join(dir, segmentName(seq)))
		if err != nil {
			return nil, err
		}

		rd := bufio.NewReader(f)
		var offset int64
		for {
			rec, n, err := decodeRecord(rd)
			if err == io.EOF {
				break
			}
			if errors.Is(err, errCorruptRecord) {
				log.Warnf("Journal segment %v damaged at offset "+
					"%d: %v", segmentName(seq), offset, err)

				state.tornSeq = seq
				state.tornOffset = offset
				break
			}
			offset += int64(n)

			if rec.lsn > state.lastLSN {
				state.lastLSN = rec.lsn
			}
			if rec.kind == kindCheckpoint {
				state.checkpointSeq = seq
				state.checkpointTime = time.Unix(
					0, int64(rec.timestamp),
				)
				state.sinceCheckpoint = 0
				state.sinceBytes = 0

				continue
			}
			state.sinceCheckpoint++
			state.sinceBytes += int64(n)
		}

		if err := f.Close(); err != nil {
			return nil, err
		}

		// Nothing after a torn record can be trusted.
		if state.tornSeq != 0 {
			break
		}
	}

	return state, nil
}

// journal is the segmented commit log of an environment. It records the
// shape of every committed write and every checkpoint, and decides which
// segments are archived, i.e. no longer needed past the last checkpoint.
type journal struct {
	dir     string
	maxSize int64
	bufSize int
	clock   clock.Clock

	mu   sync.Mutex
	f    *os.File
	w    *bufio.Writer
	seq  uint64
	size int64

	nextLSN         uint64
	sinceCheckpoint int64
	checkpointSeq   uint64
	lastCheckpoint  time.Time
}

// openJournal opens the journal in dir. With recover set the existing
// segments are scanned to find the last checkpoint and a torn tail left by a
// crash is truncated.
func openJournal(dir string, maxSize int64, bufSize int, clk clock.Clock,
	recover bool) (*journal, error) {

	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, err
	}

	seqs, err := listSegments(dir)
	if err != nil {
		return nil, err
	}

	j := &journal{
		dir:            dir,
		maxSize:        maxSize,
		bufSize:        bufSize,
		clock:          clk,
		nextLSN:        1,
		lastCheckpoint: clk.Now(),
	}

	seq := uint64(1)
	if len(seqs) > 0 {
		seq = seqs[len(seqs)-1]
	}

	if recover && len(seqs) > 0 {
		state, err := scanSegments(dir, seqs)
		if err != nil {
			return nil, err
		}

		if state.tornSeq != 0 {
			if err := j.repair(seqs, state); err != nil {
				return nil, err
			}
			seq = state.tornSeq
		}

		j.nextLSN = state.lastLSN + 1
		j.sinceCheckpoint = state.sinceBytes
		j.checkpointSeq = state.checkpointSeq
		if state.checkpointSeq != 0 {
			j.lastCheckpoint = state.checkpointTime
		}

		log.Infof("Recovered journal %v: last lsn %d, %d records "+
			"after last checkpoint", dir, state.lastLSN,
			state.sinceCheckpoint)
	} else if len(seqs) > 0 {
		// Without recovery we cannot trust the tail of the last
		// segment, so start a fresh one.
		seq++
	}

	if err := j.openSegment(seq); err != nil {
		return nil, err
	}

	return j, nil
}

// repair truncates the torn segment at its last good record and drops every
// segment after it.
func (j *journal) repair(seqs []uint64, state *recoveryState) error {
	path := filepath.Join(j.dir, segmentName(state.tornSeq))
	if err := os.Truncate(path, state.tornOffset); err != nil {
		return fmt.Errorf("unable to truncate torn journal: %w", err)
	}

	for _, seq := range seqs {
		if seq <= state.tornSeq {
			continue
		}
		err := os.Remove(filepath.Join(j.dir, segmentName(seq)))
		if err != nil {
			return err
		}
	}

	return nil
}

// openSegment makes seq the segment that is appended to.
func (j *journal) openSegment(seq uint64) error {
	path := filepath.Join(j.dir, segmentName(seq))
	f, err := os.OpenFile(
		path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, logFilePermission,
	)
	if err != nil {
		return err
	}

	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return err
	}

	j.f = f
	j.w = bufio.NewWriterSize(f, j.bufSize)
	j.seq = seq
	j.size = info.Size()

	return nil
}

// syncLocked flushes the buffer and fsyncs the current segment.
func (j *journal) syncLocked() error {
	if err := j.w.Flush(); err != nil {
		return err
	}

	return j.f.Sync()
}

// rotateLocked closes the current segment and starts the next one.
func (j *journal) rotateLocked() error {
	if err := j.syncLocked(); err != nil {
		return err
	}
	if err := j.f.Close(); err != nil {
		return err
	}

	log.Debugf("Rotating journal to %v", segmentName(j.seq+1))

	return j.openSegment(j.seq + 1)
}

// appendLocked writes recs, rotating first if the segment is full.
func (j *journal) appendLocked(recs ...*record) error {
	if j.f == nil {
		return os.ErrClosed
	}

	var buf bytes.Buffer
	now := uint64(j.clock.Now().UnixNano())
	for _, rec := range recs {
		rec.lsn = j.nextLSN
		rec.timestamp = now
		j.nextLSN++

		if _, err := rec.encode(&buf); err != nil {
			return err
		}
	}

	if j.maxSize > 0 && j.size > 0 &&
		j.size+int64(buf.Len()) > j.maxSize {

		if err := j.rotateLocked(); err != nil {
			return err
		}
	}

	n, err := j.w.Write(buf.Bytes())
	j.size += int64(n)
	j.sinceCheckpoint += int64(n)

	return err
}

// append journals committed writes.
func (j *journal) append(recs ...*record) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	return j.appendLocked(recs...)
}

// due reports whether a checkpoint with the given thresholds should run.
func (j *journal) due(sizeKB, minMinutes uint32) bool {
	j.mu.Lock()
	defer j.mu.Unlock()

	if sizeKB == 0 && minMinutes == 0 {
		return true
	}
	if sizeKB > 0 && j.sinceCheckpoint >= int64(sizeKB)*1024 {
		return true
	}

	elapsed := j.clock.Now().Sub(j.lastCheckpoint)

	return minMinutes > 0 && elapsed >= time.Duration(minMinutes)*time.Minute
}

// checkpoint records a checkpoint and makes the journal durable up to it.
// If anything was written since the previous checkpoint the journal moves on
// to a fresh segment, so every segment before the one holding the checkpoint
// record becomes archived.
func (j *journal) checkpoint() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	now := j.clock.Now()
	if j.sinceCheckpoint == 0 && j.checkpointSeq != 0 {
		j.lastCheckpoint = now
		return nil
	}

	if err := j.appendLocked(&record{kind: kindCheckpoint}); err != nil {
		return err
	}
	if err := j.syncLocked(); err != nil {
		return err
	}

	j.checkpointSeq = j.seq
	j.lastCheckpoint = now

	if err := j.rotateLocked(); err != nil {
		return err
	}
	j.sinceCheckpoint = 0

	return nil
}

// archived returns the paths of the segments older than the one holding the
// last checkpoint, oldest first.
func (j *journal) archived() ([]string, error) {
	j.mu.Lock()
	checkpointSeq := j.checkpointSeq
	j.mu.Unlock()

	seqs, err := listSegments(j.dir)
	if err != nil {
		return nil, err
	}

	var paths []string
	for _, seq := range seqs {
		if seq >= checkpointSeq {
			break
		}
		paths = append(paths, filepath.Join(j.dir, segmentName(seq)))
	}

	return paths, nil
}

// close flushes and closes the current segment.
func (j *journal) close() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.f == nil {
		return nil
	}

	syncErr := j.syncLocked()
	closeErr := j.f.Close()
	j.f = nil
	j.w = nil

	if syncErr != nil {
		return syncErr
	}

	return closeErr
}
