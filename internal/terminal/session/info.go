package session

import (
	"context"
	"time"

	"github.com/GriffinCanCode/terminaltab/internal/terminal/state"
	"github.com/shirou/gopsutil/v3/process"
)

// Info is a point-in-time view of a session for listings.
type Info struct {
	ID         string        `json:"id"`
	Title      string        `json:"title"`
	RawTitle   string        `json:"rawTitle"`
	Phase      string        `json:"phase"`
	Cwd        string        `json:"cwd"`
	Shell      string        `json:"shell"`
	Persistent bool          `json:"persistent"`
	Visible    bool          `json:"visible"`
	Size       *state.Size   `json:"size,omitempty"`
	Pid        int           `json:"pid,omitempty"`
	CreatedAt  time.Time     `json:"createdAt"`
	Process    *ProcessStats `json:"process,omitempty"`
}

// ProcessStats are resource figures for the session's child process.
type ProcessStats struct {
	Name       string    `json:"name"`
	CPUPercent float64   `json:"cpuPercent"`
	RSSBytes   uint64    `json:"rssBytes"`
	Threads    int32     `json:"threads"`
	StartedAt  time.Time `json:"startedAt"`
}

// Info returns the session view. Process stats are collected only while the
// child is alive; a failed lookup leaves them empty.
func (s *Session) Info(ctx context.Context) Info {
	snap := s.Snapshot()
	info := Info{
		ID:         snap.ID,
		Title:      FormatTitle(snap.Title),
		RawTitle:   snap.Title,
		Phase:      s.Phase().String(),
		Cwd:        snap.Cwd,
		Shell:      snap.Shell,
		Persistent: snap.Persistent,
		Visible:    snap.Visible,
		Size:       snap.Size,
		Pid:        s.Pid(),
		CreatedAt:  s.createdAt,
	}
	if info.Pid > 0 && s.Phase() == Running {
		info.Process = processStats(ctx, info.Pid)
	}
	return info
}

func processStats(ctx context.Context, pid int) *ProcessStats {
	p, err := process.NewProcessWithContext(ctx, int32(pid))
	if err != nil {
		return nil
	}
	stats := &ProcessStats{}
	if name, err := p.NameWithContext(ctx); err == nil {
		stats.Name = name
	}
	if cpu, err := p.CPUPercentWithContext(ctx); err == nil {
		stats.CPUPercent = cpu
	}
	if mem, err := p.MemoryInfoWithContext(ctx); err == nil && mem != nil {
		stats.RSSBytes = mem.RSS
	}
	if n, err := p.NumThreadsWithContext(ctx); err == nil {
		stats.Threads = n
	}
	if created, err := p.CreateTimeWithContext(ctx); err == nil {
		stats.StartedAt = time.UnixMilli(created)
	}
	return stats
}
