package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/alphabot/alpha-bot/internal/logger"
	"github.com/alphabot/alpha-bot/internal/risk"
	"github.com/alphabot/alpha-bot/pkg/types"
)

// Snapshot is the recoverable state written to disk between runs.
type Snapshot struct {
	Version      string              `json:"version"`
	SavedAt      time.Time           `json:"saved_at"`
	SessionStart time.Time           `json:"session_start"`

	Capital         float64            `json:"capital"`
	ExchangeCapital map[string]float64 `json:"exchange_capital"`
	DailyPnL        float64            `json:"daily_pnl"`
	DailyDate       string             `json:"daily_date"` // YYYY-MM-DD of the daily counters

	OpenPositions []types.Position    `json:"open_positions"`
	ClosedTrades  []types.TradeResult `json:"closed_trades"`

	Paused          bool   `json:"paused"`
	PauseReasonCode string `json:"pause_reason_code"`
	PauseDetail     string `json:"pause_detail"`
}

const snapshotVersion = "1.0"

// Persistence saves and restores bot state as a JSON snapshot. Writes
// go through a temp file and rename so a crash mid-save never leaves a
// truncated snapshot.
type Persistence struct {
	dir          string
	log          *logger.Logger
	sessionStart time.Time
}

func NewPersistence(dir string, log *logger.Logger) *Persistence {
	return &Persistence{
		dir:          dir,
		log:          log,
		sessionStart: time.Now().UTC(),
	}
}

func (p *Persistence) path() string {
	return filepath.Join(p.dir, "alpha_state.json")
}

// Save writes the current risk state to disk.
func (p *Persistence) Save(rm *risk.Manager) error {
	if err := os.MkdirAll(p.dir, 0o755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}

	status := rm.GetStatus()
	snap := Snapshot{
		Version:         snapshotVersion,
		SavedAt:         time.Now().UTC(),
		SessionStart:    p.sessionStart,
		Capital:         status.Capital,
		ExchangeCapital: status.ExchangeCapital,
		DailyPnL:        status.DailyPnL,
		DailyDate:       time.Now().UTC().Format("2006-01-02"),
		OpenPositions:   rm.OpenPositions(),
		ClosedTrades:    rm.ClosedTrades(),
		Paused:          status.IsPaused,
		PauseReasonCode: status.PauseReasonCode,
		PauseDetail:     status.PauseReason,
	}

	data, err := json.MarshalIndent(&snap, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}

	tmp := p.path() + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write temp state: %w", err)
	}
	if err := os.Rename(tmp, p.path()); err != nil {
		return fmt.Errorf("replace state file: %w", err)
	}

	p.log.Info("State saved: capital=$%.2f, %d open, %d closed",
		snap.Capital, len(snap.OpenPositions), len(snap.ClosedTrades))
	return nil
}

// Load reads the snapshot from disk. Returns (nil, nil) when no
// snapshot exists yet.
func (p *Persistence) Load() (*Snapshot, error) {
	data, err := os.ReadFile(p.path())
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read state file: %w", err)
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("parse state file: %w", err)
	}
	if snap.Capital < 0 {
		return nil, fmt.Errorf("state file has negative capital %.2f", snap.Capital)
	}
	return &snap, nil
}

// Restore applies a snapshot to the risk manager. Capital always
// carries over; daily counters only when the snapshot is from today,
// so a restart across midnight starts the day fresh.
func (p *Persistence) Restore(snap *Snapshot, rm *risk.Manager) {
	if snap == nil {
		return
	}

	rm.SetCapital(snap.Capital)
	if len(snap.ExchangeCapital) > 0 {
		rm.UpdateExchangeBalances(snap.ExchangeCapital)
		// UpdateExchangeBalances recomputes total capital from the
		// pools; put the authoritative figure back.
		rm.SetCapital(snap.Capital)
	}

	for _, pos := range snap.OpenPositions {
		if err := rm.RestorePosition(pos); err != nil {
			p.log.Warning("Could not restore position %s on %s: %v", pos.ID, pos.Pair, err)
		}
	}

	today := time.Now().UTC().Format("2006-01-02")
	if snap.DailyDate == today {
		rm.RestoreDailyPnL(snap.DailyPnL)
	}

	if snap.Paused && snap.PauseReasonCode == string(risk.PauseWinRate) {
		// A win-rate pause survives restarts; daily-loss and operator
		// pauses do not.
		rm.PauseForWinRate(snap.PauseDetail)
	}

	p.log.Info("State restored: capital=$%.2f, %d positions, saved %s",
		snap.Capital, len(snap.OpenPositions), snap.SavedAt.Format(time.RFC3339))
}
