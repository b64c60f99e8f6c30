package bot

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/alphabot/alpha-bot/pkg/types"
)

var knownStrategies = map[types.StrategyName]bool{
	types.StrategyGrid:            true,
	types.StrategyMomentum:        true,
	types.StrategyArbitrage:       true,
	types.StrategyScalp:           true,
	types.StrategyFuturesMomentum: true,
}

// Commands returns the operator control surface, mounted on the health
// server by the caller. Pause and resume act on the risk manager
// directly; a forced strategy overrides the selector for one pair until
// cleared.
func (b *Bot) Commands() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/pause", b.handlePause)
	mux.HandleFunc("/resume", b.handleResume)
	mux.HandleFunc("/strategy", b.handleForceStrategy)
	mux.HandleFunc("/status", b.handleStatus)
	return mux
}

func (b *Bot) handlePause(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "POST required", http.StatusMethodNotAllowed)
		return
	}
	reason := r.FormValue("reason")
	if reason == "" {
		reason = "paused by operator"
	}
	b.rm.Pause(reason)
	b.alert("warning", "Trading paused by operator: "+reason)
	fmt.Fprintln(w, "paused")
}

func (b *Bot) handleResume(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "POST required", http.StatusMethodNotAllowed)
		return
	}
	b.rm.Unpause()
	b.alert("info", "Trading resumed by operator")
	fmt.Fprintln(w, "resumed")
}

func (b *Bot) handleForceStrategy(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "POST required", http.StatusMethodNotAllowed)
		return
	}
	pair := r.FormValue("pair")
	if pair == "" {
		http.Error(w, "pair required", http.StatusBadRequest)
		return
	}
	name := types.StrategyName(r.FormValue("name"))
	if name == "" {
		b.clearOverride(pair)
		fmt.Fprintf(w, "override cleared for %s\n", pair)
		return
	}
	if !knownStrategies[name] {
		http.Error(w, fmt.Sprintf("unknown strategy %q", name), http.StatusBadRequest)
		return
	}
	b.setOverride(pair, name)
	b.log.Warning("[%s] Operator forced strategy %s", pair, name)
	fmt.Fprintf(w, "forcing %s on %s\n", name, pair)
}

func (b *Bot) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "GET required", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(b.rm.GetStatus()); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func (b *Bot) setOverride(pair string, name types.StrategyName) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.overrides[pair] = name
}

func (b *Bot) clearOverride(pair string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.overrides, pair)
}

func (b *Bot) override(pair string) (types.StrategyName, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	name, ok := b.overrides[pair]
	return name, ok
}
