package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/alphabot/alpha-bot/internal/logger"
	"github.com/alphabot/alpha-bot/pkg/types"
)

// TickerStream maintains a Bybit public ticker WebSocket with
// automatic reconnection and resubscription.
type TickerStream struct {
	url string
	log *logger.Logger

	mu        sync.RWMutex
	conn      *websocket.Conn
	callbacks map[string]func(types.Ticker)

	reconnectCh chan struct{}
	ctx         context.Context
	cancel      context.CancelFunc
}

// BybitSpotStreamURL is the public spot stream endpoint.
const BybitSpotStreamURL = "wss://stream.bybit.com/v5/public/spot"

func NewTickerStream(url string, log *logger.Logger) *TickerStream {
	ctx, cancel := context.WithCancel(context.Background())
	return &TickerStream{
		url:         url,
		log:         log,
		callbacks:   make(map[string]func(types.Ticker)),
		reconnectCh: make(chan struct{}, 1),
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Connect dials the stream and starts the read and reconnect loops.
func (s *TickerStream) Connect() error {
	dialer := *websocket.DefaultDialer
	dialer.HandshakeTimeout = 10 * time.Second

	conn, _, err := dialer.Dial(s.url, nil)
	if err != nil {
		return fmt.Errorf("dial ticker stream: %w", err)
	}

	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()

	if err := s.resubscribe(); err != nil {
		conn.Close()
		return err
	}

	go s.readLoop(conn)
	go s.reconnectLoop()
	go s.pingLoop(conn)
	return nil
}

// Subscribe registers a callback for a pair's ticker updates.
func (s *TickerStream) Subscribe(pair string, callback func(types.Ticker)) error {
	s.mu.Lock()
	s.callbacks[pair] = callback
	conn := s.conn
	s.mu.Unlock()

	if conn == nil {
		return nil // sent on connect
	}
	return s.sendSubscribe(conn, pair)
}

// Close stops all loops and closes the connection.
func (s *TickerStream) Close() error {
	s.cancel()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn != nil {
		return s.conn.Close()
	}
	return nil
}

func (s *TickerStream) sendSubscribe(conn *websocket.Conn, pair string) error {
	msg := map[string]interface{}{
		"op":   "subscribe",
		"args": []string{"tickers." + pair},
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return conn.WriteMessage(websocket.TextMessage, data)
}

func (s *TickerStream) resubscribe() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for pair := range s.callbacks {
		if err := s.sendSubscribe(s.conn, pair); err != nil {
			return fmt.Errorf("subscribe %s: %w", pair, err)
		}
	}
	return nil
}

func (s *TickerStream) readLoop(conn *websocket.Conn) {
	defer conn.Close()
	for {
		select {
		case <-s.ctx.Done():
			return
		default:
		}

		_, message, err := conn.ReadMessage()
		if err != nil {
			if s.ctx.Err() == nil {
				s.log.Warning("Ticker stream read error: %v", err)
				s.triggerReconnect()
			}
			return
		}
		s.handleMessage(message)
	}
}

func (s *TickerStream) handleMessage(message []byte) {
	var update struct {
		Topic string `json:"topic"`
		Data  struct {
			Symbol    string `json:"symbol"`
			LastPrice string `json:"lastPrice"`
			Bid1Price string `json:"bid1Price"`
			Ask1Price string `json:"ask1Price"`
			Volume24h string `json:"volume24h"`
		} `json:"data"`
	}
	if err := json.Unmarshal(message, &update); err != nil || update.Data.Symbol == "" {
		return
	}

	ticker := types.Ticker{
		Symbol:    update.Data.Symbol,
		Price:     parsePrice(update.Data.LastPrice),
		Bid:       parsePrice(update.Data.Bid1Price),
		Ask:       parsePrice(update.Data.Ask1Price),
		Volume:    parsePrice(update.Data.Volume24h),
		Timestamp: time.Now().UTC(),
	}
	if ticker.Price <= 0 {
		return
	}

	s.mu.RLock()
	callback, ok := s.callbacks[ticker.Symbol]
	s.mu.RUnlock()
	if ok {
		callback(ticker)
	}
}

func (s *TickerStream) pingLoop(conn *websocket.Conn) {
	ticker := time.NewTicker(20 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			ping, _ := json.Marshal(map[string]string{"op": "ping"})
			if err := conn.WriteMessage(websocket.TextMessage, ping); err != nil {
				return
			}
		}
	}
}

func (s *TickerStream) triggerReconnect() {
	select {
	case s.reconnectCh <- struct{}{}:
	default:
	}
}

func (s *TickerStream) reconnectLoop() {
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-s.reconnectCh:
			s.log.Info("Reconnecting ticker stream...")
			time.Sleep(5 * time.Second)
			if err := s.Connect(); err != nil {
				s.log.Error("Ticker stream reconnect failed: %v", err)
				s.triggerReconnect()
			}
		}
	}
}

func parsePrice(s string) float64 {
	v, _ := strconv.ParseFloat(s, 64)
	return v
}
