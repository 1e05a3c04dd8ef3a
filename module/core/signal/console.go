package signal

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const bell = "\a"

// ConsoleSignal rings the terminal bell while the alarm sounds. With loop set
// the bell repeats every interval until Stop.
type ConsoleSignal struct {
	mu       sync.Mutex
	out      io.Writer
	logger   zerolog.Logger
	interval time.Duration
	stop     chan struct{}
}

func NewConsoleSignal(out io.Writer, logger zerolog.Logger) *ConsoleSignal {
	return &ConsoleSignal{out: out, logger: logger, interval: 2 * time.Second}
}

func (c *ConsoleSignal) Start(volume float64, loop bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stop != nil {
		return nil
	}
	if _, err := io.WriteString(c.out, bell); err != nil {
		return fmt.Errorf("ring bell: %w", err)
	}
	c.logger.Warn().Float64("volume", volume).Msg("ALARM: destination reached")
	if !loop {
		return nil
	}

	stop := make(chan struct{})
	c.stop = stop
	go c.ring(stop)
	return nil
}

func (c *ConsoleSignal) ring(stop <-chan struct{}) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			c.mu.Lock()
			_, _ = io.WriteString(c.out, bell)
			c.mu.Unlock()
		}
	}
}

func (c *ConsoleSignal) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stop != nil {
		close(c.stop)
		c.stop = nil
	}
	c.logger.Info().Msg("alarm silenced")
	return nil
}

// Vibrate is a no-op; terminals cannot vibrate.
func (c *ConsoleSignal) Vibrate([]time.Duration) error { return nil }

func (c *ConsoleSignal) Notify(title, body string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := fmt.Fprintf(c.out, "\n*** %s %s ***\n", title, body)
	return err
}
